// Package events publishes committed work item changes to AWS EventBridge.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"workbench-backend/internal/domain"
	appErrors "workbench-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DetailTypeWorkItemChanged is the EventBridge detail-type of change events.
const DetailTypeWorkItemChanged = "WorkItemChanged"

// DefaultSource is the event source used when none is configured.
const DefaultSource = "workbench-backend"

// maxEntriesPerCall is the PutEvents limit.
const maxEntriesPerCall = 10

// API is the subset of the EventBridge client the publisher uses.
type API interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher implements repository.ChangePublisher on EventBridge.
type Publisher struct {
	client   API
	eventBus string
	source   string
	logger   *zap.Logger
	now      func() time.Time
}

// NewPublisher creates an EventBridge publisher.
func NewPublisher(client API, eventBus, source string, logger *zap.Logger) *Publisher {
	if eventBus == "" {
		eventBus = "default"
	}
	if source == "" {
		source = DefaultSource
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, eventBus: eventBus, source: source, logger: logger, now: time.Now}
}

type changeDetail struct {
	EventID    string `json:"eventId"`
	WorkItemID int64  `json:"workItemId"`
	ClientID   int64  `json:"clientId"`
	Changes    string `json:"changes"`
	ChangedAt  string `json:"changedAt"`
}

// PublishWorkItemChanged sends one change event.
func (p *Publisher) PublishWorkItemChanged(ctx context.Context, event domain.WorkItemChangeEvent) error {
	return p.Publish(ctx, []domain.WorkItemChangeEvent{event})
}

// Publish sends events in batches of at most ten entries.
func (p *Publisher) Publish(ctx context.Context, events []domain.WorkItemChangeEvent) error {
	for start := 0; start < len(events); start += maxEntriesPerCall {
		end := min(start+maxEntriesPerCall, len(events))
		if err := p.publishBatch(ctx, events[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publishBatch(ctx context.Context, events []domain.WorkItemChangeEvent) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(events))
	for _, e := range events {
		entry, err := p.entry(e)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return appErrors.NewStoreUnavailable("put events", err)
	}
	if out.FailedEntryCount > 0 {
		for _, res := range out.Entries {
			if res.ErrorCode != nil {
				p.logger.Warn("event rejected",
					zap.String("error_code", aws.ToString(res.ErrorCode)),
					zap.String("error_message", aws.ToString(res.ErrorMessage)))
			}
		}
		return appErrors.NewStoreUnavailable(fmt.Sprintf("%d of %d events failed to publish", out.FailedEntryCount, len(entries)), nil)
	}

	p.logger.Debug("events published", zap.Int("count", len(entries)), zap.String("event_bus", p.eventBus))
	return nil
}

func (p *Publisher) entry(e domain.WorkItemChangeEvent) (types.PutEventsRequestEntry, error) {
	changedAt := e.CreatedAt
	if changedAt.IsZero() {
		changedAt = p.now()
	}
	detail, err := json.Marshal(changeDetail{
		EventID:    uuid.NewString(),
		WorkItemID: e.WorkItemID,
		ClientID:   e.ClientID,
		Changes:    e.Content,
		ChangedAt:  changedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return types.PutEventsRequestEntry{}, appErrors.NewInternal("marshal change event", err)
	}
	return types.PutEventsRequestEntry{
		EventBusName: aws.String(p.eventBus),
		Source:       aws.String(p.source),
		DetailType:   aws.String(DetailTypeWorkItemChanged),
		Detail:       aws.String(string(detail)),
		Time:         aws.Time(changedAt),
		Resources:    []string{"work-item/" + strconv.FormatInt(e.WorkItemID, 10)},
	}, nil
}

// Noop discards events. It is used when no event bus is configured.
type Noop struct{}

func (Noop) PublishWorkItemChanged(context.Context, domain.WorkItemChangeEvent) error { return nil }
