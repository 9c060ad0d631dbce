// Package summary attaches AI-generated summaries to work item documents and
// drafts client summaries from recent work item activity.
package summary

import (
	"context"
	"time"

	"workbench-backend/internal/domain"
	appErrors "workbench-backend/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WorkItems is the part of the work item repository the service needs.
type WorkItems interface {
	AddWorkItemDocument(ctx context.Context, doc domain.WorkItemDocument) (int64, error)
	UpdateWorkItemDocument(ctx context.Context, doc domain.WorkItemDocument) error
	GetWorkItemDocumentByID(ctx context.Context, workItemID, docID int64) (*domain.WorkItemDocument, error)
	SetWorkItemDocumentSummary(ctx context.Context, workItemID, docID int64, summary string) error
	GetWorkItemDocuments(ctx context.Context, workItemID int64) ([]domain.WorkItemDocument, error)
	GetWorkItemsForClient(ctx context.Context, clientID int64, includeInactive bool) ([]domain.WorkItem, error)
	GetEventsForRange(ctx context.Context, clientID int64, start, end time.Time) ([]domain.WorkItemChangeEvent, error)
}

// Clients is the part of the client repository the service needs.
type Clients interface {
	GetLatestClientSummary(ctx context.Context, clientID int64) (*domain.ClientSummary, error)
	AddClientSummary(ctx context.Context, clientID int64, content string) (domain.ClientSummary, error)
}

// documentReadConcurrency bounds parallel document reads while drafting.
const documentReadConcurrency = 8

// Service coordinates the summarizer with the repositories.
type Service struct {
	summarizer Summarizer
	workItems  WorkItems
	clients    Clients
	logger     *zap.Logger
}

// NewService creates a summary service. A nil summarizer disables AI output.
func NewService(summarizer Summarizer, workItems WorkItems, clients Clients, logger *zap.Logger) *Service {
	if summarizer == nil {
		summarizer = Disabled{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{summarizer: summarizer, workItems: workItems, clients: clients, logger: logger}
}

// SaveWorkItemDocument creates (ID 0) or rewrites a work item document with
// a freshly generated summary. A failing summarizer leaves the summary empty
// and the document is written anyway.
func (s *Service) SaveWorkItemDocument(ctx context.Context, doc domain.WorkItemDocument) (domain.WorkItemDocument, error) {
	doc.Summary = s.summarize(ctx, doc.WorkItemID, doc.Content)

	if doc.ID == 0 {
		id, err := s.workItems.AddWorkItemDocument(ctx, doc)
		if err != nil {
			return domain.WorkItemDocument{}, err
		}
		doc.ID = id
		return doc, nil
	}
	if err := s.workItems.UpdateWorkItemDocument(ctx, doc); err != nil {
		return domain.WorkItemDocument{}, err
	}
	return doc, nil
}

// RefreshDocumentSummary regenerates the summary of a stored document without
// touching its content. Unlike the save path, summarizer failures are
// returned.
func (s *Service) RefreshDocumentSummary(ctx context.Context, workItemID, docID int64) (string, error) {
	doc, err := s.workItems.GetWorkItemDocumentByID(ctx, workItemID, docID)
	if err != nil {
		return "", err
	}
	summary, err := s.summarizer.Summarize(ctx, doc.Content)
	if err != nil {
		return "", err
	}
	if err := s.workItems.SetWorkItemDocumentSummary(ctx, workItemID, docID, summary); err != nil {
		return "", err
	}
	return summary, nil
}

func (s *Service) summarize(ctx context.Context, workItemID int64, content string) string {
	if content == "" {
		return ""
	}
	summary, err := s.summarizer.Summarize(ctx, content)
	if err != nil {
		s.logger.Warn("document summary failed, storing document without one",
			zap.Int64("work_item_id", workItemID),
			zap.Error(err))
		return ""
	}
	return summary
}

// DraftClientSummary asks the summarizer for a new client summary covering
// [since, until] and stores it as the client's latest summary.
func (s *Service) DraftClientSummary(ctx context.Context, clientID int64, since, until time.Time) (domain.ClientSummary, error) {
	previous := ""
	latest, err := s.clients.GetLatestClientSummary(ctx, clientID)
	switch {
	case err == nil:
		previous = latest.Content
	case !appErrors.IsNotFound(err):
		return domain.ClientSummary{}, err
	}

	activity, err := s.collectActivity(ctx, clientID, since, until)
	if err != nil {
		return domain.ClientSummary{}, err
	}

	draft, err := s.summarizer.DraftClientSummary(ctx, previous, activity)
	if err != nil {
		return domain.ClientSummary{}, err
	}

	summary, err := s.clients.AddClientSummary(ctx, clientID, draft)
	if err != nil {
		return domain.ClientSummary{}, err
	}
	s.logger.Info("client summary drafted",
		zap.Int64("client_id", clientID),
		zap.Int("work_items", len(activity)))
	return summary, nil
}

// collectActivity groups the client's events in range by work item and
// loads the documents of every work item that changed.
func (s *Service) collectActivity(ctx context.Context, clientID int64, since, until time.Time) ([]WorkItemActivity, error) {
	events, err := s.workItems.GetEventsForRange(ctx, clientID, since, until)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	workItems, err := s.workItems.GetWorkItemsForClient(ctx, clientID, true)
	if err != nil {
		return nil, err
	}

	byWorkItem := make(map[int64][]domain.WorkItemChangeEvent)
	for _, e := range events {
		byWorkItem[e.WorkItemID] = append(byWorkItem[e.WorkItemID], e)
	}

	var activity []WorkItemActivity
	for _, wi := range workItems {
		if evts, ok := byWorkItem[wi.ID]; ok {
			activity = append(activity, WorkItemActivity{WorkItem: wi, Events: evts})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(documentReadConcurrency)
	for i := range activity {
		a := &activity[i]
		g.Go(func() error {
			docs, err := s.workItems.GetWorkItemDocuments(gctx, a.WorkItem.ID)
			if err != nil {
				return err
			}
			a.Documents = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return activity, nil
}
