package repository

import (
	"time"

	"workbench-backend/internal/domain"
	"workbench-backend/internal/store"
	appErrors "workbench-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
)

// Item shapes as stored in the table. Only metadata items carry ClientKey,
// which keeps documents, events and links out of the client indexes.

type clientRecord struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	EntityID     int64  `dynamodbav:"EntityId"`
	Name         string `dynamodbav:"Name"`
	IsActive     bool   `dynamodbav:"IsActive"`
	CreatedAt    string `dynamodbav:"CreatedAt"`
	ActiveClient string `dynamodbav:"ActiveClient,omitempty"`
}

type documentRecord struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	EntityID  int64  `dynamodbav:"EntityId"`
	OwnerID   int64  `dynamodbav:"OwnerId"`
	Name      string `dynamodbav:"Name"`
	Type      string `dynamodbav:"Type"`
	Content   string `dynamodbav:"Content"`
	Summary   string `dynamodbav:"Summary,omitempty"`
	UpdatedAt string `dynamodbav:"UpdatedAt"`
}

type summaryRecord struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	ClientID  int64  `dynamodbav:"ClientId"`
	Content   string `dynamodbav:"Content"`
	CreatedAt string `dynamodbav:"CreatedAt"`
}

type productElementRecord struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	EntityID    int64  `dynamodbav:"EntityId"`
	Name        string `dynamodbav:"Name"`
	Description string `dynamodbav:"Description,omitempty"`
	ClientKey   string `dynamodbav:"ClientKey"`
	ClientID    int64  `dynamodbav:"ClientId"`
	ClientName  string `dynamodbav:"ClientName"`
	ParentID    int64  `dynamodbav:"ParentId"`
	ParentName  string `dynamodbav:"ParentName"`
	SearchKey   string `dynamodbav:"SearchKey"`
}

type workItemRecord struct {
	PK           string         `dynamodbav:"PK"`
	SK           string         `dynamodbav:"SK"`
	EntityID     int64          `dynamodbav:"EntityId"`
	Name         string         `dynamodbav:"Name"`
	Type         string         `dynamodbav:"Type"`
	Status       string         `dynamodbav:"Status"`
	Description  string         `dynamodbav:"Description,omitempty"`
	ClientKey    string         `dynamodbav:"ClientKey"`
	ClientID     int64          `dynamodbav:"ClientId"`
	ClientName   string         `dynamodbav:"ClientName"`
	ParentID     int64          `dynamodbav:"ParentId"`
	ParentName   string         `dynamodbav:"ParentName"`
	SearchKey    string         `dynamodbav:"SearchKey"`
	CustomFields map[string]any `dynamodbav:"CustomFields,omitempty"`
	Version      int64          `dynamodbav:"Version"`
	CreatedAt    string         `dynamodbav:"CreatedAt"`
	UpdatedAt    string         `dynamodbav:"UpdatedAt"`
}

type linkRecord struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	CreatedAt string `dynamodbav:"CreatedAt"`
}

type eventRecord struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	ItemType   string `dynamodbav:"ItemType"`
	WorkItemID int64  `dynamodbav:"WorkItemId"`
	ClientID   int64  `dynamodbav:"ClientId"`
	Content    string `dynamodbav:"Content"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
}

func marshal(record any) (store.Item, error) {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, appErrors.NewInternal("failed to marshal item", err)
	}
	return item, nil
}

func unmarshal(item store.Item, record any) error {
	if err := attributevalue.UnmarshalMap(item, record); err != nil {
		return appErrors.NewInternal("failed to unmarshal item", err)
	}
	return nil
}

// parseTime reads an optional stored timestamp; empty yields the zero time.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (r clientRecord) toDomain() domain.Client {
	return domain.Client{
		ID:        r.EntityID,
		Name:      r.Name,
		IsActive:  r.IsActive,
		CreatedAt: parseTime(r.CreatedAt),
	}
}

func (r documentRecord) toDocument() domain.Document {
	return domain.Document{ID: r.EntityID, Name: r.Name, Type: r.Type, Content: r.Content}
}

func (r summaryRecord) toDomain() domain.ClientSummary {
	return domain.ClientSummary{ClientID: r.ClientID, Content: r.Content, CreatedAt: parseTime(r.CreatedAt)}
}

func (r productElementRecord) toDomain() domain.ProductElement {
	return domain.ProductElement{
		ID:          r.EntityID,
		Name:        r.Name,
		Description: r.Description,
		ClientID:    r.ClientID,
		ClientName:  r.ClientName,
		ParentID:    r.ParentID,
		ParentName:  r.ParentName,
	}
}

func (r workItemRecord) toDomain() domain.WorkItem {
	return domain.WorkItem{
		ID:           r.EntityID,
		Name:         r.Name,
		Type:         domain.WorkItemType(r.Type),
		Status:       domain.Status(r.Status),
		Description:  r.Description,
		ClientID:     r.ClientID,
		ClientName:   r.ClientName,
		ParentID:     r.ParentID,
		ParentName:   r.ParentName,
		CustomFields: r.CustomFields,
		Version:      r.Version,
		CreatedAt:    parseTime(r.CreatedAt),
		UpdatedAt:    parseTime(r.UpdatedAt),
	}
}

func (r eventRecord) toDomain() domain.WorkItemChangeEvent {
	return domain.WorkItemChangeEvent{
		WorkItemID: r.WorkItemID,
		ClientID:   r.ClientID,
		Content:    r.Content,
		CreatedAt:  parseTime(r.CreatedAt),
	}
}

// decodeAll unmarshals every item into T and converts it.
func decodeAll[R any, T any](items []store.Item, convert func(R) T) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		var rec R
		if err := unmarshal(item, &rec); err != nil {
			return nil, err
		}
		out = append(out, convert(rec))
	}
	return out, nil
}
