// Package domain contains the core data structures for the application,
// independent of the database or API layers.
package domain

import "time"

// Top-level sentinel: items without a parent are stored under parent id 0.
const (
	TopLevelParentID   int64 = 0
	TopLevelParentName       = "TOP_LEVEL"
)

// Client is a customer that owns product elements and work items.
type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name" validate:"required,max=200"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`

	Documents []ClientDocument `json:"documents,omitempty"`
	Summaries []ClientSummary  `json:"summaries,omitempty"`
}

// ClientSummary is a dated narrative about a client. CreatedAt identifies it.
type ClientSummary struct {
	ClientID  int64     `json:"clientId" validate:"gt=0"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProductElement is a node in a client's component hierarchy.
type ProductElement struct {
	ID          int64  `json:"id"`
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description,omitempty"`
	ClientID    int64  `json:"clientId" validate:"gt=0"`
	ClientName  string `json:"clientName"`
	ParentID    int64  `json:"parentId" validate:"gte=0"`
	ParentName  string `json:"parentName"`

	Documents []ProductElementDocument `json:"documents,omitempty"`
	Children  []ProductElement         `json:"children,omitempty"`
}

// IsTopLevel reports whether the element has no parent.
func (p ProductElement) IsTopLevel() bool {
	return p.ParentID == TopLevelParentID
}

// ProductElementNode is a product element with its whole subtree and depth.
type ProductElementNode struct {
	ProductElement
	Level    int                  `json:"level"`
	Children []ProductElementNode `json:"children,omitempty"`
}

// Flatten walks the tree depth-first, parents before children.
func Flatten(nodes []ProductElementNode) []ProductElementNode {
	var out []ProductElementNode
	for _, n := range nodes {
		children := n.Children
		n.Children = nil
		out = append(out, n)
		out = append(out, Flatten(children)...)
	}
	return out
}

// WorkItem is a unit of tracked work within a client's hierarchy.
type WorkItem struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name" validate:"required,max=500"`
	Type         WorkItemType   `json:"type" validate:"workitemtype"`
	Status       Status         `json:"status" validate:"workitemstatus"`
	Description  string         `json:"description,omitempty"`
	ClientID     int64          `json:"clientId" validate:"gt=0"`
	ClientName   string         `json:"clientName"`
	ParentID     int64          `json:"parentId" validate:"gte=0"`
	ParentName   string         `json:"parentName"`
	CustomFields map[string]any `json:"customFields,omitempty"`

	// ProductElementIDs is the full desired link set.
	ProductElementIDs []int64 `json:"productElementIds,omitempty" validate:"dive,gt=0"`

	// Version increments on every successful update.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Documents []WorkItemDocument `json:"documents,omitempty"`
	Children  []WorkItem         `json:"children,omitempty"`
}

// IsTopLevel reports whether the work item has no parent.
func (w WorkItem) IsTopLevel() bool {
	return w.ParentID == TopLevelParentID
}

// IsActive reports whether the work item is visible in default listings.
func (w WorkItem) IsActive() bool {
	return w.Status.IsActive()
}

// WorkItemChangeEvent records tracked field changes of one update.
type WorkItemChangeEvent struct {
	WorkItemID int64     `json:"workItemId"`
	ClientID   int64     `json:"clientId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}
