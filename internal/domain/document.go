package domain

// Document is free-text content attached to an owning entity.
type Document struct {
	ID      int64  `json:"id"`
	Name    string `json:"name" validate:"required,max=200"`
	Type    string `json:"type" validate:"max=50"`
	Content string `json:"content"`
}

// ClientDocument is a document owned by a client.
type ClientDocument struct {
	Document
	ClientID int64 `json:"clientId" validate:"gt=0"`
}

// ProductElementDocument is a document owned by a product element.
type ProductElementDocument struct {
	Document
	ProductElementID int64 `json:"productElementId" validate:"gt=0"`
}

// WorkItemDocument is a document owned by a work item. Summary is generated
// separately from content and may be empty.
type WorkItemDocument struct {
	Document
	WorkItemID int64  `json:"workItemId" validate:"gt=0"`
	Summary    string `json:"summary,omitempty"`
}
