package domain

import (
	appErrors "workbench-backend/pkg/errors"
)

// WorkItemType classifies a work item and decides its custom fields.
type WorkItemType string

const (
	TypeProject WorkItemType = "PROJECT"
	TypeFeature WorkItemType = "FEATURE"
	TypeEpic    WorkItemType = "EPIC"
	TypeStory   WorkItemType = "STORY"
	TypeTask    WorkItemType = "TASK"
	TypeNFR     WorkItemType = "NFR"
	TypeBug     WorkItemType = "BUG"
	TypeIssue   WorkItemType = "ISSUE"
)

// ParentClient in a type's ParentTypes allows the type at the top level.
const ParentClient = "_CLIENT_"

// WorkItemTypes lists the types in display order.
var WorkItemTypes = []WorkItemType{TypeProject, TypeFeature, TypeEpic, TypeStory, TypeTask, TypeNFR, TypeBug, TypeIssue}

// FieldKind is the value kind of a custom field.
type FieldKind string

const (
	FieldString FieldKind = "string"
	FieldNumber FieldKind = "number"
)

// FieldDef describes one custom field of a work item type.
type FieldDef struct {
	Name      string    `json:"name"`
	Kind      FieldKind `json:"type"`
	Required  bool      `json:"required,omitempty"`
	Values    []string  `json:"values,omitempty"`
	Multiline bool      `json:"multiline,omitempty"`
}

// TypeInfo is the catalog entry of a work item type.
type TypeInfo struct {
	CustomFields []FieldDef `json:"customFields"`
	ParentTypes  []string   `json:"parentTypes"`
}

var catalog = map[WorkItemType]TypeInfo{
	TypeProject: {
		ParentTypes: []string{ParentClient, string(TypeProject)},
	},
	TypeFeature: {
		ParentTypes: []string{string(TypeProject)},
	},
	TypeEpic: {
		CustomFields: []FieldDef{
			{Name: "rank", Kind: FieldNumber, Required: true},
		},
		ParentTypes: []string{string(TypeFeature)},
	},
	TypeStory: {
		CustomFields: []FieldDef{
			{Name: "rank", Kind: FieldNumber},
			{Name: "points", Kind: FieldNumber, Values: []string{"1", "2", "3", "5", "8", "13", "20"}},
			{Name: "acceptanceCriteria", Kind: FieldString},
		},
		ParentTypes: []string{string(TypeProject), string(TypeFeature), string(TypeEpic)},
	},
	TypeTask: {
		ParentTypes: []string{ParentClient, string(TypeStory), string(TypeBug)},
	},
	TypeNFR: {
		ParentTypes: []string{string(TypeProject), string(TypeFeature), string(TypeEpic)},
	},
	TypeBug: {
		CustomFields: []FieldDef{
			{Name: "severity", Kind: FieldString, Values: []string{"BLOCKER", "CRITICAL", "MAJOR", "MINOR"}},
			{Name: "reproSteps", Kind: FieldString, Multiline: true},
		},
		ParentTypes: []string{string(TypeStory), string(TypeProject), string(TypeFeature), string(TypeEpic)},
	},
	TypeIssue: {
		ParentTypes: []string{ParentClient, string(TypeProject)},
	},
}

// Valid reports whether t is a catalogued type.
func (t WorkItemType) Valid() bool {
	_, ok := catalog[t]
	return ok
}

// Info returns the catalog entry for t.
func (t WorkItemType) Info() (TypeInfo, bool) {
	info, ok := catalog[t]
	return info, ok
}

// AllowsParent reports whether t may sit under parentType. An empty
// parentType means the top level.
func (t WorkItemType) AllowsParent(parentType WorkItemType) bool {
	info, ok := catalog[t]
	if !ok {
		return false
	}
	want := string(parentType)
	if parentType == "" {
		want = ParentClient
	}
	for _, p := range info.ParentTypes {
		if p == want {
			return true
		}
	}
	return false
}

// ParseWorkItemType converts raw input into a WorkItemType.
func ParseWorkItemType(raw string) (WorkItemType, error) {
	t := WorkItemType(raw)
	if !t.Valid() {
		return "", appErrors.NewValidationf("unknown work item type %q", raw)
	}
	return t, nil
}
