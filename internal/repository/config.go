package repository

import (
	"fmt"

	"workbench-backend/internal/store"
)

// Attribute names shared by the repositories and the index definitions.
const (
	AttrEntityID     = "EntityId"
	AttrName         = "Name"
	AttrIsActive     = "IsActive"
	AttrActiveClient = "ActiveClient"
	AttrCreatedAt    = "CreatedAt"
	AttrClientKey    = "ClientKey"
	AttrSearchKey    = "SearchKey"
	AttrItemType     = "ItemType"
	AttrClientID     = "ClientId"
	AttrVersion      = "Version"
	AttrSummary      = "Summary"
	AttrParentID     = "ParentId"
)

// Marker values of the sparse indexes.
const (
	ActiveClientMarker = "CLIENT"
	ItemTypeEvent      = "EVENT"
)

// Config represents the table layout the repositories are written against.
type Config struct {
	TableName         string
	ActiveClientIndex store.Index
	ClientSearchIndex store.Index
	ClientEntityIndex store.Index
	ItemTypeDateIndex store.Index
}

// NewConfig returns the standard layout for tableName.
func NewConfig(tableName string) Config {
	return Config{
		TableName:         tableName,
		ActiveClientIndex: store.Index{Name: "ActiveClientIndex", PartitionKey: AttrActiveClient, SortKey: AttrCreatedAt},
		ClientSearchIndex: store.Index{Name: "ClientSearchIndex", PartitionKey: AttrClientKey, SortKey: AttrSearchKey},
		ClientEntityIndex: store.Index{Name: "ClientEntityIndex", PartitionKey: AttrClientKey, SortKey: store.AttrPK},
		ItemTypeDateIndex: store.Index{Name: "ItemTypeDateIndex", PartitionKey: AttrItemType, SortKey: AttrCreatedAt},
	}
}

// Indexes lists every secondary index, for table creation and verification.
func (c Config) Indexes() []store.Index {
	return []store.Index{c.ActiveClientIndex, c.ClientSearchIndex, c.ClientEntityIndex, c.ItemTypeDateIndex}
}

// Validate checks if the configuration has all required fields.
func (c Config) Validate() error {
	if c.TableName == "" {
		return fmt.Errorf("TableName is required")
	}
	for _, idx := range c.Indexes() {
		if idx.Name == "" || idx.PartitionKey == "" || idx.SortKey == "" {
			return fmt.Errorf("index %q is incompletely defined", idx.Name)
		}
	}
	return nil
}
