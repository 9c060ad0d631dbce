package repository

import (
	"regexp"
	"strconv"
	"time"

	"workbench-backend/internal/store"
	appErrors "workbench-backend/pkg/errors"
)

// Entity prefixes used in partition keys.
const (
	PrefixClient         = "CLIENT"
	PrefixProductElement = "PE"
	PrefixWorkItem       = "WI"
)

// Fixed sort keys and sort key prefixes.
const (
	SKMetadata       = "METADATA"
	SKDocumentPrefix = "DOC#"
	SKSummaryPrefix  = "SUM#"
	SKEventPrefix    = "EVT#"
)

const (
	searchActive   = "active"
	searchInactive = "inactive"
)

// PartitionKey formats "<prefix>#<id>".
func PartitionKey(prefix string, id int64) string {
	return prefix + "#" + strconv.FormatInt(id, 10)
}

var keyPatterns = map[string]*regexp.Regexp{}

func keyPattern(prefix string) *regexp.Regexp {
	if re, ok := keyPatterns[prefix]; ok {
		return re
	}
	return regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `#(\d+)$`)
}

func init() {
	for _, p := range []string{PrefixClient, PrefixProductElement, PrefixWorkItem} {
		keyPatterns[p] = regexp.MustCompile(`^` + regexp.QuoteMeta(p) + `#(\d+)$`)
	}
}

// ParseID is the inverse of PartitionKey. It also accepts link sort keys,
// which share the "<prefix>#<id>" shape.
func ParseID(key, prefix string) (int64, error) {
	m := keyPattern(prefix).FindStringSubmatch(key)
	if m == nil {
		return 0, appErrors.NewMalformedKey(key, prefix)
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, appErrors.NewMalformedKey(key, prefix)
	}
	return id, nil
}

// SearchKey formats "<parentId>#<active|inactive>#<partitionKey>".
func SearchKey(parentID int64, active bool, partitionKey string) string {
	state := searchInactive
	if active {
		state = searchActive
	}
	return strconv.FormatInt(parentID, 10) + "#" + state + "#" + partitionKey
}

// ChildrenPrefix matches the active children of parentID with the given
// entity prefix. Parent id 0 yields the top-level prefix.
func ChildrenPrefix(parentID int64, prefix string) string {
	return strconv.FormatInt(parentID, 10) + "#" + searchActive + "#" + prefix + "#"
}

// EntityPrefix matches every partition key of the given entity type.
func EntityPrefix(prefix string) string {
	return prefix + "#"
}

// MetadataKey addresses an entity's metadata item.
func MetadataKey(prefix string, id int64) store.Key {
	return store.Key{PK: PartitionKey(prefix, id), SK: SKMetadata}
}

// DocumentSortKey formats "DOC#<id>".
func DocumentSortKey(docID int64) string {
	return SKDocumentPrefix + strconv.FormatInt(docID, 10)
}

// TimestampLayout is RFC 3339 in UTC with a fixed nine-digit fraction, so
// that stored timestamps sort lexically in time order.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTimestamp renders t the way timestamps are stored and sorted.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp reads a stored timestamp. Any RFC 3339 value is accepted.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, appErrors.NewValidationf("invalid timestamp %q", s)
	}
	return t, nil
}

// SummarySortKey formats "SUM#<createdAt>".
func SummarySortKey(createdAt time.Time) string {
	return SKSummaryPrefix + FormatTimestamp(createdAt)
}

// EventSortKey formats "EVT#<createdAt>".
func EventSortKey(createdAt time.Time) string {
	return SKEventPrefix + FormatTimestamp(createdAt)
}

// LinkKeys returns both mirror items of a work item / product element link:
// WI#<wid>/PE#<peid> and PE#<peid>/WI#<wid>.
func LinkKeys(workItemID, productElementID int64) (fromWorkItem, fromProductElement store.Key) {
	wi := PartitionKey(PrefixWorkItem, workItemID)
	pe := PartitionKey(PrefixProductElement, productElementID)
	return store.Key{PK: wi, SK: pe}, store.Key{PK: pe, SK: wi}
}
