package repository

import (
	"testing"
	"time"

	appErrors "workbench-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionKeyRoundTrip(t *testing.T) {
	for _, prefix := range []string{PrefixClient, PrefixProductElement, PrefixWorkItem} {
		for _, id := range []int64{1, 7, 42, 1_000_000, 9_223_372_036_854_775_807} {
			got, err := ParseID(PartitionKey(prefix, id), prefix)
			require.NoError(t, err)
			assert.Equal(t, id, got)
		}
	}
}

func TestParseID_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		prefix string
	}{
		{"empty", "", PrefixClient},
		{"wrong prefix", "PE#12", PrefixWorkItem},
		{"prefix only", "WI#", PrefixWorkItem},
		{"non numeric", "WI#abc", PrefixWorkItem},
		{"negative", "WI#-3", PrefixWorkItem},
		{"trailing segment", "WI#3#METADATA", PrefixWorkItem},
		{"leading garbage", "xWI#3", PrefixWorkItem},
		{"overflow", "WI#99999999999999999999", PrefixWorkItem},
		{"unregistered prefix", "DOC#3", "SUM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseID(tt.key, tt.prefix)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrorTypeMalformedKey, appErrors.TypeOf(err))
		})
	}
}

func TestSearchKey(t *testing.T) {
	assert.Equal(t, "0#active#WI#5", SearchKey(0, true, "WI#5"))
	assert.Equal(t, "12#inactive#WI#5", SearchKey(12, false, "WI#5"))
	assert.Equal(t, "12#active#PE#", ChildrenPrefix(12, PrefixProductElement))
	assert.Equal(t, "0#active#WI#", ChildrenPrefix(0, PrefixWorkItem))

	// A child prefix must never match the children of a parent whose id
	// merely starts with the same digits.
	assert.NotContains(t, SearchKey(120, true, "WI#5"), ChildrenPrefix(12, PrefixWorkItem))
}

func TestTimestampsSortLexically(t *testing.T) {
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	earlier := FormatTimestamp(base)
	later := FormatTimestamp(base.Add(10 * time.Millisecond))

	assert.Len(t, earlier, len(later))
	assert.Less(t, earlier, later)
	assert.Less(t, SummarySortKey(base), SummarySortKey(base.Add(time.Nanosecond)))

	parsed, err := ParseTimestamp(later)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(base.Add(10*time.Millisecond)))

	_, err = ParseTimestamp("yesterday")
	assert.True(t, appErrors.IsValidation(err))
}

func TestFormatTimestamp_NormalizesZone(t *testing.T) {
	local := time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
	assert.Equal(t, "2024-06-01T10:00:00.000000000Z", FormatTimestamp(local))
}

func TestLinkKeys(t *testing.T) {
	fromWI, fromPE := LinkKeys(3, 9)
	assert.Equal(t, "WI#3", fromWI.PK)
	assert.Equal(t, "PE#9", fromWI.SK)
	assert.Equal(t, "PE#9", fromPE.PK)
	assert.Equal(t, "WI#3", fromPE.SK)
}
