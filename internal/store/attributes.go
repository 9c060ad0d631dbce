package store

import (
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// StringAttr extracts a string attribute, returns empty string if not found
func StringAttr(item Item, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// NumberAttr extracts an integer attribute, returns 0 if not found or invalid
func NumberAttr(item Item, name string) int64 {
	if v, ok := item[name].(*types.AttributeValueMemberN); ok {
		n, err := strconv.ParseInt(v.Value, 10, 64)
		if err == nil {
			return n
		}
	}
	return 0
}

// HasAttr reports whether the item carries the attribute.
func HasAttr(item Item, name string) bool {
	_, ok := item[name]
	return ok
}

// S creates a DynamoDB string attribute value
func S(value string) *types.AttributeValueMemberS {
	return &types.AttributeValueMemberS{Value: value}
}

// N creates a DynamoDB number attribute value
func N(value int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(value, 10)}
}
