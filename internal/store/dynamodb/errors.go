package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"workbench-backend/internal/store"
	appErrors "workbench-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// throttlingCodes are API error codes that indicate a transient condition.
var throttlingCodes = map[string]bool{
	"ThrottlingException":                    true,
	"ProvisionedThroughputExceededException": true,
	"RequestLimitExceeded":                   true,
	"InternalServerError":                    true,
	"ServiceUnavailable":                     true,
	"LimitExceededException":                 true,
}

// classify maps a DynamoDB client error onto the application error kinds.
func classify(op string, key store.Key, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return appErrors.NewStoreUnavailable(op+" timed out", err).(*appErrors.AppError).WithCode(appErrors.CodeTimeout)
	}

	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return store.ErrConditionFailed(op, key)
	}

	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		failed := appErrors.NewTransactionFailed(op+" cancelled"+describeReasons(tce.CancellationReasons), err).(*appErrors.AppError)
		for _, reason := range tce.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return failed.WithCode(appErrors.CodeConditionFailed)
			}
		}
		return failed
	}

	var tcx *types.TransactionConflictException
	if errors.As(err, &tcx) {
		return appErrors.NewTransactionFailed(op+" conflicted with a concurrent transaction", err)
	}

	var rnf *types.ResourceNotFoundException
	if errors.As(err, &rnf) {
		return appErrors.NewInternal(op+": table or index not found", err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if throttlingCodes[apiErr.ErrorCode()] {
			return appErrors.NewStoreUnavailable(op+" throttled", err).(*appErrors.AppError).WithCode(appErrors.CodeThrottled)
		}
		if apiErr.ErrorFault() == smithy.FaultServer {
			return appErrors.NewStoreUnavailable(op+" failed", err)
		}
		return appErrors.NewInternal(op+" rejected", err)
	}

	// Transport-level failures (DNS, connection resets) carry no API code.
	return appErrors.NewStoreUnavailable(op+" failed", err)
}

func describeReasons(reasons []types.CancellationReason) string {
	var codes []string
	for i, r := range reasons {
		code := aws.ToString(r.Code)
		if code == "" || code == "None" {
			continue
		}
		codes = append(codes, fmt.Sprintf("%d=%s", i, code))
	}
	if len(codes) == 0 {
		return ""
	}
	return fmt.Sprintf(" %v", codes)
}
