package dynamodb

import (
	"context"
	"errors"
	"net"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
)

// throttlingCodes are API error codes DynamoDB returns when the request may succeed later
var throttlingCodes = map[string]struct{}{
	"ThrottlingException":                    {},
	"ProvisionedThroughputExceededException": {},
	"RequestLimitExceeded":                   {},
	"InternalServerError":                    {},
	"ServiceUnavailable":                     {},
	"TransactionConflictException":           {},
}

// classify maps an AWS SDK error onto the service sentinels
func classify(err error, op string) error {
	if err == nil {
		return nil
	}

	details := map[string]any{"op": op}

	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return ierr.WithError(err).
			WithHint("A serial was already issued for this order reference").
			WithReportableDetails(details).
			Mark(ierr.ErrAlreadyExists)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		details["code"] = apiErr.ErrorCode()
		if _, ok := throttlingCodes[apiErr.ErrorCode()]; ok || apiErr.ErrorFault() == smithy.FaultServer {
			return unavailable(err, details)
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() >= 500 {
		details["status"] = respErr.HTTPStatusCode()
		return unavailable(err, details)
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return unavailable(err, details)
	}

	return ierr.WithError(err).
		WithHintf("%s failed", op).
		WithReportableDetails(details).
		Mark(ierr.ErrDatabase)
}

const reasonConditionalCheckFailed = "ConditionalCheckFailed"

// classifyCreate maps the record + number claim transaction. The record put is item 0,
// the number claim item 1.
func classifyCreate(err error) error {
	if err == nil {
		return nil
	}

	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return classify(err, "create serial record")
	}

	details := map[string]any{"op": "create serial record"}
	reasons := canceled.CancellationReasons
	if len(reasons) > 0 && aws.ToString(reasons[0].Code) == reasonConditionalCheckFailed {
		return ierr.WithError(err).
			WithHint("A serial was already issued for this order reference").
			WithReportableDetails(details).
			Mark(ierr.ErrAlreadyExists)
	}
	if len(reasons) > 1 && aws.ToString(reasons[1].Code) == reasonConditionalCheckFailed {
		return ierr.WithError(err).
			WithHint("Serial number already issued, retry to reserve a fresh value").
			WithReportableDetails(details).
			Mark(ierr.ErrStorageUnavailable)
	}
	return unavailable(err, details)
}

func unavailable(err error, details map[string]any) error {
	return ierr.WithError(err).
		WithHint("Serial storage is temporarily unavailable").
		WithReportableDetails(details).
		Mark(ierr.ErrStorageUnavailable)
}
