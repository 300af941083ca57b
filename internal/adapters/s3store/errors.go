package s3store

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/joinix/joinix/internal/pkg/resilience"
)

// classify maps S3 failures onto resilience kinds: throttling, 5xx and
// connection errors are transient, other 4xx responses are terminal.
func classify(op string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable", "RequestTimeTooSkewed":
			return resilience.Wrap(resilience.KindNetwork, op, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return resilience.Wrap(resilience.KindAuth, op, err)
		case "NoSuchBucket":
			return resilience.Wrap(resilience.KindNotFound, op, err)
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return resilience.Wrap(statusKind(respErr.HTTPStatusCode()), op, err)
	}

	if kind := resilience.KindOf(err); kind != resilience.KindUnknown {
		return resilience.Wrap(kind, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func statusKind(status int) resilience.Kind {
	switch {
	case status == http.StatusTooManyRequests, status >= 500:
		return resilience.KindNetwork
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return resilience.KindAuth
	case status == http.StatusNotFound:
		return resilience.KindNotFound
	case status == http.StatusConflict, status == http.StatusPreconditionFailed:
		return resilience.KindConflict
	case status >= 400:
		return resilience.KindValidation
	}
	return resilience.KindUnknown
}
