package analysisapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoDocuments        = errors.New("analysisapi: at least one document is required")
	ErrCompanyIDRequired  = errors.New("analysisapi: company id is required")
	ErrJobIDRequired      = errors.New("analysisapi: job id is required")
	ErrAnalysisIDRequired = errors.New("analysisapi: analysis id is required")
)

// APIError is a non-2xx answer from the analysis service. Error returns the
// service-provided detail so it can be shown to users as is.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("analysis service returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsRetryable reports whether err is worth retrying: transport failures,
// 429 and 5xx responses. Client errors and cancellation are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return false
	}

	return true
}

// DecodeError wraps a response body the client could not understand
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("analysisapi: decode %s: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
