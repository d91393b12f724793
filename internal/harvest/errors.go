package harvest

import (
	"errors"
	"fmt"
)

// ErrExhausted signals that a navigator has no further item. It is an
// expected terminal condition for a crawl, not a failure.
var ErrExhausted = errors.New("gallery exhausted")

// ErrorKind classifies per-item download failures for aggregation.
type ErrorKind string

// Failure classes surfaced by the fetch/convert/store pipeline.
const (
	KindNetwork ErrorKind = "network"
	KindHTTP    ErrorKind = "http"
	KindDecode  ErrorKind = "decode"
	KindStorage ErrorKind = "storage"
)

// DownloadError wraps a per-item pipeline failure with its class and URL.
type DownloadError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure class from err, or KindNetwork when the error
// carries no class.
func KindOf(err error) ErrorKind {
	var de *DownloadError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindNetwork
}
