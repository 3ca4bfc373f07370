package bbbapi

import (
	"fmt"
	"strings"
)

const maxErrorBody = 2048

// RetrievalError is returned for any failed call: transport errors, non-2xx
// statuses and bodies that are not valid JSON.
type RetrievalError struct {
	BBBID      string
	PostalCode string
	Page       int
	StatusCode int
	Body       string
	Err        error
}

func (e *RetrievalError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "retrieval error bbb_id=%s", e.BBBID)
	if e.PostalCode != "" {
		fmt.Fprintf(&b, " zip=%s", e.PostalCode)
	}
	if e.Page > 0 {
		fmt.Fprintf(&b, " page=%d", e.Page)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " status=%d", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

func truncateBody(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
