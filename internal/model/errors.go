package model

import (
	"errors"
	"fmt"
)

// ExtractionError reports that a document yielded no usable page text.
// It is fatal for that document only.
type ExtractionError struct {
	DocType DocumentType
	Reason  string
	Err     error
}

func (e *ExtractionError) Error() string {
	msg := "extraction failed"
	if e.DocType != "" {
		msg = fmt.Sprintf("extraction failed for %s", e.DocType)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NewExtractionError builds an ExtractionError for docType.
func NewExtractionError(docType DocumentType, reason string, err error) *ExtractionError {
	return &ExtractionError{DocType: docType, Reason: reason, Err: err}
}

// IsExtractionError returns true if err (or any error in its chain) is an
// ExtractionError.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}
