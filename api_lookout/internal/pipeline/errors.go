package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a stage failure.
type ErrorKind string

const (
	KindValidation   ErrorKind = "ValidationError"
	KindUnreachable  ErrorKind = "UnreachableError"
	KindFetch        ErrorKind = "FetchError"
	KindExtraction   ErrorKind = "ExtractionError"
	KindVerification ErrorKind = "VerificationRejected"
)

var (
	ErrValidation  = errors.New("website address is not valid")
	ErrUnreachable = errors.New("website is unreachable")
)

// Terminal reports whether a failure of this kind aborts the crawl.
func (k ErrorKind) Terminal() bool {
	return k == KindValidation || k == KindUnreachable
}

// StepError is a failure of one pipeline step.
type StepError struct {
	Kind ErrorKind
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Is lets errors.Is match terminal failures against ErrValidation and
// ErrUnreachable.
func (e *StepError) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrUnreachable:
		return e.Kind == KindUnreachable
	}
	return false
}

// StepFailure is the serialized form of a StepError in a CrawlResult.
type StepFailure struct {
	Step    string    `json:"step"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}
