package activation

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// OutcomeKind tags the result of an activation operation
type OutcomeKind string

const (
	OutcomeOK              OutcomeKind = "ok"
	OutcomeConflict        OutcomeKind = "conflict"
	OutcomeValidation      OutcomeKind = "validation"
	OutcomeExpired         OutcomeKind = "expired"
	OutcomeUnauthorized    OutcomeKind = "unauthorized"
	OutcomeStoreFailure    OutcomeKind = "store_failure"
	OutcomeDispatchFailure OutcomeKind = "dispatch_failure"
)

// Outcome is the transport agnostic result returned by the Activator.
// Err is nil only for OutcomeOK.
type Outcome struct {
	Kind OutcomeKind
	Err  error
}

// OK reports whether the guarded pipeline step may continue
func (o Outcome) OK() bool {
	return o.Kind == OutcomeOK
}

// Message is the user facing message for the outcome
func (o Outcome) Message() string {
	if o.Err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(o.Err, &richErr) {
		return richErr.Message
	}
	return o.Err.Error()
}

// TextCode is the machine readable error code, if any
func (o Outcome) TextCode() string {
	var richErr *goerrors.Error
	if o.Err != nil && goerrors.As(o.Err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

// StatusCode maps the outcome to an HTTP status
func (o Outcome) StatusCode() int {
	switch o.Kind {
	case OutcomeOK:
		return http.StatusNoContent
	case OutcomeConflict:
		return http.StatusConflict
	case OutcomeValidation, OutcomeExpired:
		return http.StatusBadRequest
	case OutcomeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func okOutcome() Outcome {
	return Outcome{Kind: OutcomeOK}
}

// OutcomeFromError classifies an error returned by the state machine
func OutcomeFromError(err error) Outcome {
	if err == nil {
		return okOutcome()
	}

	if IsTokenExpiredError(err) {
		return Outcome{Kind: OutcomeExpired, Err: err}
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return Outcome{Kind: OutcomeStoreFailure, Err: storeError(err, "unexpected activation failure")}
	}

	switch richErr.TextCode {
	case TextCodeEmailConflict:
		return Outcome{Kind: OutcomeConflict, Err: err}
	case TextCodeActivationCodeMissing,
		TextCodeActivationCodeInvalid,
		TextCodeActivationTokenInvalid,
		TextCodeInvalidTransition,
		TextCodeEmailMissing:
		return Outcome{Kind: OutcomeValidation, Err: err}
	case TextCodeTemplateNotFound, TextCodeDispatchFailed:
		return Outcome{Kind: OutcomeDispatchFailure, Err: err}
	case TextCodePasswordMismatch:
		return Outcome{Kind: OutcomeUnauthorized, Err: err}
	case TextCodeStoreFailure:
		return Outcome{Kind: OutcomeStoreFailure, Err: err}
	}

	// errors without a known text code fall back to their category
	switch richErr.Category {
	case goerrors.CategoryConflict:
		return Outcome{Kind: OutcomeConflict, Err: err}
	case goerrors.CategoryValidation, goerrors.CategoryBadInput, goerrors.CategoryNotFound:
		return Outcome{Kind: OutcomeValidation, Err: err}
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return Outcome{Kind: OutcomeUnauthorized, Err: err}
	default:
		return Outcome{Kind: OutcomeStoreFailure, Err: err}
	}
}
