package activation

import (
	"database/sql"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const (
	TextCodeEmailConflict          = "EMAIL_CONFLICT"
	TextCodeActivationCodeMissing  = "ACTIVATION_CODE_MISSING"
	TextCodeActivationCodeInvalid  = "ACTIVATION_CODE_INVALID"
	TextCodeActivationTokenInvalid = "ACTIVATION_TOKEN_INVALID"
	TextCodeActivationExpired      = "ACTIVATION_CODE_EXPIRED"
	TextCodeStoreFailure           = "ACTIVATION_STORE_FAILURE"
	TextCodeTemplateNotFound       = "ACTIVATION_TEMPLATE_NOT_FOUND"
	TextCodeDispatchFailed         = "ACTIVATION_DISPATCH_FAILED"
	TextCodeInvalidTransition      = "INVALID_USER_STATE_TRANSITION"
	TextCodeEmailMissing           = "EMAIL_MISSING"
	TextCodePasswordMismatch       = "CURRENT_PASSWORD_MISMATCH"
)

// ErrEmailConflict candidate email is already registered or pending elsewhere
var ErrEmailConflict = goerrors.New("Email is registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailConflict).
	WithCode(goerrors.CodeConflict)

// ErrMissingActivationCode request body has no activation code
var ErrMissingActivationCode = goerrors.New("Please supply activation code", goerrors.CategoryValidation).
	WithTextCode(TextCodeActivationCodeMissing).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidActivationCode activation code is not a non empty string
var ErrInvalidActivationCode = goerrors.New("Invalid activation code", goerrors.CategoryValidation).
	WithTextCode(TextCodeActivationCodeInvalid).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidToken token did not decode or has the wrong claim shape
var ErrInvalidToken = goerrors.New("Invalid token", goerrors.CategoryValidation).
	WithTextCode(TextCodeActivationTokenInvalid).
	WithCode(goerrors.CodeBadRequest)

// ErrActivationExpired token subject no longer resolves to a pending record
var ErrActivationExpired = goerrors.New("Activation code expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeActivationExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidTransition user status does not allow activation
var ErrInvalidTransition = goerrors.New("invalid user state transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrTemplateNotFound no template resolved for the workflow
var ErrTemplateNotFound = goerrors.New("could not load template", goerrors.CategoryInternal).
	WithTextCode(TextCodeTemplateNotFound).
	WithCode(goerrors.CodeInternal)

// ErrDispatchFailed the mail provider refused or failed the send
var ErrDispatchFailed = goerrors.New("could not send", goerrors.CategoryInternal).
	WithTextCode(TextCodeDispatchFailed).
	WithCode(goerrors.CodeInternal)

// ErrMissingEmail a user was created without any address
var ErrMissingEmail = goerrors.New("Email is required", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmailMissing).
	WithCode(goerrors.CodeBadRequest)

// ErrUserNotFound no user record matched
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNoEmptyString empty string argument
var ErrNoEmptyString = goerrors.New("empty string not allowed", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest)

func recordNotFound(metadata map[string]any) error {
	return goerrors.Wrap(repository.ErrRecordNotFound, goerrors.CategoryNotFound, "record not found").
		WithCode(goerrors.CodeNotFound).
		WithMetadata(metadata)
}

func storeError(err error, message string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithTextCode(TextCodeStoreFailure).
		WithCode(goerrors.CodeInternal)
}

func dispatchError(err error, message string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithTextCode(TextCodeDispatchFailed).
		WithCode(goerrors.CodeInternal)
}

// IsNotFound reports store level not found errors
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, sql.ErrNoRows) {
		return true
	}
	if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
		return true
	}
	return strings.Contains(err.Error(), "no rows in result set")
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeActivationExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}
