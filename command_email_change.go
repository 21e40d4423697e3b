package activation

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

type RequestEmailChangeMessage struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	// Password is the current password, required when the user has one
	Password   string `json:"password"`
	OnResponse func(resp *RequestEmailChangeResponse)
}

func (e RequestEmailChangeMessage) Type() string { return "user.email_change" }

// Validate will run validation rules
func (e RequestEmailChangeMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.UserID, validation.Required, is.UUID),
		validation.Field(&e.Email, validation.Required, is.Email),
	)
}

type RequestEmailChangeResponse struct {
	User    *User
	Changed bool
}

// RequestEmailChangeHandler parks a new address in PendingEmail and sends
// the confirmation email. The primary email stays loginable until confirmed.
type RequestEmailChangeHandler struct {
	repo      RepositoryManager
	activator *Activator
}

func NewRequestEmailChangeHandler(repo RepositoryManager, activator *Activator) *RequestEmailChangeHandler {
	return &RequestEmailChangeHandler{
		repo:      repo,
		activator: activator,
	}
}

func (h *RequestEmailChangeHandler) Execute(ctx context.Context, event RequestEmailChangeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during email change")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestEmailChangeHandler) execute(ctx context.Context, event RequestEmailChangeMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid email change payload")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().FindByID(ctx, event.UserID)
	if err != nil {
		if IsNotFound(err) {
			return ErrUserNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve user for email change")
	}

	if err := VerifyCurrentPassword(user, event.Password); err != nil {
		return err
	}

	previous := user.PendingEmail
	if outcome := h.activator.BeforeUpdate(ctx, user, event.Email); !outcome.OK() {
		return outcome.Err
	}

	changed := user.PendingEmail != previous
	if changed {
		if user, err = h.repo.Users().Save(ctx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store pending email")
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(&RequestEmailChangeResponse{
			User:    user,
			Changed: changed,
		})
	}

	return nil
}
