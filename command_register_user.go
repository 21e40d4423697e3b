package activation

import (
	"context"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	UseHashid bool
	// HashidOptions are passed to hashid when UseHashid is set
	HashidOptions []hashid.Option `json:"-"`
	OnResponse    func(resp *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate will run validation rules
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.FirstName, validation.Length(0, 100), singleLine),
		validation.Field(&e.LastName, validation.Length(0, 100), singleLine),
		validation.Field(&e.Username, validation.Length(0, 100), singleLine),
		validation.Field(&e.Email, validation.Required, is.Email, singleLine),
		validation.Field(&e.Password, validation.Required, validation.Length(10, 100)),
	)
}

var singleLine = validation.Match(regexp.MustCompile(`^[^\r\n\x00]*$`)).
	Error("must not contain line breaks")

type RegisterUserResponse struct {
	User           *User
	ActivationSent bool
}

// RegisterUserHandler creates a pending user and sends the welcome email
type RegisterUserHandler struct {
	repo      RepositoryManager
	activator *Activator
}

func NewRegisterUserHandler(repo RepositoryManager, activator *Activator) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:      repo,
		activator: activator,
	}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user := &User{
		FirstName: event.FirstName,
		LastName:  event.LastName,
		Username:  getUsername(event.Username, event.Email),
		Email:     event.Email,
	}

	if outcome := h.activator.BeforeCreate(ctx, user); !outcome.OK() {
		return outcome.Err
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	user.PasswordHash = hash

	if event.UseHashid {
		id, err := hashid.NewUUID(user.PendingEmail, event.HashidOptions...)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to derive user id").
				WithMetadata(map[string]any{"email": user.PendingEmail})
		}
		user.ID = id
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := h.repo.Users().RegisterTx(ctx, tx, user)
		if err != nil {
			if isUniqueViolation(err) {
				return goerrors.Wrap(err, goerrors.CategoryConflict, ErrEmailConflict.Message).
					WithTextCode(TextCodeEmailConflict).
					WithCode(goerrors.CodeConflict)
			}
			return storeError(err, "could not create user")
		}
		if created != nil {
			user = created
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	sent := h.activator.AfterCreate(ctx, user)

	if event.OnResponse != nil {
		event.OnResponse(&RegisterUserResponse{
			User:           user,
			ActivationSent: sent,
		})
	}

	return nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
