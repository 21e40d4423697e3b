package activation

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

type ConfirmActivationMessage struct {
	Token      string `json:"activate"`
	OnResponse func(outcome Outcome)
}

func (e ConfirmActivationMessage) Type() string { return "user.activation.confirm" }

// ConfirmActivationHandler redeems activation tokens
type ConfirmActivationHandler struct {
	activator *Activator
}

func NewConfirmActivationHandler(activator *Activator) *ConfirmActivationHandler {
	return &ConfirmActivationHandler{activator: activator}
}

func (h *ConfirmActivationHandler) Execute(ctx context.Context, event ConfirmActivationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during activation")
	default:
	}

	outcome := Outcome{Kind: OutcomeValidation, Err: ErrMissingActivationCode}
	if event.Token != "" {
		outcome = h.activator.ConfirmToken(ctx, event.Token)
	}

	if event.OnResponse != nil {
		event.OnResponse(outcome)
	}

	return outcome.Err
}

type ResendActivationMessage struct {
	UserID   string       `json:"user_id"`
	Workflow WorkflowKind `json:"workflow"`
}

func (e ResendActivationMessage) Type() string { return "user.activation.resend" }

// ResendActivationHandler sends a new activation link to a known user
type ResendActivationHandler struct {
	activator *Activator
}

func NewResendActivationHandler(activator *Activator) *ResendActivationHandler {
	return &ResendActivationHandler{activator: activator}
}

func (h *ResendActivationHandler) Execute(ctx context.Context, event ResendActivationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during activation resend")
	default:
	}

	user, err := h.activator.Store().FindByID(ctx, event.UserID)
	if err != nil {
		if IsNotFound(err) {
			return ErrUserNotFound
		}
		return storeError(err, "Could not load user")
	}

	kind := event.Workflow
	if kind == "" {
		kind = WorkflowCreate
		if h.activator.StateMachine().CurrentStatus(user) == UserStatusActive {
			kind = WorkflowUpdate
		}
	}

	return h.activator.Resend(ctx, user, kind).Err
}
