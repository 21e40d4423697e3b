package activation

import (
	"context"
	"net/http"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RequestContext is the slice of router.Context the controller needs
type RequestContext interface {
	Context() context.Context
	Method() string
	Body() []byte
	NoContent(code int) error
	JSON(code int, val any) error
}

// RegisterActivationRoutes mounts the resend and confirm endpoints. The resend
// route must sit behind the host's auth middleware; POST resends the welcome
// email and PATCH the email change confirmation.
func RegisterActivationRoutes[T any](app router.Router[T], opts ...ActivationControllerOption) {
	controller := NewActivationController(opts...)

	app.Post(controller.Routes.Resend, adapt(controller.ResendPost)).
		SetName("activation-resend.post")
	app.Patch(controller.Routes.Resend, adapt(controller.ResendPost)).
		SetName("activation-resend.patch")

	app.Post(controller.Routes.Confirm, adapt(controller.ConfirmPost)).
		SetName("activation-confirm.post")
}

func adapt(h func(RequestContext) error) router.HandlerFunc {
	return func(c router.Context) error {
		return h(c)
	}
}

type ActivationControllerRoutes struct {
	Resend  string
	Confirm string
}

type ActivationController struct {
	Debug     bool
	Logger    Logger
	Activator *Activator
	Routes    *ActivationControllerRoutes
	// UserResolver finds the authenticated caller for resend
	UserResolver func(ctx context.Context) (*User, error)
}

type ActivationControllerOption func(*ActivationController) *ActivationController

// WithActivator sets the Activator backing the endpoints
func WithActivator(activator *Activator) ActivationControllerOption {
	return func(c *ActivationController) *ActivationController {
		c.Activator = activator
		return c
	}
}

// WithControllerLogger overrides the controller logger
func WithControllerLogger(logger Logger) ActivationControllerOption {
	return func(c *ActivationController) *ActivationController {
		c.Logger = normalizeLogger(logger)
		return c
	}
}

// WithUserResolver overrides how the resend endpoint finds the caller
func WithUserResolver(resolver func(ctx context.Context) (*User, error)) ActivationControllerOption {
	return func(c *ActivationController) *ActivationController {
		if resolver != nil {
			c.UserResolver = resolver
		}
		return c
	}
}

// WithRoutes overrides the endpoint paths
func WithRoutes(routes ActivationControllerRoutes) ActivationControllerOption {
	return func(c *ActivationController) *ActivationController {
		if routes.Resend != "" {
			c.Routes.Resend = routes.Resend
		}
		if routes.Confirm != "" {
			c.Routes.Confirm = routes.Confirm
		}
		return c
	}
}

// WithDebug dumps request payloads to the logger
func WithDebug(debug bool) ActivationControllerOption {
	return func(c *ActivationController) *ActivationController {
		c.Debug = debug
		return c
	}
}

func NewActivationController(opts ...ActivationControllerOption) *ActivationController {
	c := &ActivationController{
		Logger: defLogger{},
		Routes: &ActivationControllerRoutes{
			Resend:  "/activation/resend",
			Confirm: "/activation/confirm",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Activator == nil {
		panic("Missing Activator in activation controller...")
	}

	if c.UserResolver == nil {
		store := c.Activator.Store()
		c.UserResolver = func(ctx context.Context) (*User, error) {
			return ResolveContextUser(ctx, store)
		}
	}

	return c
}

// ResendPost sends a new activation link to the authenticated caller
func (a *ActivationController) ResendPost(ctx RequestContext) error {
	user, err := a.UserResolver(ctx.Context())
	if err != nil || user == nil {
		if err != nil && !IsNotFound(err) {
			return a.respond(ctx, OutcomeFromError(err))
		}
		return ctx.JSON(http.StatusUnauthorized, map[string]any{
			"error": "Unauthorized",
		})
	}

	kind := WorkflowFromMethod(ctx.Method())
	if a.Debug {
		a.Logger.Debug("activation resend user=%s workflow=%s", user.ID, kind)
	}

	return a.respond(ctx, a.Activator.Resend(ctx.Context(), user, kind))
}

// ConfirmPost redeems the activate token from the request body
func (a *ActivationController) ConfirmPost(ctx RequestContext) error {
	body := ctx.Body()
	if a.Debug {
		a.Logger.Debug("activation confirm payload: %s", print.MaybePrettyJSON(string(body)))
	}

	return a.respond(ctx, a.Activator.Confirm(ctx.Context(), body))
}

func (a *ActivationController) respond(ctx RequestContext, outcome Outcome) error {
	if outcome.OK() {
		return ctx.NoContent(http.StatusNoContent)
	}

	switch outcome.Kind {
	case OutcomeConflict, OutcomeValidation, OutcomeExpired, OutcomeUnauthorized:
		a.Logger.Info("activation request rejected: %s (%s)", outcome.Message(), outcome.Kind)
	default:
		a.Logger.Error("activation request failed: %v", outcome.Err)
	}

	return ctx.JSON(outcome.StatusCode(), map[string]any{
		"error":     outcome.Message(),
		"text_code": outcome.TextCode(),
	})
}
