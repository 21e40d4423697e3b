package activation

import (
	"bytes"
	"context"
	"encoding/json"
	"time"
)

// ActivatorOption customizes the Activator
type ActivatorOption func(*activatorOptions)

type activatorOptions struct {
	codec    TokenCodec
	logger   Logger
	activity ActivitySink
	onError  DispatchErrorHandler
	lists    MailingLister
	clock    func() time.Time
}

// WithTokenCodec replaces the JWT codec built from Config
func WithTokenCodec(codec TokenCodec) ActivatorOption {
	return func(o *activatorOptions) {
		o.codec = codec
	}
}

// WithLogger overrides the logger used by every component
func WithLogger(logger Logger) ActivatorOption {
	return func(o *activatorOptions) {
		o.logger = logger
	}
}

// WithActivitySink sets the sink used to emit activation events
func WithActivitySink(sink ActivitySink) ActivatorOption {
	return func(o *activatorOptions) {
		o.activity = sink
	}
}

// WithDispatchErrors registers the error channel for failed sends
func WithDispatchErrors(handler DispatchErrorHandler) ActivatorOption {
	return func(o *activatorOptions) {
		o.onError = handler
	}
}

// WithMailingList overrides where confirmed addresses are subscribed,
// by default the Mailer itself.
func WithMailingList(lister MailingLister) ActivatorOption {
	return func(o *activatorOptions) {
		o.lists = lister
	}
}

// WithClock injects a custom clock (useful for tests)
func WithClock(clock func() time.Time) ActivatorOption {
	return func(o *activatorOptions) {
		o.clock = clock
	}
}

// Activator is the public surface of the module: the record pipeline hooks
// and the resend and confirm operations.
type Activator struct {
	config  Config
	store   UserStore
	codec   TokenCodec
	links   *LinkBuilder
	mailer  *ActivationMailer
	machine *StateMachine
	logger  Logger
}

// NewActivator wires the activation components from cfg
func NewActivator(cfg Config, store UserStore, mailer Mailer, opts ...ActivatorOption) (*Activator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &activatorOptions{lists: mailer}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	logger := normalizeLogger(options.logger)
	clock := options.clock
	if clock == nil {
		clock = time.Now
	}

	codec := options.codec
	if codec == nil {
		codec = NewTokenCodec([]byte(cfg.SigningKey), cfg.TokenTTL, cfg.Issuer, logger).WithClock(clock)
	}

	links := NewLinkBuilder(cfg.BaseURL, codec)

	activationMailer := NewActivationMailer(mailer, links,
		WithMailerTemplates(cfg.Templates()),
		WithMailerLogger(logger),
		WithMailerActivitySink(options.activity),
		WithDispatchErrorHandler(options.onError),
	)
	activationMailer.now = clock

	machine := NewStateMachine(store, codec, activationMailer,
		WithStateMachineClock(clock),
		WithStateMachineLogger(logger),
		WithStateMachineActivitySink(options.activity),
		WithMailingLister(options.lists),
	)

	return &Activator{
		config:  cfg,
		store:   store,
		codec:   codec,
		links:   links,
		mailer:  activationMailer,
		machine: machine,
		logger:  logger,
	}, nil
}

// BeforeCreate is the pre create hook. A non OK outcome must abort creation.
func (a *Activator) BeforeCreate(ctx context.Context, user *User) Outcome {
	return OutcomeFromError(a.machine.GuardCreate(ctx, user))
}

// AfterCreate is the post create hook, it reports whether the welcome
// email went out. It never aborts the pipeline.
func (a *Activator) AfterCreate(ctx context.Context, user *User) bool {
	return a.machine.DispatchCreated(ctx, user)
}

// BeforeUpdate is the pre update hook for email changes. A non OK outcome
// must abort the update.
func (a *Activator) BeforeUpdate(ctx context.Context, user *User, incomingEmail string) Outcome {
	_, err := a.machine.GuardUpdate(ctx, user, incomingEmail)
	return OutcomeFromError(err)
}

// Resend dispatches a new activation link for user
func (a *Activator) Resend(ctx context.Context, user *User, kind WorkflowKind) Outcome {
	if err := a.machine.Resend(ctx, user, kind); err != nil {
		return OutcomeFromError(err)
	}
	return okOutcome()
}

// Confirm parses a request body carrying the activate field and redeems it
func (a *Activator) Confirm(ctx context.Context, body []byte) Outcome {
	code, err := ParseActivationCode(body)
	if err != nil {
		return OutcomeFromError(err)
	}
	return a.ConfirmToken(ctx, code)
}

// ConfirmToken redeems an activation token
func (a *Activator) ConfirmToken(ctx context.Context, token string) Outcome {
	_, err := a.machine.Redeem(ctx, token)
	return OutcomeFromError(err)
}

// Link builds a fresh activation link for user
func (a *Activator) Link(user *User) (string, error) {
	return a.links.Build(user)
}

// Store returns the user store
func (a *Activator) Store() UserStore {
	return a.store
}

// Codec returns the token codec
func (a *Activator) Codec() TokenCodec {
	return a.codec
}

// StateMachine returns the underlying state machine
func (a *Activator) StateMachine() *StateMachine {
	return a.machine
}

// ParseActivationCode extracts the activate field from a JSON body.
// Missing body or field is ErrMissingActivationCode, a value that is not a
// non empty string is ErrInvalidActivationCode.
func ParseActivationCode(body []byte) (string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return "", ErrMissingActivationCode
	}

	payload := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		return "", ErrMissingActivationCode
	}

	raw, ok := payload["activate"]
	if !ok {
		return "", ErrMissingActivationCode
	}

	var code string
	if err := json.Unmarshal(raw, &code); err != nil || code == "" {
		return "", ErrInvalidActivationCode
	}

	return code, nil
}
