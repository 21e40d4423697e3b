package activation

import (
	"context"
	"strings"
	"time"
)

// WorkflowKind selects the email template
type WorkflowKind string

const (
	// WorkflowCreate initial welcome and activation
	WorkflowCreate WorkflowKind = "create"
	// WorkflowUpdate email change confirmation
	WorkflowUpdate WorkflowKind = "update"
)

// WorkflowFromMethod infers the workflow from the triggering HTTP method:
// POST creates, everything else updates.
func WorkflowFromMethod(method string) WorkflowKind {
	if strings.EqualFold(strings.TrimSpace(method), "post") {
		return WorkflowCreate
	}
	return WorkflowUpdate
}

// Templates maps workflows to template keys
type Templates struct {
	Welcome      string
	EmailUpdated string
}

// DefaultTemplates returns the stock template keys
func DefaultTemplates() Templates {
	return Templates{
		Welcome:      "welcome",
		EmailUpdated: "user-email-updated",
	}
}

func (t Templates) key(kind WorkflowKind) string {
	switch kind {
	case WorkflowCreate:
		return t.Welcome
	case WorkflowUpdate:
		return t.EmailUpdated
	default:
		return ""
	}
}

// DispatchErrorHandler receives dispatch failures, it is the caller's
// error channel for Send.
type DispatchErrorHandler func(ctx context.Context, user *User, kind WorkflowKind, err error)

// ActivationMailer resolves the workflow template and sends the
// activation link to the unconfirmed address. It never mutates the store.
type ActivationMailer struct {
	mailer    Mailer
	links     *LinkBuilder
	templates Templates
	logger    Logger
	activity  ActivitySink
	onError   DispatchErrorHandler
	now       func() time.Time
}

// ActivationMailerOption customizes the ActivationMailer
type ActivationMailerOption func(*ActivationMailer)

// WithMailerLogger overrides the logger
func WithMailerLogger(logger Logger) ActivationMailerOption {
	return func(m *ActivationMailer) {
		m.logger = normalizeLogger(logger)
	}
}

// WithMailerActivitySink sets the sink used to publish dispatch events
func WithMailerActivitySink(sink ActivitySink) ActivationMailerOption {
	return func(m *ActivationMailer) {
		m.activity = normalizeActivitySink(sink)
	}
}

// WithDispatchErrorHandler registers the error channel for failed sends
func WithDispatchErrorHandler(handler DispatchErrorHandler) ActivationMailerOption {
	return func(m *ActivationMailer) {
		m.onError = handler
	}
}

// WithMailerTemplates overrides the template keys
func WithMailerTemplates(templates Templates) ActivationMailerOption {
	return func(m *ActivationMailer) {
		m.templates = templates
	}
}

// NewActivationMailer creates an ActivationMailer
func NewActivationMailer(mailer Mailer, links *LinkBuilder, opts ...ActivationMailerOption) *ActivationMailer {
	m := &ActivationMailer{
		mailer:    mailer,
		links:     links,
		templates: DefaultTemplates(),
		logger:    defLogger{},
		activity:  noopActivitySink{},
		now:       time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Send dispatches the activation email and reports success. Failures
// go to the dispatch error handler and the log, never to the caller.
func (m *ActivationMailer) Send(ctx context.Context, user *User, kind WorkflowKind) bool {
	if err := m.Deliver(ctx, user, kind); err != nil {
		if m.onError != nil {
			m.onError(ctx, user, kind, err)
		}
		return false
	}
	return true
}

// Deliver is Send with the failure returned as a dispatch error
func (m *ActivationMailer) Deliver(ctx context.Context, user *User, kind WorkflowKind) error {
	if user == nil {
		return ErrDispatchFailed
	}

	key := m.templates.key(kind)
	tpl, ok := m.resolve(key)
	if !ok {
		m.logger.Error("Could not load template: %q for workflow %s", key, kind)
		m.record(ctx, ActivityEventActivationSendFailed, user, kind, map[string]any{
			"template": key,
			"reason":   "template not found",
		})
		return ErrTemplateNotFound
	}

	link, err := m.links.Build(user)
	if err != nil {
		m.logger.Error("Could not build activation link for user %s: %v", user.ID, err)
		m.record(ctx, ActivityEventActivationSendFailed, user, kind, map[string]any{
			"template": key,
			"reason":   "link build failed",
		})
		return dispatchError(err, "could not build activation link")
	}

	data := user.TemplateData()
	data["activation_link"] = link

	to := user.UnconfirmedEmail()
	if err := m.mailer.SendFromTemplate(ctx, to, tpl, data); err != nil {
		m.logger.Error("Could not send email to %s: %v", to, err)
		m.record(ctx, ActivityEventActivationSendFailed, user, kind, map[string]any{
			"template": key,
			"reason":   err.Error(),
		})
		return dispatchError(err, "could not send")
	}

	m.record(ctx, ActivityEventActivationSent, user, kind, map[string]any{
		"template": key,
		"to":       to,
	})

	return nil
}

func (m *ActivationMailer) resolve(key string) (Template, bool) {
	if key == "" || m.mailer == nil {
		return nil, false
	}
	tpl, ok := m.mailer.GetTemplate(key)
	if !ok || tpl == nil {
		return nil, false
	}
	return tpl, true
}

func (m *ActivationMailer) record(ctx context.Context, eventType ActivityEventType, user *User, kind WorkflowKind, meta map[string]any) {
	meta["workflow"] = string(kind)
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      ActorRef{Type: "system"},
		UserID:     user.ID.String(),
		Metadata:   meta,
		OccurredAt: m.now(),
	}
	if err := normalizeActivitySink(m.activity).Record(ctx, event); err != nil {
		m.logger.Warn("activation mailer activity sink error: %v", err)
	}
}
