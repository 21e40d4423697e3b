package activation

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/goliatone/go-errors"
)

// EmailTemplate is a pongo2 subject and body pair registered under a key
type EmailTemplate struct {
	key     string
	subject *pongo2.Template
	body    *pongo2.Template
	html    bool
}

var _ Template = (*EmailTemplate)(nil)

// NewEmailTemplate compiles a plain text template
func NewEmailTemplate(key, subject, body string) (*EmailTemplate, error) {
	return newEmailTemplate(key, subject, body, false)
}

// NewHTMLEmailTemplate compiles an HTML template
func NewHTMLEmailTemplate(key, subject, body string) (*EmailTemplate, error) {
	return newEmailTemplate(key, subject, body, true)
}

func newEmailTemplate(key, subject, body string, html bool) (*EmailTemplate, error) {
	if key == "" {
		return nil, ErrNoEmptyString
	}

	subjectTpl, err := pongo2.FromString(plainText(subject))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to compile email subject").
			WithMetadata(map[string]any{"template": key})
	}

	if !html {
		body = plainText(body)
	}

	bodyTpl, err := pongo2.FromString(body)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to compile email body").
			WithMetadata(map[string]any{"template": key})
	}

	return &EmailTemplate{
		key:     key,
		subject: subjectTpl,
		body:    bodyTpl,
		html:    html,
	}, nil
}

// plainText turns off pongo2 HTML autoescaping for non HTML sources
func plainText(src string) string {
	return "{% autoescape off %}" + src + "{% endautoescape %}"
}

// Name returns the template key
func (t *EmailTemplate) Name() string {
	return t.key
}

// Render executes subject and body with data
func (t *EmailTemplate) Render(data map[string]any) (string, string, error) {
	subject, err := t.subject.Execute(pongo2.Context(data))
	if err != nil {
		return "", "", err
	}

	body, err := t.body.Execute(pongo2.Context(data))
	if err != nil {
		return "", "", err
	}

	return strings.TrimSpace(subject), body, nil
}

// SendMailFunc matches smtp.SendMail
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer implements Mailer over SMTP with pongo2 templates. Confirmed
// addresses are stored in a MailingList.
type SMTPMailer struct {
	cfg       SMTPConfig
	lists     MailingList
	logger    Logger
	sendMail  SendMailFunc
	mu        sync.RWMutex
	templates map[string]*EmailTemplate
}

var _ Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer creates an SMTPMailer, lists may be nil
func NewSMTPMailer(cfg SMTPConfig, lists MailingList, logger Logger) *SMTPMailer {
	return &SMTPMailer{
		cfg:       cfg,
		lists:     lists,
		logger:    normalizeLogger(logger),
		sendMail:  smtp.SendMail,
		templates: map[string]*EmailTemplate{},
	}
}

// WithSendMail overrides the SMTP transport (useful for tests)
func (m *SMTPMailer) WithSendMail(fn SendMailFunc) *SMTPMailer {
	if fn != nil {
		m.sendMail = fn
	}
	return m
}

// RegisterTemplate adds or replaces a template
func (m *SMTPMailer) RegisterTemplate(tpl *EmailTemplate) *SMTPMailer {
	if tpl == nil {
		return m
	}
	m.mu.Lock()
	m.templates[tpl.key] = tpl
	m.mu.Unlock()
	return m
}

// RegisterDefaultTemplates adds the stock welcome and email updated templates
func (m *SMTPMailer) RegisterDefaultTemplates(templates Templates) error {
	welcome, err := NewEmailTemplate(templates.Welcome, welcomeSubject, welcomeBody)
	if err != nil {
		return err
	}
	updated, err := NewEmailTemplate(templates.EmailUpdated, emailUpdatedSubject, emailUpdatedBody)
	if err != nil {
		return err
	}
	m.RegisterTemplate(welcome).RegisterTemplate(updated)
	return nil
}

func (m *SMTPMailer) GetTemplate(key string) (Template, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tpl, ok := m.templates[key]
	if !ok || tpl == nil {
		return nil, false
	}
	return tpl, true
}

func (m *SMTPMailer) SendFromTemplate(ctx context.Context, to string, tpl Template, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if strings.TrimSpace(to) == "" {
		return errors.New("recipient address is required", errors.CategoryBadInput)
	}

	if hasLineBreak(to) || hasLineBreak(m.cfg.From) {
		return errors.New("email address contains a line break", errors.CategoryBadInput).
			WithMetadata(map[string]any{"to": to})
	}

	emailTpl, ok := tpl.(*EmailTemplate)
	if !ok || emailTpl == nil {
		return errors.New("unsupported template type", errors.CategoryInternal)
	}

	subject, body, err := emailTpl.Render(data)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to render email").
			WithMetadata(map[string]any{"template": emailTpl.key})
	}

	msg := m.buildMessage(to, subject, body, emailTpl.html)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := m.sendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg)); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "smtp send failed").
			WithMetadata(map[string]any{"template": emailTpl.key})
	}

	m.logger.Debug("email %s sent to %s", emailTpl.key, to)
	return nil
}

func (m *SMTPMailer) ListAdd(ctx context.Context, email, name string, data map[string]any) error {
	if m.lists == nil {
		m.logger.Debug("no mailing list configured, skipping %s", email)
		return nil
	}

	_, err := m.lists.Subscribe(ctx, &MailingListMember{
		Email: email,
		Name:  name,
		Data:  data,
	})
	return err
}

func (m *SMTPMailer) buildMessage(to, subject, body string, html bool) string {
	contentType := "text/plain"
	if html {
		contentType = "text/html"
	}
	return fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: %s; charset=\"utf-8\"\r\n\r\n%s",
		m.cfg.From, to, encodeHeader(subject), contentType, body)
}

func hasLineBreak(s string) bool {
	return strings.ContainsAny(s, "\r\n")
}

// encodeHeader folds any line break into a space and Q encodes non ASCII text
func encodeHeader(value string) string {
	value = headerBreaks.Replace(value)
	return mime.QEncoding.Encode("utf-8", value)
}

var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

const (
	welcomeSubject = `Welcome{% if first_name %}, {{ first_name }}{% endif %}! Activate your account`
	welcomeBody    = `Hello {{ first_name|default:"there" }},

Thanks for signing up. Please confirm {{ pending_email }} by following this link:

    {{ activation_link }}

If you didn't create an account, you can safely ignore this email.
`
	emailUpdatedSubject = `Confirm your new email address`
	emailUpdatedBody    = `Hello {{ first_name|default:"there" }},

We received a request to change your email address to {{ pending_email }}.
Confirm the change by following this link:

    {{ activation_link }}

Your current address stays active until the new one is confirmed.
`
)
