package activation

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// UserStore is the persistence capability the activation core needs.
// Implementations return a not found error when no record matches.
type UserStore interface {
	// FindByEmail returns a record whose email or pending email equals email
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Register(ctx context.Context, user *User) (*User, error)
	Save(ctx context.Context, user *User) (*User, error)
}

// Template is a resolved email template
type Template interface {
	Name() string
}

// Mailer is the templated email and mailing list provider
type Mailer interface {
	GetTemplate(key string) (Template, bool)
	SendFromTemplate(ctx context.Context, to string, tpl Template, data map[string]any) error
	ListAdd(ctx context.Context, email, name string, data map[string]any) error
}

// TokenCodec signs arbitrary claims and decodes activation tokens.
// DryVerify never fails loudly, it reports whether the token decoded.
type TokenCodec interface {
	Sign(claims jwt.Claims) (string, error)
	DryVerify(token string) (*ActivationClaims, bool)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACTIVATION "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACTIVATION "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACTIVATION "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACTIVATION "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
