package activation_test

import (
	"context"

	activation "github.com/goliatone/go-activation"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
)

// MockUserStore implements activation.UserStore
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) FindByEmail(ctx context.Context, email string) (*activation.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*activation.User)
	return user, args.Error(1)
}

func (m *MockUserStore) FindByID(ctx context.Context, id string) (*activation.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*activation.User)
	return user, args.Error(1)
}

func (m *MockUserStore) Register(ctx context.Context, user *activation.User) (*activation.User, error) {
	args := m.Called(ctx, user)
	out, _ := args.Get(0).(*activation.User)
	return out, args.Error(1)
}

func (m *MockUserStore) Save(ctx context.Context, user *activation.User) (*activation.User, error) {
	args := m.Called(ctx, user)
	out, _ := args.Get(0).(*activation.User)
	return out, args.Error(1)
}

// MockMailer implements activation.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) GetTemplate(key string) (activation.Template, bool) {
	args := m.Called(key)
	tpl, _ := args.Get(0).(activation.Template)
	return tpl, args.Bool(1)
}

func (m *MockMailer) SendFromTemplate(ctx context.Context, to string, tpl activation.Template, data map[string]any) error {
	args := m.Called(ctx, to, tpl, data)
	return args.Error(0)
}

func (m *MockMailer) ListAdd(ctx context.Context, email, name string, data map[string]any) error {
	args := m.Called(ctx, email, name, data)
	return args.Error(0)
}

// MockTokenCodec implements activation.TokenCodec
type MockTokenCodec struct {
	mock.Mock
}

func (m *MockTokenCodec) Sign(claims jwt.Claims) (string, error) {
	args := m.Called(claims)
	return args.String(0), args.Error(1)
}

func (m *MockTokenCodec) DryVerify(token string) (*activation.ActivationClaims, bool) {
	args := m.Called(token)
	claims, _ := args.Get(0).(*activation.ActivationClaims)
	return claims, args.Bool(1)
}

// MockContext implements activation.RequestContext
type MockContext struct {
	mock.Mock
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

type stubTemplate struct {
	name string
}

func (s stubTemplate) Name() string { return s.name }

// nopLogger silences package logs in tests
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
