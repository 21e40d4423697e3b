package activation_test

import (
	"context"
	"database/sql"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	activation "github.com/goliatone/go-activation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	testBaseURL    = "https://app.example.com"
	testSigningKey = "test-signing-key"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// memoryStore is an in memory UserStore keyed by id
type memoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]activation.User
	saveErr error
	findErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[uuid.UUID]activation.User{}}
}

func (s *memoryStore) FindByEmail(_ context.Context, email string) (*activation.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findErr != nil {
		return nil, s.findErr
	}

	for _, rec := range s.records {
		if rec.Email == email || rec.PendingEmail == email {
			out := rec
			return &out, nil
		}
	}
	return nil, activation.ErrUserNotFound
}

func (s *memoryStore) FindByID(_ context.Context, id string) (*activation.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findErr != nil {
		return nil, s.findErr
	}

	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, activation.ErrUserNotFound
	}

	rec, ok := s.records[uid]
	if !ok {
		return nil, activation.ErrUserNotFound
	}
	return &rec, nil
}

func (s *memoryStore) Register(_ context.Context, user *activation.User) (*activation.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.EnsureStatus()
	s.records[user.ID] = *user
	out := *user
	return &out, nil
}

func (s *memoryStore) Save(_ context.Context, user *activation.User) (*activation.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return nil, s.saveErr
	}

	if _, ok := s.records[user.ID]; !ok {
		return nil, activation.ErrUserNotFound
	}
	s.records[user.ID] = *user
	out := *user
	return &out, nil
}

func (s *memoryStore) get(t *testing.T, id uuid.UUID) activation.User {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	require.True(t, ok, "record %s not found", id)
	return rec
}

type sentEmail struct {
	To       string
	Template string
	Data     map[string]any
}

type listEntry struct {
	Email string
	Name  string
}

// recordingMailer captures sends and list additions
type recordingMailer struct {
	mu        sync.Mutex
	templates map[string]bool
	sendErr   error
	listErr   error
	sent      []sentEmail
	listed    []listEntry
}

func newRecordingMailer(templates ...string) *recordingMailer {
	if len(templates) == 0 {
		templates = []string{"welcome", "user-email-updated"}
	}
	m := &recordingMailer{templates: map[string]bool{}}
	for _, name := range templates {
		m.templates[name] = true
	}
	return m
}

func (m *recordingMailer) GetTemplate(key string) (activation.Template, bool) {
	if !m.templates[key] {
		return nil, false
	}
	return stubTemplate{name: key}, true
}

func (m *recordingMailer) SendFromTemplate(_ context.Context, to string, tpl activation.Template, data map[string]any) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentEmail{To: to, Template: tpl.Name(), Data: data})
	return nil
}

func (m *recordingMailer) ListAdd(_ context.Context, email, name string, _ map[string]any) error {
	if m.listErr != nil {
		return m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listed = append(m.listed, listEntry{Email: email, Name: name})
	return nil
}

func (m *recordingMailer) last(t *testing.T) sentEmail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no email was sent")
	return m.sent[len(m.sent)-1]
}

func (m *recordingMailer) lastToken(t *testing.T) string {
	t.Helper()
	link, ok := m.last(t).Data["activation_link"].(string)
	require.True(t, ok, "activation_link missing from template data")
	return tokenFromLink(t, link)
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	parts := strings.SplitN(link, activation.ActivationPath, 2)
	require.Len(t, parts, 2, "unexpected activation link %q", link)
	return parts[1]
}

func testConfig() activation.Config {
	return activation.Config{
		BaseURL:    testBaseURL,
		SigningKey: testSigningKey,
		TokenTTL:   time.Hour,
		Issuer:     "go-activation-test",
	}
}

func newTestActivator(t *testing.T, store activation.UserStore, mailer activation.Mailer, opts ...activation.ActivatorOption) *activation.Activator {
	t.Helper()
	opts = append([]activation.ActivatorOption{
		activation.WithClock(fixedClock),
		activation.WithLogger(nopLogger{}),
	}, opts...)
	a, err := activation.NewActivator(testConfig(), store, mailer, opts...)
	require.NoError(t, err)
	return a
}

// newTestDB opens an in memory sqlite database with the bundled migrations applied
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	migrations := activation.GetMigrationsFS()
	files, err := fs.Glob(migrations, "data/sql/migrations/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	sort.Strings(files)

	for _, file := range files {
		stmt, err := fs.ReadFile(migrations, file)
		require.NoError(t, err)
		_, err = db.Exec(string(stmt))
		require.NoError(t, err, "migration %s", file)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}
