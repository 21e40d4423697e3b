package activation_test

import (
	"context"
	"errors"
	"testing"

	activation "github.com/goliatone/go-activation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestStateMachine(store activation.UserStore, mailer activation.Mailer, codec activation.TokenCodec, opts ...activation.StateMachineOption) *activation.StateMachine {
	links := activation.NewLinkBuilder(testBaseURL, codec)
	am := activation.NewActivationMailer(mailer, links, activation.WithMailerLogger(nopLogger{}))
	opts = append([]activation.StateMachineOption{
		activation.WithStateMachineClock(fixedClock),
		activation.WithStateMachineLogger(nopLogger{}),
	}, opts...)
	return activation.NewStateMachine(store, codec, am, opts...)
}

func testCodec() *activation.JWTCodec {
	return activation.NewTokenCodec([]byte(testSigningKey), 0, "", nopLogger{}).WithClock(fixedClock)
}

func TestStateMachineGuardCreateConflicts(t *testing.T) {
	existing := &activation.User{ID: uuid.New(), Email: "taken@example.com", Status: activation.UserStatusActive}

	tests := []struct {
		name     string
		existing *activation.User
	}{
		{"primary email", &activation.User{ID: existing.ID, Email: "taken@example.com"}},
		{"pending email", &activation.User{ID: existing.ID, PendingEmail: "taken@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MockUserStore{}
			store.On("FindByEmail", mock.Anything, "taken@example.com").Return(tt.existing, nil).Once()

			var events []activation.ActivityEvent
			sm := newTestStateMachine(store, newRecordingMailer(), testCodec(),
				activation.WithStateMachineActivitySink(activation.ActivitySinkFunc(func(_ context.Context, e activation.ActivityEvent) error {
					events = append(events, e)
					return nil
				})),
			)

			user := &activation.User{Email: "taken@example.com"}
			err := sm.GuardCreate(context.Background(), user)
			require.Error(t, err)
			assert.ErrorIs(t, err, activation.ErrEmailConflict)

			assert.Equal(t, "taken@example.com", user.Email)
			assert.Empty(t, user.PendingEmail)
			require.Len(t, events, 1)
			assert.Equal(t, activation.ActivityEventRegistrationConflicted, events[0].EventType)
			store.AssertExpectations(t)
		})
	}
}

func TestStateMachineGuardCreateParksCandidate(t *testing.T) {
	store := &MockUserStore{}
	store.On("FindByEmail", mock.Anything, "new@example.com").Return(nil, activation.ErrUserNotFound).Once()

	sm := newTestStateMachine(store, newRecordingMailer(), testCodec())

	user := &activation.User{Email: " new@example.com ", Status: activation.UserStatusActive}
	require.NoError(t, sm.GuardCreate(context.Background(), user))

	assert.Empty(t, user.Email)
	assert.Equal(t, "new@example.com", user.PendingEmail)
	assert.Equal(t, activation.UserStatusPending, user.Status)
	store.AssertExpectations(t)
}

func TestStateMachineGuardCreateRequiresEmail(t *testing.T) {
	store := &MockUserStore{}
	sm := newTestStateMachine(store, newRecordingMailer(), testCodec())

	user := &activation.User{Email: "  ", PendingEmail: ""}
	err := sm.GuardCreate(context.Background(), user)
	require.Error(t, err)
	assert.ErrorIs(t, err, activation.ErrMissingEmail)
	assert.Equal(t, activation.OutcomeValidation, activation.OutcomeFromError(err).Kind)
	assert.Empty(t, user.PendingEmail)
	store.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
}

func TestStateMachineGuardCreateStoreFailure(t *testing.T) {
	store := &MockUserStore{}
	store.On("FindByEmail", mock.Anything, "new@example.com").Return(nil, errors.New("db offline")).Once()

	sm := newTestStateMachine(store, newRecordingMailer(), testCodec())

	user := &activation.User{Email: "new@example.com"}
	err := sm.GuardCreate(context.Background(), user)
	require.Error(t, err)

	outcome := activation.OutcomeFromError(err)
	assert.Equal(t, activation.OutcomeStoreFailure, outcome.Kind)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Empty(t, user.PendingEmail)
}

func TestStateMachineGuardUpdateNoop(t *testing.T) {
	user := &activation.User{
		ID:           uuid.New(),
		Email:        "current@example.com",
		PendingEmail: "pending@example.com",
		Status:       activation.UserStatusActive,
	}

	for _, incoming := range []string{"", "current@example.com", "pending@example.com"} {
		t.Run("incoming="+incoming, func(t *testing.T) {
			store := &MockUserStore{}
			mailer := newRecordingMailer()
			sm := newTestStateMachine(store, mailer, testCodec())

			triggered, err := sm.GuardUpdate(context.Background(), user, incoming)
			require.NoError(t, err)
			assert.False(t, triggered)
			assert.Equal(t, "pending@example.com", user.PendingEmail)
			assert.Empty(t, mailer.sent)
			store.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
		})
	}
}

func TestStateMachineGuardUpdateOwnRecordIsNotConflict(t *testing.T) {
	id := uuid.New()
	user := &activation.User{ID: id, Email: "current@example.com", Status: activation.UserStatusActive}

	store := &MockUserStore{}
	// a stale read can hand back the caller's own record
	store.On("FindByEmail", mock.Anything, "next@example.com").
		Return(&activation.User{ID: id, PendingEmail: "next@example.com"}, nil).Once()

	mailer := newRecordingMailer()
	sm := newTestStateMachine(store, mailer, testCodec())

	triggered, err := sm.GuardUpdate(context.Background(), user, "next@example.com")
	require.NoError(t, err)
	assert.True(t, triggered)
	assert.Equal(t, "current@example.com", user.Email)
	assert.Equal(t, "next@example.com", user.PendingEmail)
	assert.Equal(t, "user-email-updated", mailer.last(t).Template)
}

func TestStateMachineGuardUpdateConflict(t *testing.T) {
	user := &activation.User{ID: uuid.New(), Email: "current@example.com", Status: activation.UserStatusActive}

	store := &MockUserStore{}
	store.On("FindByEmail", mock.Anything, "other@example.com").
		Return(&activation.User{ID: uuid.New(), Email: "other@example.com"}, nil).Once()

	mailer := newRecordingMailer()
	sm := newTestStateMachine(store, mailer, testCodec())

	triggered, err := sm.GuardUpdate(context.Background(), user, "other@example.com")
	assert.ErrorIs(t, err, activation.ErrEmailConflict)
	assert.False(t, triggered)
	assert.Empty(t, user.PendingEmail)
	assert.Empty(t, mailer.sent)
}

func TestStateMachineRedeemInvalidToken(t *testing.T) {
	store := &MockUserStore{}
	codec := &MockTokenCodec{}
	codec.On("DryVerify", "bad").Return(nil, false).Once()
	codec.On("DryVerify", "shape").Return(&activation.ActivationClaims{UserID: uuid.NewString()}, true).Once()

	sm := newTestStateMachine(store, newRecordingMailer(), codec)

	_, err := sm.Redeem(context.Background(), "bad")
	assert.ErrorIs(t, err, activation.ErrInvalidToken)

	_, err = sm.Redeem(context.Background(), "shape")
	assert.ErrorIs(t, err, activation.ErrInvalidToken)

	store.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestStateMachineRedeemRejectsInvalidTransition(t *testing.T) {
	id := uuid.New()
	store := &MockUserStore{}
	store.On("FindByID", mock.Anything, id.String()).Return(&activation.User{
		ID:           id,
		PendingEmail: "suspended@example.com",
		Status:       activation.UserStatusSuspended,
	}, nil).Once()

	codec := testCodec()
	token, err := codec.Sign(activation.NewActivationClaims(&activation.User{ID: id}))
	require.NoError(t, err)

	sm := newTestStateMachine(store, newRecordingMailer(), codec)

	_, err = sm.Redeem(context.Background(), token)
	assert.ErrorIs(t, err, activation.ErrInvalidTransition)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestStateMachineRedeemSaveFailureKeepsDecidedTransition(t *testing.T) {
	id := uuid.New()
	store := &MockUserStore{}
	store.On("FindByID", mock.Anything, id.String()).Return(&activation.User{
		ID:           id,
		PendingEmail: "ada@example.com",
		Status:       activation.UserStatusPending,
	}, nil).Once()
	store.On("Save", mock.Anything, mock.AnythingOfType("*activation.User")).
		Return(nil, errors.New("disk full")).Once()

	codec := testCodec()
	token, err := codec.Sign(activation.NewActivationClaims(&activation.User{ID: id}))
	require.NoError(t, err)

	sm := newTestStateMachine(store, newRecordingMailer(), codec)

	user, err := sm.Redeem(context.Background(), token)
	require.Error(t, err)
	require.NotNil(t, user)
	assert.Equal(t, activation.UserStatusActive, user.Status)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, activation.OutcomeStoreFailure, activation.OutcomeFromError(err).Kind)
	store.AssertExpectations(t)
}

func TestStateMachineRedeemListFailureIsNotFatal(t *testing.T) {
	id := uuid.New()
	store := &MockUserStore{}
	store.On("FindByID", mock.Anything, id.String()).Return(&activation.User{
		ID:              id,
		PendingEmail:    "ada@example.com",
		ActivationToken: "stale",
		Status:          activation.UserStatusPending,
	}, nil).Once()
	store.On("Save", mock.Anything, mock.AnythingOfType("*activation.User")).
		Return(nil, nil).Once()

	mailer := newRecordingMailer()
	mailer.listErr = errors.New("list api down")

	codec := testCodec()
	token, err := codec.Sign(activation.NewActivationClaims(&activation.User{ID: id}))
	require.NoError(t, err)

	sm := newTestStateMachine(store, mailer, codec, activation.WithMailingLister(mailer))

	user, err := sm.Redeem(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, activation.UserStatusActive, user.Status)
	assert.Empty(t, user.ActivationToken)
	assert.Equal(t, activation.UserStatusActive, sm.CurrentStatus(user))
}
