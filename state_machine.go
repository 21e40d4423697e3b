package activation

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// MailingLister adds confirmed addresses to a mailing list
type MailingLister interface {
	ListAdd(ctx context.Context, email, name string, data map[string]any) error
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*StateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *StateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *StateMachine) {
		sm.activity = normalizeActivitySink(sink)
	}
}

// WithStateMachineLogger overrides the logger used for best effort failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *StateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithMailingLister overrides where confirmed addresses are subscribed.
func WithMailingLister(lister MailingLister) StateMachineOption {
	return func(sm *StateMachine) {
		sm.lists = lister
	}
}

// StateMachine owns the pending to active transition and the pending email
// change confirmation. Activity is modeled by Status, an email change in
// progress purely by the presence of PendingEmail.
type StateMachine struct {
	store       UserStore
	codec       TokenCodec
	conflicts   *ConflictChecker
	mailer      *ActivationMailer
	lists       MailingLister
	transitions map[UserStatus]map[UserStatus]struct{}
	now         func() time.Time
	activity    ActivitySink
	logger      Logger
}

// NewStateMachine returns a StateMachine backed by store
func NewStateMachine(store UserStore, codec TokenCodec, mailer *ActivationMailer, opts ...StateMachineOption) *StateMachine {
	sm := &StateMachine{
		store:     store,
		codec:     codec,
		conflicts: NewConflictChecker(store),
		mailer:    mailer,
		transitions: map[UserStatus]map[UserStatus]struct{}{
			UserStatusPending: {
				UserStatusActive: {},
			},
			UserStatusActive: {
				UserStatusActive: {},
			},
		},
		now:      time.Now,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

// GuardCreate runs before a new record is persisted. The candidate address
// in user.Email is parked in PendingEmail and Email is cleared.
func (sm *StateMachine) GuardCreate(ctx context.Context, user *User) error {
	if user == nil {
		return goerrors.New("user is required", goerrors.CategoryBadInput)
	}

	candidate := strings.TrimSpace(user.Email)
	if candidate == "" {
		candidate = strings.TrimSpace(user.PendingEmail)
	}
	if candidate == "" {
		return ErrMissingEmail
	}

	if err := sm.ensureAvailable(ctx, user, candidate); err != nil {
		return err
	}

	user.PendingEmail = candidate
	user.Email = ""
	user.Status = UserStatusPending

	return nil
}

// DispatchCreated sends the welcome email after the record is persisted.
// Failures are logged and swallowed, creation is never rolled back.
func (sm *StateMachine) DispatchCreated(ctx context.Context, user *User) bool {
	ok := sm.mailer.Send(ctx, user, WorkflowCreate)
	if !ok {
		sm.logger.Warn("activation email not sent for new user %s", userID(user))
	}
	return ok
}

// GuardUpdate runs before an existing record's email is mutated. It reports
// whether an email change workflow was triggered. Incoming addresses equal
// to the current primary or pending email are a no-op.
func (sm *StateMachine) GuardUpdate(ctx context.Context, user *User, incoming string) (bool, error) {
	if user == nil {
		return false, goerrors.New("user is required", goerrors.CategoryBadInput)
	}

	incoming = strings.TrimSpace(incoming)
	if incoming == "" || incoming == user.Email || incoming == user.PendingEmail {
		return false, nil
	}

	if err := sm.ensureAvailable(ctx, user, incoming); err != nil {
		return false, err
	}

	user.PendingEmail = incoming

	sm.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventEmailChangeRequested,
		UserID:     userID(user),
		FromStatus: user.Status,
		ToStatus:   user.Status,
		Metadata: map[string]any{
			"pending_email": incoming,
		},
	})

	if !sm.mailer.Send(ctx, user, WorkflowUpdate) {
		sm.logger.Warn("email change confirmation not sent for user %s", userID(user))
	}

	return true, nil
}

// Redeem decodes an activation token and confirms the pending email of its
// subject. On a store write failure the returned user carries the decided
// transition and the error is a store error.
func (sm *StateMachine) Redeem(ctx context.Context, token string) (*User, error) {
	claims, ok := sm.codec.DryVerify(token)
	if !ok || !claims.Valid() {
		return nil, ErrInvalidToken
	}

	user, err := sm.store.FindByID(ctx, claims.UserID)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrActivationExpired
		}
		return nil, storeError(err, "Could not load user")
	}

	// a consumed link resolves to a user with nothing left to confirm
	if user == nil || !user.HasPendingEmail() {
		return nil, ErrActivationExpired
	}

	user.EnsureStatus()
	from := user.Status
	if !sm.canTransition(from, UserStatusActive) {
		return nil, ErrInvalidTransition
	}

	now := sm.now()
	user.Status = UserStatusActive
	user.Email = user.PendingEmail
	user.PendingEmail = ""
	user.ActivationToken = ""
	user.EmailValidated = true
	user.ActivatedAt = &now

	if sm.lists != nil {
		if err := sm.lists.ListAdd(ctx, user.Email, user.FirstName, map[string]any{}); err != nil {
			sm.logger.Warn("Could not add email to list: %s: %v", user.Email, err)
		}
	}

	saved, err := sm.store.Save(ctx, user)
	if err != nil {
		return user, storeError(err, "Could not update user")
	}
	if saved == nil {
		saved = user
	}

	sm.recordActivity(ctx, ActivityEvent{
		EventType:  ActivityEventActivationConfirmed,
		Actor:      ActorRef{ID: userID(saved), Type: "user"},
		UserID:     userID(saved),
		FromStatus: from,
		ToStatus:   UserStatusActive,
		Metadata: map[string]any{
			"email": saved.Email,
		},
	})

	return saved, nil
}

// Resend re-runs dispatch for user without a guard check
func (sm *StateMachine) Resend(ctx context.Context, user *User, kind WorkflowKind) error {
	return sm.mailer.Deliver(ctx, user, kind)
}

// CurrentStatus returns the user status, defaulting to pending
func (sm *StateMachine) CurrentStatus(user *User) UserStatus {
	if user == nil {
		return ""
	}
	user.EnsureStatus()
	return user.Status
}

func (sm *StateMachine) ensureAvailable(ctx context.Context, user *User, candidate string) error {
	conflict, err := sm.conflicts.Check(ctx, candidate)
	if err != nil {
		return err
	}

	if conflict == nil {
		return nil
	}

	if user.ID != uuid.Nil && conflict.ID == user.ID {
		return nil
	}

	sm.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventRegistrationConflicted,
		UserID:    userID(user),
		Metadata: map[string]any{
			"email":       candidate,
			"conflict_id": conflict.ID.String(),
		},
	})

	return ErrEmailConflict
}

func (sm *StateMachine) canTransition(from, to UserStatus) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (sm *StateMachine) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = sm.now()
	}

	if err := normalizeActivitySink(sm.activity).Record(ctx, event); err != nil {
		sm.logger.Warn("state machine activity sink error: %v", err)
	}
}

func userID(user *User) string {
	if user == nil || user.ID == uuid.Nil {
		return ""
	}
	return user.ID.String()
}
