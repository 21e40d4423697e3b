package activation

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserStatus governs login eligibility
type UserStatus string

const (
	// UserStatusPending is awaiting first activation
	UserStatusPending UserStatus = "pending"
	// UserStatusActive has a confirmed email
	UserStatusActive UserStatus = "active"
	// UserStatusSuspended is temporarily blocked
	UserStatusSuspended UserStatus = "suspended"
	// UserStatusDisabled is blocked until an admin intervenes
	UserStatusDisabled UserStatus = "disabled"
	// UserStatusArchived is terminal
	UserStatusArchived UserStatus = "archived"
)

// User is the user model. Email is the confirmed, loginable address and
// PendingEmail holds an address awaiting confirmation.
type User struct {
	bun.BaseModel   `bun:"table:users,alias:usr"`
	ID              uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FirstName       string         `bun:"first_name" json:"first_name,omitempty"`
	LastName        string         `bun:"last_name" json:"last_name,omitempty"`
	Username        string         `bun:"username" json:"username,omitempty"`
	Email           string         `bun:"email,nullzero,unique" json:"email,omitempty"`
	PendingEmail    string         `bun:"pending_email,nullzero,unique" json:"pending_email,omitempty"`
	Status          UserStatus     `bun:"status,notnull" json:"status,omitempty"`
	PasswordHash    string         `bun:"password_hash" json:"-"`
	EmailValidated  bool           `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	ActivationToken string         `bun:"activation_token,nullzero" json:"-"`
	ActivatedAt     *time.Time     `bun:"activated_at,nullzero" json:"activated_at,omitempty"`
	Metadata        map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt       *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt       *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt       *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureStatus defaults an empty status to pending
func (u *User) EnsureStatus() {
	if u.Status == "" {
		u.Status = UserStatusPending
	}
}

// IsActive reports whether the user completed activation
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}

// IsPending reports whether the user still awaits activation
func (u *User) IsPending() bool {
	return u != nil && u.Status == UserStatusPending
}

// HasPendingEmail reports whether an address is awaiting confirmation
func (u *User) HasPendingEmail() bool {
	return u != nil && strings.TrimSpace(u.PendingEmail) != ""
}

// UnconfirmedEmail is the address activation mail is sent to:
// the pending address if present, the primary one otherwise.
func (u *User) UnconfirmedEmail() string {
	if u.HasPendingEmail() {
		return u.PendingEmail
	}
	return u.Email
}

// FullName joins first and last name
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// TemplateData is a shallow copy of the user used to render emails.
// Secrets are never included.
func (u *User) TemplateData() map[string]any {
	data := map[string]any{
		"id":            u.ID.String(),
		"first_name":    u.FirstName,
		"last_name":     u.LastName,
		"username":      u.Username,
		"email":         u.Email,
		"pending_email": u.PendingEmail,
		"status":        string(u.Status),
	}
	for k, v := range u.Metadata {
		if _, exists := data[k]; !exists {
			data[k] = v
		}
	}
	return data
}

// AddMetadata will append information to a metadata attribute
func (u *User) AddMetadata(key string, val any) *User {
	if u.Metadata == nil {
		u.Metadata = make(map[string]any)
	}
	u.Metadata[key] = val
	return u
}

// MailingListMember is a confirmed address subscribed to the mailing list
type MailingListMember struct {
	bun.BaseModel `bun:"table:mailing_list_members,alias:mlm"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string         `bun:"email,notnull,unique" json:"email,omitempty"`
	Name          string         `bun:"name" json:"name,omitempty"`
	Data          map[string]any `bun:"data" json:"data,omitempty"`
	CreatedAt     *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
