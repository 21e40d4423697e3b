package activation

import (
	"github.com/golang-jwt/jwt/v5"
)

// ActivationClaims is the payload of an activation token. IsActivate
// distinguishes it from other tokens signed with the same key.
type ActivationClaims struct {
	jwt.RegisteredClaims
	UserID     string `json:"id,omitempty"`
	IsActivate bool   `json:"isActivate,omitempty"`
}

// NewActivationClaims builds the claim for a user
func NewActivationClaims(user *User) *ActivationClaims {
	id := user.ID.String()
	return &ActivationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: id,
		},
		UserID:     id,
		IsActivate: true,
	}
}

// Valid reports whether the claim is redeemable: it must carry
// a user id and the activation flag set to true.
func (c *ActivationClaims) Valid() bool {
	return c != nil && c.UserID != "" && c.IsActivate
}
