package activation

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// ErrMismatchedHashAndPassword password does not match the stored hash
var ErrMismatchedHashAndPassword = goerrors.New("mismatched hash and password", goerrors.CategoryAuth).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(goerrors.CodeUnauthorized)

// HashPassword hashes a registration password
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash checks a cleartext password against a bcrypt hash
func ComparePasswordAndHash(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrMismatchedHashAndPassword
	default:
		return goerrors.Wrap(err, goerrors.CategoryInternal, "stored password hash is unreadable")
	}
}

// VerifyCurrentPassword guards changes to an account's address. Users
// registered without a password, e.g. invited ones, pass.
func VerifyCurrentPassword(user *User, password string) error {
	if user == nil || user.PasswordHash == "" {
		return nil
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryAuth, "current password does not match").
			WithMetadata(map[string]any{"user_id": user.ID.String()})
	}
	return nil
}
