package activation

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// ActivationPath is appended to the base URL of every link
const ActivationPath = "/activate?id="

// LinkBuilder combines a base URL with a freshly signed activation token
type LinkBuilder struct {
	baseURL string
	codec   TokenCodec
}

// NewLinkBuilder creates a LinkBuilder
func NewLinkBuilder(baseURL string, codec TokenCodec) *LinkBuilder {
	return &LinkBuilder{
		baseURL: strings.TrimRight(baseURL, "/"),
		codec:   codec,
	}
}

// Build signs a new claim for user and returns the redeemable link.
// Every call signs a new token, earlier links stay valid until they expire.
func (b *LinkBuilder) Build(user *User) (string, error) {
	if user == nil {
		return "", errors.New("user is required to build activation link", errors.CategoryBadInput)
	}

	token, err := b.codec.Sign(NewActivationClaims(user))
	if err != nil {
		return "", err
	}

	return b.baseURL + ActivationPath + token, nil
}
