package models

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrMalformedCredential is returned when a stored credential does not decode
// to a "username:password" pair.
var ErrMalformedCredential = errors.New("malformed credential")

// Credential is the base64 payload of "username:password" as sent in a Basic
// Authorization header. Only the payload is stored, never the "Basic " prefix.
type Credential string

// NewCredential encodes a username/password pair.
func NewCredential(username, password string) Credential {
	return Credential(base64.StdEncoding.EncodeToString([]byte(username + ":" + password)))
}

// Header returns the Authorization header value for this credential.
func (c Credential) Header() string {
	return "Basic " + string(c)
}

// IsZero reports whether the credential is empty.
func (c Credential) IsZero() bool {
	return strings.TrimSpace(string(c)) == ""
}

// Username decodes the credential and returns the username part.
// Used only for display.
func (c Credential) Username() (string, error) {
	raw, err := base64.StdEncoding.DecodeString(string(c))
	if err != nil {
		return "", ErrMalformedCredential
	}
	user, _, ok := strings.Cut(string(raw), ":")
	if !ok {
		return "", ErrMalformedCredential
	}
	return user, nil
}
