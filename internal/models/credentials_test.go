package models

import (
	"encoding/json"
	"testing"
)

func TestNewCredential(t *testing.T) {
	c := NewCredential("ops", "secret123")

	if string(c) != "b3BzOnNlY3JldDEyMw==" {
		t.Errorf("NewCredential() = %q, want %q", c, "b3BzOnNlY3JldDEyMw==")
	}
	if c.Header() != "Basic b3BzOnNlY3JldDEyMw==" {
		t.Errorf("Header() = %q", c.Header())
	}

	user, err := c.Username()
	if err != nil {
		t.Fatalf("Username() error = %v", err)
	}
	if user != "ops" {
		t.Errorf("Username() = %q, want ops", user)
	}
}

func TestCredential_PasswordWithColon(t *testing.T) {
	c := NewCredential("ops", "a:b:c")
	user, err := c.Username()
	if err != nil {
		t.Fatalf("Username() error = %v", err)
	}
	if user != "ops" {
		t.Errorf("Username() = %q, want ops", user)
	}
}

func TestCredential_Malformed(t *testing.T) {
	tests := []struct {
		name string
		cred Credential
	}{
		{"not base64", Credential("***")},
		{"no separator", Credential("b3Bz")}, // "ops"
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cred.Username(); err != ErrMalformedCredential {
				t.Errorf("Username() error = %v, want ErrMalformedCredential", err)
			}
		})
	}
}

func TestCredential_IsZero(t *testing.T) {
	if !Credential("").IsZero() {
		t.Error("empty credential should be zero")
	}
	if !Credential("  \n").IsZero() {
		t.Error("whitespace credential should be zero")
	}
	if NewCredential("a", "b").IsZero() {
		t.Error("encoded credential should not be zero")
	}
}

func TestServerStatus_Decode(t *testing.T) {
	payload := `{"status":"running","uptime":"0:12:03","allowed_filenames":["retribution_nextturn.miz"],"allowed_max_size":500}`

	var s ServerStatus
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !s.IsRunning() {
		t.Error("expected IsRunning() = true")
	}
	if s.AllowedMaxSizeMB != 500 {
		t.Errorf("AllowedMaxSizeMB = %v, want 500", s.AllowedMaxSizeMB)
	}
	if len(s.AllowedFilenames) != 1 || s.AllowedFilenames[0] != "retribution_nextturn.miz" {
		t.Errorf("AllowedFilenames = %v", s.AllowedFilenames)
	}

	var nilStatus *ServerStatus
	if nilStatus.IsRunning() {
		t.Error("nil status must not be running")
	}
}
