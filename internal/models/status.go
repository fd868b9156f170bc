package models

import "github.com/retribution/retctl/internal/constants"

// ServerStatus is the payload of GET /api/v1/status.
// It is rebuilt from scratch on every poll and never merged with a previous value.
type ServerStatus struct {
	Status           string   `json:"status"` // "running" or "stopped"
	Uptime           string   `json:"uptime,omitempty"`
	AllowedFilenames []string `json:"allowed_filenames"`
	AllowedMaxSizeMB float64  `json:"allowed_max_size"`
}

// IsRunning reports whether the backend considers the DCS server running.
func (s *ServerStatus) IsRunning() bool {
	return s != nil && s.Status == constants.StatusRunning
}

// ControlView is the rendered state of the control screen. It is a pure
// projection of a ServerStatus and is never read back to make decisions.
type ControlView struct {
	// Known is false until a status has been applied.
	Known bool

	Status string
	Uptime string

	PowerOn      bool
	PowerTooltip string

	UploadEnabled bool
	UploadTooltip string
}
