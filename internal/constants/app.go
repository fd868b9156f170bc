// Package constants holds the shared constants for retctl: backend endpoint
// paths, upload defaults, and transport timeouts.
package constants

import "time"

// Backend endpoints (fixed contract of the control backend)
const (
	// PathAuthValidate checks the Basic credential. 200 = valid, 401 = invalid.
	PathAuthValidate = "/api/v1/auth/validate"

	// PathStatus returns {status, uptime, allowed_filenames, allowed_max_size}.
	PathStatus = "/api/v1/status"

	// PathServerStart and PathServerStop control the DCS server process.
	PathServerStart = "/api/v1/server/start"
	PathServerStop  = "/api/v1/server/stop"

	// PathUploadMission accepts a multipart form with a single "file" field.
	PathUploadMission = "/api/v1/files/upload_miz"

	// PathStateArtifact is the mission state export written by the running mission.
	// A 404 on this path means the mission has not produced it yet.
	PathStateArtifact = "/api/v1/files/state.json"

	// PathPartialPrefix serves the HTML fragments for the two UI modes (no auth).
	PathPartialPrefix = "/partials/"
)

// Partial names
const (
	PartialLogin   = "login.html"
	PartialControl = "control.html"
)

// Multipart form field for mission uploads
const UploadFormField = "file"

// StateArtifactName is the local file name used when saving the state artifact.
const StateArtifactName = "state.json"

// Server status values reported by the backend
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
)

// Upload defaults, used when no status has been fetched yet.
var DefaultAllowedFilenames = []string{"retribution_nextturn.miz", "liberation_nextturn.miz"}

const (
	// DefaultMaxUploadSizeMB - fallback upload size limit (1000 MB)
	DefaultMaxUploadSizeMB = 1000

	// BytesPerMB - divisor used for every MB figure shown to the operator
	BytesPerMB = 1024 * 1024
)

// User-facing notices
const (
	MsgInvalidLogin      = "Invalid username or password"
	MsgUploadFailed      = "An error occurred while uploading the file."
	MsgDownloadFailed    = "An error occurred while downloading the file."
	MsgStateNotFound     = "No state.json file found on the server.\nHas the mission been started?"
	TooltipStartServer   = "Start Server"
	TooltipStopServer    = "Stop Server"
	DiskSpaceSafetyRatio = 1.1
)

// Event Bus Configuration
const (
	// EventBusDefaultBuffer - default event bus buffer size
	EventBusDefaultBuffer = 256

	// EventBusMaxBuffer - maximum event bus buffer size
	EventBusMaxBuffer = 5000
)

// Polling
const (
	// DefaultPollInterval - default interval between automatic status polls
	DefaultPollInterval = 30 * time.Second

	// MinPollInterval - shortest accepted non-zero poll interval
	MinPollInterval = 2 * time.Second
)

// Retry settings for idempotent requests (GET only)
const (
	DefaultRetryMax  = 2
	RetryWaitMin     = 500 * time.Millisecond
	RetryWaitMax     = 5 * time.Second
	ProxyWarmupLimit = 15 * time.Second
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (30 seconds)
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second
)

// RequestIDHeader carries the per-operation correlation id.
const RequestIDHeader = "X-Request-ID"
