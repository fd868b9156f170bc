// Package config provides configuration management for retctl.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/retribution/retctl/internal/constants"
)

// Environment variables read by ApplyEnv.
const (
	EnvServerURL      = "RETCTL_SERVER_URL"
	EnvCredentialFile = "RETCTL_CREDENTIAL_FILE"
)

// Config holds everything needed to reach and drive one backend.
//
// INI format:
//
//	[server]
//	url = https://dcs.example.org:8443
//	request_timeout_seconds = 0
//	poll_interval_seconds = 30
//	retry_max = 2
//	insecure_skip_verify = false
//
//	[session]
//	credential_file = ~/.config/retctl/credential
//	clear_credential_on_transient_failure = false
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 0
//	user =
//	no_proxy =
//	warmup = false
//
//	[transfer]
//	download_dir = .
type Config struct {
	// Backend
	ServerURL          string
	RequestTimeout     time.Duration // 0 = no timeout
	PollInterval       time.Duration // 0 = no automatic polling
	RetryMax           int           // Retries for idempotent GETs
	InsecureSkipVerify bool

	// Session
	CredentialFile string

	// ClearCredentialOnTransientFailure makes a non-401 validation failure at
	// startup remove the stored credential, the same as a 401 would.
	ClearCredentialOnTransientFailure bool

	// Proxy settings
	ProxyMode     string // "no-proxy", "system", "basic", "ntlm"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string // Never persisted
	NoProxy       string // Comma-separated list of hosts to bypass proxy
	ProxyWarmup   bool

	// Transfers
	DownloadDir string
}

// Validation errors
var (
	ErrMissingServerURL = errors.New("server url is required (set [server] url, RETCTL_SERVER_URL or --server-url)")
	ErrInvalidServerURL = errors.New("server url must be an absolute http or https URL")
	ErrNegativeTimeout  = errors.New("request_timeout_seconds must not be negative")
	ErrPollTooFrequent  = fmt.Errorf("poll_interval_seconds must be 0 or at least %d", int(constants.MinPollInterval/time.Second))
	ErrInvalidProxyMode = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
)

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		PollInterval:   constants.DefaultPollInterval,
		RetryMax:       constants.DefaultRetryMax,
		CredentialFile: DefaultCredentialPath(),
		ProxyMode:      "no-proxy",
		DownloadDir:    ".",
	}
}

// Load reads configuration from an INI file.
// If path is empty the default location is used. A missing file yields the
// defaults and no error; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	server := iniFile.Section("server")
	cfg.ServerURL = strings.TrimSpace(server.Key("url").String())
	cfg.RequestTimeout = seconds(server.Key("request_timeout_seconds").MustInt(0))
	cfg.PollInterval = seconds(server.Key("poll_interval_seconds").MustInt(int(constants.DefaultPollInterval / time.Second)))
	cfg.RetryMax = server.Key("retry_max").MustInt(constants.DefaultRetryMax)
	cfg.InsecureSkipVerify = server.Key("insecure_skip_verify").MustBool(false)

	session := iniFile.Section("session")
	if f := strings.TrimSpace(session.Key("credential_file").String()); f != "" {
		cfg.CredentialFile = ExpandHome(f)
	}
	cfg.ClearCredentialOnTransientFailure = session.Key("clear_credential_on_transient_failure").MustBool(false)

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString("no-proxy")
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(0)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()
	cfg.ProxyWarmup = proxy.Key("warmup").MustBool(false)

	transfer := iniFile.Section("transfer")
	cfg.DownloadDir = ExpandHome(transfer.Key("download_dir").MustString("."))

	return cfg, nil
}

// Save writes the configuration to an INI file with owner-only permissions.
// The proxy password is never written.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	server, err := iniFile.NewSection("server")
	if err != nil {
		return fmt.Errorf("failed to create server section: %w", err)
	}
	server.Key("url").SetValue(cfg.ServerURL)
	server.Key("request_timeout_seconds").SetValue(strconv.Itoa(int(cfg.RequestTimeout / time.Second)))
	server.Key("poll_interval_seconds").SetValue(strconv.Itoa(int(cfg.PollInterval / time.Second)))
	server.Key("retry_max").SetValue(strconv.Itoa(cfg.RetryMax))
	server.Key("insecure_skip_verify").SetValue(strconv.FormatBool(cfg.InsecureSkipVerify))

	session, err := iniFile.NewSection("session")
	if err != nil {
		return fmt.Errorf("failed to create session section: %w", err)
	}
	session.Key("credential_file").SetValue(cfg.CredentialFile)
	session.Key("clear_credential_on_transient_failure").SetValue(strconv.FormatBool(cfg.ClearCredentialOnTransientFailure))

	proxy, err := iniFile.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxy.Key("mode").SetValue(cfg.ProxyMode)
	proxy.Key("host").SetValue(cfg.ProxyHost)
	proxy.Key("port").SetValue(strconv.Itoa(cfg.ProxyPort))
	proxy.Key("user").SetValue(cfg.ProxyUser)
	proxy.Key("no_proxy").SetValue(cfg.NoProxy)
	proxy.Key("warmup").SetValue(strconv.FormatBool(cfg.ProxyWarmup))

	transfer, err := iniFile.NewSection("transfer")
	if err != nil {
		return fmt.Errorf("failed to create transfer section: %w", err)
	}
	transfer.Key("download_dir").SetValue(cfg.DownloadDir)

	// Temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// ApplyEnv overlays environment variables on top of file values.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvServerURL)); v != "" {
		c.ServerURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCredentialFile)); v != "" {
		c.CredentialFile = ExpandHome(v)
	}
}

// MergeWithFlags applies command-line overrides. Empty/zero values leave the
// current setting alone, so the precedence is flags > env > file > defaults
// when called after ApplyEnv.
func (c *Config) MergeWithFlags(serverURL, credentialFile string, timeout time.Duration) {
	if serverURL != "" {
		c.ServerURL = serverURL
	}
	if credentialFile != "" {
		c.CredentialFile = ExpandHome(credentialFile)
	}
	if timeout > 0 {
		c.RequestTimeout = timeout
	}

	// Ensure a scheme
	if c.ServerURL != "" && !strings.HasPrefix(c.ServerURL, "http") {
		c.ServerURL = "https://" + c.ServerURL
	}
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
}

// Validate checks the settings needed to talk to the backend.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return ErrMissingServerURL
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidServerURL
	}
	if c.RequestTimeout < 0 {
		return ErrNegativeTimeout
	}
	if c.PollInterval != 0 && c.PollInterval < constants.MinPollInterval {
		return ErrPollTooFrequent
	}
	switch strings.ToLower(c.ProxyMode) {
	case "", "no-proxy", "system", "basic", "ntlm":
	default:
		return ErrInvalidProxyMode
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
