package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/retribution/retctl/internal/api"
	"github.com/retribution/retctl/internal/config"
	"github.com/retribution/retctl/internal/constants"
	"github.com/retribution/retctl/internal/core"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage retctl configuration",
		Long: `Configuration management commands for retctl.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Test the backend connection
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// configPath returns the --config path or the default location.
func configPath() string {
	if cfgFile != "" {
		return config.ExpandHome(cfgFile)
	}
	return config.DefaultConfigPath()
}

// promptDefault asks for a value and returns def when the answer is empty.
func promptDefault(label, def string) (string, error) {
	prompt := label + ": "
	if def != "" {
		prompt = fmt.Sprintf("%s [%s]: ", label, def)
	}
	v, err := promptLine(prompt)
	if err != nil {
		return "", err
	}
	if v == "" {
		return def, nil
	}
	return v, nil
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for retctl.

The configuration is saved to ~/.config/retctl/config.ini (or --config).
Passwords are never written to it: log in with 'retctl login' and the proxy
password is prompted when needed.

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			path := configPath()
			out := cmd.OutOrStdout()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			cfg, err := config.Load(path)
			if err != nil {
				cfg = config.NewConfig()
			}

			fmt.Fprintln(out, "retctl Configuration Setup")
			fmt.Fprintln(out, "==========================")
			fmt.Fprintln(out)

			for {
				v, err := promptDefault("Server URL", cfg.ServerURL)
				if err != nil {
					return err
				}
				cfg.MergeWithFlags(v, "", 0)
				if cfg.ServerURL != "" {
					break
				}
				fmt.Fprintln(out, "  Error: server URL is required")
			}

			poll, err := promptDefault("Poll interval in seconds (0 = off)", strconv.Itoa(int(cfg.PollInterval/time.Second)))
			if err != nil {
				return err
			}
			if n, err := strconv.Atoi(poll); err == nil && n >= 0 {
				cfg.PollInterval = time.Duration(n) * time.Second
			}

			if cfg.DownloadDir, err = promptDefault("Download directory", cfg.DownloadDir); err != nil {
				return err
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Proxy Configuration")
			fmt.Fprintln(out, "-------------------")
			fmt.Fprintln(out, "Proxy modes: no-proxy, system, basic, ntlm")
			if cfg.ProxyMode, err = promptDefault("Proxy mode", cfg.ProxyMode); err != nil {
				return err
			}
			if cfg.ProxyMode == "basic" || cfg.ProxyMode == "ntlm" {
				if cfg.ProxyHost, err = promptDefault("Proxy host", cfg.ProxyHost); err != nil {
					return err
				}
				port := cfg.ProxyPort
				if port == 0 {
					port = 8080
				}
				p, err := promptDefault("Proxy port", strconv.Itoa(port))
				if err != nil {
					return err
				}
				if v, err := strconv.Atoi(p); err == nil && v > 0 {
					cfg.ProxyPort = v
				}
				if cfg.ProxyUser, err = promptDefault("Proxy user (empty for none)", cfg.ProxyUser); err != nil {
					return err
				}
				if cfg.NoProxy, err = promptDefault("Hosts that bypass the proxy (comma separated)", cfg.NoProxy); err != nil {
					return err
				}
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			logger.Info().Str("path", path).Msg("Configuration saved")

			fmt.Fprintln(out)
			fmt.Fprintf(out, "Configuration saved to: %s\n", path)
			fmt.Fprintln(out, "Log in with: retctl login")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file (~/.config/retctl/config.ini)
  2. Environment variables (RETCTL_SERVER_URL, RETCTL_CREDENTIAL_FILE)
  3. Command-line flags (--server-url, --credential-file, --timeout)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Current Configuration")
			fmt.Fprintln(out, "=====================")
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Server:")
			fmt.Fprintf(out, "  URL:             %s\n", valueOr(cfg.ServerURL, "<not set>"))
			fmt.Fprintf(out, "  Request timeout: %s\n", durationOr(cfg.RequestTimeout, "none"))
			fmt.Fprintf(out, "  Poll interval:   %s\n", durationOr(cfg.PollInterval, "off"))
			fmt.Fprintf(out, "  GET retries:     %d\n", cfg.RetryMax)
			if cfg.InsecureSkipVerify {
				fmt.Fprintln(out, "  TLS verification: DISABLED")
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Session:")
			fmt.Fprintf(out, "  Credential file: %s\n", cfg.CredentialFile)
			if _, err := os.Stat(cfg.CredentialFile); err == nil {
				fmt.Fprintln(out, "                   (present)")
			}
			fmt.Fprintf(out, "  Clear credential on transient failure: %t\n", cfg.ClearCredentialOnTransientFailure)
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Proxy:")
			fmt.Fprintf(out, "  Mode: %s\n", cfg.ProxyMode)
			if cfg.ProxyHost != "" {
				fmt.Fprintf(out, "  Host: %s\n", cfg.ProxyHost)
				fmt.Fprintf(out, "  Port: %d\n", cfg.ProxyPort)
			}
			if cfg.ProxyUser != "" {
				fmt.Fprintf(out, "  User: %s\n", cfg.ProxyUser)
			}
			if cfg.NoProxy != "" {
				fmt.Fprintf(out, "  Bypass: %s\n", cfg.NoProxy)
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Transfer:")
			fmt.Fprintf(out, "  Download directory: %s\n", cfg.DownloadDir)
			fmt.Fprintln(out)

			path := configPath()
			fmt.Fprintf(out, "Configuration file: %s\n", path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "  (file does not exist - using defaults)")
			}
			return nil
		},
	}
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test the backend connection",
		Long: `Check that the backend is reachable with the current configuration and,
if a credential is stored, that the server still accepts it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			engine, err := newEngine(core.Options{})
			if err != nil {
				return err
			}
			defer engine.Close()

			fmt.Fprintln(out, "Testing Backend Connection")
			fmt.Fprintln(out, "==========================")
			fmt.Fprintf(out, "Server: %s\n\n", engine.API().BaseURL())

			if _, err := engine.API().FetchPartial(ctx, constants.PartialLogin); err != nil {
				fmt.Fprintln(out, "✗ Connection FAILED")
				fmt.Fprintf(out, "  Error: %v\n", err)
				return fmt.Errorf("connection test failed")
			}
			fmt.Fprintln(out, "✓ Backend reachable")

			if _, ok := engine.Credentials().Get(); !ok {
				fmt.Fprintln(out, "- No stored credential (run 'retctl login')")
				return nil
			}

			switch err := engine.API().ValidateAuth(ctx); {
			case err == nil:
				fmt.Fprintln(out, "✓ Stored credential accepted")
			case api.IsUnauthorized(err):
				fmt.Fprintln(out, "✗ Stored credential rejected (run 'retctl login')")
			default:
				fmt.Fprintf(out, "✗ Credential check failed: %v\n", err)
				return fmt.Errorf("connection test failed")
			}
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config:     %s\n", configPath())
			fmt.Fprintf(out, "Credential: %s\n", config.DefaultCredentialPath())
			fmt.Fprintf(out, "Logs:       %s\n", config.LogDirectory())
			return nil
		},
	}
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func durationOr(d time.Duration, fallback string) string {
	if d <= 0 {
		return fallback
	}
	return d.String()
}
