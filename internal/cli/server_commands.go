package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/retribution/retctl/internal/constants"
	"github.com/retribution/retctl/internal/control"
	"github.com/retribution/retctl/internal/core"
	"github.com/retribution/retctl/internal/events"
	"github.com/retribution/retctl/internal/models"
)

// currentStatus returns the status fetched on entering control, fetching it
// again if that first refresh failed.
func currentStatus(ctx context.Context, engine *core.Engine) (*models.ServerStatus, error) {
	if status := engine.Status().Current(); status != nil {
		return status, nil
	}
	status, err := engine.Status().Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get server status: %w", err)
	}
	return status, nil
}

// operator returns the username of the stored credential, or "" if it cannot
// be decoded.
func operator(engine *core.Engine) string {
	cred, ok := engine.Credentials().Get()
	if !ok {
		return ""
	}
	user, err := cred.Username()
	if err != nil {
		return ""
	}
	return user
}

// printStatus writes the control view in a human-readable form.
func printStatus(w io.Writer, serverURL, user string, status *models.ServerStatus) {
	view := control.Project(status)

	power := "off"
	if view.PowerOn {
		power = "on"
	}
	upload := "enabled"
	if !view.UploadEnabled {
		upload = "disabled while the server is running"
	}
	maxSize := status.AllowedMaxSizeMB
	if maxSize <= 0 {
		maxSize = constants.DefaultMaxUploadSizeMB
	}

	fmt.Fprintf(w, "Server:   %s\n", serverURL)
	if user != "" {
		fmt.Fprintf(w, "User:     %s\n", user)
	}
	fmt.Fprintf(w, "Status:   %s\n", view.Status)
	if view.Uptime != "" {
		fmt.Fprintf(w, "Uptime:   %s\n", view.Uptime)
	}
	fmt.Fprintf(w, "Power:    %s (%s)\n", power, view.PowerTooltip)
	fmt.Fprintf(w, "Upload:   %s\n", upload)
	fmt.Fprintf(w, "Accepts:  %s (max %s MB)\n", view.UploadTooltip, strconv.FormatFloat(maxSize, 'f', -1, 64))
}

// newStatusCmd creates the 'status' command.
func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := startControl(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()

			status, err := currentStatus(cmd.Context(), engine)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}
			printStatus(cmd.OutOrStdout(), engine.API().BaseURL(), operator(engine), status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status payload as JSON")
	return cmd
}

// newWatchCmd creates the 'watch' command.
func newWatchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll server status until interrupted",
		Long: `Poll the server status periodically and print a line whenever it is
refreshed. Stops on Ctrl+C or when the server rejects the credential.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine(core.Options{})
			if err != nil {
				return err
			}
			defer engine.Close()

			if interval == 0 {
				interval = engine.Config().PollInterval
			}
			if interval == 0 {
				interval = constants.DefaultPollInterval
			}
			if interval < constants.MinPollInterval {
				return fmt.Errorf("--interval must be at least %s", constants.MinPollInterval)
			}

			statuses := engine.Events().Subscribe(events.EventStatus)
			out := cmd.OutOrStdout()
			done := make(chan struct{})
			go func() {
				defer close(done)
				for e := range statuses {
					st := e.(*events.StatusEvent)
					fmt.Fprintf(out, "%s  %-8s uptime %s\n",
						st.Timestamp().Format("15:04:05"), st.View.Status, st.View.Uptime)
				}
			}()

			ctx := cmd.Context()
			if err := engine.RequireControl(ctx); err != nil {
				return err
			}
			err = engine.Status().Poll(ctx, interval)

			engine.Close()
			<-done
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "Polling interval (default from config, 30s)")
	return cmd
}

// newPowerCmd builds start, stop and toggle.
func newPowerCmd(use, short string, run func(d *control.Dispatcher, ctx context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := startControl(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := run(engine.Commands(), cmd.Context()); err != nil {
				return fmt.Errorf("%s failed: %w", use, err)
			}

			status, err := currentStatus(cmd.Context(), engine)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server is %s\n", status.Status)
			return nil
		},
	}
}

func newStartCmd() *cobra.Command {
	return newPowerCmd("start", "Start the DCS server", (*control.Dispatcher).Start)
}

func newStopCmd() *cobra.Command {
	return newPowerCmd("stop", "Stop the DCS server", (*control.Dispatcher).Stop)
}

func newToggleCmd() *cobra.Command {
	return newPowerCmd("toggle", "Start the server if stopped, stop it if running", (*control.Dispatcher).TogglePower)
}
