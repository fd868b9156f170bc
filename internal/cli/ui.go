package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/retribution/retctl/internal/config"
	"github.com/retribution/retctl/internal/constants"
	"github.com/retribution/retctl/internal/core"
	"github.com/retribution/retctl/internal/events"
	"github.com/retribution/retctl/internal/logging"
	"github.com/retribution/retctl/internal/progress"
	"github.com/retribution/retctl/internal/tui"
)

// newUICmd creates the 'ui' command.
func newUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Open the interactive terminal UI",
		Long: `Open the login and control screens in the terminal.

Logs are written to a file under the log directory instead of the screen:
  ` + config.LogDirectory(),
		RunE: func(cmd *cobra.Command, args []string) error {
			bus := events.NewEventBus(constants.EventBusDefaultBuffer)
			defer bus.Close()

			tuiLogger := logging.NewLogger(logging.ModeTUI, bus)
			logFile, err := openLogFile()
			if err != nil {
				return err
			}
			defer logFile.Close()
			tuiLogger.SetOutput(logFile)

			engine, err := newEngine(core.Options{
				Bus:          bus,
				Logger:       tuiLogger,
				LoadPartials: true,
				Progress:     progress.BusFactory(bus),
			})
			if err != nil {
				return err
			}
			defer engine.Close()

			tuiLogger.Info().Str("server", engine.Config().ServerURL).Msg("Terminal UI started")
			return tui.Run(cmd.Context(), engine)
		},
	}
}

// openLogFile opens today's log file for the terminal UI.
func openLogFile() (*os.File, error) {
	if err := config.EnsureLogDirectory(); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	name := fmt.Sprintf("retctl-%s.log", time.Now().Format("2006-01-02"))
	f, err := os.OpenFile(filepath.Join(config.LogDirectory(), name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}
