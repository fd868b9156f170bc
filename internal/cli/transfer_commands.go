package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/retribution/retctl/internal/pathutil"
	"github.com/retribution/retctl/internal/progress"
)

// newUploadCmd creates the 'upload' command.
func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload the next-turn mission file",
		Long: `Upload a mission file to the server.

The file name must be one of the names the server accepts (see 'retctl status')
and its size must be within the server's limit. Both are checked before
anything is sent. Uploads are refused while the server is running.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := startControl(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()

			if view := engine.Status().View(); view.Known && !view.UploadEnabled {
				return errors.New("upload is disabled while the server is running; stop it first")
			}

			path, err := pathutil.Resolve(args[0])
			if err != nil {
				return fmt.Errorf("invalid path %s: %w", args[0], err)
			}

			alerts := watchAlerts(engine)
			commands := engine.Commands()
			commands.SetProgressFactory(progress.CLIFactory())

			err = commands.Upload(cmd.Context(), path)
			if n := alerts.flush(cmd.ErrOrStderr()); err != nil {
				if n > 0 {
					return errors.New("upload failed")
				}
				return fmt.Errorf("upload failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s\n", filepath.Base(args[0]))
			return nil
		},
	}
}

// newDownloadCmd creates the 'download' command.
func newDownloadCmd() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the mission state (state.json)",
		Long: `Download the state artifact written by the running mission and save it
as state.json in the output directory (default: [transfer] download_dir).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := startControl(cmd)
			if err != nil {
				return err
			}
			defer engine.Close()

			if outputDir == "" {
				outputDir = engine.Config().DownloadDir
			}
			dest, err := pathutil.Resolve(outputDir)
			if err != nil {
				return fmt.Errorf("invalid output directory %s: %w", outputDir, err)
			}

			alerts := watchAlerts(engine)
			commands := engine.Commands()
			commands.SetProgressFactory(progress.CLIFactory())

			result, err := commands.Download(cmd.Context(), dest)
			if n := alerts.flush(cmd.ErrOrStderr()); err != nil {
				if n > 0 {
					return errors.New("download failed")
				}
				return fmt.Errorf("download failed: %w", err)
			}
			if result.Missing {
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", result.Path, result.Size)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory to save state.json in")
	return cmd
}
