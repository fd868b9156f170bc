package control

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/retribution/retctl/internal/api"
	"github.com/retribution/retctl/internal/constants"
	"github.com/retribution/retctl/internal/diskspace"
	"github.com/retribution/retctl/internal/events"
	"github.com/retribution/retctl/internal/http"
	"github.com/retribution/retctl/internal/logging"
	"github.com/retribution/retctl/internal/progress"
)

// CommandAPI is the part of the backend the dispatcher drives.
type CommandAPI interface {
	StartServer(ctx context.Context) error
	StopServer(ctx context.Context) error
	UploadMission(ctx context.Context, filename string, r io.Reader) error
	DownloadState(ctx context.Context) (io.ReadCloser, int64, error)
}

// DownloadResult describes a finished download. Missing is set when the
// server had no state artifact to give; Path is empty in that case.
type DownloadResult struct {
	Path    string
	Size    int64
	Missing bool
}

// Dispatcher runs operator commands. Every command holds the busy indicator
// for its whole duration and ends with a status refresh when it succeeds.
type Dispatcher struct {
	api      CommandAPI
	sync     *Synchronizer
	auth     AuthFailureHandler
	busy     *Busy
	bus      *events.EventBus
	logger   *logging.Logger
	progress progress.Factory
}

// NewDispatcher creates a dispatcher that resyncs through sync.
func NewDispatcher(commands CommandAPI, sync *Synchronizer, auth AuthFailureHandler, busy *Busy, opts Options) *Dispatcher {
	opts = opts.withDefaults()
	if busy == nil {
		busy = sync.busy
	}
	return &Dispatcher{
		api:      commands,
		sync:     sync,
		auth:     auth,
		busy:     busy,
		bus:      opts.Bus,
		logger:   opts.Logger,
		progress: opts.Progress,
	}
}

// SetProgressFactory replaces how transfer progress is reported.
func (d *Dispatcher) SetProgressFactory(f progress.Factory) {
	if f == nil {
		f = progress.NoOpFactory()
	}
	d.progress = f
}

// run executes one command: busy on, request, resync on success, busy off.
// A 401 from the request goes to the auth failure handler.
func (d *Dispatcher) run(ctx context.Context, op string, fn func(ctx context.Context, logger *logging.Logger) error) error {
	release := d.busy.Acquire()
	defer release()

	if api.OpID(ctx) == "" {
		ctx = api.WithOpID(ctx, api.NewOpID())
	}
	logger := d.logger.WithOp(api.OpID(ctx), op)

	if err := fn(ctx, logger); err != nil {
		switch api.Classify(err) {
		case http.ErrorTypeAuthFailure:
			logger.Warn().Msg("Command unauthorized")
			if d.auth != nil {
				d.auth.HandleAuthFailure(ctx)
			}
		case http.ErrorTypeCanceled:
			logger.Debug().Msg("Command canceled")
		}
		return err
	}

	d.sync.Refresh(ctx)
	return nil
}

// TogglePower stops the server if the last known status says it is running
// and starts it otherwise.
func (d *Dispatcher) TogglePower(ctx context.Context) error {
	if d.sync.Current().IsRunning() {
		return d.Stop(ctx)
	}
	return d.Start(ctx)
}

// Start asks the backend to start the DCS server. Failures are logged only.
func (d *Dispatcher) Start(ctx context.Context) error {
	return d.run(ctx, "start", func(ctx context.Context, logger *logging.Logger) error {
		if err := d.api.StartServer(ctx); err != nil {
			if reportable(api.Classify(err)) {
				logger.Error().Err(err).Msg("Failed to start server")
			}
			return err
		}
		logger.Info().Msg("Server start requested")
		return nil
	})
}

// Stop asks the backend to stop the DCS server. Failures are logged only.
func (d *Dispatcher) Stop(ctx context.Context) error {
	return d.run(ctx, "stop", func(ctx context.Context, logger *logging.Logger) error {
		if err := d.api.StopServer(ctx); err != nil {
			if reportable(api.Classify(err)) {
				logger.Error().Err(err).Msg("Failed to stop server")
			}
			return err
		}
		logger.Info().Msg("Server stop requested")
		return nil
	})
}

// Upload validates the file at path against the last known upload policy and
// sends it. A rejected file raises an alert and nothing is sent.
func (d *Dispatcher) Upload(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		d.bus.PublishAlert(events.SeverityError, "upload", fmt.Sprintf("Cannot read %s: %v", path, err))
		return fmt.Errorf("failed to stat upload file: %w", err)
	}
	if info.IsDir() {
		err := &ValidationError{Message: fmt.Sprintf("Invalid file: %s.", info.Name())}
		d.bus.PublishAlert(events.SeverityError, "upload", err.Message)
		return err
	}

	name := filepath.Base(path)
	var allowed []string
	var maxSizeMB float64
	if status := d.sync.Current(); status != nil {
		allowed = status.AllowedFilenames
		maxSizeMB = status.AllowedMaxSizeMB
	}
	if err := ValidateUpload(FileInfo{Name: name, Size: info.Size()}, allowed, maxSizeMB); err != nil {
		d.logger.Info().Str("file", name).Msg(err.Error())
		d.bus.PublishAlert(events.SeverityError, "upload", err.Error())
		return err
	}

	return d.run(ctx, "upload", func(ctx context.Context, logger *logging.Logger) error {
		f, err := os.Open(path)
		if err != nil {
			d.bus.PublishAlert(events.SeverityError, "upload", constants.MsgUploadFailed)
			return fmt.Errorf("failed to open upload file: %w", err)
		}
		defer f.Close()

		reporter := d.progress(name, "upload")
		reporter.Start(info.Size(), "Uploading "+name)

		err = d.api.UploadMission(ctx, name, progress.NewProgressReader(f, reporter))
		if err != nil {
			reporter.Error(err)
			if reportable(api.Classify(err)) {
				logger.Error().Err(err).Str("file", name).Msg("Upload failed")
				d.bus.PublishAlert(events.SeverityError, "upload", withDetail(constants.MsgUploadFailed, err))
			}
			return err
		}
		reporter.Finish()

		logger.Info().Str("file", name).Int64("bytes", info.Size()).Msg("Mission uploaded")
		return nil
	})
}

// Download saves the server's state artifact as state.json in destDir.
// A missing artifact raises an informational alert and is not an error.
func (d *Dispatcher) Download(ctx context.Context, destDir string) (DownloadResult, error) {
	var result DownloadResult

	err := d.run(ctx, "download", func(ctx context.Context, logger *logging.Logger) error {
		body, size, err := d.api.DownloadState(ctx)
		if err != nil {
			switch api.Classify(err) {
			case http.ErrorTypeNotFoundSoft:
				logger.Info().Msg("No state artifact on server")
				d.bus.PublishAlert(events.SeverityInfo, "download", constants.MsgStateNotFound)
				result.Missing = true
				return nil
			case http.ErrorTypeAuthFailure, http.ErrorTypeCanceled:
			default:
				logger.Error().Err(err).Msg("Download failed")
				d.bus.PublishAlert(events.SeverityError, "download", withDetail(constants.MsgDownloadFailed, err))
			}
			return err
		}
		defer body.Close()

		path, written, err := d.save(body, size, destDir)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to save state artifact")
			d.bus.PublishAlert(events.SeverityError, "download", constants.MsgDownloadFailed+"\n"+err.Error())
			return err
		}

		logger.Info().Str("path", path).Int64("bytes", written).Msg("State artifact saved")
		result.Path = path
		result.Size = written
		return nil
	})

	return result, err
}

// save writes body to a temporary file in destDir and renames it to
// state.json once complete, so a failed transfer never leaves a partial
// state.json behind.
func (d *Dispatcher) save(body io.Reader, size int64, destDir string) (string, int64, error) {
	if destDir == "" {
		destDir = "."
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create download directory: %w", err)
	}

	target := filepath.Join(destDir, constants.StateArtifactName)
	if size > 0 {
		if err := diskspace.CheckAvailableSpace(target, size, constants.DiskSpaceSafetyRatio); err != nil {
			return "", 0, err
		}
	}

	tmp, err := os.CreateTemp(destDir, ".state-*.json.part")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	reporter := d.progress(constants.StateArtifactName, "download")
	reporter.Start(size, "Downloading "+constants.StateArtifactName)

	written, err := io.Copy(tmp, progress.NewProgressReader(body, reporter))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		reporter.Error(err)
		return "", 0, fmt.Errorf("failed to write state artifact: %w", err)
	}
	reporter.Finish()

	if err := os.Rename(tmpPath, target); err != nil {
		return "", 0, fmt.Errorf("failed to move state artifact into place: %w", err)
	}
	return target, written, nil
}

// reportable reports whether a failure of class t is reported by the command
// itself. Auth failures are handled by re-authentication and cancellations
// are the operator's own doing.
func reportable(t http.ErrorType) bool {
	return t != http.ErrorTypeAuthFailure && t != http.ErrorTypeCanceled
}

// withDetail appends the server's detail message, when it sent one.
func withDetail(msg string, err error) string {
	if detail := api.DetailOf(err); detail != "" {
		return msg + "\n" + detail
	}
	return msg
}
