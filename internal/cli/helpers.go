package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/retribution/retctl/internal/config"
	"github.com/retribution/retctl/internal/core"
	"github.com/retribution/retctl/internal/events"
	"github.com/retribution/retctl/internal/http"
)

// loadConfig reads the config file and applies env and flag overrides.
// Priority: flags > environment > config file > defaults
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.ExpandHome(cfgFile))
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	cfg.MergeWithFlags(serverURL, credentialFile, timeout)
	return cfg, nil
}

// newEngine loads the config, prompts for a proxy password when one is
// needed, and builds an engine.
func newEngine(opts core.Options) (*core.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if http.NeedsProxyPassword(cfg) {
		pw, err := promptPassword(fmt.Sprintf("Proxy password for %s@%s: ", cfg.ProxyUser, cfg.ProxyHost))
		if err != nil {
			return nil, fmt.Errorf("failed to read proxy password: %w", err)
		}
		cfg.ProxyPassword = pw
	}

	if opts.Logger == nil {
		opts.Logger = GetLogger()
	}
	return core.NewEngine(cfg, opts)
}

// stdinReader is shared so that buffered input is not lost between prompts.
var stdinReader = bufio.NewReader(os.Stdin)

// promptLine prints prompt to stderr and reads one line from stdin.
func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := stdinReader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads a secret without echo when stdin is a terminal and
// falls back to a plain line read otherwise.
func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptLine(prompt)
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// alertPrinter collects the alerts raised while a command runs so they can be
// shown after it returns.
type alertPrinter struct {
	ch <-chan events.Event
}

func watchAlerts(engine *core.Engine) *alertPrinter {
	return &alertPrinter{ch: engine.Events().Subscribe(events.EventAlert)}
}

// flush writes every pending alert to w and returns how many there were.
func (p *alertPrinter) flush(w io.Writer) int {
	n := 0
	for {
		select {
		case e, ok := <-p.ch:
			if !ok {
				return n
			}
			n++
			alert := e.(*events.AlertEvent)
			prefix := "Error: "
			if alert.Severity == events.SeverityInfo {
				prefix = ""
			}
			fmt.Fprintln(w, prefix+alert.Message)
		default:
			return n
		}
	}
}
