package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/retribution/retctl/internal/config"
	"github.com/retribution/retctl/internal/credstore"
	"github.com/retribution/retctl/internal/logging"
	"github.com/retribution/retctl/internal/models"
	"github.com/retribution/retctl/internal/testbackend"
)

// testEnv is an isolated config file, credential file and backend for one
// test run of the CLI.
type testEnv struct {
	backend    *testbackend.Backend
	configPath string
	credPath   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv(config.EnvServerURL, "")
	t.Setenv(config.EnvCredentialFile, "")

	b := testbackend.New()
	t.Cleanup(b.Close)

	dir := t.TempDir()
	env := &testEnv{
		backend:    b,
		configPath: filepath.Join(dir, "config.ini"),
		credPath:   filepath.Join(dir, "credential"),
	}

	cfg := config.NewConfig()
	cfg.ServerURL = b.URL()
	cfg.RetryMax = 0
	cfg.CredentialFile = env.credPath
	cfg.DownloadDir = dir
	if err := config.Save(cfg, env.configPath); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	return env
}

func (e *testEnv) storeCredential(t *testing.T, username, password string) {
	t.Helper()
	store := credstore.NewFileStore(e.credPath, logging.NewNopLogger())
	if err := store.Set(models.NewCredential(username, password)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
}

// run executes the root command with args and returns what it printed.
func (e *testEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	AddCommands(root)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", e.configPath}, args...))

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
