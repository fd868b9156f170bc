package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"strings"
	"testing"

	"github.com/retribution/retctl/internal/config"
	"github.com/retribution/retctl/internal/constants"
	"github.com/retribution/retctl/internal/credstore"
	"github.com/retribution/retctl/internal/http"
	"github.com/retribution/retctl/internal/models"
	"github.com/retribution/retctl/internal/testbackend"
)

func newTestClient(t *testing.T, b *testbackend.Backend, cred models.Credential) (*Client, *credstore.MemoryStore) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.ServerURL = b.URL()
	cfg.RetryMax = 0

	store := credstore.NewMemoryStore()
	if cred != "" {
		_ = store.Set(cred)
	}
	client, err := NewClient(cfg, store, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client, store
}

// TestNewClientRejectsEmptyServerURL verifies that NewClient fails early
// instead of producing "unsupported protocol scheme" errors on every request.
func TestNewClientRejectsEmptyServerURL(t *testing.T) {
	cfg := config.NewConfig()
	_, err := NewClient(cfg, credstore.NewMemoryStore(), nil)
	if err == nil {
		t.Fatal("NewClient() should return error for empty ServerURL")
	}
	if !strings.Contains(err.Error(), "server URL is empty") {
		t.Errorf("NewClient() error = %q", err.Error())
	}
}

func TestValidateAuth(t *testing.T) {
	b := testbackend.New()
	defer b.Close()

	client, _ := newTestClient(t, b, models.NewCredential("ops", "secret123"))
	if err := client.ValidateAuth(context.Background()); err != nil {
		t.Fatalf("ValidateAuth() error = %v", err)
	}

	bad, _ := newTestClient(t, b, models.NewCredential("ops", "wrong"))
	err := bad.ValidateAuth(context.Background())
	if !IsUnauthorized(err) {
		t.Fatalf("ValidateAuth() error = %v, want unauthorized", err)
	}
	if Classify(err) != http.ErrorTypeAuthFailure {
		t.Errorf("Classify() = %s", Classify(err))
	}
	if DetailOf(err) != "Invalid username or password" {
		t.Errorf("DetailOf() = %q", DetailOf(err))
	}
}

func TestValidateAuth_NoCredentialSkipsNetwork(t *testing.T) {
	b := testbackend.New()
	defer b.Close()

	client, _ := newTestClient(t, b, "")
	err := client.ValidateAuth(context.Background())
	if !errors.Is(err, ErrNoCredential) || !IsUnauthorized(err) {
		t.Fatalf("ValidateAuth() error = %v, want ErrNoCredential", err)
	}
	if n := b.TotalRequests(); n != 0 {
		t.Errorf("backend saw %d requests, want 0", n)
	}
}

func TestGetStatus(t *testing.T) {
	b := testbackend.New()
	defer b.Close()
	b.SetUploadPolicy([]string{"retribution_nextturn.miz", "liberation_nextturn.miz"}, 500)
	b.SetRunning(true, "1:02:03")

	client, _ := newTestClient(t, b, models.NewCredential("ops", "secret123"))
	status, err := client.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if !status.IsRunning() || status.Uptime != "1:02:03" {
		t.Errorf("status = %+v", status)
	}
	if len(status.AllowedFilenames) != 2 || status.AllowedMaxSizeMB != 500 {
		t.Errorf("upload policy = %v / %v", status.AllowedFilenames, status.AllowedMaxSizeMB)
	}
}

func TestGetStatus_ServerError(t *testing.T) {
	b := testbackend.New()
	defer b.Close()
	b.Fail(constants.PathStatus, nethttp.StatusInternalServerError, "boom")

	client, _ := newTestClient(t, b, models.NewCredential("ops", "secret123"))
	_, err := client.GetStatus(context.Background())

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != 500 || httpErr.Detail != "boom" {
		t.Errorf("HTTPError = %+v", httpErr)
	}
	if Classify(err) != http.ErrorTypeGenericHTTP {
		t.Errorf("Classify() = %s", Classify(err))
	}
}

func TestStartStop(t *testing.T) {
	b := testbackend.New()
	defer b.Close()

	client, _ := newTestClient(t, b, models.NewCredential("ops", "secret123"))
	ctx := context.Background()

	if err := client.StartServer(ctx); err != nil {
		t.Fatalf("StartServer() error = %v", err)
	}
	if !b.Running() {
		t.Error("backend should be running after start")
	}
	if err := client.StopServer(ctx); err != nil {
		t.Fatalf("StopServer() error = %v", err)
	}
	if b.Running() {
		t.Error("backend should be stopped after stop")
	}
}

func TestCommandsAreNotRetried(t *testing.T) {
	b := testbackend.New()
	defer b.Close()
	b.Fail(constants.PathServerStart, nethttp.StatusServiceUnavailable, "busy")

	cfg := config.NewConfig()
	cfg.ServerURL = b.URL()
	cfg.RetryMax = 3
	store := credstore.NewMemoryStore()
	_ = store.Set(models.NewCredential("ops", "secret123"))
	client, err := NewClient(cfg, store, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := client.StartServer(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if n := b.Requests(nethttp.MethodPost, constants.PathServerStart); n != 1 {
		t.Errorf("start requests = %d, want 1", n)
	}
}

func TestUploadMission(t *testing.T) {
	b := testbackend.New()
	defer b.Close()

	client, _ := newTestClient(t, b, models.NewCredential("ops", "secret123"))
	payload := bytes.Repeat([]byte("miz"), 10000)

	err := client.UploadMission(context.Background(), "retribution_nextturn.miz", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("UploadMission() error = %v", err)
	}

	uploads := b.Uploads()
	if len(uploads) != 1 {
		t.Fatalf("uploads = %d, want 1", len(uploads))
	}
	if uploads[0].Filename != "retribution_nextturn.miz" || uploads[0].Size != int64(len(payload)) || uploads[0].User != "ops" {
		t.Errorf("upload = %+v", uploads[0])
	}
}

func TestUploadMission_ServerRejection(t *testing.T) {
	b := testbackend.New()
	defer b.Close()
	b.SetRunning(true, "0:10:00")

	client, _ := newTestClient(t, b, models.NewCredential("ops", "secret123"))
	err := client.UploadMission(context.Background(), "retribution_nextturn.miz", strings.NewReader("x"))

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 403 {
		t.Fatalf("error = %v, want HTTP 403", err)
	}
	if !strings.Contains(httpErr.Detail, "Permission denied") {
		t.Errorf("Detail = %q", httpErr.Detail)
	}
}

func TestDownloadState(t *testing.T) {
	b := testbackend.New()
	defer b.Close()

	client, _ := newTestClient(t, b, models.NewCredential("ops", "secret123"))

	_, _, err := client.DownloadState(context.Background())
	if !IsNotFound(err) {
		t.Fatalf("DownloadState() error = %v, want not found", err)
	}
	if Classify(err) != http.ErrorTypeNotFoundSoft {
		t.Errorf("Classify() = %s, want not_found_soft", Classify(err))
	}

	b.SetState([]byte(`{"turn":3}`))
	body, size, err := client.DownloadState(context.Background())
	if err != nil {
		t.Fatalf("DownloadState() error = %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != `{"turn":3}` || size != int64(len(data)) {
		t.Errorf("body = %q, size = %d", data, size)
	}
}

func TestFetchPartial(t *testing.T) {
	b := testbackend.New()
	defer b.Close()

	client, _ := newTestClient(t, b, "")
	html, err := client.FetchPartial(context.Background(), constants.PartialControl)
	if err != nil {
		t.Fatalf("FetchPartial() error = %v", err)
	}
	if html != testbackend.ControlPartial {
		t.Errorf("partial = %q", html)
	}

	if _, err := client.FetchPartial(context.Background(), "missing.html"); !IsNotFound(err) {
		t.Errorf("FetchPartial(missing) error = %v, want not found", err)
	}
}

func TestCredentialReadPerRequest(t *testing.T) {
	b := testbackend.New()
	defer b.Close()

	client, store := newTestClient(t, b, models.NewCredential("ops", "wrong"))
	if err := client.ValidateAuth(context.Background()); !IsUnauthorized(err) {
		t.Fatalf("expected 401, got %v", err)
	}

	_ = store.Set(models.NewCredential("ops", "secret123"))
	if err := client.ValidateAuth(context.Background()); err != nil {
		t.Fatalf("ValidateAuth() after credential change error = %v", err)
	}
}

func TestOpIDContext(t *testing.T) {
	ctx := WithOpID(context.Background(), "abc")
	if OpID(ctx) != "abc" {
		t.Errorf("OpID() = %q", OpID(ctx))
	}
	if OpID(context.Background()) != "" {
		t.Error("OpID() on bare context should be empty")
	}
	if len(NewOpID()) != 36 {
		t.Errorf("NewOpID() = %q, want a UUID", NewOpID())
	}
}
