package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/retribution/retctl/internal/config"
	"github.com/retribution/retctl/internal/constants"
	"github.com/retribution/retctl/internal/credstore"
	"github.com/retribution/retctl/internal/http"
	"github.com/retribution/retctl/internal/logging"
	"github.com/retribution/retctl/internal/models"
)

// Client talks to the control backend.
//
// The credential is read from the store on every request, so a login or a
// cleared credential takes effect on the next call without rebuilding the client.
type Client struct {
	baseURL        string
	creds          credstore.Store
	readClient     *nethttp.Client // GETs, retried
	commandClient  *nethttp.Client // POSTs, never retried
	transferClient *nethttp.Client // Uploads and downloads
	logger         *logging.Logger
}

// NewClient creates a new API client
func NewClient(cfg *config.Config, creds credstore.Store, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.ServerURL) == "" {
		return nil, fmt.Errorf("server URL is empty")
	}
	if creds == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	baseClient, err := http.ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}
	transferClient, err := http.CreateTransferClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure transfer client: %w", err)
	}

	return &Client{
		baseURL:        strings.TrimSuffix(cfg.ServerURL, "/"),
		creds:          creds,
		readClient:     http.NewRetryClient(baseClient, cfg.RetryMax, logger),
		commandClient:  baseClient,
		transferClient: transferClient,
		logger:         logger,
	}, nil
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type opIDKey struct{}

// WithOpID attaches a correlation id to ctx. It is sent as X-Request-ID and
// logged with every request made under ctx.
func WithOpID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, opIDKey{}, id)
}

// OpID returns the correlation id carried by ctx, or "".
func OpID(ctx context.Context) string {
	id, _ := ctx.Value(opIDKey{}).(string)
	return id
}

// NewOpID returns a fresh correlation id.
func NewOpID() string {
	return uuid.NewString()
}

// request describes one backend call.
type request struct {
	method      string
	path        string
	auth        bool
	body        io.Reader
	contentType string
	accept      string
	client      *nethttp.Client
}

// do performs the request and returns the response for 2xx statuses.
// Any other status is turned into an *HTTPError and the body is closed.
func (c *Client) do(ctx context.Context, r request) (*nethttp.Response, error) {
	req, err := nethttp.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, r.body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if r.auth {
		cred, ok := c.creds.Get()
		if !ok {
			return nil, ErrNoCredential
		}
		req.Header.Set("Authorization", cred.Header())
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.accept == "" {
		r.accept = "application/json"
	}
	req.Header.Set("Accept", r.accept)

	opID := OpID(ctx)
	if opID == "" {
		opID = NewOpID()
	}
	req.Header.Set(constants.RequestIDHeader, opID)

	client := r.client
	if client == nil {
		client = c.readClient
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		c.logger.Debug().
			Str("op_id", opID).
			Str("method", r.method).
			Str("path", r.path).
			Err(err).
			Msg("Request failed")
		return nil, fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}

	c.logger.Debug().
		Str("op_id", opID).
		Str("method", r.method).
		Str("path", r.path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, newHTTPError(r.method, r.path, resp.StatusCode, resp.Body)
	}
	return resp, nil
}

// doDiscard performs the request and drains the body.
func (c *Client) doDiscard(ctx context.Context, r request) error {
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// ValidateAuth checks the stored credential. A nil error means the backend
// accepted it; an invalid credential yields an error matching ErrUnauthorized.
func (c *Client) ValidateAuth(ctx context.Context) error {
	return c.doDiscard(ctx, request{
		method: nethttp.MethodGet,
		path:   constants.PathAuthValidate,
		auth:   true,
	})
}

// GetStatus fetches the current server status.
func (c *Client) GetStatus(ctx context.Context) (*models.ServerStatus, error) {
	resp, err := c.do(ctx, request{
		method: nethttp.MethodGet,
		path:   constants.PathStatus,
		auth:   true,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var status models.ServerStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	return &status, nil
}

// StartServer asks the backend to start the DCS server.
func (c *Client) StartServer(ctx context.Context) error {
	return c.doDiscard(ctx, request{
		method: nethttp.MethodPost,
		path:   constants.PathServerStart,
		auth:   true,
		client: c.commandClient,
	})
}

// StopServer asks the backend to stop the DCS server.
func (c *Client) StopServer(ctx context.Context) error {
	return c.doDiscard(ctx, request{
		method: nethttp.MethodPost,
		path:   constants.PathServerStop,
		auth:   true,
		client: c.commandClient,
	})
}

// UploadMission streams r to the backend as the multipart field "file" named
// filename. The body is produced on the fly, so r is read exactly once.
func (c *Client) UploadMission(ctx context.Context, filename string, r io.Reader) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile(constants.UploadFormField, filename)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()
	// Unblocks the writer if the request fails before the body is consumed
	defer pr.Close()

	return c.doDiscard(ctx, request{
		method:      nethttp.MethodPost,
		path:        constants.PathUploadMission,
		auth:        true,
		body:        pr,
		contentType: mw.FormDataContentType(),
		client:      c.transferClient,
	})
}

// DownloadState opens the state artifact. The caller must close the returned
// body. size is -1 when the backend does not send Content-Length. A missing
// artifact yields an error matching ErrNotFound.
func (c *Client) DownloadState(ctx context.Context) (body io.ReadCloser, size int64, err error) {
	resp, err := c.do(ctx, request{
		method: nethttp.MethodGet,
		path:   constants.PathStateArtifact,
		auth:   true,
		accept: "application/json, application/octet-stream",
		client: c.transferClient,
	})
	if err != nil {
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

// FetchPartial returns the HTML fragment for a UI mode. Partials are public.
func (c *Client) FetchPartial(ctx context.Context, name string) (string, error) {
	resp, err := c.do(ctx, request{
		method: nethttp.MethodGet,
		path:   constants.PathPartialPrefix + url.PathEscape(name),
		accept: "text/html",
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read partial %s: %w", name, err)
	}
	return string(data), nil
}
