package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/http2"

	"github.com/retribution/retctl/internal/config"
	"github.com/retribution/retctl/internal/constants"
	"github.com/retribution/retctl/internal/logging"
)

// retryLogger adapts retryablehttp's leveled logger to zerolog.
// Info and Debug chatter is demoted to debug.
type retryLogger struct {
	logger *logging.Logger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg("[retry] " + msg)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg("[retry] " + msg)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("[retry] " + msg)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("[retry] " + msg)
}

// NewRetryClient wraps base in a retryablehttp client for idempotent reads
// (validation, status, partials). Retries cover connection errors, 429 and 5xx;
// 401 and 404 are never retried. When retries are exhausted the last response is
// handed back unchanged so it can be classified like any other.
//
// Commands (start, stop, upload) must not go through this client: a retried
// POST could start the server twice.
func NewRetryClient(base *nethttp.Client, retryMax int, logger *logging.Logger) *nethttp.Client {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if retryMax < 0 {
		retryMax = 0
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = base
	rc.RetryMax = retryMax
	rc.RetryWaitMin = constants.RetryWaitMin
	rc.RetryWaitMax = constants.RetryWaitMax
	rc.CheckRetry = retryablehttp.DefaultRetryPolicy
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = retryLogger{logger: logger}

	client := rc.StandardClient()
	client.Timeout = 0 // the per-attempt timeout lives on base
	return client
}

// CreateTransferClient creates the client used for mission uploads and state
// downloads: the configured proxy client with compression off and HTTP/2
// enabled unless a proxy is in the path.
//
// Set DISABLE_HTTP2=true to force HTTP/1.1.
func CreateTransferClient(cfg *config.Config, logger *logging.Logger) (*nethttp.Client, error) {
	baseClient, err := ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	tr, ok := baseClient.Transport.(*nethttp.Transport)
	if !ok {
		// NTLM wraps the transport in a negotiator; use it as-is
		return baseClient, nil
	}

	tr = tr.Clone()
	tr.DisableCompression = true // .miz files are already zip archives
	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	// Proxies often mishandle HTTP/2 streams mid-transfer
	proxyActive := false
	switch cfg.ProxyMode {
	case "no-proxy", "":
	case "system":
		proxyActive = os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
			os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	default:
		proxyActive = true
	}

	if os.Getenv("DISABLE_HTTP2") == "true" || proxyActive {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	baseClient.Transport = tr
	return baseClient, nil
}
