// Package testbackend is an in-process fake of the control backend used by
// tests. It speaks the same endpoints, status payload and {"detail": ...}
// error shape as the real service and records every request it receives.
package testbackend

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/retribution/retctl/internal/constants"
	"github.com/retribution/retctl/internal/models"
)

// LoginPartial and ControlPartial are the fragments served under /partials/.
const (
	LoginPartial   = `<section id="login"><h2>Retribution Login</h2><form><input name="username"><input name="password" type="password"></form></section>`
	ControlPartial = `<section id="control"><h2>Retribution Server Control</h2><button id="power"></button><button id="upload"></button></section>`
)

// Upload describes one accepted mission upload.
type Upload struct {
	User     string
	Filename string
	Size     int64
}

// Backend is a fake control backend.
type Backend struct {
	mu sync.Mutex

	users    map[string]string
	running  bool
	uptime   string
	allowed  []string
	maxSize  float64
	state    []byte
	uploads  []Upload
	requests map[string]int
	failures map[string]failure
	hooks    map[string]func(*http.Request)

	server *httptest.Server
}

type failure struct {
	code   int
	detail string
}

// New starts a backend with one user ("ops"/"secret123"), a stopped server
// and no state artifact.
func New() *Backend {
	b := &Backend{
		users:    map[string]string{"ops": "secret123"},
		uptime:   "N/A",
		allowed:  []string{"retribution_nextturn.miz"},
		maxSize:  500,
		requests: make(map[string]int),
		failures: make(map[string]failure),
		hooks:    make(map[string]func(*http.Request)),
	}
	b.server = httptest.NewServer(b.router())
	return b
}

// URL returns the base URL of the backend.
func (b *Backend) URL() string {
	return b.server.URL
}

// Close shuts the server down.
func (b *Backend) Close() {
	b.server.Close()
}

func (b *Backend) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(b.record)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(b.inject)
	api.HandleFunc("/auth/validate", b.requireAuth(b.handleValidate)).Methods(http.MethodGet)
	api.HandleFunc("/status", b.requireAuth(b.handleStatus)).Methods(http.MethodGet)
	api.HandleFunc("/server/start", b.requireAuth(b.handlePower(true))).Methods(http.MethodPost)
	api.HandleFunc("/server/stop", b.requireAuth(b.handlePower(false))).Methods(http.MethodPost)
	api.HandleFunc("/files/upload_miz", b.requireAuth(b.handleUpload)).Methods(http.MethodPost)
	api.HandleFunc("/files/state.json", b.requireAuth(b.handleState)).Methods(http.MethodGet)

	r.HandleFunc("/partials/{name}", b.handlePartial).Methods(http.MethodGet)
	return r
}

// SetUser adds or replaces a user.
func (b *Backend) SetUser(username, password string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[username] = password
}

// RemoveUser deletes a user, so its credential starts getting 401s.
func (b *Backend) RemoveUser(username string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.users, username)
}

// SetRunning sets the server process state.
func (b *Backend) SetRunning(running bool, uptime string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = running
	b.uptime = uptime
	if !running {
		b.uptime = "N/A"
	}
}

// Running reports the server process state.
func (b *Backend) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// SetUploadPolicy sets the allowed file names and size limit (MB). An empty
// non-nil names is sent as [] and a nil one as null.
func (b *Backend) SetUploadPolicy(names []string, maxSizeMB float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allowed = slices.Clone(names)
	b.maxSize = maxSizeMB
}

// SetState sets the state artifact. nil means "not produced yet" (404).
func (b *Backend) SetState(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = data
}

// Fail makes every request to path answer with code and {"detail": detail}.
// A code of 0 clears the failure.
func (b *Backend) Fail(path string, code int, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if code == 0 {
		delete(b.failures, path)
		return
	}
	b.failures[path] = failure{code: code, detail: detail}
}

// Hook registers fn to run before requests to path are answered. Tests use it
// to hold a response back and reorder replies.
func (b *Backend) Hook(path string, fn func(*http.Request)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if fn == nil {
		delete(b.hooks, path)
		return
	}
	b.hooks[path] = fn
}

// Requests returns how many requests reached "METHOD path".
func (b *Backend) Requests(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[method+" "+path]
}

// TotalRequests returns the number of requests to /api/v1.
func (b *Backend) TotalRequests() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for k, v := range b.requests {
		if strings.Contains(k, " /api/v1/") {
			n += v
		}
	}
	return n
}

// Uploads returns the accepted uploads.
func (b *Backend) Uploads() []Upload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Upload(nil), b.uploads...)
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests[r.Method+" "+r.URL.Path]++
		hook := b.hooks[r.URL.Path]
		b.mu.Unlock()

		if hook != nil {
			hook(r)
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		f, ok := b.failures[r.URL.Path]
		b.mu.Unlock()
		if ok {
			writeDetail(w, f.code, f.detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type userHandler func(w http.ResponseWriter, r *http.Request, user string)

func (b *Backend) requireAuth(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		payload, ok := strings.CutPrefix(header, "Basic ")
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Authorization header missing or invalid")
			return
		}
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Invalid Authorization header format")
			return
		}
		user, pass, ok := strings.Cut(string(raw), ":")
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Invalid Authorization header format")
			return
		}

		b.mu.Lock()
		want, known := b.users[user]
		b.mu.Unlock()
		if !known || want != pass {
			writeDetail(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		h(w, r, user)
	}
}

func (b *Backend) handleValidate(w http.ResponseWriter, r *http.Request, user string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Authentication valid", "user": user})
}

func (b *Backend) handleStatus(w http.ResponseWriter, r *http.Request, user string) {
	b.mu.Lock()
	st := models.ServerStatus{
		Status:           constants.StatusStopped,
		Uptime:           b.uptime,
		AllowedFilenames: slices.Clone(b.allowed),
		AllowedMaxSizeMB: b.maxSize,
	}
	if b.running {
		st.Status = constants.StatusRunning
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, st)
}

func (b *Backend) handlePower(start bool) userHandler {
	return func(w http.ResponseWriter, r *http.Request, user string) {
		b.mu.Lock()
		b.running = start
		if start {
			b.uptime = "0:00:01"
		} else {
			b.uptime = "N/A"
		}
		b.mu.Unlock()

		msg := "DCS server stopped successfully"
		if start {
			msg = "DCS server started successfully"
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": msg})
	}
}

func (b *Backend) handleUpload(w http.ResponseWriter, r *http.Request, user string) {
	file, header, err := r.FormFile(constants.UploadFormField)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "file field required")
		return
	}
	defer file.Close()

	b.mu.Lock()
	allowed := slices.Clone(b.allowed)
	running := b.running
	b.mu.Unlock()

	if !slices.Contains(allowed, header.Filename) {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Invalid file name: %s", header.Filename))
		return
	}
	if running {
		writeDetail(w, http.StatusForbidden, "Permission denied to save file.\nIs the current mission file being used?")
		return
	}

	n, err := io.Copy(io.Discard, file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	b.mu.Lock()
	b.uploads = append(b.uploads, Upload{User: user, Filename: header.Filename, Size: n})
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("File '%s' uploaded successfully", header.Filename)})
}

func (b *Backend) handleState(w http.ResponseWriter, r *http.Request, user string) {
	b.mu.Lock()
	data := b.state
	b.mu.Unlock()

	if data == nil {
		writeDetail(w, http.StatusNotFound, "state.json file not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="state.json"`)
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (b *Backend) handlePartial(w http.ResponseWriter, r *http.Request) {
	var body string
	switch mux.Vars(r)["name"] {
	case constants.PartialLogin:
		body = LoginPartial
	case constants.PartialControl:
		body = ControlPartial
	default:
		http.NotFound(w, r)
		return
	}

	b.mu.Lock()
	f, failed := b.failures[r.URL.Path]
	b.mu.Unlock()
	if failed {
		http.Error(w, f.detail, f.code)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, body)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}
