package share

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// tokenAlphabet and tokenLength shape the random path segment of a link.
const (
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	tokenLength   = 16
)

// ServerOptions configures NewServer.
type ServerOptions struct {
	// Token, when set, is the bearer credential POST requests must carry.
	Token string
	// BaseURL prefixes returned links. Empty = derived from the request host.
	BaseURL string
	// DefaultTTL applies when a request carries none; MaxTTL caps requests.
	DefaultTTL time.Duration
	MaxTTL     time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
}

type storedDoc struct {
	body      json.RawMessage
	createdAt time.Time
	expiresAt time.Time
}

// Server is an in-memory ephemeral timesheet store. Documents are readable
// any number of times until their TTL elapses, then gone for good.
type Server struct {
	mu   sync.Mutex
	docs map[string]storedDoc

	token      string
	baseURL    string
	defaultTTL time.Duration
	maxTTL     time.Duration
	now        func() time.Time
	logger     *slog.Logger
	mux        *http.ServeMux
}

// NewServer creates a Server.
func NewServer(opts ServerOptions) *Server {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 24 * time.Hour
	}
	if opts.MaxTTL <= 0 {
		opts.MaxTTL = 30 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		docs:       map[string]storedDoc{},
		token:      opts.Token,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		defaultTTL: opts.DefaultTTL,
		maxTTL:     opts.MaxTTL,
		now:        opts.Now,
		logger:     opts.Logger,
		mux:        http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /timesheets", s.handlePublish)
	s.mux.HandleFunc("GET /timesheets/{token}", s.handleFetch)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Sweep()
	s.mux.ServeHTTP(w, r)
}

// Sweep drops every expired document and returns how many were removed.
func (s *Server) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for token, d := range s.docs {
		if !now.Before(d.expiresAt) {
			delete(s.docs, token)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("swept expired timesheets", "count", removed)
	}
	return removed
}

// Len returns the number of stored documents, expired or not.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
		return
	}
	var req struct {
		TTLSeconds int64           `json:"ttl_seconds"`
		Document   json.RawMessage `json:"document"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Document) == 0 || string(req.Document) == "null" {
		writeError(w, http.StatusBadRequest, "document is required")
		return
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if ttl > s.maxTTL {
		ttl = s.maxTTL
	}

	token, err := newToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generating token")
		return
	}
	now := s.now().UTC()
	doc := storedDoc{body: req.Document, createdAt: now, expiresAt: now.Add(ttl)}

	s.mu.Lock()
	s.docs[token] = doc
	s.mu.Unlock()

	link := Link{
		Token:     token,
		URL:       s.linkBase(r) + "/timesheets/" + token,
		CreatedAt: doc.createdAt,
		ExpiresAt: doc.expiresAt,
	}
	s.logger.Info("stored timesheet", "token", token, "expires_at", link.ExpiresAt)
	writeJSON(w, http.StatusCreated, link)
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	now := s.now()

	s.mu.Lock()
	doc, ok := s.docs[token]
	if ok && !now.Before(doc.expiresAt) {
		delete(s.docs, token)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "timesheet not found or expired")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.body)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.token == "" {
		return true
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) == 1
}

func (s *Server) linkBase(r *http.Request) string {
	if s.baseURL != "" {
		return s.baseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func newToken() (string, error) {
	buf := make([]byte, tokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(buf), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
