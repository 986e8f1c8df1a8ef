// Package trackertest runs an in-memory Jira REST v2 server for tests.
package trackertest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Gabriell-Belmont/sam--product-management/internal/tracker"
)

// Credentials accepted by the server.
const (
	Email      = "pm@example.com"
	Token      = "test-token"
	ProjectKey = "PROJ"
	EpicField  = "customfield_10014"
)

// Link is a recorded issue link.
type Link struct {
	Type    string
	Inward  string
	Outward string
}

// Server is a fake tracker. Issues are keyed PROJ-1, PROJ-2, ... in
// creation order.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	seq      int
	issues   map[string]map[string]any
	links    []Link
	requests []string
	failOn   map[string]int
	lastJQL  string
}

// NewServer starts a server that is closed when the test ends.
func NewServer(tb testing.TB) *Server {
	tb.Helper()
	s := &Server{
		issues: make(map[string]map[string]any),
		failOn: make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rest/api/2/issue", s.create)
	mux.HandleFunc("GET /rest/api/2/issue/{key}", s.get)
	mux.HandleFunc("PUT /rest/api/2/issue/{key}", s.update)
	mux.HandleFunc("POST /rest/api/2/issueLink", s.link)
	mux.HandleFunc("POST /rest/api/2/search", s.search)
	mux.HandleFunc("GET /rest/api/2/myself", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"accountId": "42", "emailAddress": Email})
	})
	s.Server = httptest.NewServer(s.auth(mux))
	tb.Cleanup(s.Close)
	return s
}

// Config returns a client configuration pointing at the server.
func (s *Server) Config() tracker.Config {
	return tracker.Config{
		BaseURL:       s.URL,
		Email:         Email,
		APIToken:      Token,
		ProjectKey:    ProjectKey,
		EpicNameField: EpicField,
		EpicLinkField: EpicField,
		Timeout:       5 * time.Second,
	}
}

// FailCreate makes creation of an issue with summary fail with status.
func (s *Server) FailCreate(summary string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[summary] = status
}

// Issue returns a copy of the stored fields of key, or nil.
func (s *Server) Issue(key string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.issues[key]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// IssueCount returns the number of created issues.
func (s *Server) IssueCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.issues)
}

// Links returns the recorded issue links in order.
func (s *Server) Links() []Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Link(nil), s.links...)
}

// Requests returns "METHOD path" for every authenticated request.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// LastJQL returns the query of the most recent search.
func (s *Server) LastJQL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastJQL
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != Email || pass != Token {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"errorMessages": []string{"unauthorized"}})
			return
		}
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Fields map[string]any `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errorMessages": []string{err.Error()}})
		return
	}
	summary, _ := body.Fields["summary"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.failOn[summary]; ok {
		writeJSON(w, status, map[string]any{"errorMessages": []string{"cannot create " + summary}})
		return
	}
	if parent, ok := body.Fields["parent"].(map[string]any); ok {
		if _, exists := s.issues[fmt.Sprint(parent["key"])]; !exists {
			writeJSON(w, http.StatusBadRequest, map[string]any{"errors": map[string]any{"parent": "parent does not exist"}})
			return
		}
	}
	s.seq++
	key := fmt.Sprintf("%s-%d", ProjectKey, s.seq)
	body.Fields["status"] = map[string]any{"name": "To Do"}
	s.issues[key] = body.Fields
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":   fmt.Sprint(10000 + s.seq),
		"key":  key,
		"self": s.URL + "/rest/api/2/issue/" + key,
	})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.issues[key]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"errorMessages": []string{"Issue does not exist"}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "fields": f})
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	var body struct {
		Fields map[string]any `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errorMessages": []string{err.Error()}})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.issues[key]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"errorMessages": []string{"Issue does not exist"}})
		return
	}
	for k, v := range body.Fields {
		f[k] = v
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) link(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type    struct{ Name string } `json:"type"`
		Inward  struct{ Key string }  `json:"inwardIssue"`
		Outward struct{ Key string }  `json:"outwardIssue"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errorMessages": []string{err.Error()}})
		return
	}
	s.mu.Lock()
	s.links = append(s.links, Link{Type: body.Type.Name, Inward: body.Inward.Key, Outward: body.Outward.Key})
	s.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
}

// search matches the quoted text after "summary ~" as a case-insensitive
// substring of each summary.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var body struct {
		JQL        string `json:"jql"`
		MaxResults int    `json:"maxResults"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errorMessages": []string{err.Error()}})
		return
	}
	needle := ""
	if _, after, ok := strings.Cut(body.JQL, "summary ~ \""); ok {
		needle, _, _ = strings.Cut(after, "\"")
		needle = strings.ToLower(needle)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastJQL = body.JQL
	var issues []map[string]any
	for i := 1; i <= s.seq; i++ {
		key := fmt.Sprintf("%s-%d", ProjectKey, i)
		f, ok := s.issues[key]
		if !ok {
			continue
		}
		summary, _ := f["summary"].(string)
		if needle != "" && !strings.Contains(strings.ToLower(summary), needle) {
			continue
		}
		issues = append(issues, map[string]any{"key": key, "fields": f})
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": len(issues), "issues": issues})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
