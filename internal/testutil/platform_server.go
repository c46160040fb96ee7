package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Fake platform credentials accepted by PlatformServer.
const (
	PlatformClientID     = "client-id"
	PlatformClientSecret = "client-secret"
	PlatformUsername     = "FakeFurBot"
	PlatformPassword     = "hunter2"
)

// PlatformComment is a comment held by PlatformServer.
type PlatformComment struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	ParentID  string `json:"parent_id"`
	LinkID    string `json:"link_id"`
	Subreddit string `json:"subreddit"`
	Score     int    `json:"score"`
}

// PlatformReply records a reply posted through PlatformServer.
type PlatformReply struct {
	ParentID string
	Text     string
}

// PlatformServer is an httptest fake of the platform's OAuth and REST API.
type PlatformServer struct {
	*httptest.Server

	mu            sync.Mutex
	feed          []PlatformComment
	things        map[string]PlatformComment
	userComments  []PlatformComment
	replies       []PlatformReply
	deleted       []string
	failures      map[string][]int
	replyErrors   [][]interface{}
	tokenRequests int
	nextID        int
}

// NewPlatformServer starts a fake platform. Caller must call Close or
// register t.Cleanup(s.Close).
func NewPlatformServer() *PlatformServer {
	s := &PlatformServer{
		things:   make(map[string]PlatformComment),
		failures: make(map[string][]int),
	}
	r := chi.NewRouter()
	r.Post("/api/v1/access_token", s.token)
	r.Group(func(r chi.Router) {
		r.Use(s.requireBearer, s.injectFailures)
		r.Get("/r/{sub}/comments", s.subredditComments)
		r.Get("/api/info", s.info)
		r.Post("/api/comment", s.comment)
		r.Get("/user/{name}/comments", s.userCommentListing)
		r.Post("/api/del", s.del)
		r.Get("/api/v1/me", s.me)
	})
	s.Server = httptest.NewServer(r)
	return s
}

func withName(c PlatformComment) PlatformComment {
	if c.Name == "" {
		c.Name = "t1_" + c.ID
	}
	return c
}

// AddFeed appends comments to the subreddit feed. Later comments are newer.
// Added comments are also resolvable through the info endpoint.
func (s *PlatformServer) AddFeed(comments ...PlatformComment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range comments {
		c = withName(c)
		s.feed = append(s.feed, c)
		s.things[c.Name] = c
	}
}

// AddThing makes a comment resolvable through the info endpoint only.
func (s *PlatformServer) AddThing(c PlatformComment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c = withName(c)
	s.things[c.Name] = c
}

// SetUserComments sets the bot account's comment history, newest first.
func (s *PlatformServer) SetUserComments(comments ...PlatformComment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userComments = nil
	for _, c := range comments {
		s.userComments = append(s.userComments, withName(c))
	}
}

// FailNext makes the next requests to path answer with the given statuses,
// one per request.
func (s *PlatformServer) FailNext(path string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], statuses...)
}

// RejectReplies makes the comment endpoint answer with a JSON error
// envelope, as the platform does for rate limited accounts.
func (s *PlatformServer) RejectReplies(errs ...[]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replyErrors = errs
}

// Replies returns the replies posted so far.
func (s *PlatformServer) Replies() []PlatformReply {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PlatformReply(nil), s.replies...)
}

// Deleted returns the full names deleted so far.
func (s *PlatformServer) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// TokenRequests returns how many access tokens were issued.
func (s *PlatformServer) TokenRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenRequests
}

func (s *PlatformServer) token(w http.ResponseWriter, r *http.Request) {
	id, secret, ok := r.BasicAuth()
	if !ok || id != PlatformClientID || secret != PlatformClientSecret {
		writeFakeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}
	if err := r.ParseForm(); err != nil ||
		r.PostForm.Get("grant_type") != "password" ||
		r.PostForm.Get("username") != PlatformUsername ||
		r.PostForm.Get("password") != PlatformPassword {
		writeFakeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}

	s.mu.Lock()
	s.tokenRequests++
	n := s.tokenRequests
	s.mu.Unlock()

	writeFakeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": fmt.Sprintf("token-%d", n),
		"token_type":   "bearer",
		"expires_in":   3600,
		"scope":        "*",
	})
}

func (s *PlatformServer) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer token-") {
			writeFakeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *PlatformServer) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		queue := s.failures[r.URL.Path]
		status := 0
		if len(queue) > 0 {
			status = queue[0]
			s.failures[r.URL.Path] = queue[1:]
		}
		s.mu.Unlock()

		if status != 0 {
			writeFakeJSON(w, status, map[string]string{"message": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *PlatformServer) subredditComments(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r)
	s.mu.Lock()
	var out []PlatformComment
	for i := len(s.feed) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.feed[i])
	}
	s.mu.Unlock()
	writeFakeJSON(w, http.StatusOK, listingOf(out, ""))
}

func (s *PlatformServer) info(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	var out []PlatformComment
	for _, name := range strings.Split(r.URL.Query().Get("id"), ",") {
		if c, ok := s.things[name]; ok {
			out = append(out, c)
		}
	}
	s.mu.Unlock()
	writeFakeJSON(w, http.StatusOK, listingOf(out, ""))
}

func (s *PlatformServer) comment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeFakeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad form"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.replyErrors) > 0 {
		writeFakeJSON(w, http.StatusOK, map[string]interface{}{
			"json": map[string]interface{}{"errors": s.replyErrors},
		})
		return
	}

	s.nextID++
	reply := withName(PlatformComment{
		ID:       "reply" + strconv.Itoa(s.nextID),
		Author:   PlatformUsername,
		Body:     r.PostForm.Get("text"),
		ParentID: r.PostForm.Get("thing_id"),
	})
	s.replies = append(s.replies, PlatformReply{ParentID: reply.ParentID, Text: reply.Body})
	s.things[reply.Name] = reply

	writeFakeJSON(w, http.StatusOK, map[string]interface{}{
		"json": map[string]interface{}{
			"errors": []interface{}{},
			"data": map[string]interface{}{
				"things": []interface{}{map[string]interface{}{"kind": "t1", "data": reply}},
			},
		},
	})
}

func (s *PlatformServer) userCommentListing(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r)
	after := r.URL.Query().Get("after")

	s.mu.Lock()
	start := 0
	if after != "" {
		for i, c := range s.userComments {
			if c.Name == after {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(s.userComments) {
		end = len(s.userComments)
	}
	page := append([]PlatformComment(nil), s.userComments[start:end]...)
	next := ""
	if end < len(s.userComments) && len(page) > 0 {
		next = page[len(page)-1].Name
	}
	s.mu.Unlock()

	writeFakeJSON(w, http.StatusOK, listingOf(page, next))
}

func (s *PlatformServer) del(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeFakeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad form"})
		return
	}
	id := r.PostForm.Get("id")

	s.mu.Lock()
	s.deleted = append(s.deleted, id)
	kept := s.userComments[:0]
	for _, c := range s.userComments {
		if c.Name != id {
			kept = append(kept, c)
		}
	}
	s.userComments = kept
	s.mu.Unlock()

	writeFakeJSON(w, http.StatusOK, map[string]interface{}{})
}

func (s *PlatformServer) me(w http.ResponseWriter, _ *http.Request) {
	writeFakeJSON(w, http.StatusOK, map[string]string{"name": PlatformUsername})
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return 25
	}
	return limit
}

func listingOf(comments []PlatformComment, after string) map[string]interface{} {
	children := make([]interface{}, 0, len(comments))
	for _, c := range comments {
		children = append(children, map[string]interface{}{"kind": "t1", "data": c})
	}
	data := map[string]interface{}{"children": children, "after": nil}
	if after != "" {
		data["after"] = after
	}
	return map[string]interface{}{"kind": "Listing", "data": data}
}

func writeFakeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
