package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// CatalogPost is the post JSON served by CatalogServer.
type CatalogPost struct {
	ID     int64               `json:"id"`
	Rating string              `json:"rating"`
	Tags   map[string][]string `json:"tags"`
	File   CatalogFile         `json:"file"`
	Score  CatalogScore        `json:"score"`
}

// CatalogFile is a post's file block.
type CatalogFile struct {
	Ext string `json:"ext"`
	URL string `json:"url"`
}

// CatalogScore is a post's score block.
type CatalogScore struct {
	Up    int `json:"up"`
	Down  int `json:"down"`
	Total int `json:"total"`
}

// CatalogImplication is a tag implication row.
type CatalogImplication struct {
	ID             int64  `json:"id"`
	AntecedentName string `json:"antecedent_name"`
	ConsequentName string `json:"consequent_name"`
	Status         string `json:"status"`
}

// CatalogRequest records one request received by CatalogServer.
type CatalogRequest struct {
	Path      string
	Query     url.Values
	Terms     []string
	Username  string
	Password  string
	UserAgent string
}

// HasTerm reports whether the recorded search carried term.
func (r CatalogRequest) HasTerm(term string) bool {
	for _, t := range r.Terms {
		if t == term {
			return true
		}
	}
	return false
}

// CatalogServer is an httptest fake of the catalog API. Searches are
// answered by the search func given to NewCatalogServer.
type CatalogServer struct {
	*httptest.Server

	mu           sync.Mutex
	search       func(terms []string) []CatalogPost
	implications [][]CatalogImplication
	status       int
	requests     []CatalogRequest
}

// NewCatalogServer starts a fake catalog. search may be nil for a catalog
// with no posts. Caller must call Close or register t.Cleanup(s.Close).
func NewCatalogServer(search func(terms []string) []CatalogPost) *CatalogServer {
	s := &CatalogServer{search: search}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// SetImplications sets the implication listing pages, first page first.
func (s *CatalogServer) SetImplications(pages ...[]CatalogImplication) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.implications = pages
}

// FailWith makes every following request answer with status. Zero
// restores normal answers.
func (s *CatalogServer) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Requests returns the requests received so far.
func (s *CatalogServer) Requests() []CatalogRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CatalogRequest(nil), s.requests...)
}

// Searches returns the recorded post searches.
func (s *CatalogServer) Searches() []CatalogRequest {
	var out []CatalogRequest
	for _, r := range s.Requests() {
		if r.Path == "/posts.json" {
			out = append(out, r)
		}
	}
	return out
}

func (s *CatalogServer) handle(w http.ResponseWriter, r *http.Request) {
	user, pass, _ := r.BasicAuth()
	req := CatalogRequest{
		Path:      r.URL.Path,
		Query:     r.URL.Query(),
		Terms:     strings.Fields(r.URL.Query().Get("tags")),
		Username:  user,
		Password:  pass,
		UserAgent: r.UserAgent(),
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	status := s.status
	search := s.search
	pages := s.implications
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"success":false,"reason":"fake failure"}`))
		return
	}

	switch r.URL.Path {
	case "/posts.json":
		posts := []CatalogPost{}
		if search != nil {
			if found := search(req.Terms); found != nil {
				posts = found
			}
		}
		if limit, err := strconv.Atoi(req.Query.Get("limit")); err == nil && limit > 0 && len(posts) > limit {
			posts = posts[:limit]
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"posts": posts})
	case "/tag_implications.json":
		page, _ := strconv.Atoi(req.Query.Get("page"))
		if page < 1 || page > len(pages) {
			_, _ = w.Write([]byte(`{"tag_implications":[]}`))
			return
		}
		_ = json.NewEncoder(w).Encode(pages[page-1])
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false}`))
	}
}
