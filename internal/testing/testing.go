// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/spotify-nvim/internal/services"
	"github.com/desertthunder/spotify-nvim/internal/shared"
	"github.com/desertthunder/spotify-nvim/internal/tokenstore"
	"golang.org/x/oauth2"
)

// MockPlayer is a test double for [services.Player]
type MockPlayer struct {
	mu sync.Mutex

	Played   [][]string
	Nexts    int
	Previous int
	Queries  []SearchCall

	PlayErr     error
	NextErr     error
	PreviousErr error
	SearchErr   error
	Result      *services.SearchResult
}

// SearchCall records the arguments of one Search call.
type SearchCall struct {
	Query  string
	Kind   services.SearchType
	Limit  int
	Offset int
}

func (m *MockPlayer) StartPlayback(ctx context.Context, uris []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Played = append(m.Played, uris)
	return m.PlayErr
}

func (m *MockPlayer) NextTrack(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Nexts++
	return m.NextErr
}

func (m *MockPlayer) PreviousTrack(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Previous++
	return m.PreviousErr
}

func (m *MockPlayer) Search(ctx context.Context, query string, kind services.SearchType, limit, offset int) (*services.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, SearchCall{Query: query, Kind: kind, Limit: limit, Offset: offset})
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	return m.Result, nil
}

// TrackResult builds a search result holding a track page with the given name/uri pairs.
func TrackResult(pairs ...string) *services.SearchResult {
	page := &services.SpotifyPaginatedSearchTracks{}
	for i := 0; i+1 < len(pairs); i += 2 {
		page.Items = append(page.Items, services.SpotifyTrack{Name: pairs[i], URI: pairs[i+1]})
	}
	return &services.SearchResult{Tracks: page}
}

// MemoryStore is an in-memory [tokenstore.Store] that counts calls.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]tokenstore.Record

	Loads atomic.Int32
	Saves atomic.Int32

	// LoadErr, when set, is returned by every Load.
	LoadErr error
	// SaveErr, when set, is returned by every Save.
	SaveErr error
	// BeforeLoad runs at the start of every Load, outside the lock.
	BeforeLoad func()
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]tokenstore.Record{}}
}

// Put seeds a record.
func (s *MemoryStore) Put(path string, rec tokenstore.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[path] = rec
}

// Get returns the record stored at path.
func (s *MemoryStore) Get(path string) (tokenstore.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[path]
	return rec, ok
}

func (s *MemoryStore) Load(path string) (tokenstore.Record, error) {
	s.Loads.Add(1)
	if s.BeforeLoad != nil {
		s.BeforeLoad()
	}
	if s.LoadErr != nil {
		return tokenstore.Record{}, s.LoadErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[path]
	if !ok {
		return tokenstore.Record{}, fmt.Errorf("%w: %s", shared.ErrTokenNotFound, path)
	}
	return rec, nil
}

func (s *MemoryStore) Save(rec tokenstore.Record, path string) error {
	s.Saves.Add(1)
	if s.SaveErr != nil {
		return s.SaveErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[path] = rec
	return nil
}

// MockExchanger is a test double for the OAuth authorization-code exchange.
type MockExchanger struct {
	Token *oauth2.Token
	Err   error

	mu    sync.Mutex
	Codes []string
}

// AuthURL embeds the state so prompts can echo it back.
func (m *MockExchanger) AuthURL(state string) string {
	return "https://accounts.test/authorize?state=" + url.QueryEscape(state)
}

func (m *MockExchanger) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	m.mu.Lock()
	m.Codes = append(m.Codes, code)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Token, nil
}

// StateFromPrompt pulls the state parameter out of a prompt built around [MockExchanger.AuthURL].
func StateFromPrompt(prompt string) string {
	_, after, ok := strings.Cut(prompt, "state=")
	if !ok {
		return ""
	}
	state, _, _ := strings.Cut(after, " ")
	state, _ = url.QueryUnescape(state)
	return state
}

// RedirectFor returns a prompt answer that completes the flow with code.
func RedirectFor(code string) func(ctx context.Context, prompt string) (string, error) {
	return func(ctx context.Context, prompt string) (string, error) {
		return "http://localhost:8888/callback?code=" + code + "&state=" + StateFromPrompt(prompt), nil
	}
}

// MockHost is a test double for the editor host.
type MockHost struct {
	mu      sync.Mutex
	out     []string
	errs    []string
	prompts []string

	// Answer produces the reply to Input. Nil answers with an error.
	Answer func(ctx context.Context, prompt string) (string, error)
}

func (h *MockHost) Out(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.out = append(h.out, msg)
}

func (h *MockHost) Err(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, msg)
}

func (h *MockHost) Input(ctx context.Context, prompt string) (string, error) {
	h.mu.Lock()
	h.prompts = append(h.prompts, prompt)
	answer := h.Answer
	h.mu.Unlock()

	if answer == nil {
		return "", errors.New("no input available")
	}
	return answer(ctx, prompt)
}

// Outs returns a copy of the messages written to the output channel.
func (h *MockHost) Outs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.out...)
}

// Errs returns a copy of the messages written to the error channel.
func (h *MockHost) Errs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.errs...)
}

// Prompts returns a copy of the prompts shown.
func (h *MockHost) Prompts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.prompts...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// AssertContains fails the test unless one of msgs contains substr.
func AssertContains(t *testing.T, msgs []string, substr string) {
	t.Helper()
	for _, m := range msgs {
		if strings.Contains(m, substr) {
			return
		}
	}
	t.Errorf("expected a message containing %q, got %q", substr, msgs)
}
