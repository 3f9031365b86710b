package userdata

import (
	"sync"
	"time"
)

// Finding is one compliance deviation reported by the analysis backend.
type Finding struct {
	Section  string
	Severity string
	Detail   string
}

// Analysis is the result of checking one document against a standard
// (e.g. a pharmacopoeia monograph or GMP guideline).
type Analysis struct {
	ID          string
	OwnerID     string
	DocumentID  string
	Standard    string
	Score       float64
	Findings    []Finding
	CompletedAt time.Time
}

// AnalysisStore holds the current user's compliance analysis results.
type AnalysisStore struct {
	mu            sync.RWMutex
	currentUserID string
	results       map[string]Analysis
}

// NewAnalysisStore creates an empty store bound to the anonymous identity.
func NewAnalysisStore() *AnalysisStore {
	return &AnalysisStore{results: make(map[string]Analysis)}
}

// SetCurrentUser adopts a new identity, clearing content first on change.
func (s *AnalysisStore) SetCurrentUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentUserID == userID {
		s.currentUserID = userID
		return
	}
	s.results = make(map[string]Analysis)
	s.currentUserID = userID
}

// ClearAll empties the store and resets the identity tag.
func (s *AnalysisStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make(map[string]Analysis)
	s.currentUserID = ""
}

// CurrentUser returns the identity tag the store is bound to.
func (s *AnalysisStore) CurrentUser() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentUserID
}

// Put stores a result. Dropped when ownerID no longer matches the current
// identity.
func (s *AnalysisStore) Put(ownerID string, a Analysis) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ownerID == "" || ownerID != s.currentUserID {
		return false
	}
	a.OwnerID = ownerID
	s.results[a.ID] = a
	return true
}

// Get returns a result by ID.
func (s *AnalysisStore) Get(id string) (Analysis, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.results[id]
	return a, ok
}

// ForDocument returns all results for a document.
func (s *AnalysisStore) ForDocument(documentID string) []Analysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Analysis
	for _, a := range s.results {
		if a.DocumentID == documentID {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the number of stored results.
func (s *AnalysisStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

// Verify interface compliance.
var _ Scoped = (*AnalysisStore)(nil)
