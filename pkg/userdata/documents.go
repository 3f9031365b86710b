package userdata

import (
	"sync"
	"time"
)

// DocumentStatus tracks a document through upload and indexing.
type DocumentStatus string

const (
	// DocumentUploading is set while the upload is in flight.
	DocumentUploading DocumentStatus = "uploading"

	// DocumentProcessing is set while the backend extracts and indexes text.
	DocumentProcessing DocumentStatus = "processing"

	// DocumentReady marks a document available for analysis.
	DocumentReady DocumentStatus = "ready"

	// DocumentFailed marks a failed upload or extraction.
	DocumentFailed DocumentStatus = "failed"
)

// Document is one uploaded regulatory or submission document.
type Document struct {
	ID         string
	OwnerID    string
	Filename   string
	PageCount  int
	Status     DocumentStatus
	UploadedAt time.Time
}

// DocumentStore holds the current user's documents, pending uploads and
// selection.
type DocumentStore struct {
	mu            sync.RWMutex
	currentUserID string
	documents     map[string]Document
	pending       map[string]struct{}
	selectedID    string
}

// NewDocumentStore creates an empty store bound to the anonymous identity.
func NewDocumentStore() *DocumentStore {
	s := &DocumentStore{}
	s.reset()
	return s
}

// Callers hold s.mu.
func (s *DocumentStore) reset() {
	s.documents = make(map[string]Document)
	s.pending = make(map[string]struct{})
	s.selectedID = ""
}

// SetCurrentUser adopts a new identity, clearing content first on change.
func (s *DocumentStore) SetCurrentUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentUserID == userID {
		s.currentUserID = userID
		return
	}
	s.reset()
	s.currentUserID = userID
}

// ClearAll empties the store and resets the identity tag.
func (s *DocumentStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	s.currentUserID = ""
}

// CurrentUser returns the identity tag the store is bound to.
func (s *DocumentStore) CurrentUser() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentUserID
}

// Put stores a document. Returns false and drops the write when ownerID no
// longer matches the current identity (a stale response from before a
// switch).
func (s *DocumentStore) Put(ownerID string, doc Document) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ownerID == "" || ownerID != s.currentUserID {
		return false
	}
	doc.OwnerID = ownerID
	s.documents[doc.ID] = doc
	delete(s.pending, doc.ID)
	return true
}

// Get returns a document by ID.
func (s *DocumentStore) Get(id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	return doc, ok
}

// List returns all documents.
func (s *DocumentStore) List() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, 0, len(s.documents))
	for _, d := range s.documents {
		out = append(out, d)
	}
	return out
}

// Remove deletes a document and clears the selection if it pointed at it.
func (s *DocumentStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	delete(s.pending, id)
	if s.selectedID == id {
		s.selectedID = ""
	}
}

// MarkPending records an in-flight upload. Dropped when ownerID is stale.
func (s *DocumentStore) MarkPending(ownerID, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ownerID == "" || ownerID != s.currentUserID {
		return false
	}
	s.pending[id] = struct{}{}
	return true
}

// PendingCount returns the number of in-flight uploads.
func (s *DocumentStore) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// Select marks a document as the active selection.
func (s *DocumentStore) Select(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; ok {
		s.selectedID = id
	}
}

// Selected returns the selected document ID, or "".
func (s *DocumentStore) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedID
}

// Len returns the number of stored documents.
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

// Verify interface compliance.
var _ Scoped = (*DocumentStore)(nil)
