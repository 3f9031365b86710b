package userdata

import (
	"sync"
	"time"
)

// ChatMessage is one entry in a chat transcript.
type ChatMessage struct {
	Role    string
	Content string
	SentAt  time.Time
}

// ChatSession is one conversation with the analysis assistant.
type ChatSession struct {
	ID       string
	OwnerID  string
	Title    string
	Messages []ChatMessage
}

// ChatStore holds the current user's chat sessions.
type ChatStore struct {
	mu            sync.RWMutex
	currentUserID string
	sessions      map[string]ChatSession
	activeID      string
}

// NewChatStore creates an empty store bound to the anonymous identity.
func NewChatStore() *ChatStore {
	return &ChatStore{sessions: make(map[string]ChatSession)}
}

// SetCurrentUser adopts a new identity, clearing content first on change.
func (s *ChatStore) SetCurrentUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentUserID == userID {
		s.currentUserID = userID
		return
	}
	s.sessions = make(map[string]ChatSession)
	s.activeID = ""
	s.currentUserID = userID
}

// ClearAll empties the store and resets the identity tag.
func (s *ChatStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]ChatSession)
	s.activeID = ""
	s.currentUserID = ""
}

// CurrentUser returns the identity tag the store is bound to.
func (s *ChatStore) CurrentUser() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentUserID
}

// Put stores a chat session. Dropped when ownerID no longer matches the
// current identity.
func (s *ChatStore) Put(ownerID string, cs ChatSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ownerID == "" || ownerID != s.currentUserID {
		return false
	}
	cs.OwnerID = ownerID
	s.sessions[cs.ID] = cs
	return true
}

// Append adds a message to an existing session. Dropped when ownerID is
// stale or the session is unknown.
func (s *ChatStore) Append(ownerID, sessionID string, msg ChatMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ownerID == "" || ownerID != s.currentUserID {
		return false
	}
	cs, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	cs.Messages = append(cs.Messages, msg)
	s.sessions[sessionID] = cs
	return true
}

// Get returns a chat session by ID.
func (s *ChatStore) Get(id string) (ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.sessions[id]
	return cs, ok
}

// SetActive marks a session as the one displayed.
func (s *ChatStore) SetActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		s.activeID = id
	}
}

// Active returns the active session ID, or "".
func (s *ChatStore) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Len returns the number of stored sessions.
func (s *ChatStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Verify interface compliance.
var _ Scoped = (*ChatStore)(nil)
