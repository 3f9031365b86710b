package authstate

import (
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/backend"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/session"
)

// Snapshot is an immutable, point-in-time copy of the controller's state.
// Timer and polling code must read through Snapshot rather than holding a
// reference into the controller: a snapshot can never go stale underneath
// the reader or feed a state change back into the controller.
type Snapshot struct {
	Authenticated bool
	User          *backend.User
	Session       *session.Session
	Token         string

	// Epoch identifies the identity generation the snapshot was taken in.
	// It changes on every login, logout and session clear; holders can
	// detect that a result computed against this snapshot is stale.
	Epoch uint64
}

// Snapshot returns a deep copy of the current state. Mutating the returned
// value has no effect on the controller or on later snapshots.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Authenticated: c.authenticated,
		Epoch:         c.epoch,
	}
	if c.user != nil {
		u := *c.user
		snap.User = &u
	}
	if c.sess != nil {
		snap.Session = c.sess.Clone()
		snap.Token = c.sess.Token
	}
	return snap
}
