// Package userdata holds the in-memory, user-scoped entity stores of the
// GUARDIAN client: uploaded documents, compliance analysis results, and chat
// sessions. Every store is bound to exactly one identity at a time and
// guarantees that no entity can survive an identity change.
//
// The contract every store implements:
//
//   - SetCurrentUser(id): when id differs from the store's current identity
//     tag (including transitions to and from the anonymous ""), the store
//     clears ALL of its content BEFORE adopting the new tag. Clear-then-adopt
//     is the load-bearing ordering; adopting first would let readers briefly
//     see the previous user's entities under the new identity.
//   - ClearAll(): unconditionally empties the store and resets the tag to "".
//   - Writes carry the owner ID captured when the originating request was
//     issued; a write whose owner no longer matches the current tag is
//     dropped, so late HTTP responses from before an identity switch cannot
//     leak into the new user's view.
//
// Any future store holding user-owned entities must implement Scoped and be
// registered with the auth state controller. Skipping the pattern is a
// data-leak vulnerability, not a style choice.
package userdata

// Scoped is implemented by every store holding user-owned entities.
type Scoped interface {
	// SetCurrentUser adopts a new identity tag, purging all content first
	// when the tag changes. The empty string means anonymous.
	SetCurrentUser(userID string)

	// ClearAll unconditionally empties the store and resets the tag.
	ClearAll()
}
