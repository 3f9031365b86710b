// Package postgres provides a PostgreSQL-backed record of agent sessions.
// Shared kiosk deployments use it to audit which identities are active on a
// host; tokens are stored only as SHA-256 digests.
package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/yusufmo1/GUARDIAN-sub000/pkg/session"
)

// Record is one row in agent_sessions.
type Record struct {
	ID          string
	UserID      string
	TokenSHA256 string
	CreatedAt   time.Time
	RefreshedAt time.Time
	ExpiresAt   time.Time
}

// Store persists session records in PostgreSQL.
type Store struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// New creates a session record store on db.
func New(db *sql.DB) *Store {
	return &Store{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// HashToken returns the hex SHA-256 digest stored in place of the token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Record inserts a row for the session, replacing any prior row for the
// same user on this store.
func (s *Store) Record(ctx context.Context, sess session.Session) error {
	if err := s.Drop(ctx, sess.UserID); err != nil {
		return err
	}

	refreshed := sess.RefreshedAt
	if refreshed.IsZero() {
		refreshed = sess.CreatedAt
	}

	query, args, err := s.sb.
		Insert("agent_sessions").
		Columns("id", "user_id", "token_sha256", "created_at", "refreshed_at", "expires_at").
		Values(uuid.NewString(), sess.UserID, HashToken(sess.Token), sess.CreatedAt, refreshed, sess.ExpiresAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting session record: %w", err)
	}
	return nil
}

// Drop removes every record owned by userID.
func (s *Store) Drop(ctx context.Context, userID string) error {
	query, args, err := s.sb.
		Delete("agent_sessions").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting session records: %w", err)
	}
	return nil
}

// Active returns non-expired records, newest first.
func (s *Store) Active(ctx context.Context) ([]Record, error) {
	query, args, err := s.sb.
		Select("id", "user_id", "token_sha256", "created_at", "refreshed_at", "expires_at").
		From("agent_sessions").
		Where(sq.Gt{"expires_at": time.Now()}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying session records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.UserID, &r.TokenSHA256, &r.CreatedAt, &r.RefreshedAt, &r.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scanning session record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session records: %w", err)
	}
	return records, nil
}

// Cleanup removes expired records.
func (s *Store) Cleanup(ctx context.Context) error {
	query, args, err := s.sb.
		Delete("agent_sessions").
		Where(sq.LtOrEq{"expires_at": time.Now()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building cleanup: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("cleaning up session records: %w", err)
	}
	return nil
}
