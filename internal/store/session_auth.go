package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/cqdrill/internal/model"
)

// DefaultSessionTTL is how long a login token stays valid.
const DefaultSessionTTL = 24 * time.Hour

// SetSessionTTL changes the lifetime of tokens issued from now on.
// Non-positive values restore DefaultSessionTTL.
func (s *Store) SetSessionTTL(d time.Duration) {
	if d <= 0 {
		d = DefaultSessionTTL
	}
	s.sessionTTL = d
}

// CreateAuthSession issues a login token for userID.
func (s *Store) CreateAuthSession(userID int64) (*model.AuthSession, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &model.AuthSession{ID: token, UserID: userID, CreatedAt: now, ExpiresAt: now.Add(s.sessionTTL)}
	_, err = s.db.Exec(
		`INSERT INTO auth_sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.CreatedAt, sess.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create auth session: %w", err)
	}
	return sess, nil
}

// UserForToken resolves a login token to its user. Unknown and expired
// tokens yield nil; an expired token is deleted.
func (s *Store) UserForToken(token string) (*model.User, error) {
	var (
		u       model.User
		expires time.Time
	)
	err := s.db.QueryRow(
		`SELECT u.id, u.account_id, u.display_name, u.password_hash, u.created_at, a.expires_at
		 FROM auth_sessions a JOIN users u ON u.id = a.user_id
		 WHERE a.id = ?`, token,
	).Scan(&u.ID, &u.AccountID, &u.DisplayName, &u.PasswordHash, &u.CreatedAt, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !time.Now().Before(expires) {
		if err := s.DeleteAuthSession(token); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &u, nil
}

// DeleteAuthSession removes a login token. Unknown tokens are ignored.
func (s *Store) DeleteAuthSession(token string) error {
	_, err := s.db.Exec(`DELETE FROM auth_sessions WHERE id = ?`, token)
	return err
}

// CleanupExpiredSessions removes expired tokens and reports how many.
func (s *Store) CleanupExpiredSessions() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM auth_sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
