package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/cqdrill/internal/model"
)

// ErrAccountExists is returned when an account id is already taken.
var ErrAccountExists = errors.New("account already exists")

// bcryptCost is lowered by tests.
var bcryptCost = bcrypt.DefaultCost

// CreateAccount registers a new account. The account id is trimmed; an empty
// id or secret is ErrInvalidInput and a taken id is ErrAccountExists.
func (s *Store) CreateAccount(accountID, secret, displayName string) (*model.User, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" || secret == "" {
		return nil, ErrInvalidInput
	}

	existing, err := s.GetUserByAccountID(accountID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAccountExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	u := model.User{
		AccountID:    accountID,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	res, err := s.db.Exec(
		`INSERT INTO users (account_id, display_name, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.AccountID, u.DisplayName, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrAccountExists
		}
		slog.Error("failed to create account", "account_id", accountID, "error", err)
		return nil, err
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	slog.Info("created account", "id", u.ID, "account_id", u.AccountID)
	return &u, nil
}

// Authenticate returns the user when secret matches, or nil otherwise.
func (s *Store) Authenticate(accountID, secret string) (*model.User, error) {
	u, err := s.GetUserByAccountID(strings.TrimSpace(accountID))
	if err != nil || u == nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(secret)) != nil {
		return nil, nil
	}
	return u, nil
}

// GetUserByAccountID returns a user by account id, or nil.
func (s *Store) GetUserByAccountID(accountID string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRow(
		`SELECT id, account_id, display_name, password_hash, created_at FROM users WHERE account_id = ?`, accountID,
	).Scan(&u.ID, &u.AccountID, &u.DisplayName, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UserCount returns the total number of users.
func (s *Store) UserCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
