package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const userColumns = "id, username, token, date_joined"

func scanUser(scanner rowScanner) (*User, error) {
	var (
		user   User
		joined string
	)
	if err := scanner.Scan(&user.ID, &user.Username, &user.Token, &joined); err != nil {
		return nil, err
	}
	if t, err := parseTimeString(joined); err == nil {
		user.DateJoined = t
	}
	return &user, nil
}

// CreateUser registers a user. An empty token gets a random one.
func (s *Store) CreateUser(ctx context.Context, username, token string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	if strings.TrimSpace(token) == "" {
		token = uuid.NewString()
	}
	now := time.Now().UTC()
	id, err := s.insertWithRetry(ctx,
		`INSERT INTO users (username, token, date_joined) VALUES (?, ?, ?)`,
		username, token, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &User{ID: id, Username: username, Token: token, DateJoined: now}, nil
}

// UserByToken resolves an API token.
func (s *Store) UserByToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+userColumns+` FROM users WHERE token = ?`, token)
	user, err := scanUser(row)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user by token: %w", err)
	}
	return user, nil
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	user, err := scanUser(row)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user by username: %w", err)
	}
	return user, nil
}

// ListUsers returns every user ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}
