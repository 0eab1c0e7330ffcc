package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Store is the persistence boundary for users and their issued tokens.
// Implementations must report uniqueness violations as *DuplicateError and
// absent rows as ErrNotFound; anything else is treated as a store fault.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]*User, error)

	AddAuthToken(ctx context.Context, t *AuthToken) error
	ListAuthTokens(ctx context.Context, userID string) ([]*AuthToken, error)
}

// Memory store, used by tests and local development.
type MemStore struct {
	mu     sync.RWMutex
	users  map[string]*User
	tokens map[string][]*AuthToken
}

func NewMemStore() *MemStore {
	return &MemStore{users: map[string]*User{}, tokens: map[string][]*AuthToken{}}
}

func (m *MemStore) CreateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		// Same outcome as the SQL adapters' primary key firing.
		return fmt.Errorf("user id %s already exists", u.ID)
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return &DuplicateError{Field: "email"}
		}
		if existing.Username == u.Username {
			return &DuplicateError{Field: "username"}
		}
	}
	cp := *u
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.users[cp.ID] = &cp
	return nil
}

func (m *MemStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) UpdateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MemStore) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	delete(m.tokens, id)
	return nil
}

func (m *MemStore) ListUsers(ctx context.Context) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		users = append(users, &cp)
	}
	return users, nil
}

func (m *MemStore) AddAuthToken(ctx context.Context, t *AuthToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tokens[t.UserID] = append(m.tokens[t.UserID], &cp)
	return nil
}

func (m *MemStore) ListAuthTokens(ctx context.Context, userID string) ([]*AuthToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tokens := make([]*AuthToken, 0, len(m.tokens[userID]))
	for _, t := range m.tokens[userID] {
		cp := *t
		tokens = append(tokens, &cp)
	}
	return tokens, nil
}

// SQLite store.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: d, path: path}
	if err := s.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS auth_tokens (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			issued_at TEXT NOT NULL
		);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// sqliteDuplicateField maps a sqlite unique-constraint error to the user
// field it fired on, or "" when the error is something else.
func sqliteDuplicateField(err error) string {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return ""
	}
	switch {
	case strings.Contains(msg, "users.email"):
		return "email"
	case strings.Contains(msg, "users.username"):
		return "username"
	}
	return ""
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id,name,email,username,password_hash,created_at) VALUES(?,?,?,?,?,?)`,
		u.ID, u.Name, u.Email, u.Username, u.PasswordHash, u.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if field := sqliteDuplicateField(err); field != "" {
			return &DuplicateError{Field: field}
		}
		return err
	}
	return nil
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var u User
	var created string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Username, &u.PasswordHash, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var err error
	if u.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return nil, fmt.Errorf("parse created_at for user %s: %w", u.ID, err)
	}
	return &u, nil
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id,name,email,username,password_hash,created_at FROM users WHERE id = ?`, id))
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id,name,email,username,password_hash,created_at FROM users WHERE email = ?`, email))
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, u *User) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = ?, password_hash = ? WHERE id = ?`,
		u.Name, u.PasswordHash, u.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteUser(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM auth_tokens WHERE user_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,name,email,username,password_hash,created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []*User
	for rows.Next() {
		var u User
		var created string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Username, &u.PasswordHash, &created); err != nil {
			return nil, err
		}
		if u.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("parse created_at for user %s: %w", u.ID, err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) AddAuthToken(ctx context.Context, t *AuthToken) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO auth_tokens(token,user_id,issued_at) VALUES(?,?,?)`,
		t.Token, t.UserID, t.IssuedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *SQLiteStore) ListAuthTokens(ctx context.Context, userID string) ([]*AuthToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT token,user_id,issued_at FROM auth_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tokens []*AuthToken
	for rows.Next() {
		var t AuthToken
		var issued string
		if err := rows.Scan(&t.Token, &t.UserID, &issued); err != nil {
			return nil, err
		}
		if t.IssuedAt, err = time.Parse(time.RFC3339, issued); err != nil {
			return nil, fmt.Errorf("parse issued_at for token of user %s: %w", t.UserID, err)
		}
		tokens = append(tokens, &t)
	}
	return tokens, rows.Err()
}

// lifecycle helpers
func (m *MemStore) close() error { return nil }
func (m *MemStore) ping() bool   { return true }

func (s *SQLiteStore) close() error { return s.db.Close() }
func (s *SQLiteStore) ping() bool   { return s.db.Ping() == nil }
