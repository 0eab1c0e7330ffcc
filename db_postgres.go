package main

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
)

type PostgresStore struct {
	db  *sql.DB
	dsn string
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	p := &PostgresStore{db: d, dsn: dsn}
	// Tables come from migrations; just verify connectivity.
	if err := d.Ping(); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

// pgDuplicateField maps a Postgres unique violation to the user field whose
// constraint fired, or "" when the error is something else.
func pgDuplicateField(err error) string {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return ""
	}
	switch {
	case strings.Contains(pqErr.Constraint, "email"):
		return "email"
	case strings.Contains(pqErr.Constraint, "username"):
		return "username"
	}
	return ""
}

func (p *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO users(id,name,email,username,password_hash,created_at) VALUES($1,$2,$3,$4,$5,now()) RETURNING created_at`,
		u.ID, u.Name, u.Email, u.Username, u.PasswordHash).Scan(&u.CreatedAt)
	if err != nil {
		if field := pgDuplicateField(err); field != "" {
			return &DuplicateError{Field: field}
		}
		return err
	}
	return nil
}

func (p *PostgresStore) scanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (p *PostgresStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx,
		`SELECT id,name,email,username,password_hash,created_at FROM users WHERE id = $1`, id))
}

func (p *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return p.scanUser(p.db.QueryRowContext(ctx,
		`SELECT id,name,email,username,password_hash,created_at FROM users WHERE email = $1`, email))
}

func (p *PostgresStore) UpdateUser(ctx context.Context, u *User) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE users SET name = $1, password_hash = $2 WHERE id = $3`,
		u.Name, u.PasswordHash, u.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	// auth_tokens rows go with the user via ON DELETE CASCADE.
	res, err := p.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id,name,email,username,password_hash,created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (p *PostgresStore) AddAuthToken(ctx context.Context, t *AuthToken) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO auth_tokens(token,user_id,issued_at) VALUES($1,$2,$3)`,
		t.Token, t.UserID, t.IssuedAt)
	return err
}

func (p *PostgresStore) ListAuthTokens(ctx context.Context, userID string) ([]*AuthToken, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT token,user_id,issued_at FROM auth_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tokens []*AuthToken
	for rows.Next() {
		var t AuthToken
		if err := rows.Scan(&t.Token, &t.UserID, &t.IssuedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, &t)
	}
	return tokens, rows.Err()
}

func (p *PostgresStore) close() error { return p.db.Close() }
func (p *PostgresStore) ping() bool   { return p.db.Ping() == nil }
