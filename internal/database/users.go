package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"lmsync/internal/model"
)

const userColumns = "id, email, first_name, last_name, roles, avatar_url, synced_at"

func scanUser(row rowScanner) (*model.CachedUser, error) {
	var (
		u        model.CachedUser
		roles    sql.NullString
		syncedAt sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &roles, &u.AvatarURL, &syncedAt)
	if err != nil {
		return nil, err
	}
	if roles.Valid && roles.String != "" {
		if err := json.Unmarshal([]byte(roles.String), &u.Roles); err != nil {
			return nil, fmt.Errorf("decoding roles: %w", err)
		}
	}
	u.SyncedAt = timePtr(syncedAt)
	return &u, nil
}

// FindUserByID returns the cached user with the given id, or nil if
// absent.
func (s *SQLiteStore) FindUserByID(id string) (*model.CachedUser, error) {
	u, err := scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding user by id: %w", err)
	}
	return u, nil
}

// FindUserByEmail returns the cached user with the given email, or nil if
// absent.
func (s *SQLiteStore) FindUserByEmail(email string) (*model.CachedUser, error) {
	u, err := scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE email = ?", email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding user by email: %w", err)
	}
	return u, nil
}

// UpsertUser writes one cached identity row, stamping it synced. Returns
// the id.
func (s *SQLiteStore) UpsertUser(u model.CachedUser) (string, error) {
	if u.ID == "" {
		u.ID = s.idgen.New()
	}

	var roles sql.NullString
	if len(u.Roles) > 0 {
		data, err := json.Marshal(u.Roles)
		if err != nil {
			return "", fmt.Errorf("encoding roles: %w", err)
		}
		roles = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.Exec(`
INSERT INTO users (id, email, first_name, last_name, roles, avatar_url, synced_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    email = excluded.email,
    first_name = excluded.first_name,
    last_name = excluded.last_name,
    roles = excluded.roles,
    avatar_url = excluded.avatar_url,
    synced_at = excluded.synced_at`,
		u.ID, u.Email, u.FirstName, u.LastName, roles, u.AvatarURL, s.clock.Now())
	if err != nil {
		return "", fmt.Errorf("upserting user: %w", err)
	}
	return u.ID, nil
}

// DeleteUser removes a cached user row. A missing id is a no-op.
func (s *SQLiteStore) DeleteUser(id string) error {
	if _, err := s.db.Exec("DELETE FROM users WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}
