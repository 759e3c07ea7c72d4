package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

const (
	settingJWTSecret    = "jwt_secret"
	settingPasswordHash = "password_hash"
)

// JWTSecret retrieves the JWT secret from the database.
// If no secret exists, it generates one, stores it, and returns it.
// Uses insert-if-absent + re-SELECT to avoid a TOCTOU race on concurrent startup.
func (s *Store) JWTSecret(ctx context.Context) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}

	if _, err := s.insertSetting(ctx, settingJWTSecret, hex.EncodeToString(buf)); err != nil {
		return "", fmt.Errorf("storing jwt_secret: %w", err)
	}

	secret, err := s.setting(ctx, settingJWTSecret)
	if err != nil {
		return "", fmt.Errorf("querying jwt_secret: %w", err)
	}
	return secret, nil
}

// PasswordHash returns the bcrypt hash of the family password, or an empty
// string if none has been set.
func (s *Store) PasswordHash(ctx context.Context) (string, error) {
	hash, err := s.setting(ctx, settingPasswordHash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying password hash: %w", err)
	}
	return hash, nil
}

// InitPasswordHash stores hash only when no password exists yet. It reports
// whether the hash was stored.
func (s *Store) InitPasswordHash(ctx context.Context, hash string) (bool, error) {
	created, err := s.insertSetting(ctx, settingPasswordHash, hash)
	if err != nil {
		return false, fmt.Errorf("storing password hash: %w", err)
	}
	return created, nil
}

// SetPasswordHash replaces the family password hash.
func (s *Store) SetPasswordHash(ctx context.Context, hash string) error {
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`),
		settingPasswordHash, hash,
	)
	if err != nil {
		return fmt.Errorf("updating password hash: %w", err)
	}
	return nil
}

func (s *Store) setting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT value FROM settings WHERE key = ?`), key,
	).Scan(&value)
	return value, err
}

func (s *Store) insertSetting(ctx context.Context, key, value string) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.dialect.Rebind(
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT (key) DO NOTHING`),
		key, value,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
