// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/stacklok/reqauth/pkg/auth/credentials"
	autherrors "github.com/stacklok/reqauth/pkg/errors"
	"github.com/stacklok/reqauth/pkg/storage"
)

// CredentialStore implements storage.CredentialStore using SQLite.
type CredentialStore struct {
	db *sql.DB
}

var _ storage.CredentialStore = (*CredentialStore)(nil)

// NewCredentialStore opens the database at path and returns a store over it.
func NewCredentialStore(ctx context.Context, path string) (*CredentialStore, error) {
	db, err := Open(ctx, path)
	if err != nil {
		return nil, autherrors.NewStorePersistenceError("opening credential database", err)
	}
	return &CredentialStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *CredentialStore) Close() error {
	return s.db.Close()
}

const credentialColumns = `scope_id, url, credentials_id, access_token, refresh_token, token_type,
			scope, id_token, expires_in, created_at_ms, expires_at_ms, extra`

// Get returns the credential stored under key.
func (s *CredentialStore) Get(ctx context.Context, key credentials.Key) (*credentials.Credential, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials
		 WHERE scope_id = ? AND url = ? AND credentials_id = ?`,
		key.ScopeID, key.URL, key.CredentialsID,
	)
	entry, err := scanEntry(row)
	if err != nil {
		return nil, err
	}
	return entry.Credential, nil
}

// Save upserts cred under key.
func (s *CredentialStore) Save(ctx context.Context, key credentials.Key, cred *credentials.Credential) error {
	if err := storage.CheckSavable(cred); err != nil {
		return err
	}

	extra, err := encodeExtra(cred.Extra)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (`+credentialColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (scope_id, url, credentials_id) DO UPDATE SET
			access_token  = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type    = excluded.token_type,
			scope         = excluded.scope,
			id_token      = excluded.id_token,
			expires_in    = excluded.expires_in,
			created_at_ms = excluded.created_at_ms,
			expires_at_ms = excluded.expires_at_ms,
			extra         = excluded.extra,
			updated_at    = excluded.updated_at`,
		key.ScopeID, key.URL, key.CredentialsID,
		cred.AccessToken, cred.RefreshToken, cred.TokenType, cred.Scope, cred.IDToken,
		cred.ExpiresIn, unixMilli(cred.CreatedAt), unixMilli(cred.ExpiresAt), extra,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return wrapWriteError("saving credential", err)
	}
	return nil
}

// Delete removes the credential under key. Missing keys are ignored.
func (s *CredentialStore) Delete(ctx context.Context, key credentials.Key) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE scope_id = ? AND url = ? AND credentials_id = ?`,
		key.ScopeID, key.URL, key.CredentialsID,
	)
	if err != nil {
		return wrapWriteError("deleting credential", err)
	}
	return nil
}

// List returns credentials matching the filter, ordered by key.
func (s *CredentialStore) List(ctx context.Context, filter storage.ListFilter) ([]storage.Entry, error) {
	var (
		conds []string
		args  []any
	)
	if filter.ScopeID != "" {
		conds = append(conds, "scope_id = ?")
		args = append(args, filter.ScopeID)
	}
	if filter.URL != "" {
		conds = append(conds, "url = ?")
		args = append(args, filter.URL)
	}
	query := `SELECT ` + credentialColumns + ` FROM credentials`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []storage.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating credential rows: %w", err)
	}

	storage.SortEntries(entries)
	return entries, nil
}

// scanner is an interface satisfied by both *sql.Row and *sql.Rows.
type scanner interface{ Scan(dest ...any) error }

func scanEntry(sc scanner) (storage.Entry, error) {
	var (
		key         credentials.Key
		cred        credentials.Credential
		createdAtMs int64
		expiresAtMs int64
		extraBlob   []byte
	)
	err := sc.Scan(
		&key.ScopeID, &key.URL, &key.CredentialsID,
		&cred.AccessToken, &cred.RefreshToken, &cred.TokenType, &cred.Scope, &cred.IDToken,
		&cred.ExpiresIn, &createdAtMs, &expiresAtMs, &extraBlob,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Entry{}, storage.ErrNotFound
		}
		return storage.Entry{}, fmt.Errorf("scanning credential row: %w", err)
	}

	cred.CreatedAt = fromUnixMilli(createdAtMs)
	cred.ExpiresAt = fromUnixMilli(expiresAtMs)
	if len(extraBlob) > 0 {
		if err := json.Unmarshal(extraBlob, &cred.Extra); err != nil {
			return storage.Entry{}, fmt.Errorf("decoding extra fields: %w", err)
		}
	}
	return storage.Entry{Key: key, Credential: &cred}, nil
}

func encodeExtra(extra map[string]any) ([]byte, error) {
	if len(extra) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("encoding extra fields: %w", err)
	}
	return data, nil
}

// unixMilli stores the zero time as 0 so it round-trips as zero.
func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// wrapWriteError classifies lock contention as a persistence failure.
func wrapWriteError(op string, err error) error {
	if isBusy(err) {
		return autherrors.NewStorePersistenceError(op+": database is locked", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isBusy(err error) bool {
	var sqliteErr *sqlite3.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code() & 0xff
		return code == sqlite3lib.SQLITE_BUSY || code == sqlite3lib.SQLITE_LOCKED
	}
	return false
}
