// Package securestore is an encrypted key-value store backed by a SQLite file.
//
// Values are JSON-encoded and sealed with AES-256-GCM. The key is derived
// from a passphrase with Argon2id; the salt and a verifier of the derived key
// live in the same file so a wrong passphrase is rejected on Open.
package securestore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	_ "modernc.org/sqlite"
)

const (
	currentVersion = 1
	saltSize       = 16
	keySize        = 32
)

var (
	// ErrNotFound is returned by Get for a missing key.
	ErrNotFound = errors.New("securestore: key not found")
	// ErrWrongPassphrase is returned by Open when the passphrase does not
	// match the one the file was created with.
	ErrWrongPassphrase = errors.New("securestore: wrong passphrase")
)

type Store struct {
	db   *sql.DB
	aead cipher.AEAD
}

// Open opens (or creates) the store at path. ":memory:" gives a throwaway
// in-memory store.
func Open(ctx context.Context, path, passphrase string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	key, err := unlock(ctx, db, []byte(passphrase))
	if err != nil {
		db.Close()
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		db.Close()
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, aead: aead}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version >= currentVersion {
		return nil
	}

	const ddl = `
	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);
	CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		nonce      BLOB NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
	);`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	_, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

// unlock derives the data key and checks it against the stored verifier,
// creating salt and verifier on first use.
func unlock(ctx context.Context, db *sql.DB, passphrase []byte) ([]byte, error) {
	salt, err := metaValue(ctx, db, "salt")
	if errors.Is(err, sql.ErrNoRows) {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
		if err := setMetaValue(ctx, db, "salt", salt); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	key := argon2.IDKey(passphrase, salt, 1, 64*1024, 4, keySize)
	sum := sha256.Sum256(key)

	verifier, err := metaValue(ctx, db, "verifier")
	if errors.Is(err, sql.ErrNoRows) {
		if err := setMetaValue(ctx, db, "verifier", sum[:]); err != nil {
			return nil, err
		}
		return key, nil
	}
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(verifier, sum[:]) != 1 {
		return nil, ErrWrongPassphrase
	}
	return key, nil
}

func metaValue(ctx context.Context, db *sql.DB, key string) ([]byte, error) {
	var v []byte
	err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	return v, err
}

func setMetaValue(ctx context.Context, db *sql.DB, key string, value []byte) error {
	if _, err := db.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get decrypts the value stored under key into v.
func (s *Store) Get(ctx context.Context, key string, v any) error {
	var value, nonce []byte
	err := s.db.QueryRowContext(ctx, `SELECT value, nonce FROM kv WHERE key = ?`, key).Scan(&value, &nonce)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("select %s: %w", key, err)
	}

	// The key is bound as additional data so rows cannot be swapped.
	plaintext, err := s.aead.Open(nil, nonce, value, []byte(key))
	if err != nil {
		return fmt.Errorf("decrypt %s: %w", key, err)
	}
	return json.Unmarshal(plaintext, v)
}

// Set encrypts v and stores it under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key string, v any) error {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := s.aead.Seal(nil, nonce, plaintext, []byte(key))

	const query = `INSERT INTO kv (key, value, nonce) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value,
			nonce = excluded.nonce,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ','now')`
	if _, err := s.db.ExecContext(ctx, query, key, ciphertext, nonce); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
