package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/mailbroker/internal/domain/model"
	"github.com/ericfisherdev/mailbroker/internal/domain/port/driven"
)

// maxCheckIDAttempts bounds the collision retry loop. With a 16^6 identifier
// space the loop almost always ends on the first attempt.
const maxCheckIDAttempts = 32

// sealedPrefix marks payloads stored encrypted.
const sealedPrefix = "enc:v1:"

// Compile-time interface satisfaction check.
var _ driven.CheckRegistry = (*CheckRegistryRepo)(nil)

// CheckRegistryRepo is the SQLite implementation of the CheckRegistry port interface.
// When constructed with a key, payloads are encrypted with AES-256-GCM before
// write and decrypted after read.
type CheckRegistryRepo struct {
	db    *DB
	key   []byte // 32-byte AES-256 key; nil stores payloads in plaintext.
	now   func() time.Time
	newID func(payload string, salt int64, attempt int) string
}

// NewCheckRegistryRepo creates a new CheckRegistryRepo. key must be 32 bytes
// for AES-256-GCM, or nil to store payloads unencrypted.
func NewCheckRegistryRepo(db *DB, key []byte) (*CheckRegistryRepo, error) {
	if key != nil && len(key) != 32 {
		return nil, fmt.Errorf("check registry key must be 32 bytes, got %d", len(key))
	}
	return &CheckRegistryRepo{db: db, key: key, now: time.Now, newID: model.CheckID}, nil
}

// Create stores cred under a fresh short identifier. The existence check and
// the insert are one INSERT ... ON CONFLICT DO NOTHING statement; zero rows
// affected means the candidate was taken and the next disambiguator is tried.
func (r *CheckRegistryRepo) Create(ctx context.Context, cred model.Credential) (string, error) {
	payload := cred.Line()

	stored, err := r.seal(payload)
	if err != nil {
		return "", err
	}

	const query = `INSERT INTO check_records (id, payload, created_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`

	now := r.now()
	salt := now.UnixNano()
	for attempt := 0; attempt < maxCheckIDAttempts; attempt++ {
		id := r.newID(payload, salt, attempt)

		result, err := r.db.Writer.ExecContext(ctx, query, id, stored, formatTime(now))
		if err != nil {
			return "", driven.NewStorageError(fmt.Sprintf("insert check record %q", id), err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return "", driven.NewStorageError("check rows affected", err)
		}
		if n == 1 {
			return id, nil
		}

		slog.Debug("check id collision", "id", id, "attempt", attempt)
	}

	return "", driven.ErrIDSpaceExhausted
}

// Lookup returns the credential stored under id, or driven.ErrNotFound.
func (r *CheckRegistryRepo) Lookup(ctx context.Context, id string) (model.Credential, error) {
	const query = `SELECT payload FROM check_records WHERE id = ?`

	var stored string
	err := r.db.Reader.QueryRowContext(ctx, query, id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Credential{}, driven.ErrNotFound
	}
	if err != nil {
		return model.Credential{}, driven.NewStorageError(fmt.Sprintf("lookup check record %q", id), err)
	}

	payload, err := r.open(stored)
	if err != nil {
		return model.Credential{}, fmt.Errorf("%w: decrypt check record %q: %v", driven.ErrCorruptRecord, id, err)
	}

	cred, err := model.ParseCredential(payload)
	if err != nil {
		return model.Credential{}, fmt.Errorf("%w: parse check record %q: %v", driven.ErrCorruptRecord, id, err)
	}
	return cred, nil
}

// Remove deletes the record. Deleting an unknown id is not an error.
func (r *CheckRegistryRepo) Remove(ctx context.Context, id string) error {
	const query = `DELETE FROM check_records WHERE id = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, id); err != nil {
		return driven.NewStorageError(fmt.Sprintf("remove check record %q", id), err)
	}
	return nil
}

// seal encrypts payload with AES-256-GCM and returns the prefixed base64 of
// nonce || ciphertext || tag. Without a key the payload is returned as-is.
func (r *CheckRegistryRepo) seal(payload string) (string, error) {
	if r.key == nil {
		return payload, nil
	}

	gcm, err := newGCM(r.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(payload), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// open reverses seal. Plaintext records written before a key was configured
// are returned unchanged.
func (r *CheckRegistryRepo) open(stored string) (string, error) {
	encoded, ok := strings.CutPrefix(stored, sealedPrefix)
	if !ok {
		return stored, nil
	}
	if r.key == nil {
		return "", errors.New("record is encrypted but no key is configured")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := newGCM(r.key)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
