// Package secrets provides an encrypted credential vault.
//
// Values are encrypted at rest with AES-256-GCM and stored in SQLite next to
// the bot's other state. Every read is recorded in an access log so an
// operator can tell which process pulled which credential and when.
package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	furbototel "github.com/vaisest/fakefurbot/internal/otel"
)

var (
	// ErrSecretNotFound is returned when a name does not exist in the vault.
	ErrSecretNotFound = errors.New("secret not found")
	// ErrInvalidEncryptionKey is returned when the vault key is not 32 raw
	// bytes or 64 hex characters.
	ErrInvalidEncryptionKey = errors.New("invalid encryption key")
)

// Well-known secret names read by the bot.
const (
	PlatformClientID     = "reddit_client_id"
	PlatformClientSecret = "reddit_client_secret"
	PlatformUsername     = "reddit_username"
	PlatformPassword     = "reddit_password"
	CatalogUsername      = "e621_username"
	CatalogAPIKey        = "e621_api_key"
)

// KnownNames lists the well-known names in display order.
var KnownNames = []string{
	PlatformClientID, PlatformClientSecret, PlatformUsername, PlatformPassword,
	CatalogUsername, CatalogAPIKey,
}

var tracer = furbototel.Tracer("github.com/vaisest/fakefurbot/internal/secrets")

// Store manages encrypted secrets and their access log.
type Store struct {
	db  *sql.DB
	gcm cipher.AEAD
}

// Secret is a decrypted secret with metadata.
type Secret struct {
	Name        string
	Value       []byte
	CreatedAt   time.Time
	AccessedAt  time.Time
	AccessCount int
}

// Metadata is the listing view of a secret. It never carries the value.
type Metadata struct {
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	AccessedAt  time.Time `json:"accessed_at"`
	AccessCount int       `json:"access_count"`
}

// AccessRecord is a single access log entry.
type AccessRecord struct {
	ID         string    `json:"id"`
	SecretName string    `json:"secret_name"`
	Accessor   string    `json:"accessor"`
	Timestamp  time.Time `json:"timestamp"`
	Found      bool      `json:"found"`
}

// ParseKey interprets key as 64 hex characters or 32 raw bytes.
func ParseKey(key string) ([]byte, error) {
	if len(key) == 64 {
		if decoded, err := hex.DecodeString(key); err == nil {
			return decoded, nil
		}
	}
	if len(key) == 32 {
		return []byte(key), nil
	}
	return nil, fmt.Errorf("encryption key must be 32 bytes or 64 hex characters (got %d): %w", len(key), ErrInvalidEncryptionKey)
}

// Open opens (creating if needed) the vault database at dbPath.
func Open(dbPath, encryptionKey string) (*Store, error) {
	keyBytes, err := ParseKey(encryptionKey)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening secrets database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS secrets (
		name TEXT PRIMARY KEY,
		encrypted_value TEXT NOT NULL,
		nonce TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		accessed_at TIMESTAMP,
		access_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS secret_access_log (
		id TEXT PRIMARY KEY,
		secret_name TEXT NOT NULL,
		accessor TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		found BOOLEAN NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_access_log_secret ON secret_access_log(secret_name);
	`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, gcm: gcm}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Set stores an encrypted secret, replacing any existing value.
func (s *Store) Set(ctx context.Context, name string, value []byte) error {
	ctx, span := tracer.Start(ctx, "secrets.set",
		trace.WithAttributes(attribute.String("secret.name", name)))
	defer span.End()

	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		span.RecordError(err)
		return fmt.Errorf("generating nonce: %w", err)
	}
	ciphertext := s.gcm.Seal(nil, nonce, value, nil)

	query := `
		INSERT INTO secrets (name, encrypted_value, nonce, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			encrypted_value = excluded.encrypted_value,
			nonce = excluded.nonce
	`
	_, err := s.db.ExecContext(ctx, query, name,
		base64.StdEncoding.EncodeToString(ciphertext),
		base64.StdEncoding.EncodeToString(nonce),
		time.Now())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("storing secret: %w", err)
	}
	return nil
}

// Get decrypts a secret. accessor names the caller in the access log.
func (s *Store) Get(ctx context.Context, name, accessor string) (*Secret, error) {
	ctx, span := tracer.Start(ctx, "secrets.get",
		trace.WithAttributes(
			attribute.String("secret.name", name),
			attribute.String("secret.accessor", accessor),
		))
	defer span.End()

	var encryptedValue, nonceB64 string
	var createdAt, accessedAt sql.NullTime
	var accessCount int

	err := s.db.QueryRowContext(ctx,
		`SELECT encrypted_value, nonce, created_at, accessed_at, access_count FROM secrets WHERE name = ?`,
		name).Scan(&encryptedValue, &nonceB64, &createdAt, &accessedAt, &accessCount)
	if errors.Is(err, sql.ErrNoRows) {
		s.logAccess(ctx, name, accessor, false)
		return nil, ErrSecretNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("querying secret: %w", err)
	}

	plaintext, err := s.decrypt(encryptedValue, nonceB64)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	now := time.Now()
	_, _ = s.db.ExecContext(ctx,
		`UPDATE secrets SET accessed_at = ?, access_count = access_count + 1 WHERE name = ?`, now, name)
	s.logAccess(ctx, name, accessor, true)

	return &Secret{
		Name:        name,
		Value:       plaintext,
		CreatedAt:   createdAt.Time,
		AccessedAt:  now,
		AccessCount: accessCount + 1,
	}, nil
}

// Lookup returns the secret's value as a string, or "" when it is absent.
func (s *Store) Lookup(ctx context.Context, name, accessor string) (string, error) {
	secret, err := s.Get(ctx, name, accessor)
	if errors.Is(err, ErrSecretNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(secret.Value), nil
}

// List returns metadata for every stored secret, ordered by name.
func (s *Store) List(ctx context.Context) ([]Metadata, error) {
	ctx, span := tracer.Start(ctx, "secrets.list")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, created_at, accessed_at, access_count FROM secrets ORDER BY name`)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("querying secrets: %w", err)
	}
	defer rows.Close()

	var out []Metadata
	for rows.Next() {
		var m Metadata
		var createdAt, accessedAt sql.NullTime
		if err := rows.Scan(&m.Name, &createdAt, &accessedAt, &m.AccessCount); err != nil {
			return nil, fmt.Errorf("scanning secret row: %w", err)
		}
		m.CreatedAt = createdAt.Time
		m.AccessedAt = accessedAt.Time
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete removes a secret. Deleting a missing name returns ErrSecretNotFound.
func (s *Store) Delete(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "secrets.delete",
		trace.WithAttributes(attribute.String("secret.name", name)))
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE name = ?`, name)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("deleting secret: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSecretNotFound
	}
	return nil
}

// Rotate re-encrypts an existing secret under a fresh nonce.
func (s *Store) Rotate(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "secrets.rotate",
		trace.WithAttributes(attribute.String("secret.name", name)))
	defer span.End()

	var encryptedValue, nonceB64 string
	err := s.db.QueryRowContext(ctx,
		`SELECT encrypted_value, nonce FROM secrets WHERE name = ?`, name).Scan(&encryptedValue, &nonceB64)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSecretNotFound
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("querying secret: %w", err)
	}

	plaintext, err := s.decrypt(encryptedValue, nonceB64)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("decrypting for rotation: %w", err)
	}
	return s.Set(ctx, name, plaintext)
}

func (s *Store) decrypt(encryptedValue, nonceB64 string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encryptedValue)
	if err != nil {
		return nil, fmt.Errorf("decoding ciphertext: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		return nil, fmt.Errorf("decoding nonce: %w", err)
	}
	plaintext, err := s.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting secret: %w", err)
	}
	return plaintext, nil
}

func (s *Store) logAccess(ctx context.Context, name, accessor string, found bool) {
	_, _ = s.db.ExecContext(ctx,
		`INSERT INTO secret_access_log (id, secret_name, accessor, timestamp, found) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), name, accessor, time.Now(), found)
}

// AccessLog returns access records, newest first. An empty name returns
// records for every secret. limit <= 0 means no limit.
func (s *Store) AccessLog(ctx context.Context, name string, limit int) ([]AccessRecord, error) {
	ctx, span := tracer.Start(ctx, "secrets.access_log",
		trace.WithAttributes(attribute.String("secret.name", name)))
	defer span.End()

	query := `SELECT id, secret_name, accessor, timestamp, found FROM secret_access_log`
	var args []interface{}
	if name != "" {
		query += ` WHERE secret_name = ?`
		args = append(args, name)
	}
	query += ` ORDER BY timestamp DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("querying access log: %w", err)
	}
	defer rows.Close()

	var records []AccessRecord
	for rows.Next() {
		var r AccessRecord
		if err := rows.Scan(&r.ID, &r.SecretName, &r.Accessor, &r.Timestamp, &r.Found); err != nil {
			return nil, fmt.Errorf("scanning access record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
