package store

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const defaultCredentialsTable = "credentials"

// PostgresStoreConfig captures the connection and table-naming options for
// the Postgres-backed Credential Store.
type PostgresStoreConfig struct {
	DSN              string
	Schema           string
	CredentialsTable string
	// SaltDir is where the local ID/encryption salt is kept. The salt itself
	// stays file-based even in the Postgres backend: it is small, local, and
	// does not need Postgres's durability guarantees.
	SaltDir string
}

// PostgresStore is the alternate Credential Store backend: the encrypted
// per-credential blob and its updated_at timestamp live in a single
// Postgres table keyed by id, selected via store.driver=postgres.
type PostgresStore struct {
	db    *sql.DB
	cfg   PostgresStoreConfig
	table string
	salt  saltKeeper
}

// NewPostgresStore opens the connection and ensures the credentials table
// exists.
func NewPostgresStore(ctx context.Context, cfg PostgresStoreConfig) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("postgres store: DSN is required")
	}
	cfg.DSN = dsn
	if cfg.CredentialsTable == "" {
		cfg.CredentialsTable = defaultCredentialsTable
	}
	if cfg.SaltDir == "" {
		return nil, fmt.Errorf("postgres store: SaltDir is required")
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres store: open database connection: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres store: ping database: %w", err)
	}

	s := &PostgresStore{
		db:    db,
		cfg:   cfg,
		table: cfg.CredentialsTable,
		salt:  saltKeeper{dir: cfg.SaltDir},
	}
	if err = s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

var _ Store = (*PostgresStore)(nil)

// Close releases the underlying database connection.
func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) fullTableName() string {
	if strings.TrimSpace(s.cfg.Schema) == "" {
		return quoteIdentifier(s.table)
	}
	return quoteIdentifier(s.cfg.Schema) + "." + quoteIdentifier(s.table)
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if schema := strings.TrimSpace(s.cfg.Schema); schema != "" {
		query := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoteIdentifier(schema))
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("postgres store: create schema: %w", err)
		}
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			blob BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, s.fullTableName())
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("postgres store: create credentials table: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSalt(_ context.Context) ([]byte, error) {
	return s.salt.loadOrCreate()
}

func (s *PostgresStore) subkey(label string) ([]byte, error) {
	salt, err := s.salt.loadOrCreate()
	if err != nil {
		return nil, err
	}
	return deriveSubkey(salt, label), nil
}

// ComputeID mirrors FileStore.ComputeID: the same salt-derived HMAC scheme
// so a credential migrated between backends keeps a stable ID.
func (s *PostgresStore) ComputeID(refreshSecret string) (string, error) {
	key, err := s.subkey("credential-id")
	if err != nil {
		return "", err
	}
	h := hmac.New(sha256.New, key)
	h.Write([]byte(refreshSecret))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *PostgresStore) encryptBlob(plain []byte) ([]byte, error) {
	key, err := s.subkey("credential-blob")
	if err != nil {
		return nil, err
	}
	return aesGCMEncrypt(key, plain)
}

func (s *PostgresStore) decryptBlob(data []byte) ([]byte, error) {
	key, err := s.subkey("credential-blob")
	if err != nil {
		return nil, err
	}
	return aesGCMDecrypt(key, data)
}

// ReadAll selects every row and decrypts its blob. One row's encrypted
// credential is written out by WriteAll/MergeActive's per-ID upsert, so
// ReadAll recombines them into the list shape the rest of the gateway uses.
func (s *PostgresStore) ReadAll(ctx context.Context) ([]*Credential, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT blob FROM %s ORDER BY id", s.fullTableName()))
	if err != nil {
		return nil, fmt.Errorf("postgres store: select credentials: %w", err)
	}
	defer rows.Close()

	var creds []*Credential
	for rows.Next() {
		var blob []byte
		if err = rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("postgres store: scan credential row: %w", err)
		}
		plain, errDecrypt := s.decryptBlob(blob)
		if errDecrypt != nil {
			return nil, fmt.Errorf("postgres store: decrypt credential (fatal, check salt integrity): %w", errDecrypt)
		}
		var c Credential
		if err = json.Unmarshal(plain, &c); err != nil {
			return nil, fmt.Errorf("postgres store: unmarshal credential: %w", err)
		}
		creds = append(creds, &c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: iterate credential rows: %w", err)
	}
	return creds, nil
}

// WriteAll replaces the table contents with exactly creds, in one
// transaction so a concurrent ReadAll never observes a partial replace.
func (s *PostgresStore) WriteAll(ctx context.Context, creds []*Credential) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres store: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.fullTableName())); err != nil {
		return fmt.Errorf("postgres store: clear credentials: %w", err)
	}
	for _, c := range creds {
		if err = s.upsertTx(ctx, tx, c); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("postgres store: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) upsertTx(ctx context.Context, tx *sql.Tx, c *Credential) error {
	plain, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("postgres store: marshal credential: %w", err)
	}
	blob, err := s.encryptBlob(plain)
	if err != nil {
		return fmt.Errorf("postgres store: encrypt credential: %w", err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, blob, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id)
		DO UPDATE SET blob = EXCLUDED.blob, updated_at = NOW()
	`, s.fullTableName())
	if _, err = tx.ExecContext(ctx, query, c.ID, blob); err != nil {
		return fmt.Errorf("postgres store: upsert credential %s: %w", c.ID, err)
	}
	return nil
}

// MergeActive upserts every entry in active (and single, if set) without
// touching rows for credentials absent from active, so a credential added by
// another gateway instance survives the merge.
func (s *PostgresStore) MergeActive(ctx context.Context, active []*Credential, single *Credential) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres store: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range active {
		if err = s.upsertTx(ctx, tx, c); err != nil {
			return err
		}
	}
	if single != nil {
		if err = s.upsertTx(ctx, tx, single); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("postgres store: commit: %w", err)
	}
	return nil
}

func quoteIdentifier(identifier string) string {
	replaced := strings.ReplaceAll(identifier, "\"", "\"\"")
	return "\"" + replaced + "\""
}
