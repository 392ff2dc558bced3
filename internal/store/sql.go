package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/mattn/go-sqlite3"
	"github.com/mmuslimabdulj/goat-dm/internal/domain"
	"github.com/mmuslimabdulj/goat-dm/internal/store/migrations"
	"github.com/pressly/goose/v3"
)

// Dialect names the SQL flavour behind an SQLStore
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "pgx"
)

// pgUniqueViolation is the SQLSTATE for unique_violation
const pgUniqueViolation = "23505"

// SQLStore implements Store on database/sql. Queries are written with $n
// placeholders, which SQLite receives as ?n.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLiteStore opens (creating if needed) the SQLite database at dsn and
// migrates it.
func NewSQLiteStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers; a single connection also keeps in-memory
	// databases alive for the lifetime of the store.
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db, DialectSQLite)
}

// NewPostgresStore connects to PostgreSQL through pgx and migrates it
func NewPostgresStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newSQLStore(ctx, db, DialectPostgres)
}

func newSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := RunMigrations(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &SQLStore{db: db, dialect: dialect}, nil
}

// goose keeps its base FS and dialect in package state
var migrateMu sync.Mutex

// RunMigrations applies the embedded migrations for dialect
func RunMigrations(ctx context.Context, db *sql.DB, dialect Dialect) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	dir := "sqlite"
	if dialect == DialectPostgres {
		dir = "postgres"
	}

	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(string(dialect)); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, dir)
}

// Close releases the connection pool
func (s *SQLStore) Close(_ context.Context) error {
	return s.db.Close()
}

func (s *SQLStore) q(query string) string {
	if s.dialect == DialectSQLite {
		return strings.ReplaceAll(query, "$", "?")
	}
	return query
}

func isUniqueViolation(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// User methods

func (s *SQLStore) CreateUser(ctx context.Context, u *domain.User) error {
	query := `INSERT INTO users (username, username_fold, password_hash, age, gender, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, s.q(query),
		u.Username, domain.FoldUsername(u.Username), u.PasswordHash, u.Age, u.Gender, u.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateUsername
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

const userColumns = `username, password_hash, age, gender, created_at`

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u      domain.User
		age    sql.NullInt64
		gender sql.NullString
	)
	if err := row.Scan(&u.Username, &u.PasswordHash, &age, &gender, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if age.Valid {
		v := int(age.Int64)
		u.Age = &v
	}
	if gender.Valid {
		u.Gender = &gender.String
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (s *SQLStore) GetUser(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(s.db.QueryRowContext(ctx, s.q(query), username))
}

// FindUserFold matches on the Unicode case fold stored at insert; SQL lower()
// is ASCII-only on SQLite.
func (s *SQLStore) FindUserFold(ctx context.Context, q string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
	          WHERE username_fold = $1
	          ORDER BY CASE WHEN username = $2 THEN 0 ELSE 1 END, username
	          LIMIT 1`
	return scanUser(s.db.QueryRowContext(ctx, s.q(query), domain.FoldUsername(q), q))
}

func (s *SQLStore) ListOtherUsernames(ctx context.Context, exclude string) ([]string, error) {
	query := `SELECT username FROM users WHERE username <> $1 ORDER BY username`

	rows, err := s.db.QueryContext(ctx, s.q(query), exclude)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Message methods

func (s *SQLStore) SaveMessage(ctx context.Context, m *domain.Message) error {
	query := `INSERT INTO messages (id, sender, receiver, message, translated_message, timestamp)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, s.q(query),
		m.ID, m.Sender, m.Receiver, m.Body, m.Translated, m.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (s *SQLStore) Conversation(ctx context.Context, a, b string) ([]domain.Message, error) {
	query := `SELECT id, sender, receiver, message, translated_message, timestamp FROM messages
	          WHERE (sender = $1 AND receiver = $2) OR (sender = $2 AND receiver = $1)
	          ORDER BY timestamp ASC, seq ASC`

	rows, err := s.db.QueryContext(ctx, s.q(query), a, b)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]domain.Message, 0)
	for rows.Next() {
		var (
			m          domain.Message
			translated sql.NullString
			ts         time.Time
		)
		if err := rows.Scan(&m.ID, &m.Sender, &m.Receiver, &m.Body, &translated, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		if translated.Valid {
			m.Translated = &translated.String
		}
		m.Timestamp = ts.UTC()
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
