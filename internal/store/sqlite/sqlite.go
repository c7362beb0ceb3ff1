package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/pairchat-server/internal/store"
)

//go:embed schema.sql
var schema string

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

// New opens the SQLite database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests that want a custom or partial schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// ApplySchema creates the tables if they do not exist yet.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

const userColumns = `id, username, email, password_hash, avatar, is_online, presence_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*store.User, error) {
	var (
		user       store.User
		presenceAt int64
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Avatar,
		&user.IsOnline,
		&presenceAt,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}
	if presenceAt > 0 {
		seen := time.Unix(0, presenceAt).UTC()
		user.LastSeen = &seen
	}
	return &user, nil
}

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, id, username, email, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (id, username, email, password_hash)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, username, email, passwordHash); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	return s.getUser(ctx, "id", id)
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.getUser(ctx, "email", strings.ToLower(email))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	return s.getUser(ctx, "username", username)
}

func (s *SQLiteStore) getUser(ctx context.Context, column, value string) (*store.User, error) {
	// column is always one of the fixed names above.
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// ListUsers lists every user ordered by username.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY username ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]*store.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// ==== DirectoryStore implementation ====

// SetOnline records a presence transition unless a newer one is already stored.
// Unknown users are ignored: identities come from outside this directory.
func (s *SQLiteStore) SetOnline(ctx context.Context, userID string, online bool, at time.Time) error {
	query := `
		UPDATE users
		SET is_online = ?, presence_at = ?
		WHERE id = ? AND presence_at < ?
	`
	ts := at.UnixNano()
	if _, err := s.db.ExecContext(ctx, query, online, ts, userID, ts); err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	return nil
}

// ==== MessageStore implementation ====

const messageSelect = `
	SELECT m.id, m.room, m.sender_id, COALESCE(u.username, ''), COALESCE(u.avatar, ''), m.content, m.created_at
	FROM messages m
	LEFT JOIN users u ON u.id = m.sender_id
`

func scanMessage(row rowScanner) (*store.Message, error) {
	var (
		msg       store.Message
		createdAt int64
	)
	if err := row.Scan(
		&msg.ID,
		&msg.Room,
		&msg.SenderID,
		&msg.SenderUsername,
		&msg.SenderAvatar,
		&msg.Content,
		&createdAt,
	); err != nil {
		return nil, err
	}
	msg.CreatedAt = time.Unix(0, createdAt).UTC()
	return &msg, nil
}

// StoreMessage persists a message and returns it with the sender's display fields.
func (s *SQLiteStore) StoreMessage(ctx context.Context, room, senderID, content string, at time.Time) (*store.Message, error) {
	query := `
		INSERT INTO messages (room, sender_id, content, created_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, room, senderID, content, at.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	msg, err := scanMessage(s.db.QueryRowContext(ctx, messageSelect+` WHERE m.id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("load stored message: %w", err)
	}
	return msg, nil
}

// ListMessagesByRoom returns the newest limit messages of a room, oldest first.
func (s *SQLiteStore) ListMessagesByRoom(ctx context.Context, room string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	query := messageSelect + `
		WHERE m.room = ?
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, room, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Reverse to chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
