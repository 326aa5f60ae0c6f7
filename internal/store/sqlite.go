package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/cipherroom/cipherroom/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the default
// backend when no DATABASE_URL is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/cipherroom.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/cipherroom.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT DEFAULT '',
		is_private INTEGER DEFAULT 0,
		pass_hash TEXT,
		enc_key BLOB NOT NULL,
		created_by TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		message_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS room_participants (
		room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (room_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_rooms_created ON rooms(created_at);
	CREATE INDEX IF NOT EXISTS idx_participants_user ON room_participants(user_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateRoom inserts the room, its key, and the creator participant in
// one transaction.
func (s *SQLiteStore) CreateRoom(ctx context.Context, name, description string, isPrivate bool, passHash string, createdBy uuid.UUID, key []byte) (*models.Room, error) {
	id := uuid.New().String()
	now := time.Now()

	var passHashPtr *string
	if passHash != "" {
		passHashPtr = &passHash
	}

	isPrivateInt := 0
	if isPrivate {
		isPrivateInt = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rooms (id, name, description, is_private, pass_hash, enc_key, created_by, created_at, message_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
	`, id, name, description, isPrivateInt, passHashPtr, key, createdBy.String(), now)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO room_participants (room_id, user_id, added_at)
		VALUES (?, ?, ?)
	`, id, createdBy.String(), now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetRoom(ctx, uuid.MustParse(id))
}

// GetRoom retrieves a room by ID, including its participant set.
func (s *SQLiteStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	room := &models.Room{}
	var idStr, createdByStr string
	var isPrivateInt int

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, is_private, created_by, created_at, message_count
		FROM rooms WHERE id = ?
	`, id.String()).Scan(
		&idStr,
		&room.Name,
		&room.Description,
		&isPrivateInt,
		&createdByStr,
		&room.CreatedAt,
		&room.MessageCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	room.ID = uuid.MustParse(idStr)
	room.IsPrivate = isPrivateInt == 1
	room.CreatedBy = uuid.MustParse(createdByStr)

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM room_participants WHERE room_id = ?
	`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var userStr string
		if err := rows.Scan(&userStr); err != nil {
			return nil, err
		}
		room.Participants = append(room.Participants, uuid.MustParse(userStr))
	}

	return room, rows.Err()
}

// GetRoomKey retrieves a room's encryption key.
func (s *SQLiteStore) GetRoomKey(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var key []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT enc_key FROM rooms WHERE id = ?
	`, id.String()).Scan(&key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return key, nil
}

// GetRoomPassHash retrieves the passphrase hash for a private room.
func (s *SQLiteStore) GetRoomPassHash(ctx context.Context, id uuid.UUID) (string, error) {
	var passHash *string
	err := s.db.QueryRowContext(ctx, `
		SELECT pass_hash FROM rooms WHERE id = ?
	`, id.String()).Scan(&passHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	if passHash == nil {
		return "", nil
	}
	return *passHash, nil
}

// RoomsFor lists rooms the user participates in, newest-created first.
func (s *SQLiteStore) RoomsFor(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.description, r.is_private, r.created_by, r.created_at, r.message_count
		FROM rooms r
		JOIN room_participants p ON p.room_id = r.id
		WHERE p.user_id = ?
		ORDER BY r.created_at DESC
	`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		var room models.Room
		var idStr, createdByStr string
		var isPrivateInt int

		err := rows.Scan(
			&idStr,
			&room.Name,
			&room.Description,
			&isPrivateInt,
			&createdByStr,
			&room.CreatedAt,
			&room.MessageCount,
		)
		if err != nil {
			return nil, err
		}

		room.ID = uuid.MustParse(idStr)
		room.IsPrivate = isPrivateInt == 1
		room.CreatedBy = uuid.MustParse(createdByStr)
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

// AddParticipant adds a user to a room's participant set. Idempotent.
func (s *SQLiteStore) AddParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO room_participants (room_id, user_id)
		VALUES (?, ?)
	`, roomID.String(), userID.String())
	return err
}

// IsParticipant reports whether the user is in the room's participant set.
func (s *SQLiteStore) IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM room_participants WHERE room_id = ? AND user_id = ?
	`, roomID.String(), userID.String()).Scan(&count)
	return count > 0, err
}

// IncrementMessageCount increments the room's message counter.
func (s *SQLiteStore) IncrementMessageCount(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE rooms SET message_count = message_count + 1 WHERE id = ?
	`, id.String())
	return err
}

// CountRooms returns the total number of rooms.
func (s *SQLiteStore) CountRooms(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&count)
	return count, err
}

// SumMessageCount returns the total message count across all rooms.
func (s *SQLiteStore) SumMessageCount(ctx context.Context) (int64, error) {
	var sum int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(message_count), 0) FROM rooms`).Scan(&sum)
	return sum, err
}
