package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cipherroom/cipherroom/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_private BOOLEAN NOT NULL DEFAULT FALSE,
		pass_hash TEXT,
		enc_key BYTEA NOT NULL,
		created_by UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		message_count BIGINT NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS room_participants (
		room_id UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		user_id UUID NOT NULL,
		added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (room_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_rooms_created ON rooms(created_at);
	CREATE INDEX IF NOT EXISTS idx_participants_user ON room_participants(user_id);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateRoom inserts the room, its key, and the creator participant in
// one transaction.
func (s *PostgresStore) CreateRoom(ctx context.Context, name, description string, isPrivate bool, passHash string, createdBy uuid.UUID, key []byte) (*models.Room, error) {
	id := uuid.New()

	var passHashPtr *string
	if passHash != "" {
		passHashPtr = &passHash
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO rooms (id, name, description, is_private, pass_hash, enc_key, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, name, description, isPrivate, passHashPtr, key, createdBy)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO room_participants (room_id, user_id)
		VALUES ($1, $2)
	`, id, createdBy)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return s.GetRoom(ctx, id)
}

// GetRoom retrieves a room by ID, including its participant set.
func (s *PostgresStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	room := &models.Room{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, description, is_private, created_by, created_at, message_count
		FROM rooms WHERE id = $1
	`, id).Scan(
		&room.ID,
		&room.Name,
		&room.Description,
		&room.IsPrivate,
		&room.CreatedBy,
		&room.CreatedAt,
		&room.MessageCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT user_id FROM room_participants WHERE room_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		room.Participants = append(room.Participants, userID)
	}

	return room, rows.Err()
}

// GetRoomKey retrieves a room's encryption key.
func (s *PostgresStore) GetRoomKey(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var key []byte
	err := s.pool.QueryRow(ctx, `
		SELECT enc_key FROM rooms WHERE id = $1
	`, id).Scan(&key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return key, nil
}

// GetRoomPassHash retrieves the passphrase hash for a private room.
func (s *PostgresStore) GetRoomPassHash(ctx context.Context, id uuid.UUID) (string, error) {
	var passHash *string
	err := s.pool.QueryRow(ctx, `
		SELECT pass_hash FROM rooms WHERE id = $1
	`, id).Scan(&passHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
func (s *PostgresStore) RoomsFor(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.name, r.description, r.is_private, r.created_by, r.created_at, r.message_count
		FROM rooms r
		JOIN room_participants p ON p.room_id = r.id
		WHERE p.user_id = $1
		ORDER BY r.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		var room models.Room
		err := rows.Scan(
			&room.ID,
			&room.Name,
			&room.Description,
			&room.IsPrivate,
			&room.CreatedBy,
			&room.CreatedAt,
			&room.MessageCount,
		)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

// AddParticipant adds a user to a room's participant set. Idempotent.
func (s *PostgresStore) AddParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO room_participants (room_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, roomID, userID)
	return err
}

// IsParticipant reports whether the user is in the room's participant set.
func (s *PostgresStore) IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM room_participants WHERE room_id = $1 AND user_id = $2
	`, roomID, userID).Scan(&count)
	return count > 0, err
}

// IncrementMessageCount increments the room's message counter.
func (s *PostgresStore) IncrementMessageCount(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE rooms SET message_count = message_count + 1 WHERE id = $1
	`, id)
	return err
}

// CountRooms returns the total number of rooms.
func (s *PostgresStore) CountRooms(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&count)
	return count, err
}

// SumMessageCount returns the total message count across all rooms.
func (s *PostgresStore) SumMessageCount(ctx context.Context) (int64, error) {
	var sum int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(message_count), 0) FROM rooms`).Scan(&sum)
	return sum, err
}
