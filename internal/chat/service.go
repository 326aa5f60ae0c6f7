// Package chat implements the encrypted room-messaging engine: room
// lifecycle, authenticated encryption of message bodies, the ordered
// per-room message log, and the persist-then-publish pipeline feeding
// the fan-out hub.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/cipherroom/cipherroom/internal/crypto"
	"github.com/cipherroom/cipherroom/internal/hub"
	"github.com/cipherroom/cipherroom/internal/keyring"
	"github.com/cipherroom/cipherroom/internal/metrics"
	"github.com/cipherroom/cipherroom/internal/models"
	"github.com/cipherroom/cipherroom/internal/store"
)

const (
	// MaxContentRunes bounds a message body.
	MaxContentRunes = 5000
	// MaxNameRunes bounds a room name.
	MaxNameRunes = 80
	// MaxListLimit caps one history page.
	MaxListLimit = 200
	// DefaultListLimit is used when the caller does not ask for a size.
	DefaultListLimit = 50

	minPassphraseLen = 16
)

// Publisher is the fan-out dependency. *hub.Hub satisfies it; tests
// substitute a recorder.
type Publisher interface {
	Publish(roomID uuid.UUID, ev hub.Event)
}

// roomState serializes appends per room and carries the high-water
// timestamp that keeps per-room timestamps strictly increasing.
type roomState struct {
	mu     sync.Mutex
	lastTS int64
}

// Service wires the data store, message log, key registry, and publisher
// together. All collaborators arrive through the constructor; there are
// no package-level singletons.
type Service struct {
	store  store.DataStore
	log    store.MessageLog
	keys   *keyring.Registry
	pub    Publisher
	logger zerolog.Logger

	roomStates sync.Map // uuid.UUID -> *roomState
}

// NewService creates the messaging engine.
func NewService(st store.DataStore, msgLog store.MessageLog, keys *keyring.Registry, pub Publisher, logger zerolog.Logger) *Service {
	return &Service{
		store:  st,
		log:    msgLog,
		keys:   keys,
		pub:    pub,
		logger: logger,
	}
}

func (s *Service) roomState(id uuid.UUID) *roomState {
	v, _ := s.roomStates.LoadOrStore(id, &roomState{})
	return v.(*roomState)
}

// nextTimestamp returns a unix-ms timestamp strictly greater than any
// previously assigned for the room. Caller holds the room's mutex.
func (st *roomState) nextTimestamp() int64 {
	ts := time.Now().UnixMilli()
	if ts <= st.lastTS {
		ts = st.lastTS + 1
	}
	st.lastTS = ts
	return ts
}

// CreateRoom allocates a room with a fresh encryption key and the
// creator as its first participant. Private rooms take a passphrase,
// stored only as a bcrypt hash.
func (s *Service) CreateRoom(ctx context.Context, principal models.Principal, name, description string, isPrivate bool, passphrase string) (*models.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.Invalid("name", "required")
	}
	if utf8.RuneCountInString(name) > MaxNameRunes {
		return nil, models.Invalid("name", fmt.Sprintf("must be at most %d characters", MaxNameRunes))
	}

	var passHash string
	if isPrivate {
		if len(passphrase) < minPassphraseLen {
			return nil, models.Invalid("passphrase", fmt.Sprintf("private rooms require a passphrase of at least %d characters", minPassphraseLen))
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash passphrase: %w", err)
		}
		passHash = string(hash)
	}

	key, err := crypto.NewRoomKey()
	if err != nil {
		return nil, err
	}

	room, err := s.store.CreateRoom(ctx, name, description, isPrivate, passHash, principal.ID, key)
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	metrics.RoomsCreated.Inc()
	s.logger.Info().
		Stringer("room_id", room.ID).
		Str("name", room.Name).
		Bool("private", room.IsPrivate).
		Stringer("created_by", principal.ID).
		Msg("room created")

	return room, nil
}

// Rooms lists the rooms the principal participates in, newest first.
func (s *Service) Rooms(ctx context.Context, principal models.Principal) ([]models.Room, error) {
	rooms, err := s.store.RoomsFor(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// Room retrieves one room.
func (s *Service) Room(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	if room == nil {
		return nil, models.ErrNotFound
	}
	return room, nil
}

// JoinRoom adds the principal to the room's participant set. Private
// rooms require the room passphrase.
func (s *Service) JoinRoom(ctx context.Context, principal models.Principal, roomID uuid.UUID, passphrase string) error {
	room, err := s.Room(ctx, roomID)
	if err != nil {
		return err
	}

	if room.IsPrivate {
		passHash, err := s.store.GetRoomPassHash(ctx, roomID)
		if err != nil {
			return fmt.Errorf("get room passphrase: %w", err)
		}
		if bcrypt.CompareHashAndPassword([]byte(passHash), []byte(passphrase)) != nil {
			return models.ErrUnauthorized
		}
	}

	if err := s.store.AddParticipant(ctx, roomID, principal.ID); err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	return nil
}

// Send encrypts and persists a message, then broadcasts it to the room.
// The append (encrypt, timestamp, persist, publish) runs under a
// per-room mutex so concurrent senders interleave whole messages, never
// halves, and broadcast order matches append order.
func (s *Service) Send(ctx context.Context, principal models.Principal, roomID uuid.UUID, content string, kind models.Kind, replyTo string) (*models.Message, error) {
	if content == "" {
		return nil, models.Invalid("content", "required")
	}
	if utf8.RuneCountInString(content) > MaxContentRunes {
		return nil, models.Invalid("content", fmt.Sprintf("must be at most %d characters", MaxContentRunes))
	}
	if !kind.Valid() {
		return nil, models.Invalid("kind", fmt.Sprintf("unrecognized kind %q", kind))
	}

	if _, err := s.Room(ctx, roomID); err != nil {
		return nil, err
	}

	if replyTo != "" {
		parent, err := s.log.Get(ctx, replyTo)
		if err != nil {
			return nil, fmt.Errorf("look up parent message: %w", err)
		}
		if parent == nil || parent.RoomID != roomID {
			return nil, models.Invalid("reply_to", "parent message not found in this room")
		}
	}

	key, err := s.keys.KeyFor(ctx, roomID)
	if err != nil {
		return nil, err
	}

	rs := s.roomState(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	box, err := crypto.Seal([]byte(content), key)
	if err != nil {
		return nil, fmt.Errorf("encrypt message: %w", err)
	}

	stored := &models.StoredMessage{
		ID:         ulid.Make().String(),
		RoomID:     roomID,
		SenderID:   principal.ID,
		SenderName: principal.DisplayName,
		Ciphertext: box.Ciphertext,
		Nonce:      box.Nonce,
		Kind:       kind,
		ReplyTo:    replyTo,
		Timestamp:  rs.nextTimestamp(),
	}

	if err := s.log.Append(ctx, stored); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	if err := s.store.IncrementMessageCount(ctx, roomID); err != nil {
		// Counter drift only; the message itself is durable.
		s.logger.Warn().Err(err).Stringer("room_id", roomID).Msg("message count increment failed")
	}

	// The sender already holds the plaintext; no decrypt round-trip.
	msg := &models.Message{
		ID:         stored.ID,
		RoomID:     roomID,
		SenderID:   principal.ID,
		SenderName: principal.DisplayName,
		Content:    content,
		Kind:       kind,
		ReplyTo:    replyTo,
		Timestamp:  stored.Timestamp,
	}

	// Broadcast strictly after the durable write.
	s.pub.Publish(roomID, hub.Event{
		Type:    hub.EventMessageCreated,
		RoomID:  roomID,
		Payload: msg,
	})

	metrics.MessagesSent.WithLabelValues(string(kind)).Inc()
	return msg, nil
}

// List returns one page of messages in ascending chronological order.
// A record that fails to authenticate comes back with the decode-failure
// sentinel instead of aborting the page.
func (s *Service) List(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]models.Message, error) {
	if _, err := s.Room(ctx, roomID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	key, err := s.keys.KeyFor(ctx, roomID)
	if err != nil {
		return nil, err
	}

	page, err := s.log.Page(ctx, roomID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("read message log: %w", err)
	}

	// The log is newest-first; walk backwards for chronological output.
	messages := make([]models.Message, 0, len(page))
	for i := len(page) - 1; i >= 0; i-- {
		messages = append(messages, s.decryptRecord(&page[i], key))
	}
	return messages, nil
}

// decryptRecord builds the plaintext view of one stored record, failing
// closed into the sentinel state when the ciphertext does not
// authenticate.
func (s *Service) decryptRecord(rec *models.StoredMessage, key []byte) models.Message {
	msg := models.Message{
		ID:         rec.ID,
		RoomID:     rec.RoomID,
		SenderID:   rec.SenderID,
		SenderName: rec.SenderName,
		Kind:       rec.Kind,
		ReplyTo:    rec.ReplyTo,
		Timestamp:  rec.Timestamp,
		Edited:     rec.Edited,
		EditedAt:   rec.EditedAt,
	}

	plaintext, err := crypto.Open(crypto.SealedBox{Ciphertext: rec.Ciphertext, Nonce: rec.Nonce}, key)
	if err != nil {
		// Tampering or key mismatch; security-relevant.
		metrics.DecryptFailures.Inc()
		s.logger.Warn().
			Stringer("room_id", rec.RoomID).
			Str("message_id", rec.ID).
			Err(err).
			Msg("message failed to decrypt")
		msg.Content = models.DecodeFailedContent
		msg.DecodeFailed = true
		return msg
	}

	msg.Content = string(plaintext)
	return msg
}

// Edit replaces a message body. Only the original sender may edit; the
// new content is re-encrypted under the room key. Concurrent edits race
// and the last write wins.
func (s *Service) Edit(ctx context.Context, principal models.Principal, messageID, newContent string) (*models.Message, error) {
	if newContent == "" {
		return nil, models.Invalid("content", "required")
	}
	if utf8.RuneCountInString(newContent) > MaxContentRunes {
		return nil, models.Invalid("content", fmt.Sprintf("must be at most %d characters", MaxContentRunes))
	}

	rec, err := s.log.Get(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("look up message: %w", err)
	}
	if rec == nil {
		return nil, models.ErrNotFound
	}
	if rec.SenderID != principal.ID {
		return nil, models.ErrUnauthorized
	}

	key, err := s.keys.KeyFor(ctx, rec.RoomID)
	if err != nil {
		return nil, err
	}

	rs := s.roomState(rec.RoomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	box, err := crypto.Seal([]byte(newContent), key)
	if err != nil {
		return nil, fmt.Errorf("encrypt message: %w", err)
	}

	rec.Ciphertext = box.Ciphertext
	rec.Nonce = box.Nonce
	rec.Edited = true
	rec.EditedAt = time.Now().UnixMilli()

	if err := s.log.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}

	s.pub.Publish(rec.RoomID, hub.Event{
		Type:   hub.EventMessageEdited,
		RoomID: rec.RoomID,
		Payload: hub.MessageEdited{
			ID:       rec.ID,
			Content:  newContent,
			EditedAt: rec.EditedAt,
		},
	})

	metrics.MessagesEdited.Inc()

	msg := &models.Message{
		ID:         rec.ID,
		RoomID:     rec.RoomID,
		SenderID:   rec.SenderID,
		SenderName: rec.SenderName,
		Content:    newContent,
		Kind:       rec.Kind,
		ReplyTo:    rec.ReplyTo,
		Timestamp:  rec.Timestamp,
		Edited:     true,
		EditedAt:   rec.EditedAt,
	}
	return msg, nil
}

// Delete removes a message. Only the original sender may delete.
func (s *Service) Delete(ctx context.Context, principal models.Principal, messageID string) error {
	rec, err := s.log.Get(ctx, messageID)
	if err != nil {
		return fmt.Errorf("look up message: %w", err)
	}
	if rec == nil {
		return models.ErrNotFound
	}
	if rec.SenderID != principal.ID {
		return models.ErrUnauthorized
	}

	rs := s.roomState(rec.RoomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	removed, err := s.log.Delete(ctx, rec.RoomID, messageID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if !removed {
		return models.ErrNotFound
	}

	s.pub.Publish(rec.RoomID, hub.Event{
		Type:    hub.EventMessageDeleted,
		RoomID:  rec.RoomID,
		Payload: hub.MessageDeleted{ID: messageID},
	})

	metrics.MessagesDeleted.Inc()
	return nil
}
