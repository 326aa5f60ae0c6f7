package keyring

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/cipherroom/cipherroom/internal/crypto"
	"github.com/cipherroom/cipherroom/internal/models"
	"github.com/cipherroom/cipherroom/internal/store"
)

func createTestRoom(t *testing.T, st *store.MemoryStore, name string) *models.Room {
	t.Helper()
	key, err := crypto.NewRoomKey()
	if err != nil {
		t.Fatal(err)
	}
	room, err := st.CreateRoom(context.Background(), name, "", false, "", uuid.New(), key)
	if err != nil {
		t.Fatal(err)
	}
	return room
}

func TestKeyForStable(t *testing.T) {
	st := store.NewMemoryStore()
	reg := New(st)
	room := createTestRoom(t, st, "general")

	k1, err := reg.KeyFor(context.Background(), room.ID)
	if err != nil {
		t.Fatal(err)
	}
	k2, err := reg.KeyFor(context.Background(), room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatal("two lookups returned different keys for the same room")
	}
	if len(k1) != crypto.KeySize {
		t.Fatalf("expected key length %d, got %d", crypto.KeySize, len(k1))
	}
}

func TestKeysDistinctAcrossRooms(t *testing.T) {
	st := store.NewMemoryStore()
	reg := New(st)
	a := createTestRoom(t, st, "alpha")
	b := createTestRoom(t, st, "beta")

	ka, err := reg.KeyFor(context.Background(), a.ID)
	if err != nil {
		t.Fatal(err)
	}
	kb, err := reg.KeyFor(context.Background(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(ka, kb) {
		t.Fatal("two rooms share a key")
	}
}

func TestKeyForUnknownRoom(t *testing.T) {
	reg := New(store.NewMemoryStore())

	_, err := reg.KeyFor(context.Background(), uuid.New())
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
