package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"linkbird/api/internal/store"
)

// Namespace is the slot that holds the persisted session.
const Namespace = "linkbird-auth"

// ErrNoSnapshot is returned by Load when the slot has never been written.
var ErrNoSnapshot = errors.New("no session snapshot")

// Snapshot is the authenticated session. It is also exactly what gets
// persisted.
type Snapshot struct {
	User            *store.User `json:"user"`
	IsAuthenticated bool        `json:"isAuthenticated"`
}

// SnapshotStore is a durable key-value slot for the encoded snapshot.
type SnapshotStore interface {
	Load(ctx context.Context, slot string) ([]byte, error)
	Save(ctx context.Context, slot string, payload []byte) error
	Close() error
}

type envelope struct {
	State   Snapshot `json:"state"`
	Version int      `json:"version"`
}

func encodeSnapshot(snap Snapshot) ([]byte, error) {
	payload, err := json.Marshal(envelope{State: snap})
	if err != nil {
		return nil, fmt.Errorf("encode session snapshot: %w", err)
	}
	return payload, nil
}

// decodeSnapshot never yields an authenticated snapshot without a user.
func decodeSnapshot(payload []byte) (Snapshot, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Snapshot{}, fmt.Errorf("decode session snapshot: %w", err)
	}
	if env.State.User == nil {
		env.State.IsAuthenticated = false
	}
	return env.State, nil
}
