package webui

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	clock := newFakeClock()
	store := NewSessionStore(time.Hour)
	store.now = clock.now

	s, err := store.Create()
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(s.ID) != 36 {
		t.Errorf("ID %q is not a UUID", s.ID)
	}
	if !s.ExpiresAt.Equal(clock.t.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v", s.ExpiresAt)
	}

	got, err := store.Get(s.ID)
	if err != nil || got.ID != s.ID {
		t.Errorf("Get() = %+v, %v", got, err)
	}

	if _, err := store.Get("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get(missing) err = %v", err)
	}
}

func TestSessionStore_Expiry(t *testing.T) {
	clock := newFakeClock()
	store := NewSessionStore(time.Hour)
	store.now = clock.now

	s, _ := store.Create()
	clock.advance(time.Hour)

	if _, err := store.Get(s.ID); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Get() err = %v, want ErrSessionExpired", err)
	}
	if store.Count() != 0 {
		t.Errorf("expired session kept, Count() = %d", store.Count())
	}
}

func TestSessionStore_DeleteAndCleanup(t *testing.T) {
	clock := newFakeClock()
	store := NewSessionStore(time.Hour)
	store.now = clock.now

	a, _ := store.Create()
	store.Create()
	clock.advance(30 * time.Minute)
	store.Create()

	store.Delete(a.ID)
	if store.Count() != 2 {
		t.Fatalf("Count() after delete = %d, want 2", store.Count())
	}

	clock.advance(45 * time.Minute)
	if removed := store.Cleanup(); removed != 1 {
		t.Errorf("Cleanup() removed %d, want 1", removed)
	}
	if store.Count() != 1 {
		t.Errorf("Count() = %d, want 1", store.Count())
	}
}
