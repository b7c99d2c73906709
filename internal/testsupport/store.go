package testsupport

import (
	"context"
	"testing"

	"aplose/internal/config"
	"aplose/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// MustCreateUser registers a user with a deterministic token.
func MustCreateUser(t testing.TB, st *store.Store, username string) *store.User {
	t.Helper()

	user, err := st.CreateUser(context.Background(), username, "token-"+username)
	if err != nil {
		t.Fatalf("store.CreateUser: %v", err)
	}
	return user
}
