// Package config provides context persistence tests.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestContext_IsEmpty(t *testing.T) {
	tests := []struct {
		name string
		ctx  Context
		want bool
	}{
		{
			name: "empty context",
			ctx:  Context{},
			want: true,
		},
		{
			name: "with identity only",
			ctx:  Context{Identity: "alice"},
			want: false,
		},
		{
			name: "with token only",
			ctx:  Context{Token: "abc"},
			want: false,
		},
		{
			name: "room only is still empty",
			ctx:  Context{LastRoom: "7"},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ctx.IsEmpty(); got != tt.want {
				t.Errorf("Context.IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContext_StringHidesToken(t *testing.T) {
	ctx := &Context{}
	ctx.SetLogin("alice", "super-secret-token")
	ctx.SetRoom("7")

	got := ctx.String()
	if strings.Contains(got, "super-secret-token") {
		t.Fatalf("String() leaked token: %s", got)
	}
	if got != "identity:alice token:set room:7" {
		t.Errorf("String() = %q", got)
	}
}

func TestContext_Clear(t *testing.T) {
	ctx := &Context{Identity: "alice", Token: "t", LastRoom: "7"}
	ctx.Clear()
	if !ctx.IsEmpty() || ctx.LastRoom != "" {
		t.Errorf("Clear() left %+v", ctx)
	}
}

func TestContextStore_SaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewContextStore(filepath.Join(tmpDir, "context.yaml"))

	ctx := &Context{
		Identity: "alice",
		Token:    "9944b09199c62bcf9418ad846dd0e4bb",
		LastRoom: "42",
	}

	if err := store.Save(ctx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(store.Path())
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("context file mode = %v, want 0600", perm)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.Identity != ctx.Identity {
		t.Errorf("Identity = %v, want %v", loaded.Identity, ctx.Identity)
	}
	if loaded.Token != ctx.Token {
		t.Errorf("Token = %v, want %v", loaded.Token, ctx.Token)
	}
	if loaded.LastRoom != ctx.LastRoom {
		t.Errorf("LastRoom = %v, want %v", loaded.LastRoom, ctx.LastRoom)
	}
}

func TestContextStore_LoadEmpty(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewContextStore(filepath.Join(tmpDir, "context.yaml"))

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !loaded.IsEmpty() {
		t.Error("Load() should return empty context for non-existent file")
	}
}

func TestContextStore_Clear(t *testing.T) {
	tmpDir := t.TempDir()
	contextPath := filepath.Join(tmpDir, "context.yaml")
	store := NewContextStore(contextPath)

	if err := store.Save(&Context{Identity: "alice"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := os.Stat(contextPath); os.IsNotExist(err) {
		t.Fatal("context file should exist after save")
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if _, err := os.Stat(contextPath); !os.IsNotExist(err) {
		t.Error("context file should be removed after clear")
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() after Clear() error = %v", err)
	}
	if !loaded.IsEmpty() {
		t.Error("Load() after Clear() should return empty context")
	}
}
