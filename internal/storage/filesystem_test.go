package storage

import (
	"context"
	"errors"
	"testing"
)

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "jobs/1/assets/logo", want: "jobs/1/assets/logo"},
		{key: "/jobs//1/./assets/logo", want: "jobs/1/assets/logo"},
		{key: `jobs\1\logo`, want: "jobs/1/logo"},
		{key: "../escape", wantErr: true},
		{key: "jobs/../../escape", wantErr: true},
		{key: " ", wantErr: true},
		{key: ".", wantErr: true},
	}
	for _, tc := range tests {
		got, err := sanitizeKey(tc.key)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("sanitizeKey(%q) expected error, got %q", tc.key, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("sanitizeKey(%q) error: %v", tc.key, err)
		}
		if got != tc.want {
			t.Fatalf("sanitizeKey(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	ctx := context.Background()
	key := AssetKey("job-1", "logo")

	if _, err := store.Write(ctx, key, []byte("png")); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	data, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if string(data) != "png" {
		t.Fatalf("unexpected data %q", data)
	}

	if err := store.Delete(ctx, "jobs/job-1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := store.Read(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
