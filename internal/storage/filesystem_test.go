package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAndURL(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	key, err := store.Write(context.Background(), "generated/images/job-1/image-01.png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if key != "generated/images/job-1/image-01.png" {
		t.Errorf("key = %q", key)
	}

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("stored bytes = %q", data)
	}

	if url := store.URL(key); url != "http://localhost:8080/static/generated/images/job-1/image-01.png" {
		t.Errorf("URL = %q", url)
	}
}

func TestWriteRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Write(context.Background(), "../escape.txt", []byte("x")); err == nil {
		t.Fatal("traversal key should be rejected")
	}
	if _, err := store.Write(context.Background(), "", []byte("x")); err == nil {
		t.Fatal("empty key should be rejected")
	}
}

func TestWriteHonorsContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Write(ctx, "a.txt", []byte("x")); err == nil {
		t.Fatal("cancelled context should abort write")
	}
}
