package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestObjectName_AllowlistAndSanitize(t *testing.T) {
	for _, in := range []string{"a.png", "b.JPG", "c.jpeg", "d.gif", "e.webp"} {
		name, err := ObjectName(in)
		if err != nil {
			t.Fatalf("ObjectName(%q): %v", in, err)
		}
		if len(name) < 37 || name[36] != '_' || !strings.HasSuffix(name, in) {
			t.Fatalf("unexpected name %q for %q", name, in)
		}
	}

	for _, in := range []string{"x.exe", "noext", "archive.png.zip", ".png", ""} {
		if _, err := ObjectName(in); !errors.Is(err, ErrUnsupportedType) {
			t.Fatalf("ObjectName(%q): expected ErrUnsupportedType, got %v", in, err)
		}
	}

	name, err := ObjectName(`..\..\etc/my photo (1).png`)
	if err != nil {
		t.Fatalf("ObjectName: %v", err)
	}
	if !strings.HasSuffix(name, "_my_photo_1.png") || strings.ContainsAny(name, `/\ ()`) {
		t.Fatalf("not sanitised: %q", name)
	}
}

func TestLocalImageStore_SaveAndDelete(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	s, err := NewLocalImageStore(dir, "/uploads")
	if err != nil {
		t.Fatalf("NewLocalImageStore: %v", err)
	}
	ref, err := s.Save(context.Background(), "abc_food.png", bytes.NewReader([]byte("img")), "image/png")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ref != "/uploads/abc_food.png" {
		t.Fatalf("unexpected ref %q", ref)
	}
	b, err := os.ReadFile(filepath.Join(dir, "abc_food.png"))
	if err != nil || string(b) != "img" {
		t.Fatalf("file content: %q err=%v", b, err)
	}

	if _, err := s.Save(context.Background(), "abc_food.png", bytes.NewReader(nil), ""); err == nil {
		t.Fatalf("expected error overwriting an existing object")
	}
	if _, err := s.Save(context.Background(), "../escape.png", bytes.NewReader(nil), ""); err == nil {
		t.Fatalf("expected error for path traversal")
	}

	if err := s.Delete(context.Background(), ref); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "abc_food.png")); !os.IsNotExist(err) {
		t.Fatalf("file should be gone, stat err=%v", err)
	}
	if err := s.Delete(context.Background(), ref); err != nil {
		t.Fatalf("Delete missing should be nil, got %v", err)
	}
}
