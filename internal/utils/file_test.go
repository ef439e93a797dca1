package utils

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a.jpg", "a.jpg"},
		{"../../etc/passwd", "passwd"},
		{"..\\windows\\evil.png", "evil.png"},
		{" we:ird*name?.png ", "we_ird_name_.png"},
		{"..", ""},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.PNG", "a.jpg", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := EnsureDir(filepath.Join(dir, "sub.jpg")); err != nil {
		t.Fatal(err)
	}

	files, err := ListImageFiles(dir)
	if err != nil {
		t.Fatalf("ListImageFiles failed: %v", err)
	}
	if want := []string{"a.jpg", "b.PNG"}; !reflect.DeepEqual(files, want) {
		t.Errorf("got %v, want %v", files, want)
	}
	if !FileExists(filepath.Join(dir, "a.jpg")) || FileExists(filepath.Join(dir, "sub.jpg")) {
		t.Error("FileExists misreported")
	}
}

func TestFormatFileSize(t *testing.T) {
	if got := FormatFileSize(512); got != "512 B" {
		t.Errorf("got %q", got)
	}
	if got := FormatFileSize(1536); got != "1.5 KB" {
		t.Errorf("got %q", got)
	}
}
