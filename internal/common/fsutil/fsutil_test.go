package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
	return home
}

func TestExpandHome(t *testing.T) {
	home := setHome(t)

	if got, err := ExpandHome("/tmp"); err != nil || got != "/tmp" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if got, err := ExpandHome(""); err != nil || got != "" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if got, err := ExpandHome("~"); err != nil || got != home {
		t.Fatalf("got %q err=%v want %q", got, err, home)
	}
	got, err := ExpandHome("~/sub")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got != filepath.Join(home, "sub") {
		t.Fatalf("got %q", got)
	}
}

func TestIsFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !IsFile(p) {
		t.Fatalf("expected file")
	}
	if IsFile(dir) {
		t.Fatalf("directory reported as file")
	}
	if IsFile(filepath.Join(dir, "missing")) {
		t.Fatalf("missing path reported as file")
	}
}
