package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.jpg"))
	touch(t, filepath.Join(dir, "a.PNG"))
	touch(t, filepath.Join(dir, "c.webp"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, ".hidden.jpg"))
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	touch(t, filepath.Join(dir, "nested", "deep.jpg"))

	files, err := ListImages(dir)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		filepath.Join(dir, "a.PNG"),
		filepath.Join(dir, "b.jpg"),
		filepath.Join(dir, "c.webp"),
	}
	if len(files) != len(want) {
		t.Fatalf("got %d files %v, want %d", len(files), files, len(want))
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %s, want %s", i, files[i], want[i])
		}
	}
}

func TestSubdirectories(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"vol2", "vol1", ".git"} {
		if err := os.Mkdir(filepath.Join(root, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	touch(t, filepath.Join(root, "stray.jpg"))

	dirs, err := Subdirectories(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 2 || filepath.Base(dirs[0]) != "vol1" || filepath.Base(dirs[1]) != "vol2" {
		t.Errorf("Subdirectories = %v, want [vol1 vol2]", dirs)
	}
}

func TestEnsureDir(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a", "b", "c")
	if err := EnsureDir(target); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		t.Errorf("EnsureDir did not create %s", target)
	}
}
