package fsutil

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fs := OSFileSystem{}

	if !fs.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}
	if fs.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_CreateAllAndList(t *testing.T) {
	fs := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "out", "session")

	w, err := CreateAll(fs, filepath.Join(dir, "b.csv"))
	if err != nil {
		t.Fatalf("CreateAll failed: %v", err)
	}
	if _, err := io.WriteString(w, "x\n"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	for _, name := range []string{"a.CSV", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.csv"), 0755); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	got, err := FilesWithExt(fs, dir, ".csv")
	if err != nil {
		t.Fatalf("FilesWithExt failed: %v", err)
	}
	want := []string{filepath.Join(dir, "a.CSV"), filepath.Join(dir, "b.csv")}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("FilesWithExt = %v, want %v", got, want)
	}

	data, err := fs.ReadFile(filepath.Join(dir, "b.csv"))
	if err != nil || string(data) != "x\n" {
		t.Errorf("ReadFile = %q, %v", data, err)
	}
}

func TestMemoryFileSystem_CreateAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := CreateAll(mfs, "/reports/run.csv")
	if err != nil {
		t.Fatalf("CreateAll failed: %v", err)
	}
	if _, err := w.Write([]byte("hello, ")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := w.Write([]byte("world")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if !mfs.Exists("/reports") {
		t.Error("expected parent directory to exist")
	}
	data, err := mfs.ReadFile("/reports/run.csv")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "hello, world" {
		t.Errorf("expected %q, got %q", "hello, world", data)
	}

	f, err := mfs.Open("/reports/run.csv")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	read, err := io.ReadAll(f)
	if err != nil || string(read) != "hello, world" {
		t.Errorf("Open+ReadAll = %q, %v", read, err)
	}
	info, err := f.Stat()
	if err != nil || info.Size() != 12 || info.Name() != "run.csv" {
		t.Errorf("Stat = %+v, %v", info, err)
	}
}

func TestMemoryFileSystem_ReadFileIsCopy(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/a.csv", []byte("abc"))

	data, _ := mfs.ReadFile("/a.csv")
	data[0] = 'z'
	again, _ := mfs.ReadFile("/a.csv")
	if string(again) != "abc" {
		t.Errorf("stored data changed to %q", again)
	}
}

func TestMemoryFileSystem_Missing(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if _, err := mfs.Open("/missing.csv"); !os.IsNotExist(err) {
		t.Errorf("Open missing: got %v", err)
	}
	if _, err := mfs.ReadFile("/missing.csv"); !os.IsNotExist(err) {
		t.Errorf("ReadFile missing: got %v", err)
	}
	if _, err := mfs.ReadDir("/nowhere"); !os.IsNotExist(err) {
		t.Errorf("ReadDir missing: got %v", err)
	}
}

func TestMemoryFileSystem_FilesWithExt(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/data/s02_frown.csv", nil)
	mfs.WriteFile("/data/s01_smile.csv", nil)
	mfs.WriteFile("/data/readme.md", nil)
	mfs.WriteFile("/data/nested/s03.csv", nil)

	got, err := FilesWithExt(mfs, "/data", ".csv")
	if err != nil {
		t.Fatalf("FilesWithExt failed: %v", err)
	}
	want := []string{"/data/s01_smile.csv", "/data/s02_frown.csv"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("FilesWithExt = %v, want %v", got, want)
	}
}
