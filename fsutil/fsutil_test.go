package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestCollectFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "rcm", "123-rcm.pdf"), "%PDF")
	writeFile(t, filepath.Join(root, "fi", "123-fi.PDF"), "%PDF")
	writeFile(t, filepath.Join(root, "fi", "123-fi.txt"), "texto")
	writeFile(t, filepath.Join(root, "meta.json"), "{}")

	tests := []struct {
		name string
		ext  string
		want []string
	}{
		{"pdf is case insensitive", ".pdf", []string{
			filepath.Join(root, "fi", "123-fi.PDF"),
			filepath.Join(root, "rcm", "123-rcm.pdf"),
		}},
		{"txt", ".TXT", []string{filepath.Join(root, "fi", "123-fi.txt")}},
		{"no match", ".docx", []string{}},
		{"empty extension matches all", "", []string{
			filepath.Join(root, "fi", "123-fi.PDF"),
			filepath.Join(root, "fi", "123-fi.txt"),
			filepath.Join(root, "meta.json"),
			filepath.Join(root, "rcm", "123-rcm.pdf"),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CollectFiles(root, tt.ext)
			if err != nil {
				t.Fatalf("CollectFiles: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("file %d = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCollectFilesMissingRoot(t *testing.T) {
	got, err := CollectFiles(filepath.Join(t.TempDir(), "nao-existe"), ".pdf")
	if err != nil {
		t.Fatalf("missing root should not fail: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty list, got %v", got)
	}
}

func TestEnsureOutputDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "meta.json")
	if err := EnsureOutputDir(target); err != nil {
		t.Fatalf("EnsureOutputDir: %v", err)
	}
	if !DirExists(filepath.Dir(target)) {
		t.Error("parent directory was not created")
	}
	// existing directory is fine
	if err := EnsureOutputDir(target); err != nil {
		t.Errorf("second call failed: %v", err)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out", "parsed.json")
	if err := WriteFileAtomic(target, []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(target, []byte("second")); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "second" {
		t.Errorf("content = %q", b)
	}

	entries, _ := os.ReadDir(filepath.Dir(target))
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %d entries", len(entries))
	}
}
