package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const echoPipeline = `name: echo
steps:
  - action: query
    model: fake
    message:
      user: "${input}"
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", echoPipeline)
	writeFile(t, dir, "notes.txt", "ignored")
	single := writeFile(t, t.TempDir(), "b.yml", strings.Replace(echoPipeline, "name: echo", "name: other", 1))

	files, err := collectFiles([]string{dir, single})
	if err != nil {
		t.Fatalf("collectFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	if files[0].Pipeline.Name != "echo" || files[1].Pipeline.Name != "other" {
		t.Errorf("names = %q, %q", files[0].Pipeline.Name, files[1].Pipeline.Name)
	}
	if string(files[1].Source) == "" {
		t.Error("source not kept")
	}
}

func TestCollectFilesInvalid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", "steps: []\n")

	_, err := collectFiles([]string{path})
	if err == nil {
		t.Fatal("expected error for invalid definition")
	}
	if !strings.Contains(err.Error(), "bad.yaml") {
		t.Errorf("error %q does not name the file", err)
	}
}

func TestCollectFilesMissing(t *testing.T) {
	if _, err := collectFiles([]string{filepath.Join(t.TempDir(), "nope.yaml")}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateCommand(t *testing.T) {
	path := writeFile(t, t.TempDir(), "echo.yaml", echoPipeline)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"validate", path})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if want := "ok (echo, 1 steps)"; !strings.Contains(out.String(), want) {
		t.Errorf("output = %q, want it to contain %q", out.String(), want)
	}
}
