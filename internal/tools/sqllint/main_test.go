package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGo(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunAcceptsMarkedStatements(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "q.go", "package q\n\nconst QOne = `--sql 11111111-2222-4333-8444-555555555555\nselect 1`\n\nconst label = \"not sql\"\n")
	var stderr bytes.Buffer
	if code := run([]string{dir}, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
}

func TestRunReportsMissingAndDuplicateMarkers(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "a.go", "package q\n\nconst QA = `--sql 11111111-2222-4333-8444-555555555555\nupdate t set x = 1`\n\nconst QBare = `delete from t`\n")
	writeGo(t, dir, "b.go", "package q\n\nconst QB = `--sql 11111111-2222-4333-8444-555555555555\nselect 2`\n")

	var stderr bytes.Buffer
	if code := run([]string{dir}, &stderr); code != 1 {
		t.Fatalf("exit %d, want 1", code)
	}
	out := stderr.String()
	if !strings.Contains(out, "missing or invalid --sql <uuid> marker (QBare)") {
		t.Fatalf("missing marker not reported:\n%s", out)
	}
	if !strings.Contains(out, "marker already used by QA") {
		t.Fatalf("duplicate marker not reported:\n%s", out)
	}
}
