package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSource(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "q.go")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLintFileAcceptsConcatenatedQuery(t *testing.T) {
	path := writeSource(t, "package q\n\nconst cols = `id, status`\n\nconst Q = `--sql 3b7b26a6-0be2-44c0-a30d-49ad5ba7ef5e\nselect ` + cols + `\nfrom photos;\n`\n")
	vs, err := lintFile(path)
	if err != nil {
		t.Fatalf("lintFile: %v", err)
	}
	if len(vs) != 0 {
		t.Fatalf("violations = %+v", vs)
	}
}

func TestLintFileFlagsMissingMarker(t *testing.T) {
	path := writeSource(t, "package q\n\nconst cols = `id`\n\nconst Q = `update photos set status = 'FAILED'` + cols\n\nconst R = \"select 1\"\n")
	vs, err := lintFile(path)
	if err != nil {
		t.Fatalf("lintFile: %v", err)
	}
	if len(vs) != 2 {
		t.Fatalf("violations = %+v, want 2", vs)
	}
	if vs[0].name != "Q" || vs[1].name != "R" {
		t.Fatalf("names = %s, %s", vs[0].name, vs[1].name)
	}
}
