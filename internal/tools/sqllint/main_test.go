package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLintFileFlagsMissingMarkers(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "queries.go", "package q\n\n"+
		"const columns = `id, status`\n\n"+
		"const QGood = `--sql 5bdde60c-95d3-4d44-8d77-933607ba7a98\nselect ` + columns + ` from jobs;`\n\n"+
		"const QBad = `select ` + columns + ` from jobs;`\n\n"+
		"const QPlain = \"delete from jobs\"\n\n"+
		"const notSQL = \"hello\"\n")

	vs, err := lintFile(path)
	require.NoError(t, err)
	names := make([]string, 0, len(vs))
	for _, v := range vs {
		names = append(names, v.name)
	}
	assert.ElementsMatch(t, []string{"QBad", "QPlain"}, names)
}

func TestLintTargetsSkipsUnderscoreDirsAndTests(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "_reference"), 0o755))
	writeSource(t, filepath.Join(dir, "_reference"), "bad.go", "package r\n\nconst Q = \"select 1\"\n")
	writeSource(t, dir, "bad_test.go", "package r\n\nconst Q = \"select 1\"\n")
	writeSource(t, dir, "ok.go", "package r\n\nconst Q = \"--sql 5bdde60c-95d3-4d44-8d77-933607ba7a98\\nselect 1\"\n")

	vs, err := lintTargets([]string{dir})
	require.NoError(t, err)
	assert.Empty(t, vs)
}
