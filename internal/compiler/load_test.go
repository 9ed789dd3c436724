package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCUE(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	loaded, err := Load(filepath.Join("testdata", "standard.cue"))
	require.NoError(t, err)

	want := standardSchema(t)
	assert.Equal(t, want.Graph.Len(), loaded.Graph.Len())
	require.Len(t, loaded.Files, 1)
	assert.True(t, filepath.IsAbs(loaded.Files[0]))
	assert.Contains(t, loaded.Sources, loaded.Files[0])

	r := loaded.Graph.Lookup("R")
	require.NotNil(t, r)
	assert.Equal(t, loaded.Files[0], r.Pos.File)
}

func TestLoadDirectory_UnifiesFiles(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "a.cue", `record: A: {fields: {b: "B"}, attrs: {json: true}}`)
	writeCUE(t, dir, "sub/b.cue", `record: B: {fields: {x: "int32"}, attrs: {json: true}}`)
	writeCUE(t, dir, "notes.txt", `not cue`)

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Graph.Len())
	assert.Len(t, loaded.Files, 2)
	assert.Len(t, loaded.Sources, 2)
	assert.Equal(t, "a.cue", filepath.Base(loaded.Files[0]))
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing path", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema path")
	})
	t.Run("no files", func(t *testing.T) {
		_, err := Load(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no CUE files found")
	})
	t.Run("syntax error", func(t *testing.T) {
		dir := t.TempDir()
		writeCUE(t, dir, "bad.cue", `record: {`)
		_, err := Load(dir)
		require.Error(t, err)
	})
	t.Run("compile error keeps position", func(t *testing.T) {
		dir := t.TempDir()
		path := writeCUE(t, dir, "s.cue", "record: A: {\n\tfields: {x: \"Ghost\"}\n}\n")
		_, err := Load(path)
		var ce *CompileError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, 2, ce.Pos.Line())
	})
}

func TestFindCUEFiles_Sorted(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "z.cue", "")
	writeCUE(t, dir, "a/m.cue", "")
	writeCUE(t, dir, "b.cue", "")

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		rel, err := filepath.Rel(dir, f)
		require.NoError(t, err)
		names = append(names, rel)
	}
	assert.Equal(t, []string{filepath.Join("a", "m.cue"), "b.cue", "z.cue"}, names)
}
