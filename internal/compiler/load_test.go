package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/phasedefer/internal/ir"
)

func writeCUE(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadPlans(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "shapes.cue", "package plans\n"+shapesCUE)

	plans, err := LoadPlans(dir)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "shapes", plans[0].Name)
	assert.Len(t, plans[0].Units, 4)
	assert.Equal(t, ir.PhaseCanonicalization, plans[0].Units[0].Phase)
}

func TestLoadDir_Errors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
		assert.ErrorIs(t, err, ErrDirNotFound)
	})

	t.Run("file instead of directory", func(t *testing.T) {
		dir := t.TempDir()
		writeCUE(t, dir, "plan.cue", "package plans")
		_, err := LoadDir(filepath.Join(dir, "plan.cue"))
		assert.ErrorIs(t, err, ErrDirNotFound)
	})

	t.Run("no cue files", func(t *testing.T) {
		dir := t.TempDir()
		writeCUE(t, dir, "readme.txt", "not cue")
		_, err := LoadDir(dir)
		assert.ErrorIs(t, err, ErrNoCUEFiles)
	})

	t.Run("syntax error", func(t *testing.T) {
		dir := t.TempDir()
		writeCUE(t, dir, "bad.cue", "package plans\nplan: {")
		_, err := LoadDir(dir)
		assert.Error(t, err)
	})

	t.Run("conflicting values", func(t *testing.T) {
		dir := t.TempDir()
		writeCUE(t, dir, "a.cue", "package plans\nx: 1")
		writeCUE(t, dir, "b.cue", "package plans\nx: 2")
		_, err := LoadDir(dir)
		assert.ErrorIs(t, err, ErrBuildFailed)
	})
}

func TestFindCUEFiles_Recursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0755))
	writeCUE(t, dir, "root.cue", "package plans")
	writeCUE(t, dir, "notes.txt", "skip")
	writeCUE(t, sub, "nested.cue", "package plans")

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
