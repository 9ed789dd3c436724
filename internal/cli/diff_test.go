package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff_IdenticalRuns(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	base := genRun(t, db)
	head := genRun(t, db)

	stdout, _, err := execute(t, "diff", "--store", db, base, head)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ Runs identical")
}

func TestDiff_ChangedAttributes(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	base := genRun(t, db)
	overlay := writeFile(t, t.TempDir(), "attrs.jsonc", `{"Point.x": {"json.key": "X"}}`)
	head := genRun(t, db, "--attrs", overlay)

	stdout, _, err := execute(t, "diff", "--store", db, base, head)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "~ go/Point.pack_json")

	stdout, _, err = execute(t, "diff", "--store", db, base, head, "--format", "json")
	require.Error(t, err)
	var result DiffResult
	decodeResponse(t, stdout, &result)
	assert.False(t, result.Identical)
	assert.Empty(t, result.Added)
	assert.Empty(t, result.Removed)
	var keys []string
	for _, c := range result.Changed {
		keys = append(keys, c.Key)
	}
	assert.Contains(t, keys, "go/Point.pack_json")
	assert.Contains(t, keys, "web/Point.parse_json")
}

func TestDiff_UnknownRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	base := genRun(t, db)

	_, _, err := execute(t, "diff", "--store", db, base, "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
