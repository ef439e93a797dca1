package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/menta2k/embedviz/pkg/grid"
)

var sample = grid.Grid{{0.1, 0.9, 0.4}, {0.2, 0.8, 0}, {0, 0, 0}}

func TestJSONLayout(t *testing.T) {
	payload, err := New().ClipboardPayload(grid.Grid{{1, 0.5}, {-2, 0}})
	require.NoError(t, err)
	want := "[\n  [\n    1,\n    0.5\n  ],\n  [\n    -2,\n    0\n  ]\n]"
	require.Equal(t, want, payload)
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []string{FormatJSON, FormatYAML} {
		e, err := NewWithFormat(format)
		require.NoError(t, err)

		data, err := e.Marshal(sample)
		require.NoError(t, err)
		parsed, err := Parse(data)
		require.NoError(t, err, format)
		require.Equal(t, sample, parsed, format)

		again, err := e.Marshal(parsed)
		require.NoError(t, err)
		require.Equal(t, data, again, format)
	}
}

func TestFile(t *testing.T) {
	f, err := New().File(sample)
	require.NoError(t, err)
	require.Equal(t, "embedding_matrix.json", f.Name)
	require.Equal(t, "application/json", f.MIMEType)

	payload, err := New().ClipboardPayload(sample)
	require.NoError(t, err)
	require.Equal(t, payload, string(f.Data))

	y, err := NewWithFormat("YAML")
	require.NoError(t, err)
	require.Equal(t, "embedding_matrix.yaml", y.FileName())
	require.Equal(t, "application/yaml", y.MIMEType())
}

func TestEmptyMatrix(t *testing.T) {
	_, err := New().File(nil)
	require.ErrorIs(t, err, ErrNoMatrix)
	_, err = Parse([]byte("  "))
	require.ErrorIs(t, err, ErrNoMatrix)
	_, err = Parse([]byte("[]"))
	require.ErrorIs(t, err, ErrNoMatrix)
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := NewWithFormat("csv")
	require.Error(t, err)
}

func TestWriteAndReadFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, err := New().WriteFile(dir, sample)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "embedding_matrix.json"))

	_, err = os.Stat(path)
	require.NoError(t, err)

	g, err := ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, sample, g)
}
