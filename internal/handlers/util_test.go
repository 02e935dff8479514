package handlers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSizeReturnsActualSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	assert.Equal(t, int64(5), fileSize(path))
}

func TestFileSizeMissingFileReturnsZero(t *testing.T) {
	assert.Equal(t, int64(0), fileSize("/nonexistent/path/a.txt"))
}
