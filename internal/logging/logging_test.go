package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileLogger(t *testing.T, level string) (*asyncLogger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := New(level, path)
	require.NoError(t, err)
	return l, path
}

func TestNewWritesEntriesToFile(t *testing.T) {
	l, path := newFileLogger(t, "info")
	l.Infof("hello %d", 1)
	l.Close()

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(got), "hello 1")
}

func TestLevelFilteringSuppressesBelowThreshold(t *testing.T) {
	l, path := newFileLogger(t, "error")
	l.Debugf("should not appear")
	l.Infof("also should not appear")
	l.Errorf("boom")
	l.Close()

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(got), "should not appear")
	assert.Contains(t, string(got), "boom")
}

func TestInvalidLevelNameFallsBackToInfo(t *testing.T) {
	l, path := newFileLogger(t, "bogus-level")
	l.Debugf("debug line")
	l.Infof("info line")
	l.Close()

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(got), "debug line")
	assert.Contains(t, string(got), "info line")
}

func TestCloseFlushesAllQueuedEntriesBeforeReturning(t *testing.T) {
	l, path := newFileLogger(t, "info")
	for i := 0; i < 50; i++ {
		l.Infof("line %d", i)
	}
	l.Close()

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 50, strings.Count(string(got), "line "))
}
