package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codetrail/ghactivity/pkg/activity"
)

func TestCollectWindow(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	t.Run("unset leaves defaults to collector", func(t *testing.T) {
		since, until, err := collectWindow("", "", 0, now)
		require.NoError(t, err)
		assert.True(t, since.IsZero())
		assert.True(t, until.IsZero())
	})

	t.Run("explicit dates", func(t *testing.T) {
		since, until, err := collectWindow("2026-01-01", "2026-06-30", 0, now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), since)
		assert.Equal(t, time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC), until)
	})

	t.Run("days counts back from now", func(t *testing.T) {
		since, until, err := collectWindow("", "", 30, now)
		require.NoError(t, err)
		assert.Equal(t, now.AddDate(0, 0, -30), since)
		assert.True(t, until.IsZero())
	})

	t.Run("days counts back from until when set", func(t *testing.T) {
		since, _, err := collectWindow("", "2026-06-30", 7, now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 6, 23, 0, 0, 0, 0, time.UTC), since)
	})

	t.Run("since overrides days", func(t *testing.T) {
		since, _, err := collectWindow("2026-03-01", "", 7, now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), since)
	})

	t.Run("inverted window rejected", func(t *testing.T) {
		_, _, err := collectWindow("2026-06-30", "2026-01-01", 0, now)
		assert.Error(t, err)
	})

	t.Run("garbage date rejected", func(t *testing.T) {
		_, _, err := collectWindow("yesterday", "", 0, now)
		assert.Error(t, err)
	})
}

func TestWriteResultToStdout(t *testing.T) {
	result := &activity.CollectionResult{RunID: "run-1", Subject: "octocat"}

	var buf bytes.Buffer
	require.NoError(t, writeResult(result, "", &buf))

	var decoded activity.CollectionResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "octocat", decoded.Subject)
}

func TestWriteResultToFile(t *testing.T) {
	result := &activity.CollectionResult{RunID: "run-2", Subject: "octocat"}
	path := filepath.Join(t.TempDir(), "out.json")

	var buf bytes.Buffer
	require.NoError(t, writeResult(result, path, &buf))
	assert.Zero(t, buf.Len())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded activity.CollectionResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-2", decoded.RunID)
}

func TestCollectCommandRejectsUnknownMode(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"collect", "octocat", "--mode", "thorough"})
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestCollectCommandRequiresLogin(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"collect"})
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	assert.Error(t, root.Execute())
}
