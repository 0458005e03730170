package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.log")

	logger, err := Init("debug", "json", path)
	require.NoError(t, err)

	logger.Info("Node started", "network", "preprod", "feeds", 2)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &line))
	assert.Equal(t, "Node started", line["message"])
	assert.Equal(t, "preprod", line["network"])
	assert.Equal(t, float64(2), line["feeds"])
}

func TestInitSkipsMalformedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.log")

	logger, err := Init("info", "json", path)
	require.NoError(t, err)

	// Non-string key and a trailing dangling value are both dropped.
	logger.Info("odd fields", 42, "ignored", "kept", "yes", "dangling")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &line))
	assert.Equal(t, "yes", line["kept"])
	assert.NotContains(t, line, "ignored")
	assert.NotContains(t, line, "dangling")
}

func TestResolveWriter(t *testing.T) {
	w, err := resolveWriter("")
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, w)

	w, err = resolveWriter("stderr")
	require.NoError(t, err)
	assert.Equal(t, os.Stderr, w)

	_, err = resolveWriter(filepath.Join(t.TempDir(), "missing", "node.log"))
	assert.Error(t, err)
}
