package main

import (
	"os"
	"path/filepath"
	"testing"

	"loyalty-notify/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestRegistry(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "activity-registry.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestInputSchemas(t *testing.T) {
	log := logger.NewTestLogger(t)

	t.Run("missing file disables validation", func(t *testing.T) {
		schemas, err := inputSchemas(filepath.Join(t.TempDir(), "absent.json"), log, "dispatch-notification")
		require.NoError(t, err)
		assert.Empty(t, schemas)
	})

	t.Run("compiles known task types", func(t *testing.T) {
		path := writeTestRegistry(t, `{"version":"1","activities":[
			{"id":"dispatch","taskType":"dispatch-notification","inputSchema":{"type":"object","required":["notificationId"]}}
		]}`)
		schemas, err := inputSchemas(path, log, "dispatch-notification", "moderate-notification")
		require.NoError(t, err)
		require.Contains(t, schemas, "dispatch-notification")
		assert.NotContains(t, schemas, "moderate-notification")

		result, err := schemas["dispatch-notification"].ValidateJSON([]byte(`{}`))
		require.NoError(t, err)
		assert.False(t, result.Valid)
	})

	t.Run("invalid registry fails", func(t *testing.T) {
		path := writeTestRegistry(t, `{"version":"1","activities":[]}`)
		_, err := inputSchemas(path, log, "dispatch-notification")
		assert.Error(t, err)
	})
}

func TestRegistryValidateCommand(t *testing.T) {
	registryPath = "../../configs/activity-registry.json"
	t.Cleanup(func() { registryPath = "configs/activity-registry.json" })

	assert.NoError(t, registryValidateCmd.RunE(registryValidateCmd, nil))
}
