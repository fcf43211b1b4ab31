package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestRegistry() *ActivityRegistry {
	return &ActivityRegistry{
		Version: "1.0.0",
		Activities: []Activity{
			{
				ID:       "dispatch-notification",
				TaskType: "dispatch-notification",
				InputSchema: map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"notificationId", "organizationId"},
				},
			},
			{ID: "moderate-notification", TaskType: "moderate-notification"},
		},
	}
}

func TestActivityRegistry_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ActivityRegistry)
		wantErr string
	}{
		{name: "valid", mutate: func(*ActivityRegistry) {}},
		{
			name:    "empty",
			mutate:  func(r *ActivityRegistry) { r.Activities = nil },
			wantErr: "no activities",
		},
		{
			name:    "duplicate task type",
			mutate:  func(r *ActivityRegistry) { r.Activities[1].TaskType = "dispatch-notification" },
			wantErr: "duplicate task type",
		},
		{
			name:    "missing task type",
			mutate:  func(r *ActivityRegistry) { r.Activities[1].TaskType = "" },
			wantErr: "taskType",
		},
		{
			name: "schema does not compile",
			mutate: func(r *ActivityRegistry) {
				r.Activities[0].InputSchema = map[string]interface{}{"type": 42}
			},
			wantErr: "input schema",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := createTestRegistry()
			tt.mutate(reg)

			err := reg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestActivity_CompileInputSchema(t *testing.T) {
	reg := createTestRegistry()

	a, ok := reg.Find("dispatch-notification")
	require.True(t, ok)
	schema, err := a.CompileInputSchema()
	require.NoError(t, err)

	result, err := schema.ValidateJSON([]byte(`{"notificationId":"n-1"}`))
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.GetErrorMessages(), "organizationId")

	b, _ := reg.Find("moderate-notification")
	none, err := b.CompileInputSchema()
	assert.NoError(t, err)
	assert.Nil(t, none)

	_, ok = reg.Find("email-send")
	assert.False(t, ok)
}

func TestLoadRegistry_ShippedFile(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join("..", "..", "configs", "activity-registry.json"))
	require.NoError(t, err)
	require.NoError(t, reg.Validate())

	for _, taskType := range []string{"dispatch-notification", "moderate-notification"} {
		_, ok := reg.Find(taskType)
		assert.True(t, ok, taskType)
	}

	dispatch, _ := reg.Find("dispatch-notification")
	schema, err := dispatch.CompileInputSchema()
	require.NoError(t, err)

	result, err := schema.ValidateJSON([]byte(`{"notificationId":"abc","organizationId":"5b0f3a0e-8a4c-4d47-9a57-1f2f0c1d2e3f"}`))
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.GetErrorMessages(), "notificationId")

	result, err = schema.ValidateJSON([]byte(`{"notificationId":"3b9f6c2e-8d41-4a7e-9c15-2f0d8e6a4b71","organizationId":"5b0f3a0e-8a4c-4d47-9a57-1f2f0c1d2e3f"}`))
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestLoadRegistry_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err := LoadRegistry(path)
	assert.Error(t, err)
}
