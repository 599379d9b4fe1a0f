package manifest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSquadFromFile_Full(t *testing.T) {
	sm, err := ReadSquadFromFile(filepath.Join("testdata", "squad_full.yaml"))

	require.NoError(t, err)
	require.NotNil(t, sm)
	assert.Equal(t, "game-dev", sm.Name)
	assert.Equal(t, "1.2.0", sm.Version)
	assert.Len(t, sm.Agents, 3)
	assert.Equal(t, "agents/game-designer.md", sm.Agents[0].Path)

	assert.True(t, sm.HasAgent("game-developer"))
	assert.True(t, sm.HasAgent("dev"))
	assert.False(t, sm.HasAgent("pm"))
	assert.Equal(t, []string{"dev", "game-designer", "game-developer"}, sm.AgentNames())
}

func TestReadSquadFromFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		wantErr string
	}{
		{name: "not found", file: "nonexistent.yaml", wantErr: "failed to read squad manifest"},
		{name: "no squad name", file: "squad_no_name.yaml", wantErr: "has no name"},
		{name: "agent without name", file: "squad_agent_no_name.yaml", wantErr: "agent at index 0 has no name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm, err := ReadSquadFromFile(filepath.Join("testdata", tt.file))

			assert.Error(t, err)
			assert.Nil(t, sm)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadSquadFromBytes_InvalidYAML(t *testing.T) {
	sm, err := ReadSquadFromBytes([]byte("name: [unclosed"))

	assert.Error(t, err)
	assert.Nil(t, sm)
	assert.Contains(t, err.Error(), "failed to parse squad manifest")
}
