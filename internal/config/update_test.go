package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetTheme(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		theme    string
		contains []string
		absent   []string
	}{
		{
			name:     "creates missing file",
			theme:    ThemeDark,
			contains: []string{"theme: dark"},
		},
		{
			name:     "replaces existing theme",
			existing: "version: 1\ntheme: light\n",
			theme:    ThemeDark,
			contains: []string{"version: 1", "theme: dark"},
			absent:   []string{"light"},
		},
		{
			name:     "keeps other sections and comments",
			existing: "# my backend\nserver:\n  url: http://metrics:5000 # prod\n",
			theme:    ThemeAuto,
			contains: []string{"# my backend", "url: http://metrics:5000", "# prod", "theme: auto"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sub", ConfigFileName)
			if tt.existing != "" {
				require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
				require.NoError(t, os.WriteFile(path, []byte(tt.existing), 0644))
			}

			require.NoError(t, SetTheme(path, tt.theme))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, string(data), s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, string(data), s)
			}

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, tt.theme, cfg.Theme)
		})
	}
}

func TestSetTheme_RejectsUnknown(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)

	err := SetTheme(path, "neon")

	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSetTheme_RejectsNonMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("- a\n- b\n"), 0644))

	assert.Error(t, SetTheme(path, ThemeDark))
}
