package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithin(t *testing.T) {
	root := t.TempDir()
	safe := filepath.Join(root, "safe")
	other := filepath.Join(root, "other")
	require.NoError(t, os.MkdirAll(safe, 0o755))
	require.NoError(t, os.MkdirAll(other, 0o755))
	require.NoError(t, os.Symlink(other, filepath.Join(safe, "link")))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in dir", filepath.Join(safe, "a.png"), false},
		{"missing nested dirs", filepath.Join(safe, "plots", "x", "a.png"), false},
		{"dir itself", safe, false},
		{"dot dot", filepath.Join(safe, "..", "a.png"), true},
		{"sibling", filepath.Join(other, "a.png"), true},
		{"through symlink", filepath.Join(safe, "link", "a.png"), true},
		{"new file under symlink", filepath.Join(safe, "link", "new", "a.png"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Within(tt.path, safe)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOutsideAllowed)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOutputPath(t *testing.T) {
	assert.NoError(t, ValidateOutputPath(filepath.Join(t.TempDir(), "out.json")))
	assert.NoError(t, ValidateOutputPath("plots/spot.png"))
	assert.ErrorIs(t, ValidateOutputPath("/etc/lens/out.json"), ErrOutsideAllowed)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"main", "main"},
		{"Config 2 (wide)", "Config_2_wide"},
		{"../../etc", "etc"},
		{"a//b", "a_b"},
		{"", "unnamed"},
		{"___", "unnamed"},
		{"λ scan", "scan"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), tt.in)
	}
	assert.LessOrEqual(t, len(SanitizeFilename(strings.Repeat("a", 300))), maxNameLen)
}
