package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArtifact_EntryPoint(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		found bool
	}{
		{"index.js at root", map[string]string{"index.js": "", "index.html": ""}, true},
		{"app.py at root", map[string]string{"app.py": ""}, true},
		{"main.py nested", map[string]string{"src/main.py": ""}, true},
		{"no entry point", map[string]string{"notes.txt": "", "lib/util.js": ""}, false},
		{"similar names do not count", map[string]string{"main.python": "", "index.jsx": ""}, false},
		{"empty artifact", map[string]string{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artifact := &Artifact{Files: tt.files}
			path, ok := artifact.EntryPoint()
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Contains(t, tt.files, path)
			}
		})
	}
}
