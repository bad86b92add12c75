package packager

import (
	"archive/zip"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/forge/internal/types"
)

func TestZipPackager_Package(t *testing.T) {
	pack, err := NewZipPackager(t.TempDir())
	require.NoError(t, err)

	artifact := &types.Artifact{Files: map[string]string{
		"index.js":   "console.log('hi');",
		"index.html": "<html></html>",
		"docs/notes": "scratch",
	}}
	url, err := pack.Package(context.Background(), "job-1", artifact)
	require.NoError(t, err)
	assert.Equal(t, "/downloads/job-1.zip", url)

	reader, err := zip.OpenReader(pack.Path("job-1"))
	require.NoError(t, err)
	defer func() { _ = reader.Close() }()

	got := map[string]string{}
	for _, f := range reader.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		got[f.Name] = string(content)
	}
	assert.Equal(t, artifact.Files, got)
}

func TestZipPackager_EmptyArtifact(t *testing.T) {
	pack, err := NewZipPackager(t.TempDir())
	require.NoError(t, err)

	_, err = pack.Package(context.Background(), "job-2", &types.Artifact{Files: map[string]string{}})
	require.NoError(t, err)

	reader, err := zip.OpenReader(pack.Path("job-2"))
	require.NoError(t, err)
	defer func() { _ = reader.Close() }()
	assert.Empty(t, reader.File)
}
