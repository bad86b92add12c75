// Package packager holds the finalize-stage collaborators: artifact
// packaging and optional source-control push.
package packager

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/appforge/forge/internal/types"
)

// Packager turns an approved artifact into a downloadable package
type Packager interface {
	Package(ctx context.Context, jobID string, artifact *types.Artifact) (downloadURL string, err error)
}

// RepoPusher publishes an artifact to a source-control repository
type RepoPusher interface {
	Push(ctx context.Context, jobID, prompt string, artifact *types.Artifact) (repoURL string, err error)
}

// ZipPackager packages artifacts as zip archives in a local output
// directory, served back under /downloads.
type ZipPackager struct {
	outputDir string
}

// NewZipPackager creates a packager writing into outputDir, creating the
// directory if needed
func NewZipPackager(outputDir string) (*ZipPackager, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &ZipPackager{outputDir: outputDir}, nil
}

var _ Packager = (*ZipPackager)(nil)

// Package writes the artifact files into {jobID}.zip and returns its
// download path
func (p *ZipPackager) Package(_ context.Context, jobID string, artifact *types.Artifact) (string, error) {
	zipPath := filepath.Join(p.outputDir, jobID+".zip")
	f, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := zip.NewWriter(f)
	// Stable file order keeps archives reproducible
	paths := make([]string, 0, len(artifact.Files))
	for path := range artifact.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		entry, err := w.Create(path)
		if err != nil {
			return "", fmt.Errorf("failed to add %s to archive: %w", path, err)
		}
		if _, err := entry.Write([]byte(artifact.Files[path])); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize archive: %w", err)
	}
	return "/downloads/" + jobID + ".zip", nil
}

// Path returns the on-disk location of a packaged job
func (p *ZipPackager) Path(jobID string) string {
	return filepath.Join(p.outputDir, jobID+".zip")
}
