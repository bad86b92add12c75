package types

import "strings"

// entryPoints are the file names recognized as runnable entry points in a
// generated artifact
var entryPoints = []string{"app.py", "main.py", "index.js"}

// Artifact is a generated project: a mapping of relative file paths to file
// contents. It is the unit handed from the code step to validation, review
// and packaging.
type Artifact struct {
	Files map[string]string `json:"files"`
}

// EntryPoint returns the path of the first recognized runnable entry point,
// or false if the artifact has none
func (a *Artifact) EntryPoint() (string, bool) {
	for path := range a.Files {
		base := path
		if i := strings.LastIndex(path, "/"); i >= 0 {
			base = path[i+1:]
		}
		for _, ep := range entryPoints {
			if base == ep {
				return path, true
			}
		}
	}
	return "", false
}

// FileCount returns the number of files in the artifact
func (a *Artifact) FileCount() int {
	return len(a.Files)
}
