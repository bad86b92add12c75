package packager

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/appforge/forge/internal/types"
)

const githubAPIBase = "https://api.github.com"

// GithubPusher publishes artifacts as new repositories through the GitHub
// REST API
type GithubPusher struct {
	token   string
	client  *http.Client
	apiBase string
}

// NewGithubPusher creates a pusher, or nil when no token is configured so
// callers can treat the push step as disabled
func NewGithubPusher(token string) *GithubPusher {
	if token == "" {
		return nil
	}
	return &GithubPusher{
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		apiBase: githubAPIBase,
	}
}

var _ RepoPusher = (*GithubPusher)(nil)

// Push creates a repository named after the job and uploads every artifact
// file to it
func (g *GithubPusher) Push(ctx context.Context, jobID, prompt string, artifact *types.Artifact) (string, error) {
	name := "forge-" + shortID(jobID)
	description := "Generated app: " + truncate(prompt, 100)

	repoURL, owner, err := g.createRepo(ctx, name, description)
	if err != nil {
		return "", err
	}
	for path, content := range artifact.Files {
		if err := g.uploadFile(ctx, owner, name, path, content); err != nil {
			return "", fmt.Errorf("failed to push %s: %w", path, err)
		}
	}
	return repoURL, nil
}

func (g *GithubPusher) createRepo(ctx context.Context, name, description string) (url, owner string, err error) {
	body := map[string]interface{}{"name": name, "description": description, "private": false}
	var resp struct {
		HTMLURL string `json:"html_url"`
		Owner   struct {
			Login string `json:"login"`
		} `json:"owner"`
	}
	if err := g.do(ctx, http.MethodPost, "/user/repos", body, &resp); err != nil {
		return "", "", fmt.Errorf("failed to create repository: %w", err)
	}
	return resp.HTMLURL, resp.Owner.Login, nil
}

func (g *GithubPusher) uploadFile(ctx context.Context, owner, repo, path, content string) error {
	body := map[string]interface{}{
		"message": "Add " + path,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
	}
	endpoint := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, path)
	return g.do(ctx, http.MethodPut, endpoint, body, nil)
}

func (g *GithubPusher) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, g.apiBase+endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("github responded %d: %s", resp.StatusCode, string(detail))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
