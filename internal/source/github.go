package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"
)

const (
	// DefaultAPIRoot is the GitHub REST API base.
	DefaultAPIRoot = "https://api.github.com"

	// DefaultRawRoot is the raw file content base.
	DefaultRawRoot = "https://raw.githubusercontent.com"

	// DefaultOrganization hosts the apertium packages.
	DefaultOrganization = "apertium"

	defaultHTTPTimeout = 30 * time.Second

	// maxFileSize caps a single downloaded file. Dictionaries above this are
	// not plausible apertium data.
	maxFileSize = 64 << 20
)

// lastPageRE extracts the last page number from a Link pagination header.
var lastPageRE = regexp.MustCompile(`[?&]page=(\d+)[^>]*>;\s*rel="last"`)

// GitHub fetches package content from a GitHub organization. The integer
// revision of a package is its default-branch commit count, which the
// upstream assigns monotonically: revision r maps to the r-th commit from
// the root of history.
type GitHub struct {
	client  *http.Client
	apiRoot string
	rawRoot string
	org     string
	token   string
}

// GitHubOption customizes a GitHub fetcher.
type GitHubOption func(*GitHub)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) GitHubOption {
	return func(g *GitHub) { g.client = client }
}

// WithRoots overrides the API and raw-content base URLs. Used by tests and
// by deployments behind a caching proxy.
func WithRoots(apiRoot, rawRoot string) GitHubOption {
	return func(g *GitHub) {
		g.apiRoot = apiRoot
		g.rawRoot = rawRoot
	}
}

// WithOrganization overrides the GitHub organization.
func WithOrganization(org string) GitHubOption {
	return func(g *GitHub) { g.org = org }
}

// WithToken sets a bearer token for authenticated API calls, raising the
// rate limit and enabling the organization package listing.
func WithToken(token string) GitHubOption {
	return func(g *GitHub) { g.token = token }
}

// NewGitHub creates a GitHub fetcher with the apertium defaults.
func NewGitHub(opts ...GitHubOption) *GitHub {
	g := &GitHub{
		client:  &http.Client{Timeout: defaultHTTPTimeout},
		apiRoot: DefaultAPIRoot,
		rawRoot: DefaultRawRoot,
		org:     DefaultOrganization,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// LatestRevision implements [Fetcher]. The commit count is read from the
// Link pagination header of a single-commit listing, avoiding a history
// walk.
func (g *GitHub) LatestRevision(ctx context.Context, name string) (int, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/commits?per_page=1", g.apiRoot, g.org, url.PathEscape(name))

	body, header, err := g.get(ctx, endpoint, name)
	if err != nil {
		return 0, err
	}

	if match := lastPageRE.FindStringSubmatch(header.Get("Link")); match != nil {
		total, convErr := strconv.Atoi(match[1])
		if convErr != nil {
			return 0, fmt.Errorf("%w: parse Link header: %w", ErrSourceUnavailable, convErr)
		}

		return total, nil
	}

	// No Link header: the whole history fits on one page.
	var commits []json.RawMessage
	if err := json.Unmarshal(body, &commits); err != nil {
		return 0, fmt.Errorf("%w: decode commits: %w", ErrSourceUnavailable, err)
	}

	return len(commits), nil
}

// Fetch implements [Fetcher]: resolve the revision to a commit, list its
// tree, and download every file accepted by keep.
func (g *GitHub) Fetch(ctx context.Context, name string, revision int, keep func(path string) bool) (*PackageContent, error) {
	sha, err := g.resolveCommit(ctx, name, revision)
	if err != nil {
		return nil, err
	}

	paths, err := g.listTree(ctx, name, sha)
	if err != nil {
		return nil, err
	}

	content := &PackageContent{Name: name, Revision: revision}

	for _, path := range paths {
		if keep != nil && !keep(path) {
			continue
		}

		body, fetchErr := g.fetchRaw(ctx, name, sha, path)
		if fetchErr != nil {
			return nil, fetchErr
		}

		content.Files = append(content.Files, File{Path: path, Body: body})
	}

	return content, nil
}

// resolveCommit maps an integer revision to a commit SHA. Commit listings
// page newest-first, so revision r (counted from the root) lives on page
// total-r+1 at one commit per page.
func (g *GitHub) resolveCommit(ctx context.Context, name string, revision int) (string, error) {
	if revision < 1 {
		return "", fmt.Errorf("%w: %s@%d", ErrRevisionNotFound, name, revision)
	}

	total, err := g.LatestRevision(ctx, name)
	if err != nil {
		return "", err
	}

	if revision > total {
		return "", fmt.Errorf("%w: %s@%d (head is %d)", ErrRevisionNotFound, name, revision, total)
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/commits?per_page=1&page=%d",
		g.apiRoot, g.org, url.PathEscape(name), total-revision+1)

	body, _, err := g.get(ctx, endpoint, name)
	if err != nil {
		return "", err
	}

	var commits []struct {
		SHA string `json:"sha"`
	}

	if err := json.Unmarshal(body, &commits); err != nil {
		return "", fmt.Errorf("%w: decode commits: %w", ErrSourceUnavailable, err)
	}

	if len(commits) == 0 {
		return "", fmt.Errorf("%w: %s@%d", ErrRevisionNotFound, name, revision)
	}

	return commits[0].SHA, nil
}

// listTree returns the blob paths of the commit's tree, recursively.
func (g *GitHub) listTree(ctx context.Context, name, sha string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1",
		g.apiRoot, g.org, url.PathEscape(name), sha)

	body, _, err := g.get(ctx, endpoint, name)
	if err != nil {
		return nil, err
	}

	var tree struct {
		Tree []struct {
			Path string `json:"path"`
			Type string `json:"type"`
		} `json:"tree"`
	}

	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, fmt.Errorf("%w: decode tree: %w", ErrSourceUnavailable, err)
	}

	paths := make([]string, 0, len(tree.Tree))

	for _, node := range tree.Tree {
		if node.Type == "blob" {
			paths = append(paths, node.Path)
		}
	}

	return paths, nil
}

func (g *GitHub) fetchRaw(ctx context.Context, name, sha, path string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/%s/%s", g.rawRoot, g.org, url.PathEscape(name), sha, path)

	body, _, err := g.get(ctx, endpoint, name)
	if err != nil {
		return nil, err
	}

	return body, nil
}

// get performs one GET, mapping HTTP status to the source error taxonomy.
func (g *GitHub) get(ctx context.Context, endpoint, name string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: build request: %w", ErrSourceUnavailable, err)
	}

	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil, fmt.Errorf("%w: %s", ErrPackageNotFound, name)
	case resp.StatusCode != http.StatusOK:
		return nil, nil, fmt.Errorf("%w: %s returned %d", ErrSourceUnavailable, endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read body: %w", ErrSourceUnavailable, err)
	}

	return body, resp.Header, nil
}

// Package is one repository of the upstream organization.
type Package struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListPackages returns the organization's repositories, following
// pagination. Requires a token in practice; unauthenticated calls hit the
// rate limit quickly.
func (g *GitHub) ListPackages(ctx context.Context) ([]Package, error) {
	var packages []Package

	for page := 1; ; page++ {
		endpoint := fmt.Sprintf("%s/orgs/%s/repos?per_page=100&page=%d", g.apiRoot, g.org, page)

		body, _, err := g.get(ctx, endpoint, g.org)
		if err != nil {
			return nil, err
		}

		var batch []Package
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, fmt.Errorf("%w: decode repos: %w", ErrSourceUnavailable, err)
		}

		if len(batch) == 0 {
			return packages, nil
		}

		packages = append(packages, batch...)
	}
}
