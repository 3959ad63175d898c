package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeForge serves a minimal GitHub-shaped API for one repository with a
// linear three-commit history.
func fakeForge(t *testing.T) (*httptest.Server, *GitHub) {
	t.Helper()

	shas := []string{"sha-r3", "sha-r2", "sha-r1"} // newest first

	mux := http.NewServeMux()

	mux.HandleFunc("GET /repos/apertium/apertium-eng-spa/commits", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if page == "" {
			page = "1"
		}

		switch page {
		case "1":
			w.Header().Set("Link",
				`<https://example.test/repos/apertium/apertium-eng-spa/commits?per_page=1&page=3>; rel="last"`)
			fmt.Fprintf(w, `[{"sha": %q}]`, shas[0])
		case "2", "3":
			fmt.Fprintf(w, `[{"sha": "sha-r%s"}]`, map[string]string{"2": "2", "3": "1"}[page])
		default:
			fmt.Fprint(w, `[]`)
		}
	})

	mux.HandleFunc("GET /repos/apertium/apertium-eng-spa/git/trees/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tree": [
			{"path": "apertium-eng-spa.eng-spa.dix", "type": "blob"},
			{"path": "README.md", "type": "blob"},
			{"path": "texts", "type": "tree"}
		]}`)
	})

	mux.HandleFunc("GET /apertium/apertium-eng-spa/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ".dix") {
			http.NotFound(w, r)

			return
		}

		fmt.Fprint(w, `<dictionary><section><e/><e/></section></dictionary>`)
	})

	mux.HandleFunc("GET /orgs/apertium/repos", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `[{"name": "apertium-eng-spa", "description": "English-Spanish"}]`)

			return
		}

		fmt.Fprint(w, `[]`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	gh := NewGitHub(
		WithRoots(srv.URL, srv.URL),
		WithHTTPClient(srv.Client()),
	)

	return srv, gh
}

func TestGitHub_LatestRevision(t *testing.T) {
	t.Parallel()

	_, gh := fakeForge(t)

	rev, err := gh.LatestRevision(context.Background(), "apertium-eng-spa")
	require.NoError(t, err)
	assert.Equal(t, 3, rev)
}

func TestGitHub_LatestRevision_PackageNotFound(t *testing.T) {
	t.Parallel()

	_, gh := fakeForge(t)

	_, err := gh.LatestRevision(context.Background(), "apertium-nope")
	require.ErrorIs(t, err, ErrPackageNotFound)
}

func TestGitHub_Fetch_FiltersTree(t *testing.T) {
	t.Parallel()

	_, gh := fakeForge(t)

	content, err := gh.Fetch(context.Background(), "apertium-eng-spa", 2, func(path string) bool {
		return strings.HasSuffix(path, ".dix")
	})
	require.NoError(t, err)

	assert.Equal(t, 2, content.Revision)
	require.Len(t, content.Files, 1)
	assert.Equal(t, "apertium-eng-spa.eng-spa.dix", content.Files[0].Path)
	assert.Contains(t, string(content.Files[0].Body), "<dictionary>")
}

func TestGitHub_Fetch_RevisionNotFound(t *testing.T) {
	t.Parallel()

	_, gh := fakeForge(t)

	_, err := gh.Fetch(context.Background(), "apertium-eng-spa", 9, nil)
	require.ErrorIs(t, err, ErrRevisionNotFound)

	_, err = gh.Fetch(context.Background(), "apertium-eng-spa", 0, nil)
	require.ErrorIs(t, err, ErrRevisionNotFound)
}

func TestGitHub_SourceUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	gh := NewGitHub(WithRoots(srv.URL, srv.URL), WithHTTPClient(srv.Client()))

	_, err := gh.LatestRevision(context.Background(), "apertium-eng-spa")
	require.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestGitHub_ListPackages(t *testing.T) {
	t.Parallel()

	_, gh := fakeForge(t)

	packages, err := gh.ListPackages(context.Background())
	require.NoError(t, err)

	require.Len(t, packages, 1)
	assert.Equal(t, "apertium-eng-spa", packages[0].Name)
}
