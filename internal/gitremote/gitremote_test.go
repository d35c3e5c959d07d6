package gitremote

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	git "gopkg.in/src-d/go-git.v4"
	"gopkg.in/src-d/go-git.v4/config"
)

func TestParse(t *testing.T) {
	tests := []struct {
		remote    string
		base      string
		namespace string
		project   string
	}{
		{"https://gitlab.com/namespace/dummy-test-repo.git", "https://gitlab.com", "namespace", "dummy-test-repo"},
		{"git@gitlab.com:namespace/dummy-test-repo.git", "https://gitlab.com", "namespace", "dummy-test-repo"},
		{"ssh://git@gitlab.com/namespace/dummy-test-repo.git", "https://gitlab.com", "namespace", "dummy-test-repo"},
		{"ssh://git@gitlab.com:2222/namespace/subnamespace/dummy-test-repo", "https://gitlab.com", "namespace/subnamespace", "dummy-test-repo"},
		{"https://git@gitlab.com/namespace/subnamespace/dummy-test-repo.git", "https://gitlab.com", "namespace/subnamespace", "dummy-test-repo"},
		{"http://gitlab.local:8080/team/app/", "http://gitlab.local:8080", "team", "app"},
		{"git@custom-gitlab.com:namespace-1/project-name.git", "https://custom-gitlab.com", "namespace-1", "project-name"},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			r, err := Parse(tt.remote)
			require.NoError(t, err)
			assert.Equal(t, tt.base, r.BaseURL)
			assert.Equal(t, tt.namespace, r.Namespace)
			assert.Equal(t, tt.project, r.Project)
			assert.Equal(t, tt.namespace+"/"+tt.project, r.ProjectPath())
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, remote := range []string{"", "not a url", "https://gitlab.com/onlyproject", "ftp://host/a/b", "/local/path/repo"} {
		_, err := Parse(remote)
		assert.Error(t, err, remote)
	}
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{"git@gitlab.example.com:grp/sub/proj.git"},
	})
	require.NoError(t, err)

	sub := filepath.Join(dir, "pkg", "inner")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	r, err := Detect(sub, "")
	require.NoError(t, err)
	assert.Equal(t, "https://gitlab.example.com", r.BaseURL)
	assert.Equal(t, "grp/sub/proj", r.ProjectPath())

	_, err = Detect(dir, "upstream")
	assert.Error(t, err)
}

func TestDetectNotARepository(t *testing.T) {
	_, err := Detect(t.TempDir(), "")
	assert.Error(t, err)
}
