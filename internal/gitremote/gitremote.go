// Package gitremote infers the GitLab instance and project of a local clone.
package gitremote

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	git "gopkg.in/src-d/go-git.v4"
)

// DefaultRemote is the remote read when none is named.
const DefaultRemote = "origin"

// scp-like syntax: [user@]host:namespace/project(.git)
var scpLike = regexp.MustCompile(`^(?:[^@/]+@)?([^:/]+):(.+)$`)

// Remote describes the GitLab project a remote URL points to.
type Remote struct {
	URL       string
	BaseURL   string
	Namespace string
	Project   string
}

// ProjectPath returns "namespace/project", usable as a project id in API calls.
func (r Remote) ProjectPath() string {
	return r.Namespace + "/" + r.Project
}

// Parse extracts the instance URL and the project path from a remote URL.
// It accepts https://host/ns/project.git, ssh://git@host[:port]/ns/project.git
// and git@host:ns/project.git, with nested namespaces. SSH remotes map to https.
func Parse(remoteURL string) (Remote, error) {
	raw := strings.TrimSpace(remoteURL)
	var host, scheme, path string

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return Remote{}, fmt.Errorf("invalid git URL format: %s", remoteURL)
		}
		switch u.Scheme {
		case "http", "https":
			scheme, host = u.Scheme, u.Host
		case "ssh", "git", "git+ssh":
			scheme, host = "https", u.Hostname()
		default:
			return Remote{}, fmt.Errorf("unsupported git URL scheme %q", u.Scheme)
		}
		path = u.Path
	} else if m := scpLike.FindStringSubmatch(raw); m != nil {
		scheme, host, path = "https", m[1], m[2]
	} else {
		return Remote{}, fmt.Errorf("invalid git URL format: %s", remoteURL)
	}

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	i := strings.LastIndex(path, "/")
	if host == "" || i <= 0 || i == len(path)-1 {
		return Remote{}, fmt.Errorf("invalid git URL format: %s", remoteURL)
	}

	return Remote{
		URL:       raw,
		BaseURL:   scheme + "://" + host,
		Namespace: path[:i],
		Project:   path[i+1:],
	}, nil
}

// Detect opens the repository containing repoPath and parses the URL of remote.
func Detect(repoPath, remote string) (Remote, error) {
	if remote == "" {
		remote = DefaultRemote
	}
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Remote{}, fmt.Errorf("could not open git repository at %s: %w", repoPath, err)
	}
	r, err := repo.Remote(remote)
	if err != nil {
		return Remote{}, fmt.Errorf("could not get remote %q: %w", remote, err)
	}
	urls := r.Config().URLs
	if len(urls) == 0 {
		return Remote{}, fmt.Errorf("remote %q has no URL", remote)
	}
	return Parse(urls[0])
}
