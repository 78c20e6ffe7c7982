package gitsource

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// remoteSchemes are the URL schemes LocalPath can map to a checkout.
var remoteSchemes = map[string]bool{"http": true, "https": true, "ssh": true, "git": true}

// IsURL reports whether path is a git remote rather than a local path:
// a URL with a remote scheme, or the scp-like user@host:path form.
func IsURL(path string) bool {
	if u, err := url.Parse(path); err == nil && remoteSchemes[u.Scheme] && u.Host != "" {
		return true
	}
	_, _, ok := splitSCP(path)
	return ok
}

// splitSCP splits user@host:path into host and path.
func splitSCP(s string) (host, path string, ok bool) {
	at := strings.Index(s, "@")
	colon := strings.Index(s, ":")
	if at <= 0 || colon < at+2 || colon == len(s)-1 {
		return "", "", false
	}
	if slash := strings.Index(s, "/"); slash >= 0 && slash < colon {
		return "", "", false
	}
	return s[at+1 : colon], s[colon+1:], true
}

// Sync clones a git repository if it doesn't exist at the given path,
// or pulls the latest changes if it does.
func Sync(repoURL, localPath string, progress io.Writer) error {
	_, err := os.Stat(localPath)
	switch {
	case os.IsNotExist(err):
		slog.Info("Cloning deck repository", "url", repoURL, "path", localPath)
		_, err := git.PlainClone(localPath, false, &git.CloneOptions{
			URL:      repoURL,
			Progress: progress,
		})
		if err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", repoURL, err)
		}
	case err == nil:
		slog.Info("Pulling deck repository", "path", localPath)
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
		}

		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
		}

		err = worktree.Pull(&git.PullOptions{
			RemoteName: "origin",
			Progress:   progress,
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
		}
	default:
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}
	return nil
}

// LocalPath maps a repository URL to its checkout directory under baseDir.
// Both scheme URLs and scp-like ssh remotes are understood.
func LocalPath(baseDir, repoURL string) (string, error) {
	if u, err := url.Parse(repoURL); err == nil && remoteSchemes[u.Scheme] && u.Host != "" {
		return filepath.Join(baseDir, u.Hostname(), strings.TrimSuffix(u.Path, ".git")), nil
	}
	if host, repoPath, ok := splitSCP(repoURL); ok {
		return filepath.Join(baseDir, host, strings.TrimSuffix(repoPath, ".git")), nil
	}
	return "", fmt.Errorf("could not parse git URL: %s", repoURL)
}
