// Package gitlog reads commit metadata from local git repositories.
package gitlog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Tiliavir/git-timesheets/internal/apperr"
)

// Commit is the metadata gts needs from one commit.
type Commit struct {
	Hash        string
	AuthorName  string
	AuthorEmail string
	Time        time.Time
}

// Query restricts which commits are returned.
type Query struct {
	// Author is passed to git log --author (a regular expression).
	Author string
}

// Source yields the commits of a repository in ascending time order.
type Source interface {
	Commits(ctx context.Context, repoPath string, q Query) ([]Commit, error)
}

// Identity is the author configured for a repository.
type Identity struct {
	Name  string
	Email string
}

// IsRepository reports whether path is a repository root, i.e. has a .git
// directory or gitfile. Content beyond that is never inspected.
func IsRepository(path string) bool {
	_, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil
}

// Git runs the git binary.
type Git struct {
	// Binary defaults to "git" on PATH.
	Binary string
}

// New returns a Git source using the git binary on PATH.
func New() *Git {
	return &Git{Binary: "git"}
}

const fieldSep = "\x1f"

// Commits lists every commit reachable from any ref, oldest first.
func (g *Git) Commits(ctx context.Context, repoPath string, q Query) ([]Commit, error) {
	if !IsRepository(repoPath) {
		return nil, apperr.New("read commits", repoPath, apperr.ErrRepositoryUnavailable)
	}
	args := []string{"-C", repoPath, "log", "--all", "--no-color",
		"--format=%H" + fieldSep + "%an" + fieldSep + "%ae" + fieldSep + "%aI"}
	if q.Author != "" {
		args = append(args, "--author="+q.Author)
	}

	out, err := g.run(ctx, args)
	if err != nil {
		// An empty repository has no HEAD yet; that is zero commits, not a failure.
		if IsEmptyRepository(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", apperr.ErrRepositoryUnavailable, err)
	}
	commits, err := ParseLog(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrRepositoryUnavailable, err)
	}
	return commits, nil
}

// Identity reads user.name and user.email as git resolves them for repoPath.
// Missing values are returned empty.
func (g *Git) Identity(ctx context.Context, repoPath string) Identity {
	var id Identity
	if out, err := g.run(ctx, []string{"-C", repoPath, "config", "user.name"}); err == nil {
		id.Name = strings.TrimSpace(out)
	}
	if out, err := g.run(ctx, []string{"-C", repoPath, "config", "user.email"}); err == nil {
		id.Email = strings.TrimSpace(out)
	}
	return id
}

func (g *Git) run(ctx context.Context, args []string) (string, error) {
	bin := g.Binary
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", NewError(args, stderr.String(), err)
	}
	return stdout.String(), nil
}

// ParseLog parses output of git log with the field-separated format used
// by Commits and returns the commits sorted by time, then hash.
func ParseLog(out string) ([]Commit, error) {
	var commits []Commit
	for line := range strings.SplitSeq(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, fieldSep)
		if len(parts) != 4 {
			return nil, fmt.Errorf("unexpected git log line %q", line)
		}
		ts, err := time.Parse(time.RFC3339, parts[3])
		if err != nil {
			return nil, fmt.Errorf("parsing commit time %q: %w", parts[3], err)
		}
		commits = append(commits, Commit{
			Hash:        parts[0],
			AuthorName:  parts[1],
			AuthorEmail: parts[2],
			Time:        ts,
		})
	}
	SortCommits(commits)
	return commits, nil
}

// SortCommits orders commits by time, breaking ties by hash.
func SortCommits(commits []Commit) {
	sort.Slice(commits, func(i, j int) bool {
		if !commits[i].Time.Equal(commits[j].Time) {
			return commits[i].Time.Before(commits[j].Time)
		}
		return commits[i].Hash < commits[j].Hash
	})
}

// Error is a failed git invocation.
type Error struct {
	Args     []string
	Stderr   string
	ExitCode int
	err      error
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = e.err.Error()
	}
	return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), msg)
}

func (e *Error) Unwrap() error {
	return e.err
}

// NewError creates an Error from command output and error.
func NewError(args []string, stderr string, err error) *Error {
	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return &Error{Args: args, Stderr: stderr, ExitCode: exitCode, err: err}
}

// IsEmptyRepository reports whether err comes from running log on a
// repository without commits.
func IsEmptyRepository(err error) bool {
	var gitErr *Error
	if !errors.As(err, &gitErr) {
		return false
	}
	s := strings.ToLower(gitErr.Stderr)
	return strings.Contains(s, "does not have any commits") || strings.Contains(s, "bad default revision")
}
