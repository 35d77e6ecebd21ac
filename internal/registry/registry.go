// Package registry maps local repositories to (client, project) pairs.
package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Tiliavir/git-timesheets/internal/apperr"
	"github.com/Tiliavir/git-timesheets/internal/gitlog"
	"github.com/Tiliavir/git-timesheets/internal/model"
)

// Store is the persistence the registry needs.
type Store interface {
	CreateBinding(ctx context.Context, b model.Binding) (model.Binding, error)
	ListBindings(ctx context.Context) ([]model.Binding, error)
	BindingsByPath(ctx context.Context, repoPath string) ([]model.Binding, error)
	DeleteBinding(ctx context.Context, id string) (int, error)
}

// IdentityReader reads the git author configured for a repository.
type IdentityReader interface {
	Identity(ctx context.Context, repoPath string) gitlog.Identity
}

// Registry creates and resolves bindings.
type Registry struct {
	store    Store
	identity IdentityReader
	// zone names the time zone recorded on new bindings.
	zone func() string
}

// New creates a Registry. identity may be nil, in which case bindings carry
// no author.
func New(store Store, identity IdentityReader) *Registry {
	return &Registry{store: store, identity: identity, zone: LocalZone}
}

// WithZone overrides the zone recorded on new bindings.
func (r *Registry) WithZone(zone func() string) *Registry {
	r.zone = zone
	return r
}

// LocalZone returns the host's IANA zone name, or "UTC" when it cannot be
// determined.
func LocalZone() string {
	name, _ := DetectZone()
	return name
}

// DetectZone returns the host's IANA zone name and whether it was actually
// found. It tries the TZ variable, the target of /etc/localtime and
// /etc/timezone; when all fail it returns "UTC" and false.
func DetectZone() (string, bool) {
	return detectZone(time.Local.String(), os.Getenv("TZ"), "/etc/localtime", "/etc/timezone")
}

func detectZone(localName, tz, localtime, timezoneFile string) (string, bool) {
	if localName != "" && localName != "Local" && localName != "UTC" {
		return localName, true
	}
	if tz = strings.TrimPrefix(tz, ":"); tz != "" {
		if _, err := time.LoadLocation(tz); err == nil {
			return tz, true
		}
	}
	if target, err := os.Readlink(localtime); err == nil {
		if _, name, ok := strings.Cut(target, "zoneinfo/"); ok {
			if _, err := time.LoadLocation(name); err == nil {
				return name, true
			}
		}
	}
	// Debian and many container images keep /etc/localtime as a plain copy
	// and name the zone in /etc/timezone.
	if data, err := os.ReadFile(timezoneFile); err == nil {
		if name := strings.TrimSpace(string(data)); name != "" {
			if _, err := time.LoadLocation(name); err == nil {
				return name, true
			}
		}
	}
	return "UTC", false
}

// Bind associates the repository at path with client and project.
func (r *Registry) Bind(ctx context.Context, path, client, project string) (model.Binding, error) {
	client = strings.TrimSpace(client)
	project = strings.TrimSpace(project)
	if client == "" || project == "" {
		return model.Binding{}, fmt.Errorf("client and project are required")
	}
	abs, err := Normalize(path)
	if err != nil {
		return model.Binding{}, err
	}
	if !gitlog.IsRepository(abs) {
		return model.Binding{}, apperr.New("bind", abs, apperr.ErrInvalidPath)
	}

	b := model.Binding{
		RepositoryPath: abs,
		ClientName:     client,
		ProjectName:    project,
		Timezone:       r.zone(),
	}
	if r.identity != nil {
		id := r.identity.Identity(ctx, abs)
		b.AuthorName = id.Name
		b.AuthorEmail = id.Email
	}
	return r.store.CreateBinding(ctx, b)
}

// Resolve returns the bindings of the repository at path, possibly none.
func (r *Registry) Resolve(ctx context.Context, path string) ([]model.Binding, error) {
	abs, err := Normalize(path)
	if err != nil {
		return nil, err
	}
	return r.store.BindingsByPath(ctx, abs)
}

// List returns every binding.
func (r *Registry) List(ctx context.Context) ([]model.Binding, error) {
	return r.store.ListBindings(ctx)
}

// Filter selects bindings for Unbind and Select. Empty fields match anything.
type Filter struct {
	Client  string
	Project string
	Path    string
}

// Select returns the bindings matching f.
func (r *Registry) Select(ctx context.Context, f Filter) ([]model.Binding, error) {
	var (
		bindings []model.Binding
		err      error
	)
	if f.Path != "" {
		bindings, err = r.Resolve(ctx, f.Path)
	} else {
		bindings, err = r.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	var out []model.Binding
	for _, b := range bindings {
		if f.Client != "" && b.ClientName != f.Client {
			continue
		}
		if f.Project != "" && b.ProjectName != f.Project {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Unbind removes the bindings matching f together with their entries. It
// requires at least a client and fails with apperr.ErrBindingNotFound when
// nothing matches.
func (r *Registry) Unbind(ctx context.Context, f Filter) ([]model.Binding, error) {
	if f.Client == "" {
		return nil, fmt.Errorf("a client is required to remove bindings")
	}
	matches, err := r.Select(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, apperr.New("remove", describe(f), apperr.ErrBindingNotFound)
	}
	for _, b := range matches {
		if _, err := r.store.DeleteBinding(ctx, b.ID); err != nil {
			return nil, err
		}
	}
	return matches, nil
}

// Normalize makes path absolute and clean. An empty path is the working
// directory.
func Normalize(path string) (string, error) {
	if path == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", apperr.New("resolve path", path, apperr.ErrInvalidPath)
	}
	return filepath.Clean(abs), nil
}

func describe(f Filter) string {
	parts := []string{"client " + f.Client}
	if f.Project != "" {
		parts = append(parts, "project "+f.Project)
	}
	if f.Path != "" {
		parts = append(parts, "path "+f.Path)
	}
	return strings.Join(parts, ", ")
}
