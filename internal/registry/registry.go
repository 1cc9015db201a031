// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

// Package registry holds the run context shared by every run mode: the
// configured libraries as found on the server, the users whose tokens can
// be used for writes, and per-library access learned from probes.
//
// Nothing here refreshes itself. The orchestrator calls RefreshLibraries and
// RefreshUsers at startup and whenever a webhook names an unknown library.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tomtom215/defaulterr/internal/library"
	"github.com/tomtom215/defaulterr/internal/logging"
	"github.com/tomtom215/defaulterr/internal/models"
)

// AllUsers is the group member that expands to every known user.
const AllUsers = "$ALL"

// DefaultOwnerName names the owner when the configuration does not.
const DefaultOwnerName = "owner"

// ErrInvalidLibrary is returned when a configured library has a kind that
// cannot be synchronized.
var ErrInvalidLibrary = errors.New("unsupported library type")

// User is a named token source.
type User struct {
	Name  string
	Token string
	Owner bool
}

// Server is the part of the Plex client the registry reads.
type Server interface {
	LibrarySections(ctx context.Context) ([]models.PlexLibrarySection, error)
	Identity(ctx context.Context) (*models.PlexIdentityContainer, error)
}

// SharedUsers resolves friends to their server access tokens.
type SharedUsers interface {
	SharedUserTokens(ctx context.Context, machineID string) (map[string]string, error)
}

// Config describes the statically configured users and libraries.
type Config struct {
	OwnerName    string
	OwnerToken   string
	ManagedUsers map[string]string

	// Libraries are the library names that have filters.
	Libraries []string
}

// Registry is safe for concurrent use.
type Registry struct {
	server Server
	shared SharedUsers
	cfg    Config

	mu        sync.RWMutex
	machineID string
	libraries map[string]library.Library // by section id
	users     map[string]User            // by name
	access    map[string]map[string]bool // section id -> user name -> can read
}

// New creates an empty registry. shared may be nil to skip plex.tv lookups.
func New(cfg Config, server Server, shared SharedUsers) *Registry {
	if cfg.OwnerName == "" {
		cfg.OwnerName = DefaultOwnerName
	}
	r := &Registry{
		server:    server,
		shared:    shared,
		cfg:       cfg,
		libraries: map[string]library.Library{},
		access:    map[string]map[string]bool{},
	}
	r.users = r.staticUsers()
	return r
}

// OwnerName returns the name the owner is known by in groups.
func (r *Registry) OwnerName() string {
	return r.cfg.OwnerName
}

// StaticUsers returns the owner and managed users from configuration,
// sorted by name. These are the tokens verified at startup.
func (r *Registry) StaticUsers() []User {
	return sortedUsers(r.staticUsers())
}

func (r *Registry) staticUsers() map[string]User {
	users := make(map[string]User, len(r.cfg.ManagedUsers)+1)
	for name, token := range r.cfg.ManagedUsers {
		users[name] = User{Name: name, Token: token}
	}
	users[r.cfg.OwnerName] = User{Name: r.cfg.OwnerName, Token: r.cfg.OwnerToken, Owner: true}
	return users
}

// RefreshLibraries re-reads the library sections and keeps the configured
// ones. A configured library with an unsupported kind returns an error
// wrapping ErrInvalidLibrary. Configured libraries missing on the server
// are logged.
func (r *Registry) RefreshLibraries(ctx context.Context) error {
	sections, err := r.server.LibrarySections(ctx)
	if err != nil {
		return fmt.Errorf("list library sections: %w", err)
	}

	wanted := make(map[string]bool, len(r.cfg.Libraries))
	for _, name := range r.cfg.Libraries {
		wanted[name] = true
	}

	found := make(map[string]library.Library, len(wanted))
	for _, s := range sections {
		if !wanted[s.Title] {
			continue
		}
		lib := library.Library{ID: s.Key, Name: s.Title, Kind: library.Kind(s.Type)}
		if !lib.Kind.Valid() {
			return fmt.Errorf("%w: library %q is of type %q (want movie or show)", ErrInvalidLibrary, s.Title, s.Type)
		}
		found[lib.ID] = lib
	}

	seen := make(map[string]bool, len(found))
	for _, lib := range found {
		seen[lib.Name] = true
	}
	for _, name := range r.cfg.Libraries {
		if !seen[name] {
			logging.Ctx(ctx).Warn().Str("library", name).Msg("Configured library not found on the Plex server")
		}
	}

	r.mu.Lock()
	r.libraries = found
	r.mu.Unlock()

	logging.Ctx(ctx).Info().Int("libraries", len(found)).Msg("Library map refreshed")
	return nil
}

// RefreshUsers rebuilds the user map from configuration plus the users the
// server is shared with. A plex.tv failure keeps the previously known shared
// users and is returned so the caller can log it.
func (r *Registry) RefreshUsers(ctx context.Context) error {
	users := r.staticUsers()

	var sharedErr error
	if r.shared != nil {
		tokens, err := r.sharedTokens(ctx)
		if err != nil {
			sharedErr = fmt.Errorf("resolve shared users: %w", err)
			r.mu.RLock()
			for name, u := range r.users {
				if _, ok := users[name]; !ok {
					users[name] = u
				}
			}
			r.mu.RUnlock()
		} else {
			for name, token := range tokens {
				if _, ok := users[name]; ok {
					continue // configuration wins over plex.tv
				}
				users[name] = User{Name: name, Token: token}
			}
		}
	}

	r.mu.Lock()
	r.users = users
	r.mu.Unlock()

	logging.Ctx(ctx).Info().Int("users", len(users)).Msg("User map refreshed")
	return sharedErr
}

func (r *Registry) sharedTokens(ctx context.Context) (map[string]string, error) {
	r.mu.RLock()
	machineID := r.machineID
	r.mu.RUnlock()

	if machineID == "" {
		id, err := r.server.Identity(ctx)
		if err != nil {
			return nil, fmt.Errorf("server identity: %w", err)
		}
		machineID = id.MachineIdentifier
		r.mu.Lock()
		r.machineID = machineID
		r.mu.Unlock()
	}

	return r.shared.SharedUserTokens(ctx, machineID)
}

// Libraries returns the known libraries sorted by name.
func (r *Registry) Libraries() []library.Library {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]library.Library, 0, len(r.libraries))
	for _, lib := range r.libraries {
		out = append(out, lib)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LibraryByID looks a library up by section id.
func (r *Registry) LibraryByID(id string) (library.Library, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lib, ok := r.libraries[id]
	return lib, ok
}

// LibraryByName looks a library up by title.
func (r *Registry) LibraryByName(name string) (library.Library, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, lib := range r.libraries {
		if lib.Name == name {
			return lib, true
		}
	}
	return library.Library{}, false
}

// Token returns the token of a named user.
func (r *Registry) Token(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[name]
	return u.Token, ok
}

// Users returns every known user sorted by name.
func (r *Registry) Users() []User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedUsers(r.users)
}

// SetAccess records which users can read a library. Users missing from
// access are treated as having no access for that library.
func (r *Registry) SetAccess(libraryID string, access map[string]bool) {
	cp := make(map[string]bool, len(access))
	for k, v := range access {
		cp[k] = v
	}
	r.mu.Lock()
	r.access[libraryID] = cp
	r.mu.Unlock()
}

// Access returns the probed access set of a library, if any.
func (r *Registry) Access(libraryID string) (map[string]bool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.access[libraryID]
	return a, ok
}

// Members expands group members into users for a library. $ALL means every
// user known right now. Unknown names are returned in missing. When the
// library has a probed access set, users without access are left out and
// returned in denied. The owner always has access.
func (r *Registry) Members(members []string, libraryID string) (users []User, missing, denied []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	access, probed := r.access[libraryID]

	seen := make(map[string]bool)
	add := func(u User) {
		if seen[u.Name] {
			return
		}
		seen[u.Name] = true
		if probed && !u.Owner && !access[u.Name] {
			denied = append(denied, u.Name)
			return
		}
		users = append(users, u)
	}

	for _, m := range members {
		if m == AllUsers {
			for _, u := range sortedUsers(r.users) {
				add(u)
			}
			continue
		}
		u, ok := r.users[m]
		if !ok {
			missing = append(missing, m)
			continue
		}
		add(u)
	}
	return users, missing, denied
}

func sortedUsers(m map[string]User) []User {
	out := make([]User, 0, len(m))
	for _, u := range m {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
