// Package config implements the file-backed credential store: a users.json
// document holding, per user, the source-account session token and the
// destination-account credentials.
//
// Load order: users.json → .env file (if present) → environment overlay.
// Later sources take precedence, mirroring the defaults→json→flags layering
// used elsewhere in the project.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/scalesync/internal/common"
	"github.com/dmitrijs2005/scalesync/internal/filex"
	"github.com/dmitrijs2005/scalesync/internal/models"
)

// document is the on-disk shape of users.json.
type document struct {
	Users []*models.User `json:"users"`
}

// Store mediates reading and updating the users.json credential store. It
// keeps two views of the user list: the stored document, which is the only
// thing save() ever writes back, and a detached run-time view that the
// environment overlay mutates. Secrets arriving via the environment therefore
// never reach disk. It is not safe for concurrent writers; the tool runs
// single-threaded.
type Store struct {
	path string
	doc  document
	view []*models.User
}

// Load reads the store at path. A missing file yields an empty store, not an
// error: the caller reports "no users" and may write a template. The
// environment overlay (see ApplyEnvOverlay) is NOT applied here; the caller
// decides whether overlays are in play.
func Load(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	s.view = append([]*models.User(nil), s.doc.Users...)
	return s, nil
}

// Users returns the run-time view of the configured users in file order:
// file contents plus any environment overlay.
func (s *Store) Users() []*models.User {
	return s.view
}

// Find returns the run-time user with the given username, or nil.
func (s *Store) Find(username string) *models.User {
	return findIn(s.view, username)
}

// detachUser replaces the run-time view entry for username with a copy that
// no longer aliases the stored document, so overlay writes stay in memory.
// User holds only strings and value structs, so a shallow copy is a full one.
func (s *Store) detachUser(username string) *models.User {
	for i, u := range s.view {
		if u.Username == username {
			clone := *u
			s.view[i] = &clone
			return &clone
		}
	}
	return nil
}

// UpdateUserToken merges non-empty token fields into the matching user's
// token and persists the whole document durably before returning. The merge
// applies to both the stored document and the run-time view, so the write
// carries exactly the file-sourced values plus the refreshed token. Returns
// common.ErrUserNotFound when no user matches.
func (s *Store) UpdateUserToken(username string, tok models.SourceToken) error {
	stored := findIn(s.doc.Users, username)
	if stored == nil {
		return fmt.Errorf("%w: %s", common.ErrUserNotFound, username)
	}

	mergeToken(&stored.Token, tok)
	if live := s.Find(username); live != nil && live != stored {
		mergeToken(&live.Token, tok)
	}

	return s.save()
}

// AddOrReplaceUser inserts the user, replacing an existing record with the
// same username, and persists. Used by the interactive login command.
func (s *Store) AddOrReplaceUser(user *models.User) error {
	s.doc.Users = replaceOrAppend(s.doc.Users, user)
	s.view = replaceOrAppend(s.view, user)
	return s.save()
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(&s.doc, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return filex.WriteFileAtomic(s.path, data, 0o600)
}

func findIn(users []*models.User, username string) *models.User {
	for _, u := range users {
		if u.Username == username {
			return u
		}
	}
	return nil
}

func mergeToken(dst *models.SourceToken, tok models.SourceToken) {
	if tok.UserID != "" {
		dst.UserID = tok.UserID
	}
	if tok.PassToken != "" {
		dst.PassToken = tok.PassToken
	}
	if tok.SSecurity != "" {
		dst.SSecurity = tok.SSecurity
	}
}

func replaceOrAppend(users []*models.User, user *models.User) []*models.User {
	for i, u := range users {
		if u.Username == user.Username {
			users[i] = user
			return users
		}
	}
	return append(users, user)
}
