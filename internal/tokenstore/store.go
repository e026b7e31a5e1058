// Package tokenstore persists the Spotify session token to a single JSON file.
//
// The file holds one [Record] and nothing else. Writes go to a temporary file in the
// same directory followed by a rename, so a crash never leaves a half-written token at
// the canonical path. The parent directory is never created: a missing directory is an
// I/O failure like any other.
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/spotify-nvim/internal/shared"
	"golang.org/x/oauth2"
)

// FilePerms restricts token files to owner-only read/write.
const FilePerms = 0o600

// Record is the serialized OAuth session token.
type Record struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
	Scope        string    `json:"scope,omitempty"`
}

// FromOAuth2 converts an [oauth2.Token]. The scope is taken from the token response extras when present.
func FromOAuth2(tok *oauth2.Token) Record {
	if tok == nil {
		return Record{}
	}
	rec := Record{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		rec.Scope = scope
	}
	return rec
}

// OAuth2 converts the record back into an [oauth2.Token].
func (r Record) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		RefreshToken: r.RefreshToken,
		Expiry:       r.Expiry,
	}
}

// Expired reports whether the access token expiry has passed. Records without an expiry never expire.
func (r Record) Expired(now time.Time) bool {
	return !r.Expiry.IsZero() && now.After(r.Expiry)
}

// Store loads and saves records by path.
type Store interface {
	Load(path string) (Record, error)
	Save(rec Record, path string) error
}

// FileStore is the [Store] backed by the local filesystem.
type FileStore struct{}

// Load implements [Store].
func (FileStore) Load(path string) (Record, error) { return Load(path) }

// Save implements [Store].
func (FileStore) Save(rec Record, path string) error { return Save(rec, path) }

// Load reads and decodes the record at path.
//
// Returns [shared.ErrTokenNotFound] when the file is absent, [shared.ErrDeserialize] when
// it cannot be decoded or holds no access token, and [shared.ErrIO] for other read failures.
func Load(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, fmt.Errorf("%w: %s", shared.ErrTokenNotFound, path)
	}
	if err != nil {
		return Record{}, fmt.Errorf("%w: reading %s: %v", shared.ErrIO, path, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %s: %v", shared.ErrDeserialize, path, err)
	}

	if rec.AccessToken == "" {
		return Record{}, fmt.Errorf("%w: %s has no access_token", shared.ErrDeserialize, path)
	}

	return rec, nil
}

// Save writes rec to path, replacing any existing file. Never logs token values.
func Save(rec Record, path string) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding: %v", shared.ErrIO, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".spotify-token-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file in %s: %v", shared.ErrIO, dir, err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: setting permissions: %v", shared.ErrIO, err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing: %v", shared.ErrIO, err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: syncing: %v", shared.ErrIO, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing: %v", shared.ErrIO, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: renaming to %s: %v", shared.ErrIO, path, err)
	}

	success = true
	return nil
}
