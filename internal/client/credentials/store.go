// Package credentials persists the session access token in the profile's
// local database.
package credentials

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/drinkshelf/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/drinkshelf/internal/dbx"
)

const (
	tokenKey   = "access_token"
	savedAtKey = "access_token_saved_at"
)

// Store keeps at most one credential per database file.
type Store struct {
	db   *sql.DB
	repo metadata.Repository
	now  func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:   db,
		repo: metadata.NewSQLiteRepository(db),
		now:  time.Now,
	}
}

// Save replaces the stored token and records when it was saved.
func (s *Store) Save(ctx context.Context, token string) error {
	savedAt := s.now().UTC().Format(time.RFC3339Nano)

	err := dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Put(ctx, tokenKey, token); err != nil {
			return err
		}
		return repo.Put(ctx, savedAtKey, savedAt)
	})
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Load returns the stored token, or "" when there is none.
func (s *Store) Load(ctx context.Context) (string, error) {
	v, _, err := s.repo.Get(ctx, tokenKey)
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	return v, nil
}

// Token has the shape of client.TokenSource.
func (s *Store) Token(ctx context.Context) (string, error) {
	return s.Load(ctx)
}

// Clear removes the token and its timestamp in one statement. Clearing an
// empty store is not an error.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.repo.Delete(ctx, tokenKey, savedAtKey); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// SavedAt reports when the current token was saved. The zero time means no
// token is stored.
func (s *Store) SavedAt(ctx context.Context) (time.Time, error) {
	v, ok, err := s.repo.Get(ctx, savedAtKey)
	if err != nil {
		return time.Time{}, fmt.Errorf("load credential timestamp: %w", err)
	}
	if !ok {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339Nano, string(v))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse credential timestamp: %w", err)
	}
	return t, nil
}
