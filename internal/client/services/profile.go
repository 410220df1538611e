// Package services contains application services for the DrinkShelf client
// that combine the remote API with the session store.
package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/drinkshelf/internal/client/client"
	"github.com/dmitrijs2005/drinkshelf/internal/client/models"
	"github.com/dmitrijs2005/drinkshelf/internal/client/session"
)

// ProfileUpdater is the part of the remote API used to edit a profile.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.User, error)
}

// SessionStore is the part of session.Store the service needs.
type SessionStore interface {
	State() session.State
	ReplaceUser(u *models.User) bool
}

// ProfileService edits the logged-in user's profile and keeps the session
// in sync with the server's answer.
type ProfileService struct {
	api   ProfileUpdater
	store SessionStore
}

func NewProfileService(api ProfileUpdater, store SessionStore) *ProfileService {
	return &ProfileService{api: api, store: store}
}

// UpdateProfile sends update for the current user. It fails with
// client.ErrUnauthorized when nobody is logged in, with
// client.ErrInvalidInput when update changes nothing and with
// session.ErrSessionEnded when the session was logged out or switched to
// another user while the request ran. In that last case the answer is
// dropped.
func (p *ProfileService) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.User, error) {
	current := p.store.State().User
	if current == nil {
		return nil, fmt.Errorf("%w: not logged in", client.ErrUnauthorized)
	}
	if update.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to update", client.ErrInvalidInput)
	}

	u, err := p.api.UpdateProfile(ctx, current.ID, update)
	if err != nil {
		return nil, err
	}

	if !p.store.ReplaceUser(u) {
		return nil, fmt.Errorf("profile update: %w", session.ErrSessionEnded)
	}
	return u.Clone(), nil
}
