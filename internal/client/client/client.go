package client

import (
	"context"

	"github.com/dmitrijs2005/drinkshelf/internal/client/models"
)

// Client is the contract of the DrinkShelf auth API as seen by the client.
type Client interface {
	ExchangeCredentials(ctx context.Context, identifier, password string) (*models.AuthResult, error)
	CreateAccount(ctx context.Context, username, email, password string) (*models.AuthResult, error)
	FetchCurrentUser(ctx context.Context, token string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.User, error)
	Ping(ctx context.Context) error
	Close() error
}

// TokenSource yields the credential attached to authenticated requests that
// do not take an explicit token. An empty token means "anonymous".
type TokenSource func(ctx context.Context) (string, error)
