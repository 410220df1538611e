package session

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/drinkshelf/internal/client/client"
	"github.com/dmitrijs2005/drinkshelf/internal/client/models"
)

// ErrSessionEnded is returned to callers whose request was still in flight
// when Logout ran. Its response was discarded.
var ErrSessionEnded = errors.New("session ended while the request was in flight")

// errPersist marks a successful authentication whose credential could not
// be written to local storage.
var errPersist = errors.New("unable to save the session")

const (
	MsgInvalidInput = "Invalid input"
	MsgUnavailable  = "Unable to reach the server"
	MsgMalformed    = "Unexpected server response"
	MsgPersist      = "Unable to save the session"
	MsgCanceled     = "Request canceled"
	MsgSessionEnded = "Logged out while the request was running"
	MsgUnknown      = "Something went wrong"
)

// State is an immutable snapshot of the session.
type State struct {
	// User is nil when nobody is logged in.
	User *models.User
	// IsLoading is true while a login, register or restore request issued
	// since the last logout is outstanding.
	IsLoading bool
	// Error describes the most recent failure. Empty means none.
	Error string
}

func (s State) IsAuthenticated() bool {
	return s.User != nil
}

func (s State) clone() State {
	s.User = s.User.Clone()
	return s
}

// errorMessage turns a failure into the text shown to the user. A server
// detail wins over the generic class messages.
func errorMessage(err error) string {
	var f *client.Failure
	if errors.As(err, &f) && f.Detail != "" {
		return f.Detail
	}

	switch {
	case errors.Is(err, client.ErrInvalidInput):
		return MsgInvalidInput
	case errors.Is(err, client.ErrMalformedResponse):
		return MsgMalformed
	case errors.Is(err, client.ErrUnavailable):
		return MsgUnavailable
	case errors.Is(err, errPersist):
		return MsgPersist
	case errors.Is(err, ErrSessionEnded):
		return MsgSessionEnded
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return MsgCanceled
	case f != nil:
		return f.Message()
	}
	return MsgUnknown
}

// Describe returns the user-facing text for err, as the store would record
// it in State.Error.
func Describe(err error) string {
	return errorMessage(err)
}
