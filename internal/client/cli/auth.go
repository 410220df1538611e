package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/drinkshelf/internal/client/client"
	"github.com/dmitrijs2005/drinkshelf/internal/client/models"
	"github.com/dmitrijs2005/drinkshelf/internal/client/session"
	"github.com/dmitrijs2005/drinkshelf/internal/common"
)

// ErrPasswordMismatch is the local validation failure of the register
// dialog when the confirmation differs from the password.
var ErrPasswordMismatch = fmt.Errorf("%w: passwords do not match", client.ErrInvalidInput)

// errLoginRequired is returned by protected commands when nobody is
// logged in, even after the login prompt.
var errLoginRequired = errors.New("login required")

// getSimpleText, getPassword and getMultiline are indirections used to
// facilitate testing. They point to interactive input helpers and can be
// swapped in tests.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
	getMultiline  = GetMultiline
)

// readSecret reads a password and returns it as a string, wiping the
// underlying bytes.
func (a *App) readSecret(prompt string) (string, error) {
	pw, err := getPassword(a.out, prompt)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

// Register asks for username, email, password and its confirmation, then
// creates the account and logs into it.
func (a *App) Register(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := a.readSecret("Enter password")
	if err != nil {
		return err
	}
	confirm, err := a.readSecret("Confirm password")
	if err != nil {
		return err
	}

	if password != confirm {
		fmt.Fprintln(a.out, "Passwords do not match")
		return ErrPasswordMismatch
	}

	u, err := a.store.Register(ctx, username, email, password)
	if err != nil {
		a.reportFailure("Registration failed", err)
		return err
	}

	fmt.Fprintf(a.out, "Welcome, %s!\n", u.Name())
	return nil
}

// Login asks for a username or email and a password.
func (a *App) Login(ctx context.Context) error {
	identifier, err := getSimpleText(a.reader, "Enter username or email", a.out)
	if err != nil {
		return err
	}
	password, err := a.readSecret("Enter password")
	if err != nil {
		return err
	}

	u, err := a.store.Login(ctx, identifier, password)
	if err != nil {
		a.reportFailure("Login failed", err)
		return err
	}

	fmt.Fprintf(a.out, "Logged in as %s\n", u.Name())
	return nil
}

func (a *App) reportFailure(prefix string, err error) {
	if errors.Is(err, session.ErrSessionEnded) {
		fmt.Fprintf(a.out, "%s: %s\n", prefix, session.MsgSessionEnded)
		return
	}

	msg := a.store.State().Error
	if msg == "" {
		msg = session.Describe(err)
	}
	fmt.Fprintf(a.out, "%s: %s\n", prefix, msg)
}

// Logout ends the session. It never fails.
func (a *App) Logout(ctx context.Context) error {
	a.store.Logout(ctx)
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

// requireLogin gates protected commands: with nobody logged in it says so
// and runs the login dialog.
func (a *App) requireLogin(ctx context.Context) (*models.User, error) {
	if st := a.store.State(); st.IsAuthenticated() {
		return st.User, nil
	}

	fmt.Fprintln(a.out, "Login required")
	if err := a.Login(ctx); err != nil {
		return nil, err
	}

	st := a.store.State()
	if !st.IsAuthenticated() {
		return nil, errLoginRequired
	}
	return st.User, nil
}

// Whoami prints the current user.
func (a *App) Whoami(ctx context.Context) error {
	u, err := a.requireLogin(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Username:     %s\n", u.Username)
	fmt.Fprintf(a.out, "Email:        %s\n", u.Email)
	if u.DisplayName != "" {
		fmt.Fprintf(a.out, "Display name: %s\n", u.DisplayName)
	}
	if u.Bio != "" {
		fmt.Fprintf(a.out, "Bio:          %s\n", u.Bio)
	}
	if !u.CreatedAt.IsZero() {
		fmt.Fprintf(a.out, "Member since: %s\n", u.CreatedAt.Format("2006-01-02"))
	}

	if a.creds != nil {
		savedAt, err := a.creds.SavedAt(ctx)
		switch {
		case err != nil:
			a.logger.Warn(ctx, "read credential timestamp", "error", err)
		case !savedAt.IsZero():
			fmt.Fprintf(a.out, "Session saved: %s\n", savedAt.Local().Format("2006-01-02 15:04"))
		}
	}
	return nil
}

// Profile edits the display name and bio. Empty answers keep the current
// value.
func (a *App) Profile(ctx context.Context) error {
	u, err := a.requireLogin(ctx)
	if err != nil {
		return err
	}

	name, err := getSimpleText(a.reader, fmt.Sprintf("Display name [%s] (empty to keep)", u.DisplayName), a.out)
	if err != nil {
		return err
	}
	bio, err := getMultiline(a.reader, "Bio (empty to keep)", a.out)
	if err != nil {
		return err
	}

	var update models.ProfileUpdate
	if name != "" && name != u.DisplayName {
		update.DisplayName = &name
	}
	if bio != "" && bio != u.Bio {
		update.Bio = &bio
	}
	if update.IsEmpty() {
		fmt.Fprintln(a.out, "Nothing to change")
		return nil
	}

	updated, err := a.profiles.UpdateProfile(ctx, update)
	if err != nil {
		fmt.Fprintf(a.out, "Update failed: %s\n", session.Describe(err))
		return err
	}

	fmt.Fprintf(a.out, "Profile updated: %s\n", updated.Name())
	return nil
}
