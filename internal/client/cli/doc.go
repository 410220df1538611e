// Package cli provides the interactive DrinkShelf command-line client.
//
// It wires configuration, the profile's local database, the HTTP API client
// and the session store, then runs an interactive REPL. Typical flow:
// restore the previous session, start a background connectivity watcher
// and execute user commands.
//
// Key features:
//   - Register (with password confirmation), Login, Logout
//   - whoami and profile, which require a logged-in user and otherwise
//     lead through the login dialog first
//   - Online/offline indicator in the prompt
//   - Optional Prometheus endpoint for session metrics
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
