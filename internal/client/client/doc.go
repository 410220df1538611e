// Package client contains the client-side building blocks that talk to the
// DrinkShelf API and bootstrap local storage.
//
// # Overview
//
//  1. Client, the transport-agnostic contract of the auth API:
//     ExchangeCredentials, CreateAccount, FetchCurrentUser, UpdateProfile,
//     Ping and Close.
//  2. HTTPClient, its HTTP/JSON implementation. Login is form-encoded,
//     everything else is JSON; authenticated calls carry a bearer token.
//  3. InitDatabase and RunMigrations, which open a profile's SQLite file and
//     apply the embedded goose migrations.
//
// # Error Handling
//
// Non-2xx answers become *Failure values holding the HTTP status and the
// server's detail message. Failures and transport errors match the sentinel
// of their class with errors.Is: ErrUnauthorized, ErrUnavailable,
// ErrInvalidInput, ErrMalformedResponse.
//
// HTTPClient is safe for concurrent use. All operations honor ctx.
package client
