// Package server provides HTTP routing, middleware, and OAuth handling for CLI authentication flows.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers function-composition style: the first middleware added is the
// outermost and sees the request first.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// OAuthHandler implements the OAuth2 authorization code callback flow.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// # Current Usage
//
// The server package supports CLI OAuth flows for Spotify and Strava authentication.
// When the user runs auth commands, a temporary HTTP server starts on the configured
// callback address (127.0.0.1:8484 by default), handles the provider-specific callback
// (/callback/spotify or /callback/strava), and shuts down after receiving the OAuth token.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
