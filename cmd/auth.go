package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/cadence/internal/server"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// authTimeout bounds how long the callback server waits for the user.
const authTimeout = 5 * time.Minute

// oauthService is the slice of a provider client the login flow needs.
type oauthService interface {
	GetAuthURL(state string) string
	OAuthConfig() *oauth2.Config
	AdoptToken(token *oauth2.Token)
	Name() string
}

// AuthLogin runs the OAuth2 authorization code flow for one provider:
// start the callback server, open the browser, wait for the grant, then
// persist the refresh token.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	provider := cmd.StringArg("provider")

	var svc oauthService
	var ok bool
	switch provider {
	case "spotify":
		svc, ok = r.music.(oauthService)
	case "strava":
		svc, ok = r.activity.(oauthService)
	default:
		return fmt.Errorf("%w: unknown provider %q (expected spotify or strava)", shared.ErrInvalidArgument, provider)
	}
	if !ok || svc == nil {
		return fmt.Errorf("%w: %s client not initialized (check credentials)", shared.ErrServiceUnavailable, provider)
	}

	state := shared.GenerateState()
	handler := server.NewOAuthHandler(svc.OAuthConfig(), state, "/callback/"+provider)

	router := server.NewBasicRouter()
	router.Handler(handler)
	srv := &http.Server{Addr: r.config.CallbackAddr(), Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("callback server failed", "error", err)
		}
	}()
	defer srv.Shutdown(context.Background())

	authURL := svc.GetAuthURL(state)
	r.writePlain("Authorize %s in your browser:\n%s\n", svc.Name(), authURL)
	if !cmd.Bool("no-browser") {
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("failed to open browser, use the URL above", "error", err)
		}
	}

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case <-time.After(authTimeout):
		return fmt.Errorf("%w: timed out waiting for the OAuth callback", shared.ErrTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := result.Error(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	svc.AdoptToken(result.Token)
	r.logger.Info("authentication successful", "provider", svc.Name())

	if result.Token.RefreshToken != "" {
		r.persistRefreshToken(provider, result.Token.RefreshToken)
	}

	return r.writePlain("✓ %s authentication successful\n", svc.Name())
}

// persistRefreshToken writes the refresh token back to config.toml so
// future invocations authenticate without a browser.
func (r *Runner) persistRefreshToken(provider, token string) {
	switch provider {
	case "spotify":
		r.config.Credentials.Spotify.RefreshToken = token
	case "strava":
		r.config.Credentials.Strava.RefreshToken = token
	}

	if r.configPath == "" {
		return
	}
	if err := shared.SaveConfig(r.config, r.configPath); err != nil {
		r.logger.Warn("failed to persist refresh token to config", "error", err)
		return
	}
	r.logger.Info("refresh token saved", "path", r.configPath)
}

// AuthStatus reports which providers currently have a working session.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	r.writePlainHeader("Authentication Status")

	if r.activity == nil {
		r.writePlain("Strava:  ✗ Not configured\n")
	} else if err := r.activity.Authenticate(ctx, nil); err != nil {
		r.writePlain("Strava:  ✗ %v\n", err)
	} else {
		r.writePlain("Strava:  ✓ Authenticated\n")
	}

	if r.music == nil {
		r.writePlain("Spotify: ✗ Not configured\n")
	} else if err := r.music.Authenticate(ctx, nil); err != nil {
		r.writePlain("Spotify: ✗ %v\n", err)
	} else {
		r.writePlain("Spotify: ✓ Authenticated\n")
	}

	return nil
}
