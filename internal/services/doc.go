// Package services defines the provider interfaces behind the run-to-playlist pipeline and implements them for Strava, Open-Meteo, and Spotify.
//
// # Provider Interfaces
//
// [ActivityService], [WeatherService], and [MusicService] split the pipeline's outward surface by concern, so the engines operate on interfaces and tests swap in mocks.
//
// # Strava Implementation
//
// [StravaService] uses OAuth2 for authentication with automatic token refresh.
//
// Tokens are cached on disk between invocations; a cached token within a minute of expiry is refreshed early.
//
// # Open-Meteo Implementation
//
// [OpenMeteoService] is unauthenticated. Runs from the last week read the forecast endpoint; older runs read the historical archive.
//
// A day the provider has no hourly data for yields a nil snapshot, leaving the run's weather unknown rather than failing the pipeline.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
//
// Spotify omits the refresh token from refresh responses, so the one that bought the refresh is carried into the new cache entry.
//
// # FIT Imports
//
// [ImportFITFile] decodes a watch export into the same run record the tracker API produces, so imported runs flow through the pipeline unchanged.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : OAuth token expired, reauthorization needed
//   - [shared.ErrAPIRequest] : HTTP request failed
//   - [shared.ErrNoRefreshToken] : no way to mint a token without user login
//
// # API Mappings
//
// Each client converts provider-specific JSON responses to the pipeline's models:
//   - Strava: [StravaActivity] → [models.RunRecord], keeping local wall-clock start times
//   - Open-Meteo: hourly series → [models.WeatherSnapshot] at the hour nearest the run start
//   - Spotify: [SpotifyTrack] → [models.Track], [SpotifyAudioFeatures] → [models.AudioFeatures]
package services
