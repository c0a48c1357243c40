// Package services defines the [Catalog] interface for music catalogs and implements it for Spotify,
// along with [APIService], the HTTP client for the jukebox REST API.
//
// # Catalog Interface
//
// The queue only needs three things from a catalog: a single track's metadata, a search and a
// list of recommendations. Every result is normalized to [models.Song] with a "M:SS" play time.
//
// # Spotify Implementation
//
// [SpotifyService] authenticates with the OAuth2 client credentials grant. The token source refreshes
// the app token before it expires, so callers never handle tokens. Calls are throttled by a
// [rate.Limiter] to stay under Spotify's rate limits.
//
// # Jukebox API Client
//
// [APIService] talks to a running jukebox server. The CLI uses it for every command other than serve,
// and the owner console uses it as the backend of its client queue store.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrUpstreamCatalog] : any failed catalog call (network, rate limit, invalid token)
//   - [shared.ErrTrackNotFound] : the catalog has no track with the requested ID
//   - [shared.ErrDuplicateRequest], [shared.ErrRequestNotFound] : mapped back from API status codes
//   - [shared.ErrAPIRequest] : any other failed API call
package services
