// Package server exposes the request queue over HTTP.
//
// # Routes
//
//	GET  /health                       liveness and catalog name
//	GET  /song/search?filter&searchTerm catalog search, raw Song array
//	GET  /song/recommendations         catalog recommendations, raw Song array
//	POST /song/request                 {song, customerId, ownerId}
//	POST /song/review/{id}             {approved}
//	POST /song/reset-rejected/{id}
//	POST /song/set-playing/{id}
//	GET  /song/requests/{ownerId}      snapshot of the owner's rows
//	GET  /realtime?owner_id=           websocket change feed
//
// Every route other than search and recommendations answers with the envelope
// {success, data, message}. Errors are mapped to status codes from the shared sentinels.
//
// # Middleware
//
// The router is [chi] with request ids, real ip, panic recovery, CORS and a request logger.
// When a JWT secret is configured, review, reset and set-playing require a bearer token whose
// subject owns the request.
//
// # Handler Interface
//
// Handlers that own their paths implement [Handler] and are mounted on every route they list.
package server
