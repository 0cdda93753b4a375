// Package server provides HTTP routing, middleware, web login and the JSON fleet API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] registers
// "METHOD /path/{param}" patterns on an [http.ServeMux]; [Middleware] wraps handlers in reverse
// order (last added executes first).
//
// Custom handlers implement [Handler], which wraps the stdlib handler interface and adds routes,
// so a handler keeps its route definitions next to its implementation.
//
// # Sessions
//
// [Sessions] signs a cookie with HS256 carrying the Discord user id. [Sessions.Require] guards the
// API and stores the [Session] in the request context.
//
// # Web Login and Character Linking
//
// [AuthHandler] runs the Discord login (guild and role gate, user upsert, session cookie) and the
// EVE SSO link flow started from the bot's /link message. Each OAuth state is single use and
// expires after ten minutes.
//
// # Fleet API
//
// [FleetHandler] exposes roles, fleet state, capture, reconstruct, export, draft checks and the fleet
// commander's management operations. Errors map to statuses with [StatusFor]; an incomplete
// reconstruction answers 207 with the partial mapping. Reconstruct streams progress as
// server-sent events when the client accepts text/event-stream.
//
// # CLI Callback
//
// [OAuthHandler] receives a single authorization code on a temporary local server for
// `esifleet auth eve`, then sends the token through a channel and rejects further callbacks.
package server
