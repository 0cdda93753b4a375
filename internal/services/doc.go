// Package services implements the remote collaborators of the fleet engine.
//
// # Fleet API
//
// [FleetAPI] is the fleet-management surface of ESI. [ESIService] implements it: every call
// resolves a bearer token for the acting character from a [CredentialSource], waits on a shared
// rate limiter and runs under the configured per-call timeout.
//
// # Error Mapping
//
// ESI responses are translated into the engine's sentinel errors from the shared package:
//   - [shared.ErrRemoteTimeout] : the per-call deadline expired
//   - [shared.ErrPermissionDenied] : HTTP 403
//   - [shared.ErrNotFound] : HTTP 404 (GetCharacterFleet returns nil instead)
//   - [shared.ErrRemoteUnavailable] : any other non-2xx status or a transport failure
//
// # OAuth Services
//
// [EVESSOService] and [DiscordService] implement [OAuthService] for the browser flows served by
// the server package. EVE access tokens are JWTs; [ParseIdentity] reads the character from the
// "sub" claim. [DiscordService.Authorize] gates logins on guild membership and roles.
//
// # Credentials
//
// [CredentialStore] hands out stored access tokens and never refreshes them; the token refresher
// task keeps them current.
package services
