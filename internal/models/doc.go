// Package models defines domain entities and persistence interfaces for esifleet.
//
// The package contains three categories of types:
//
// 1. ESI transfer objects: structs decoded from the EVE Swagger Interface fleet endpoints
//   - [FleetRef] : the character's current fleet and raw role
//   - [FleetInfo] : fleet settings (free move, MOTD)
//   - [Member], [Wing], [Squad] : fleet composition
//
// 2. Derived values computed per request and never stored
//   - [LeadershipRole] : the commanding capacity a character holds in its fleet
//   - [FullFleetInfo] : fleet settings, members, wings and leadership in one value
//
// 3. Persistent entities backed by sqlite
//   - [User] : Discord accounts that passed the guild gate
//   - [Character] : EVE characters linked through SSO, holding their ESI tokens
//   - [FleetTemplate] : write-once, named [FleetSnapshot] of a fleet's wing/squad structure
//
// A [FleetSnapshot] is an arena of wing and squad records addressed by template-local ids.
// Those ids only express parent/child relationships inside the snapshot and are never valid
// against a live fleet.
package models
