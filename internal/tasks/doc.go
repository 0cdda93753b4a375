// Package tasks implements the fleet template engine with real-time progress reporting.
//
// # Core Operations
//
// [FleetEngine] exposes four operations to command and HTTP handlers:
//
//  1. [FleetEngine.Capture] : Snapshot the live fleet into a template
//     - Any leadership role (fleet, wing or squad commander) may capture
//     - Reads settings and wings concurrently; any read failure aborts
//     - Saves under the given name, the fleet name, or "Fleet <id>"
//
//  2. [FleetEngine.Reconstruct] : Replay a template into the commanded fleet
//     - Fleet commander only, checked before any mutation
//     - Settings first, then each wing followed by its squads, in stored order
//     - Returns the re-read fleet, or a [ReconstructionError] with the partial mapping
//
//  3. [FleetEngine.LeadershipRole] : Derive the character's role from fleet and member data
//
//  4. [FleetEngine.FullFleetInfo] : Settings, members and wings, read concurrently
//
// # Reconstruction State Machine
//
// [Reconstructor] walks Idle → ApplyingSettings → CreatingWing(i) → CreatingSquad(i,j) → Done.
// Each remote call is awaited before the next. When one fails the machine stops and the error
// carries its (state, i, j) position, the failed step and the [LiveFleetMapping] built so far.
// Nothing is rolled back.
//
// # Progress Reporting
//
// # All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Character Reads
//
// [PilotReader] serves a linked character's own profile, skills, clones, fatigue, fittings and
// autopilot waypoints. It shares no state with the engine.
//
// # Token Refresh
//
// [TokenRefresher] is a background task with its own Start/Stop lifecycle. It refreshes tokens
// that are close to expiry through a small worker pool. The engine never refreshes credentials.
package tasks
