// Package repositories implements SQLite persistence for users, characters and fleet templates.
//
// Key Implementations:
//   - [UserRepository] : Discord accounts, looked up by Discord id, with their linked character ids
//   - [CharacterRepository] : EVE characters and their ESI tokens; feeds the credential store and token refresher
//   - [TemplateRepository] : write-once fleet templates; the only write path is [TemplateRepository.Create]
//
// Template name uniqueness is enforced by a UNIQUE constraint on fleet_templates.name, so two concurrent
// saves with the same name cannot both succeed. The losing insert surfaces as [shared.ErrDuplicateName].
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function increments per-table sequence counters in dedicated sequence tables.
package repositories
