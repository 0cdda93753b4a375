// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks a fleet commander through rebuilding a saved fleet:
//  1. [TemplateListView] : Browse stored fleet templates
//  2. [PreviewView] : Inspect the template's wings, squads and settings
//  3. [ConfirmView] : Check the character's fleet role and confirm
//  4. [ReconstructView] : Follow each settings, wing and squad call as it completes
//  5. [ResultView] : Show the rebuilt fleet, or what was created before a failure
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the FleetEngine so the view redraws after every remote call.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
