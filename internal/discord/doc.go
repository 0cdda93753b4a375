// Package discord runs the guild bot: slash command registration and dispatch.
//
// [CommandHandler] turns an [Invocation] into a [Reply] without touching the gateway, and
// [Bot] adapts discordgo interactions to it. Commands:
//
//	/hello                 greeting
//	/link                  EVE SSO link for the caller's Discord account (ephemeral)
//	/fleet                 role and structure of the caller's fleet (ephemeral)
//	/pilot                 corporation, location, ship and online status of the caller (ephemeral)
//	/capture [name]        save the caller's fleet as a template
//	/reconstruct template  rebuild a template in the caller's fleet
//	/templates             list saved templates
package discord
