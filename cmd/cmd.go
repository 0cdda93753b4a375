// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func characterFlag() cli.Flag {
	return &cli.Int64Flag{
		Name:     "character",
		Aliases:  []string{"C"},
		Usage:    "EVE character id to act as",
		Required: true,
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
			Value: true,
		},
	}
}

func withOutput(flags ...cli.Flag) []cli.Flag {
	return append(flags, outputFlags()...)
}

// setupCommand handles setup operations for configuration and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml if missing, then initialize the database and run migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "status",
				Usage: "List migrations and whether they are applied",
			},
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Roll back the most recent migration",
			},
		},
		Action: r.Setup,
	}
}

// authCommand handles EVE SSO linking and stored tokens
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage linked EVE characters",
		Commands: []*cli.Command{
			{
				Name:  "eve",
				Usage: "Log in with EVE SSO and store the character's tokens",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "discord-id",
						Usage: "Link the character to this Discord user",
					},
				},
				Action: r.AuthEVE,
			},
			{
				Name:   "list",
				Usage:  "List linked characters and token expiry",
				Flags:  withOutput(&cli.StringFlag{Name: "discord-id", Usage: "Only characters of this Discord user"}),
				Action: r.AuthList,
			},
			{
				Name:   "refresh",
				Usage:  "Refresh every token expiring within the refresh window",
				Action: r.AuthRefresh,
			},
		},
	}
}

// fleetCommand handles live fleet reads and fleet commander operations
func fleetCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "fleet",
		Usage: "Inspect and manage the character's current fleet",
		Commands: []*cli.Command{
			{
				Name:   "role",
				Usage:  "Show the character's fleet role",
				Flags:  withOutput(characterFlag()),
				Action: r.FleetRole,
			},
			{
				Name:   "info",
				Usage:  "Show fleet settings, structure and member counts",
				Flags:  withOutput(characterFlag()),
				Action: r.FleetInfo,
			},
			{
				Name:   "wings",
				Usage:  "List wings and squads",
				Flags:  withOutput(characterFlag()),
				Action: r.FleetWings,
			},
			{
				Name:   "members",
				Usage:  "List fleet members",
				Flags:  withOutput(characterFlag()),
				Action: r.FleetMembers,
			},
			{
				Name:  "settings",
				Usage: "Update free move and MOTD (fleet commander only)",
				Flags: []cli.Flag{
					characterFlag(),
					&cli.BoolFlag{Name: "free-move", Usage: "Allow members to move freely"},
					&cli.StringFlag{Name: "motd", Usage: "Message of the day"},
				},
				Action: r.FleetSettings,
			},
			{
				Name:      "delete-wing",
				Usage:     "Delete a wing (fleet commander only)",
				Flags:     []cli.Flag{characterFlag()},
				Arguments: []cli.Argument{&cli.StringArg{Name: "wing-id"}},
				Action:    r.FleetDeleteWing,
			},
			{
				Name:      "delete-squad",
				Usage:     "Delete a squad (fleet commander only)",
				Flags:     []cli.Flag{characterFlag()},
				Arguments: []cli.Argument{&cli.StringArg{Name: "squad-id"}},
				Action:    r.FleetDeleteSquad,
			},
			{
				Name:  "move",
				Usage: "Move a member to a new role and position (fleet commander only)",
				Flags: []cli.Flag{
					characterFlag(),
					&cli.StringFlag{Name: "role", Usage: "fleet_commander, wing_commander, squad_commander or squad_member", Required: true},
					&cli.Int64Flag{Name: "wing", Usage: "Target wing id"},
					&cli.Int64Flag{Name: "squad", Usage: "Target squad id"},
				},
				Arguments: []cli.Argument{&cli.StringArg{Name: "member-id"}},
				Action:    r.FleetMove,
			},
		},
	}
}

// templatesCommand handles stored fleet templates
func templatesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "templates",
		Aliases: []string{"tpl"},
		Usage:   "Capture, inspect and reconstruct fleet templates",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List stored templates",
				Flags: withOutput(
					&cli.Int64Flag{Name: "owner", Usage: "Only templates captured by this character"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of templates to return"},
				),
				Action: r.TemplatesList,
			},
			{
				Name:      "show",
				Usage:     "Print a template by id or name",
				Arguments: []cli.Argument{&cli.StringArg{Name: "template"}},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "json, yaml, markdown, txt or csv", Value: "txt"},
				},
				Action: r.TemplatesShow,
			},
			{
				Name:  "capture",
				Usage: "Save the character's current fleet as a template",
				Flags: withOutput(
					characterFlag(),
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Template name (defaults to the fleet name)"},
				),
				Action: r.TemplatesCapture,
			},
			{
				Name:      "reconstruct",
				Aliases:   []string{"apply"},
				Usage:     "Rebuild a template's settings, wings and squads in the character's fleet",
				Arguments: []cli.Argument{&cli.StringArg{Name: "template"}},
				Flags:     withOutput(characterFlag()),
				Action:    r.TemplatesReconstruct,
			},
			{
				Name:      "export",
				Usage:     "Write a template to a file",
				Arguments: []cli.Argument{&cli.StringArg{Name: "template"}},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "json, yaml, markdown, txt or csv", Value: "json"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file path (default: <name>.<format>)"},
				},
				Action: r.TemplatesExport,
			},
			{
				Name:      "check",
				Usage:     "Validate a JSON or YAML template file without storing it",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Flags:     outputFlags(),
				Action:    r.TemplatesCheck,
			},
		},
	}
}

// charactersCommand reads a linked character's own state
func charactersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "characters",
		Aliases: []string{"char"},
		Usage:   "Read a character's profile, skills, clones, fatigue and fittings",
		Commands: []*cli.Command{
			{
				Name:   "profile",
				Usage:  "Show corporation, alliance, location, ship and online status",
				Flags:  withOutput(characterFlag()),
				Action: r.CharactersProfile,
			},
			{
				Name:   "skills",
				Usage:  "Show trained skills and skill points",
				Flags:  withOutput(characterFlag()),
				Action: r.CharactersSkills,
			},
			{
				Name:   "clones",
				Usage:  "List jump clones and active implants",
				Flags:  withOutput(characterFlag()),
				Action: r.CharactersClones,
			},
			{
				Name:   "fatigue",
				Usage:  "Show jump fatigue",
				Flags:  withOutput(characterFlag()),
				Action: r.CharactersFatigue,
			},
			{
				Name:   "fittings",
				Usage:  "List saved fittings",
				Flags:  withOutput(characterFlag()),
				Action: r.CharactersFittings,
			},
			{
				Name:  "waypoint",
				Usage: "Add a destination to the in-game autopilot",
				Flags: []cli.Flag{
					characterFlag(),
					&cli.BoolFlag{Name: "add-to-beginning", Usage: "Insert before existing waypoints"},
					&cli.BoolFlag{Name: "clear", Usage: "Clear other waypoints first"},
				},
				Arguments: []cli.Argument{&cli.StringArg{Name: "destination-id"}},
				Action:    r.CharactersWaypoint,
			},
		},
	}
}

// serveCommand runs the web server, Discord bot and token refresher
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the web login, fleet API, Discord bot and token refresher",
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive reconstruction.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI to reconstruct fleet templates",
		Flags:   []cli.Flag{characterFlag()},
		Action:  r.TUI,
	}
}
