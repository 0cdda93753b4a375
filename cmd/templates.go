package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/esifleet/internal/formatter"
	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/shared"
	"github.com/desertthunder/esifleet/internal/tasks"
	"github.com/urfave/cli/v3"
)

func templateRef(cmd *cli.Command) (string, error) {
	ref := strings.TrimSpace(cmd.StringArg("template"))
	if ref == "" {
		return "", fmt.Errorf("%w: <template> id or name", shared.ErrMissingArgument)
	}
	return ref, nil
}

// TemplatesList lists stored templates, oldest first.
func (r *Runner) TemplatesList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	criteria := map[string]any{}
	if owner := cmd.Int64("owner"); owner > 0 {
		criteria["owner_id"] = owner
	}
	if limit := cmd.Int("limit"); limit > 0 {
		criteria["limit"] = limit
	}

	list, err := r.templates.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]models.TemplateView, len(list))
		for i, t := range list {
			views[i] = t.View()
		}
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d templates:\n\n", len(list))
	for i, t := range list {
		body := t.Body()
		r.writePlain("%d. %s\n", i+1, t.Name())
		r.writePlain("   ID: %s\n", t.ID())
		r.writePlain("   Structure: %d wings, %d squads\n", len(body.Wings), len(body.Squads))
		r.writePlain("   Captured by %d on %s\n", t.OwnerID(), t.CreatedAt().Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// TemplatesShow prints a template in the requested format.
func (r *Runner) TemplatesShow(ctx context.Context, cmd *cli.Command) error {
	ref, err := templateRef(cmd)
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	tpl, err := r.engine.ResolveTemplate(ref)
	if err != nil {
		return err
	}

	data, err := formatter.ExportTemplate(tpl, cmd.String("format"))
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}

// TemplatesCapture snapshots the character's fleet and stores it.
//
// A snapshot that could not be saved is still printed so it is not lost.
func (r *Runner) TemplatesCapture(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	res, err := r.engine.Capture(ctx, cmd.Int64("character"), cmd.String("name"))
	if err != nil {
		return err
	}

	if res.SaveErr != nil {
		r.writePlain("⚠ Captured fleet but could not save %q: %v\n\n", res.Name, res.SaveErr)
		if errors.Is(res.SaveErr, shared.ErrDuplicateName) {
			r.writePlain("Re-run with --name to pick another name. Snapshot:\n")
		}
		if err := r.writeJSON(res.Snapshot, true); err != nil {
			return err
		}
		return res.SaveErr
	}

	if cmd.Bool("json") {
		return r.writeJSON(res.Template.View(), cmd.Bool("pretty"))
	}

	r.writePlain("✓ Saved template %q\n", res.Name)
	r.writePlain("ID: %s\n", res.Template.ID())
	r.writePlain("Structure: %d wings, %d squads\n", len(res.Snapshot.Wings), len(res.Snapshot.Squads))
	return nil
}

// TemplatesReconstruct rebuilds a template in the character's fleet, printing each step.
func (r *Runner) TemplatesReconstruct(ctx context.Context, cmd *cli.Command) error {
	ref, err := templateRef(cmd)
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if !cmd.Bool("json") {
				r.writePlain("%s\n", update.Message)
			}
		}
	}()

	full, err := r.engine.Reconstruct(ctx, cmd.Int64("character"), ref, progress)
	close(progress)
	<-done

	var rerr *tasks.ReconstructionError
	if errors.As(err, &rerr) {
		r.writePlainln("⚠ Reconstruction stopped at %s", strings.ReplaceAll(rerr.Step, "_", " "))
		r.writePlain("Created before the failure (template id → live id):\n")
		if err := r.writeJSON(rerr.Mapping, true); err != nil {
			return err
		}
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(full, cmd.Bool("pretty"))
	}

	name := ref
	if tpl, err := r.engine.ResolveTemplate(ref); err == nil {
		name = tpl.Name()
	}
	r.writePlainln("✓ Reconstructed %q", name)
	return r.writePlain("%s", formatter.FleetSummary(full))
}

// TemplatesExport writes a template to disk.
func (r *Runner) TemplatesExport(ctx context.Context, cmd *cli.Command) error {
	ref, err := templateRef(cmd)
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	tpl, err := r.engine.ResolveTemplate(ref)
	if err != nil {
		return err
	}

	format := cmd.String("format")
	output := cmd.String("output")
	if output != "" && !cmd.IsSet("format") {
		format = formatter.FormatFromPath(output)
	}

	path, err := formatter.WriteExport(tpl, format, output)
	if err != nil {
		return err
	}
	r.logger.Info("template exported", "template_id", tpl.ID(), "path", path)
	return r.writePlain("✓ Exported %q to %s\n", tpl.Name(), path)
}

// TemplatesCheck validates a JSON or YAML template file and prints its structure.
//
// Files are never stored. Only a capture puts a template in the store.
func (r *Runner) TemplatesCheck(ctx context.Context, cmd *cli.Command) error {
	path := strings.TrimSpace(cmd.StringArg("path"))
	if path == "" {
		return fmt.Errorf("%w: <path>", shared.ErrMissingArgument)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	name, body, err := formatter.ParseDraft(data, formatter.FormatFromPath(path))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(body, cmd.Bool("pretty"))
	}

	if name == "" {
		name = "(unnamed)"
	}
	r.writePlain("✓ %s is a valid draft of %q: %d wings, %d squads\n", path, name, len(body.Wings), len(body.Squads))
	for _, w := range body.Wings {
		r.writePlain("%d  %s\n", w.WingID, w.Name)
		for _, sq := range body.SquadsOf(w.WingID) {
			r.writePlain("   └ %d  %s\n", sq.SquadID, sq.Name)
		}
	}
	return nil
}
