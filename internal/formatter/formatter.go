// package formatter renders fleet templates and live fleet state for files, terminals and chat.
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/shared"
	"gopkg.in/yaml.v3"
)

// Export formats accepted by [ExportTemplate]. Only JSON and YAML can be parsed back as drafts.
const (
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
	FormatCSV      = "csv"
)

var extensions = map[string]string{
	FormatJSON:     "json",
	FormatYAML:     "yaml",
	FormatMarkdown: "md",
	FormatText:     "txt",
	FormatCSV:      "csv",
}

// ExportTemplate renders a template in the given format.
func ExportTemplate(t *models.FleetTemplate, format string) ([]byte, error) {
	switch normalize(format) {
	case FormatJSON:
		return ExportToJSON(t)
	case FormatYAML:
		return ExportToYAML(t)
	case FormatMarkdown:
		return ExportToMarkdown(t)
	case FormatText:
		return ExportToText(t)
	case FormatCSV:
		return ExportToCSV(t)
	default:
		return nil, fmt.Errorf("%w: unsupported export format %q", shared.ErrInvalidArgument, format)
	}
}

func normalize(format string) string {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "yml":
		return FormatYAML
	case "md":
		return FormatMarkdown
	case "text":
		return FormatText
	default:
		return f
	}
}

// ExportToJSON renders the template with its metadata as indented JSON.
func ExportToJSON(t *models.FleetTemplate) ([]byte, error) {
	return shared.MarshalJSON(t.View(), true)
}

// ExportToYAML renders the template with its metadata as YAML.
func ExportToYAML(t *models.FleetTemplate) ([]byte, error) {
	data, err := yaml.Marshal(t.View())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return data, nil
}

// ExportToCSV converts a template to CSV with columns: Kind, Wing ID, Squad ID, Name.
//
// Each wing row is followed by the rows of its squads.
func ExportToCSV(t *models.FleetTemplate) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Kind", "Wing ID", "Squad ID", "Name"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	body := t.Body()
	for _, w := range body.Wings {
		if err := writer.Write([]string{"wing", strconv.FormatInt(w.WingID, 10), "", w.Name}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
		for _, s := range body.SquadsOf(w.WingID) {
			record := []string{"squad", strconv.FormatInt(s.WingID, 10), strconv.FormatInt(s.SquadID, 10), s.Name}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown converts a template to a Markdown document with a nested wing/squad list.
func ExportToMarkdown(t *models.FleetTemplate) ([]byte, error) {
	var buf bytes.Buffer
	body := t.Body()

	buf.WriteString(fmt.Sprintf("# %s\n\n", t.Name()))
	buf.WriteString(fmt.Sprintf("**Wings**: %d\n", len(body.Wings)))
	buf.WriteString(fmt.Sprintf("**Squads**: %d\n", len(body.Squads)))

	if s := body.Settings; s != nil {
		buf.WriteString(fmt.Sprintf("**Free move**: %s\n", yesNo(s.IsFreeMove)))
		if !s.CapturedAt.IsZero() {
			buf.WriteString(fmt.Sprintf("**Captured**: %s\n", s.CapturedAt.Format("2006-01-02 15:04 MST")))
		}
		if s.MOTD != "" {
			buf.WriteString(fmt.Sprintf("\n## MOTD\n\n%s\n", s.MOTD))
		}
	}

	buf.WriteString("\n## Structure\n\n")
	for i, w := range body.Wings {
		buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, w.Name))
		for _, s := range body.SquadsOf(w.WingID) {
			buf.WriteString(fmt.Sprintf("   - %s\n", s.Name))
		}
	}
	return buf.Bytes(), nil
}

// ExportToText converts a template to plain text.
func ExportToText(t *models.FleetTemplate) ([]byte, error) {
	var buf bytes.Buffer
	body := t.Body()

	buf.WriteString(fmt.Sprintf("Template: %s\n", t.Name()))
	if s := body.Settings; s != nil {
		buf.WriteString(fmt.Sprintf("Free move: %s\n", yesNo(s.IsFreeMove)))
		if s.MOTD != "" {
			buf.WriteString(fmt.Sprintf("MOTD: %s\n", s.MOTD))
		}
	}
	buf.WriteString(fmt.Sprintf("Wings: %d, Squads: %d\n\n", len(body.Wings), len(body.Squads)))

	for i, w := range body.Wings {
		buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, w.Name))
		for j, s := range body.SquadsOf(w.WingID) {
			buf.WriteString(fmt.Sprintf("   %d.%d %s\n", i+1, j+1, s.Name))
		}
	}
	return buf.Bytes(), nil
}

// document accepts both an exported template (name + body) and a bare snapshot.
type document struct {
	Name                 string                `json:"name" yaml:"name"`
	Body                 *models.FleetSnapshot `json:"body" yaml:"body"`
	models.FleetSnapshot `yaml:",inline"`
}

// ParseDraft parses a JSON or YAML template file into a validated draft snapshot.
//
// Drafts are for review only; the template store accepts nothing but captures.
//
// data may be the output of [ExportToJSON]/[ExportToYAML] or a bare snapshot. The returned name
// is empty when the document carries none.
func ParseDraft(data []byte, format string) (string, models.FleetSnapshot, error) {
	var doc document

	switch normalize(format) {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return "", models.FleetSnapshot{}, fmt.Errorf("%w: %v", shared.ErrInvalidTemplate, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return "", models.FleetSnapshot{}, fmt.Errorf("%w: %v", shared.ErrInvalidTemplate, err)
		}
	default:
		return "", models.FleetSnapshot{}, fmt.Errorf("%w: unsupported draft format %q", shared.ErrInvalidArgument, format)
	}

	snapshot := doc.FleetSnapshot
	if doc.Body != nil {
		snapshot = *doc.Body
	}
	if snapshot.Wings == nil {
		snapshot.Wings = []models.TemplateWing{}
	}
	if snapshot.Squads == nil {
		snapshot.Squads = []models.TemplateSquad{}
	}

	if err := snapshot.Validate(); err != nil {
		return "", models.FleetSnapshot{}, fmt.Errorf("%w: %v", shared.ErrInvalidTemplate, err)
	}
	return strings.TrimSpace(doc.Name), snapshot, nil
}

// FormatFromPath guesses a format from a file extension, defaulting to JSON.
func FormatFromPath(path string) string {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return FormatJSON
	}
	switch f := normalize(path[i+1:]); f {
	case FormatJSON, FormatYAML, FormatMarkdown, FormatText, FormatCSV:
		return f
	default:
		return FormatJSON
	}
}

// WriteExport renders a template and writes it to path.
//
// Defaults to {slug}.{ext} in the working directory, where slug is derived from the template name.
func WriteExport(t *models.FleetTemplate, format, path string) (string, error) {
	data, err := ExportTemplate(t, format)
	if err != nil {
		return "", err
	}

	if path == "" {
		path = fmt.Sprintf("%s.%s", Slug(t.Name()), extensions[normalize(format)])
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// Slug lowercases name and replaces runs of non-alphanumerics with a single dash.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "template"
	}
	return slug
}

// FleetSummary renders live fleet state as plain text for terminals and chat.
func FleetSummary(full *models.FullFleetInfo) string {
	if full == nil {
		return "Not in a fleet.\n"
	}

	var buf strings.Builder
	buf.WriteString(fmt.Sprintf("Fleet %d", full.FleetID))
	if full.Info.Name != "" {
		buf.WriteString(fmt.Sprintf(" (%s)", full.Info.Name))
	}
	buf.WriteString("\n")
	buf.WriteString(fmt.Sprintf("Role: %s\n", RoleSummary(full.Leadership)))
	buf.WriteString(fmt.Sprintf("Free move: %s\n", yesNo(full.Info.IsFreeMove)))
	if full.Info.MOTD != "" {
		buf.WriteString(fmt.Sprintf("MOTD: %s\n", full.Info.MOTD))
	}
	buf.WriteString(fmt.Sprintf("Members: %d, Wings: %d, Squads: %d\n", len(full.Members), len(full.Wings), full.SquadCount()))

	perSquad := map[int64]int{}
	for _, m := range full.Members {
		perSquad[m.SquadID]++
	}

	for i, w := range full.Wings {
		buf.WriteString(fmt.Sprintf("%d. %s [%d]\n", i+1, w.Name, w.ID))
		for _, s := range w.Squads {
			buf.WriteString(fmt.Sprintf("   - %s [%d] (%d members)\n", s.Name, s.ID, perSquad[s.ID]))
		}
	}
	return buf.String()
}

// RoleSummary describes a leadership role in one line.
func RoleSummary(r models.LeadershipRole) string {
	if !r.InFleet {
		return "not in a fleet"
	}

	parts := []string{r.Role.String()}
	if r.WingID != nil {
		parts = append(parts, fmt.Sprintf("wing %d", *r.WingID))
	}
	if r.SquadID != nil {
		parts = append(parts, fmt.Sprintf("squad %d", *r.SquadID))
	}
	return strings.Join(parts, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// PilotSummary renders a character profile as plain text. Sections the token cannot read are
// left out.
func PilotSummary(p *models.PilotProfile) string {
	var buf strings.Builder
	buf.WriteString(fmt.Sprintf("%s [%d]\n", p.Info.Name, p.CharacterID))
	if p.Corporation != nil {
		buf.WriteString(fmt.Sprintf("Corporation: %s [%s]\n", p.Corporation.Name, p.Corporation.Ticker))
	}
	if p.Alliance != nil {
		buf.WriteString(fmt.Sprintf("Alliance: %s [%s]\n", p.Alliance.Name, p.Alliance.Ticker))
	}
	buf.WriteString(fmt.Sprintf("Security: %.2f\n", p.Info.SecurityStatus))
	if p.Online != nil {
		buf.WriteString(fmt.Sprintf("Online: %s\n", yesNo(p.Online.Online)))
	}
	if p.Location != nil {
		buf.WriteString(fmt.Sprintf("System: %d", p.Location.SolarSystemID))
		if p.Location.Docked() {
			buf.WriteString(" (docked)")
		}
		buf.WriteString("\n")
	}
	if p.Ship != nil {
		buf.WriteString(fmt.Sprintf("Ship: %s (type %d)\n", p.Ship.ShipName, p.Ship.ShipTypeID))
	}
	return buf.String()
}
