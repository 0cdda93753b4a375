package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/shared"
	tu "github.com/desertthunder/esifleet/internal/testing"
	"github.com/urfave/cli/v3"
)

type testEnv struct {
	runner *Runner
	api    *tu.FakeFleetAPI
	pilots *tu.FakePilotAPI
	output *bytes.Buffer
}

// newTestEnv wires a runner to in-memory sqlite and a fake ESI where character 42 commands
// fleet 1001 and character 43 is a squad member. Only character 42 has a pilot profile.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	api := tu.NewFakeFleetAPI()
	api.AddFleet(1001, models.FleetInfo{Name: "Roam", MOTD: "x up"}, []models.Wing{
		{ID: 1, Name: "Main", Squads: []models.Squad{{ID: 11, Name: "DPS"}}},
		{ID: 2, Name: "Support", Squads: []models.Squad{{ID: 21, Name: "Logi"}}},
	})
	api.Join(42, 1001, models.RoleFleetCommander, -1, -1)
	api.Join(43, 1001, models.RoleSquadMember, 1, 11)

	pilots := tu.NewFakePilotAPI()
	pilots.AddPilot(42, tu.Pilot{
		Info:     models.PilotInfo{Name: "Fleet Boss", CorporationID: 98000001},
		Location: &models.Location{SolarSystemID: 30000142},
		Skills: &models.Skills{TotalSP: 5000, Skills: []models.Skill{
			{SkillID: 3327, ActiveSkillLevel: 4, TrainedSkillLevel: 4, SkillpointsInSkill: 45255},
		}},
		Clones: &models.Clones{
			JumpClones:     []models.JumpClone{{JumpCloneID: 5, LocationID: 60008494, LocationType: "station"}},
			ActiveImplants: []int64{9899},
		},
		Fatigue:  &models.JumpFatigue{},
		Fittings: []models.Fitting{{FittingID: 1, Name: "Logi", ShipTypeID: 11985}},
	})
	pilots.AddCorporation(98000001, models.Corporation{Name: "Corp", Ticker: "CRP"})

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		ConfigPath: filepath.Join(t.TempDir(), "config.toml"),
		Logger:     shared.NewLogger(io.Discard),
		Output:     output,
		DB:         db,
		API:        api,
		Pilots:     pilots,
	})
	return &testEnv{runner: runner, api: api, pilots: pilots, output: output}
}

func (e *testEnv) run(args ...string) error {
	e.output.Reset()
	app := &cli.Command{
		Name:      "esifleet",
		Writer:    io.Discard,
		ErrWriter: io.Discard,
		Commands:  e.runner.register(),
	}
	return app.Run(context.Background(), append([]string{"esifleet"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			api := tu.NewFakeFleetAPI()

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				API:        api,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.api != api {
				t.Error("expected api to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
			if runner.db != nil || runner.engine != nil {
				t.Error("expected storage and engine to open lazily")
			}
		})

		t.Run("with database attaches repositories", func(t *testing.T) {
			env := newTestEnv(t)
			if env.runner.users == nil || env.runner.characters == nil || env.runner.templates == nil {
				t.Fatal("expected repositories to be attached")
			}
			if err := env.runner.open(); err != nil {
				t.Fatalf("open failed: %v", err)
			}
			if env.runner.engine == nil {
				t.Error("expected engine after open")
			}
			if err := env.runner.Close(); err != nil {
				t.Errorf("Close should leave an injected database alone, got %v", err)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FailingWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FailingWriter{OK: 1}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FailingWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		names := map[string]bool{}
		for i, cmd := range runner.register() {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}

		for _, want := range []string{"setup", "auth", "fleet", "templates", "characters", "serve", "tui"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})
}

func TestFleetCommands(t *testing.T) {
	t.Run("role", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("fleet", "role", "-C", "42", "--json"); err != nil {
			t.Fatalf("role failed: %v", err)
		}

		var role models.LeadershipRole
		if err := json.Unmarshal(env.output.Bytes(), &role); err != nil {
			t.Fatalf("invalid JSON %q: %v", env.output.String(), err)
		}
		if !role.InFleet || role.Role != models.RoleFleetCommander || *role.FleetID != 1001 {
			t.Errorf("unexpected role %+v", role)
		}

		if err := env.run("fleet", "role", "-C", "77"); err != nil {
			t.Fatalf("role failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "not in a fleet") {
			t.Errorf("unexpected output %q", env.output.String())
		}
	})

	t.Run("info wings and members", func(t *testing.T) {
		env := newTestEnv(t)

		if err := env.run("fleet", "info", "-C", "42"); err != nil {
			t.Fatalf("info failed: %v", err)
		}
		if out := env.output.String(); !strings.Contains(out, "Fleet 1001 (Roam)") || !strings.Contains(out, "DPS [11] (1 members)") {
			t.Errorf("unexpected info output:\n%s", out)
		}

		if err := env.run("fleet", "wings", "-C", "42"); err != nil {
			t.Fatalf("wings failed: %v", err)
		}
		if out := env.output.String(); !strings.Contains(out, "2 wings, 2 squads") || !strings.Contains(out, "└ 21  Logi") {
			t.Errorf("unexpected wings output:\n%s", out)
		}

		if err := env.run("fleet", "members", "-C", "42", "--json"); err != nil {
			t.Fatalf("members failed: %v", err)
		}
		var members []models.Member
		if err := json.Unmarshal(env.output.Bytes(), &members); err != nil || len(members) != 2 {
			t.Errorf("expected 2 members, got %d (%v)", len(members), err)
		}

		if err := env.run("fleet", "info", "-C", "77"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound outside a fleet, got %v", err)
		}
	})

	t.Run("settings", func(t *testing.T) {
		env := newTestEnv(t)

		if err := env.run("fleet", "settings", "-C", "42", "--motd", "form up", "--free-move"); err != nil {
			t.Fatalf("settings failed: %v", err)
		}
		if info := env.api.Info(1001); info.MOTD != "form up" || !info.IsFreeMove {
			t.Errorf("unexpected fleet info %+v", info)
		}

		if err := env.run("fleet", "settings", "-C", "42"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if err := env.run("fleet", "settings", "-C", "43", "--motd", "mutiny"); !errors.Is(err, shared.ErrPermissionDenied) {
			t.Errorf("expected ErrPermissionDenied for a squad member, got %v", err)
		}
	})

	t.Run("delete and move", func(t *testing.T) {
		env := newTestEnv(t)

		if err := env.run("fleet", "delete-squad", "-C", "42", "21"); err != nil {
			t.Fatalf("delete-squad failed: %v", err)
		}
		if err := env.run("fleet", "delete-wing", "-C", "42", "2"); err != nil {
			t.Fatalf("delete-wing failed: %v", err)
		}
		if wings := env.api.Wings(1001); len(wings) != 1 || wings[0].ID != 1 {
			t.Errorf("expected only wing 1 to remain, got %+v", wings)
		}

		if err := env.run("fleet", "move", "-C", "42", "--role", "squad_commander", "--wing", "1", "--squad", "11", "43"); err != nil {
			t.Fatalf("move failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "Moved 43 to squad_commander") {
			t.Errorf("unexpected output %q", env.output.String())
		}

		tc := []struct {
			name string
			args []string
			want error
		}{
			{"non numeric id", []string{"fleet", "delete-wing", "-C", "42", "abc"}, shared.ErrInvalidArgument},
			{"missing id", []string{"fleet", "delete-squad", "-C", "42"}, shared.ErrMissingArgument},
			{"unknown role", []string{"fleet", "move", "-C", "42", "--role", "admiral", "43"}, shared.ErrInvalidArgument},
			{"unknown wing", []string{"fleet", "delete-wing", "-C", "42", "99"}, shared.ErrNotFound},
		}
		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				if err := env.run(tt.args...); !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})
}

func TestTemplateCommands(t *testing.T) {
	t.Run("capture list show", func(t *testing.T) {
		env := newTestEnv(t)

		if err := env.run("templates", "capture", "-C", "42", "--name", "Doctrine"); err != nil {
			t.Fatalf("capture failed: %v", err)
		}
		if out := env.output.String(); !strings.Contains(out, `Saved template "Doctrine"`) || !strings.Contains(out, "2 wings, 2 squads") {
			t.Errorf("unexpected capture output:\n%s", out)
		}

		if err := env.run("templates", "list", "--json"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		var views []models.TemplateView
		if err := json.Unmarshal(env.output.Bytes(), &views); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(views) != 1 || views[0].Name != "Doctrine" || views[0].OwnerID != 42 {
			t.Errorf("unexpected templates %+v", views)
		}

		if err := env.run("templates", "show", "--format", "yaml", "Doctrine"); err != nil {
			t.Fatalf("show failed: %v", err)
		}
		if out := env.output.String(); !strings.Contains(out, "name: Doctrine") {
			t.Errorf("expected YAML output, got:\n%s", out)
		}

		if err := env.run("templates", "show", "missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list is oldest first", func(t *testing.T) {
		env := newTestEnv(t)
		for _, name := range []string{"Zulu", "Alpha"} {
			if err := env.run("templates", "capture", "-C", "42", "--name", name); err != nil {
				t.Fatalf("capture %s failed: %v", name, err)
			}
		}

		if err := env.run("templates", "list", "--json"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		var views []models.TemplateView
		if err := json.Unmarshal(env.output.Bytes(), &views); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(views) != 2 || views[0].Name != "Zulu" || views[1].Name != "Alpha" {
			t.Errorf("expected capture order Zulu, Alpha, got %+v", views)
		}
	})

	t.Run("capture duplicate prints snapshot", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("templates", "capture", "-C", "42"); err != nil {
			t.Fatalf("capture failed: %v", err)
		}

		err := env.run("templates", "capture", "-C", "42")
		if !errors.Is(err, shared.ErrDuplicateName) {
			t.Fatalf("expected ErrDuplicateName, got %v", err)
		}
		if out := env.output.String(); !strings.Contains(out, `could not save "Roam"`) || !strings.Contains(out, `"wings"`) {
			t.Errorf("expected the snapshot to be printed, got:\n%s", out)
		}
	})

	t.Run("reconstruct", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("templates", "capture", "-C", "42", "--name", "Doctrine"); err != nil {
			t.Fatalf("capture failed: %v", err)
		}

		if err := env.run("templates", "reconstruct", "-C", "42", "Doctrine"); err != nil {
			t.Fatalf("reconstruct failed: %v", err)
		}
		if out := env.output.String(); !strings.Contains(out, `Reconstructed "Doctrine"`) || !strings.Contains(out, "Wings: 4, Squads: 4") {
			t.Errorf("unexpected reconstruct output:\n%s", out)
		}

		if err := env.run("templates", "reconstruct", "-C", "43", "Doctrine"); !errors.Is(err, shared.ErrPermissionDenied) {
			t.Errorf("expected ErrPermissionDenied, got %v", err)
		}
		if err := env.run("templates", "reconstruct", "-C", "42"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("reconstruct incomplete prints mapping", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("templates", "capture", "-C", "42", "--name", "Doctrine"); err != nil {
			t.Fatalf("capture failed: %v", err)
		}
		env.api.FailOn("CreateSquad", 2, shared.ErrRemoteUnavailable)

		err := env.run("templates", "reconstruct", "-C", "42", "Doctrine")
		if !errors.Is(err, shared.ErrReconstructionIncomplete) || !errors.Is(err, shared.ErrRemoteUnavailable) {
			t.Fatalf("expected incomplete reconstruction, got %v", err)
		}
		if out := env.output.String(); !strings.Contains(out, "stopped at create squad") || !strings.Contains(out, `"wings"`) {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("export and check", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("templates", "capture", "-C", "42", "--name", "Doctrine"); err != nil {
			t.Fatalf("capture failed: %v", err)
		}

		path := filepath.Join(t.TempDir(), "doctrine.yaml")
		if err := env.run("templates", "export", "--output", path, "Doctrine"); err != nil {
			t.Fatalf("export failed: %v", err)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("expected export file: %v", err)
		}
		if !strings.Contains(string(content), "name: Doctrine") {
			t.Errorf("expected YAML export inferred from extension, got:\n%s", content)
		}

		if err := env.run("templates", "check", path); err != nil {
			t.Fatalf("check failed: %v", err)
		}
		if out := env.output.String(); !strings.Contains(out, `valid draft of "Doctrine": 2 wings, 2 squads`) || !strings.Contains(out, "└ 11  DPS") {
			t.Errorf("unexpected check output:\n%s", out)
		}

		list, err := env.runner.templates.List(map[string]any{})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 1 {
			t.Errorf("expected check to leave the store alone, got %d templates", len(list))
		}

		bad := filepath.Join(t.TempDir(), "bad.json")
		if err := os.WriteFile(bad, []byte(`{"name":"x","wings":[],"squads":[{"wing_id":9,"squad_id":1,"name":"orphan"}]}`), 0644); err != nil {
			t.Fatal(err)
		}
		if err := env.run("templates", "check", bad); !errors.Is(err, shared.ErrInvalidTemplate) {
			t.Errorf("expected ErrInvalidTemplate, got %v", err)
		}
		if err := env.run("templates", "check"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("reconstruct checks the role before the template", func(t *testing.T) {
		env := newTestEnv(t)
		err := env.run("templates", "reconstruct", "-C", "43", "missing")
		if !errors.Is(err, shared.ErrPermissionDenied) || errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrPermissionDenied, got %v", err)
		}
	})
}

func TestCharacterCommands(t *testing.T) {
	t.Run("profile", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("characters", "profile", "-C", "42"); err != nil {
			t.Fatalf("profile failed: %v", err)
		}
		out := env.output.String()
		for _, want := range []string{"Fleet Boss [42]", "Corporation: Corp [CRP]", "System: 30000142"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output, got:\n%s", want, out)
			}
		}
		if strings.Contains(out, "Ship:") {
			t.Errorf("expected no ship without the scope, got:\n%s", out)
		}
	})

	t.Run("profile json", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("characters", "profile", "-C", "42", "--json"); err != nil {
			t.Fatalf("profile failed: %v", err)
		}
		var profile models.PilotProfile
		if err := json.Unmarshal(env.output.Bytes(), &profile); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if profile.CharacterID != 42 || profile.Corporation == nil || profile.Corporation.Ticker != "CRP" {
			t.Errorf("unexpected profile %+v", profile)
		}
	})

	t.Run("skills clones fatigue fittings", func(t *testing.T) {
		env := newTestEnv(t)

		tc := []struct {
			args []string
			want string
		}{
			{args: []string{"skills"}, want: "1 skills, 5000 SP"},
			{args: []string{"clones"}, want: "Jump clones: 1"},
			{args: []string{"fatigue"}, want: "No jump fatigue"},
			{args: []string{"fittings"}, want: "Logi"},
		}

		for _, tt := range tc {
			t.Run(tt.args[0], func(t *testing.T) {
				args := append([]string{"characters"}, tt.args...)
				if err := env.run(append(args, "-C", "42")...); err != nil {
					t.Fatalf("%s failed: %v", tt.args[0], err)
				}
				if !strings.Contains(env.output.String(), tt.want) {
					t.Errorf("expected %q, got:\n%s", tt.want, env.output.String())
				}
			})
		}
	})

	t.Run("unknown character", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("characters", "skills", "-C", "43"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("waypoint", func(t *testing.T) {
		env := newTestEnv(t)
		if err := env.run("characters", "waypoint", "-C", "42", "--clear", "30000142"); err != nil {
			t.Fatalf("waypoint failed: %v", err)
		}
		got := env.pilots.Waypoints(42)
		if len(got) != 1 || got[0].DestinationID != 30000142 || !got[0].ClearOtherWaypoints || got[0].AddToBeginning {
			t.Errorf("unexpected waypoints %+v", got)
		}

		if err := env.run("characters", "waypoint", "-C", "42"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if err := env.run("characters", "waypoint", "-C", "42", "jita"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestAuthCommands(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		env := newTestEnv(t)
		c := models.NewCharacter(0, 42, "Fleet Boss")
		c.SetTokens("access", "refresh", time.Now().Add(time.Hour))
		c.SetScopes([]string{"esi-fleets.write_fleet.v1"})
		if err := env.runner.characters.Create(c); err != nil {
			t.Fatalf("failed to create character: %v", err)
		}

		if err := env.run("auth", "list", "--json"); err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if strings.Contains(env.output.String(), "access") {
			t.Error("expected tokens to be left out of the output")
		}

		var views []characterView
		if err := json.Unmarshal(env.output.Bytes(), &views); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(views) != 1 || views[0].CharacterID != 42 || views[0].Name != "Fleet Boss" {
			t.Errorf("unexpected characters %+v", views)
		}
	})

	t.Run("eve requires credentials", func(t *testing.T) {
		env := newTestEnv(t)
		env.runner.config.ESI.ClientSecret = ""
		if err := env.run("auth", "eve"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestSetup(t *testing.T) {
	env := newTestEnv(t)

	if err := env.run("setup", "--status"); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if _, err := os.Stat(env.runner.configPath); err != nil {
		t.Errorf("expected config file to be created: %v", err)
	}
	if out := env.output.String(); !strings.Contains(out, "✓ 0000 create_tables") {
		t.Errorf("expected applied migrations, got:\n%s", out)
	}
}
