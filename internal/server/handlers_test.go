package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/repositories"
	"github.com/desertthunder/esifleet/internal/services"
	"github.com/desertthunder/esifleet/internal/shared"
	"github.com/desertthunder/esifleet/internal/tasks"
	tu "github.com/desertthunder/esifleet/internal/testing"
	"golang.org/x/oauth2"
)

type fakeDiscord struct {
	user *services.DiscordUser
	err  error
}

func (f *fakeDiscord) GetAuthURL(state string) string {
	return "https://discord.test/authorize?state=" + state
}

func (f *fakeDiscord) Authorize(ctx context.Context, code string) (*services.DiscordUser, error) {
	return f.user, f.err
}

type fakeEVE struct {
	identity *services.EVEIdentity
	err      error
}

func (f *fakeEVE) GetAuthURL(state string) string {
	return "https://eve.test/authorize?state=" + state
}

func (f *fakeEVE) Exchange(ctx context.Context, code string) (*services.EVEIdentity, error) {
	return f.identity, f.err
}

type testEnv struct {
	router     *BasicRouter
	api        *tu.FakeFleetAPI
	users      *repositories.UserRepository
	characters *repositories.CharacterRepository
	templates  *repositories.TemplateRepository
	sessions   *Sessions
	discord    *fakeDiscord
	eve        *fakeEVE
}

// newTestEnv seeds Discord user d1 owning characters 42 (fleet commander of 1001) and 43
// (squad member), and user d2 owning character 77.
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

	env := &testEnv{
		api:        tu.NewFakeFleetAPI(),
		users:      repositories.NewUserRepository(db),
		characters: repositories.NewCharacterRepository(db),
		templates:  repositories.NewTemplateRepository(db),
		discord:    &fakeDiscord{},
		eve:        &fakeEVE{},
	}

	env.api.AddFleet(1001, models.FleetInfo{Name: "Roam", MOTD: "x up"}, []models.Wing{
		{ID: 1, Name: "Main", Squads: []models.Squad{{ID: 11, Name: "DPS"}}},
		{ID: 2, Name: "Support", Squads: []models.Squad{{ID: 21, Name: "Logi"}}},
	})
	env.api.Join(42, 1001, models.RoleFleetCommander, -1, -1)
	env.api.Join(43, 1001, models.RoleSquadMember, 1, 11)

	link := func(discordID, username string, ids ...int64) {
		user, err := env.users.Upsert(discordID, username)
		if err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		for _, id := range ids {
			c := models.NewCharacter(0, id, username+" alt")
			c.SetUserID(user.ID())
			if err := env.characters.Create(c); err != nil {
				t.Fatalf("failed to create character %d: %v", id, err)
			}
		}
	}
	link("d1", "Pilot", 42, 43)
	link("d2", "Other", 77)

	env.sessions, err = NewSessions("test-secret", time.Hour, false)
	if err != nil {
		t.Fatalf("NewSessions failed: %v", err)
	}

	logger := shared.NewLogger(io.Discard)
	engine := tasks.NewFleetEngine(env.api, env.templates, logger)

	env.router = NewBasicRouter()
	env.router.Use(Recover(logger), Logging(logger))
	env.router.Handler(NewAuthHandler(env.discord, env.eve, env.users, env.characters, env.sessions, logger))
	env.router.Handler(NewFleetHandler(engine, env.templates, env.users, env.characters, env.sessions, logger))
	return env
}

// do sends a request, signed in as discordID when it is non-empty.
func (e *testEnv) do(t *testing.T, method, path, body, discordID string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	if discordID != "" {
		rec := httptest.NewRecorder()
		if err := e.sessions.Issue(rec, discordID, "tester"); err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		req.AddCookie(rec.Result().Cookies()[0])
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func stateFrom(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	u, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad redirect: %v", err)
	}
	state := u.Query().Get("state")
	if state == "" {
		t.Fatalf("redirect %q has no state", u)
	}
	return state
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestAuthHandler(t *testing.T) {
	t.Run("index redirects without session", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodGet, "/", "", "")
		if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
			t.Errorf("expected redirect to /login, got %d %q", rec.Code, rec.Header().Get("Location"))
		}

		rec = env.do(t, http.MethodGet, "/", "", "d1")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "2 character(s) linked") {
			t.Errorf("expected landing page, got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("discord login", func(t *testing.T) {
		env := newTestEnv(t)
		env.discord.user = &services.DiscordUser{ID: "d3", Username: "newbro", GlobalName: "New Bro"}

		login := env.do(t, http.MethodGet, "/login", "", "")
		if login.Code != http.StatusFound || !strings.HasPrefix(login.Header().Get("Location"), "https://discord.test/") {
			t.Fatalf("expected redirect to discord, got %d %q", login.Code, login.Header().Get("Location"))
		}

		rec := env.do(t, http.MethodGet, "/auth/discord/callback?code=c&state="+stateFrom(t, login), "", "")
		if rec.Code != http.StatusFound {
			t.Fatalf("expected redirect after login, got %d %s", rec.Code, rec.Body.String())
		}

		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Name != sessionCookie {
			t.Fatalf("expected session cookie, got %+v", cookies)
		}

		user, err := env.users.GetByDiscordID("d3")
		if err != nil || user.Username() != "New Bro" {
			t.Errorf("expected user to be saved with display name, got %v %v", user, err)
		}
	})

	t.Run("discord login rejections", func(t *testing.T) {
		tc := []struct {
			name   string
			err    error
			state  bool
			status int
		}{
			{name: "unknown state", status: http.StatusBadRequest},
			{name: "not in guild", err: shared.ErrPermissionDenied, state: true, status: http.StatusForbidden},
			{name: "discord down", err: shared.ErrRemoteUnavailable, state: true, status: http.StatusBadGateway},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				env := newTestEnv(t)
				env.discord.err = tt.err

				state := "bogus"
				if tt.state {
					state = stateFrom(t, env.do(t, http.MethodGet, "/login", "", ""))
				}

				rec := env.do(t, http.MethodGet, "/auth/discord/callback?code=c&state="+state, "", "")
				if rec.Code != tt.status {
					t.Errorf("expected %d, got %d", tt.status, rec.Code)
				}
				if len(rec.Result().Cookies()) != 0 {
					t.Error("expected no session cookie")
				}
			})
		}
	})

	t.Run("eve linking", func(t *testing.T) {
		env := newTestEnv(t)
		env.eve.identity = &services.EVEIdentity{
			CharacterID: 99,
			Name:        "New Alt",
			Scopes:      []string{"esi-fleets.read_fleet.v1"},
			Token:       &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(20 * time.Minute)},
		}

		if rec := env.do(t, http.MethodGet, "/eve/login/nobody", "", ""); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 for unknown user, got %d", rec.Code)
		}

		login := env.do(t, http.MethodGet, "/eve/login/d1", "", "")
		if login.Code != http.StatusFound || !strings.HasPrefix(login.Header().Get("Location"), "https://eve.test/") {
			t.Fatalf("expected redirect to EVE SSO, got %d", login.Code)
		}

		rec := env.do(t, http.MethodGet, "/eve/sso?code=c&state="+stateFrom(t, login), "", "")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "New Alt") {
			t.Fatalf("expected link page, got %d %s", rec.Code, rec.Body.String())
		}

		user, _ := env.users.GetByDiscordID("d1")
		c, err := env.characters.GetByCharacterID(99)
		if err != nil {
			t.Fatalf("expected character to be saved: %v", err)
		}
		if c.UserID() != user.ID() || c.RefreshToken() != "r" || len(c.Scopes()) != 1 {
			t.Errorf("unexpected character %+v", c)
		}
	})

	t.Run("eve callback needs a link state", func(t *testing.T) {
		env := newTestEnv(t)
		state := stateFrom(t, env.do(t, http.MethodGet, "/login", "", ""))

		if rec := env.do(t, http.MethodGet, "/eve/sso?code=c&state="+state, "", ""); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("eve exchange failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.eve.err = shared.ErrAuthFailed
		state := stateFrom(t, env.do(t, http.MethodGet, "/eve/login/d1", "", ""))

		if rec := env.do(t, http.MethodGet, "/eve/sso?code=c&state="+state, "", ""); rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
	})
}

func TestFleetHandler(t *testing.T) {
	t.Run("requires session", func(t *testing.T) {
		env := newTestEnv(t)
		if rec := env.do(t, http.MethodGet, "/api/me", "", ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("me", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodGet, "/api/me", "", "d1")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		me := decode[struct {
			DiscordID  string `json:"discord_id"`
			Characters []struct {
				CharacterID int64 `json:"character_id"`
			} `json:"characters"`
		}](t, rec)
		if me.DiscordID != "d1" || len(me.Characters) != 2 {
			t.Errorf("unexpected me %+v", me)
		}
	})

	t.Run("character access", func(t *testing.T) {
		env := newTestEnv(t)
		tc := []struct {
			path   string
			status int
		}{
			{"/api/characters/42/role", http.StatusOK},
			{"/api/characters/77/role", http.StatusForbidden},
			{"/api/characters/5/role", http.StatusNotFound},
			{"/api/characters/abc/role", http.StatusBadRequest},
		}

		for _, tt := range tc {
			if rec := env.do(t, http.MethodGet, tt.path, "", "d1"); rec.Code != tt.status {
				t.Errorf("%s: expected %d, got %d", tt.path, tt.status, rec.Code)
			}
		}

		role := decode[models.LeadershipRole](t, env.do(t, http.MethodGet, "/api/characters/42/role", "", "d1"))
		if role.Role != models.RoleFleetCommander || role.FleetID == nil || *role.FleetID != 1001 {
			t.Errorf("unexpected role %+v", role)
		}
	})

	t.Run("remote failures", func(t *testing.T) {
		tc := []struct {
			err    error
			status int
		}{
			{shared.ErrRemoteTimeout, http.StatusGatewayTimeout},
			{shared.ErrRemoteUnavailable, http.StatusBadGateway},
		}

		for _, tt := range tc {
			env := newTestEnv(t)
			env.api.FailOn("GetCharacterFleet", 0, tt.err)
			if rec := env.do(t, http.MethodGet, "/api/characters/42/fleet", "", "d1"); rec.Code != tt.status {
				t.Errorf("%v: expected %d, got %d", tt.err, tt.status, rec.Code)
			}
		}
	})

	t.Run("fleet", func(t *testing.T) {
		env := newTestEnv(t)
		full := decode[models.FullFleetInfo](t, env.do(t, http.MethodGet, "/api/characters/42/fleet", "", "d1"))
		if full.FleetID != 1001 || len(full.Wings) != 2 || len(full.Members) != 2 {
			t.Errorf("unexpected fleet %+v", full)
		}
	})

	t.Run("capture", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodPost, "/api/characters/42/capture", `{"name":"Doctrine"}`, "d1")
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
		}
		out := decode[captureResponse](t, rec)
		if out.Template == nil || out.Template.Name != "Doctrine" || len(out.Snapshot.Squads) != 2 {
			t.Errorf("unexpected capture %+v", out)
		}

		rec = env.do(t, http.MethodPost, "/api/characters/42/capture", `{"name":"Doctrine"}`, "d1")
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		out = decode[captureResponse](t, rec)
		if out.Template != nil || len(out.Snapshot.Wings) != 2 || out.Error == "" {
			t.Errorf("expected snapshot with save error, got %+v", out)
		}

		if rec := env.do(t, http.MethodPost, "/api/characters/42/capture", "", "d1"); rec.Code != http.StatusCreated {
			t.Errorf("expected capture without body to use the fleet name, got %d", rec.Code)
		}
		if rec := env.do(t, http.MethodPost, "/api/characters/43/capture", "", "d1"); rec.Code != http.StatusForbidden {
			t.Errorf("expected squad member capture to be denied, got %d", rec.Code)
		}

		views := decode[[]models.TemplateView](t, env.do(t, http.MethodGet, "/api/templates?owner=42", "", "d1"))
		if len(views) != 2 {
			t.Errorf("expected 2 templates, got %d", len(views))
		}
	})

	t.Run("templates", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/api/characters/42/capture", `{"name":"Doctrine"}`, "d1")
		if rec.Code != http.StatusCreated {
			t.Fatalf("capture failed: %d %s", rec.Code, rec.Body.String())
		}
		view := *decode[captureResponse](t, rec).Template

		for _, ref := range []string{view.ID, "Doctrine"} {
			if rec := env.do(t, http.MethodGet, "/api/templates/"+url.PathEscape(ref), "", "d1"); rec.Code != http.StatusOK {
				t.Errorf("GET template %q: expected 200, got %d", ref, rec.Code)
			}
		}
		if rec := env.do(t, http.MethodGet, "/api/templates/missing", "", "d1"); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}

		rec = env.do(t, http.MethodGet, "/api/templates/Doctrine/export?format=yaml", "", "d1")
		if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/yaml" {
			t.Errorf("expected YAML export, got %d %q", rec.Code, rec.Header().Get("Content-Type"))
		}
		if !strings.Contains(rec.Body.String(), "name: Logi") {
			t.Errorf("unexpected export %s", rec.Body.String())
		}
	})

	t.Run("drafts are checked but never stored", func(t *testing.T) {
		env := newTestEnv(t)
		yamlBody := "name: Drafted\nbody:\n  wings:\n    - wing_id: 1\n      name: Alpha\n  squads:\n    - wing_id: 1\n      squad_id: 2\n      name: Bravo\n"

		rec := env.do(t, http.MethodPost, "/api/drafts/check", yamlBody, "d1", "Content-Type", "application/yaml")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
		}
		draft := decode[draftResponse](t, rec)
		if draft.Name != "Drafted" || draft.Wings != 1 || draft.Squads != 1 {
			t.Errorf("unexpected draft %+v", draft)
		}

		if rec := env.do(t, http.MethodPost, "/api/drafts/check", `{"wings":[],"squads":[{"wing_id":3,"squad_id":1}]}`, "d1"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for invalid draft, got %d", rec.Code)
		}
		if rec := env.do(t, http.MethodPost, "/api/characters/42/templates", yamlBody, "d1"); rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected no route that stores files, got %d", rec.Code)
		}

		if views := decode[[]models.TemplateView](t, env.do(t, http.MethodGet, "/api/templates", "", "d1")); len(views) != 0 {
			t.Errorf("expected the store to stay empty, got %d templates", len(views))
		}
	})

	t.Run("reconstruct", func(t *testing.T) {
		env := newTestEnv(t)
		if rec := env.do(t, http.MethodPost, "/api/characters/42/capture", `{"name":"Doctrine"}`, "d1"); rec.Code != http.StatusCreated {
			t.Fatalf("capture failed: %d", rec.Code)
		}

		rec := env.do(t, http.MethodPost, "/api/characters/42/reconstruct", `{"template":"Doctrine"}`, "d1")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
		}
		full := decode[models.FullFleetInfo](t, rec)
		if len(full.Wings) != 4 {
			t.Errorf("expected the template's wings to be added, got %d wings", len(full.Wings))
		}

		if rec := env.do(t, http.MethodPost, "/api/characters/43/reconstruct", `{"template":"Doctrine"}`, "d1"); rec.Code != http.StatusForbidden {
			t.Errorf("expected 403 for squad member, got %d", rec.Code)
		}
		if rec := env.do(t, http.MethodPost, "/api/characters/42/reconstruct", `{"template":"nope"}`, "d1"); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 for missing template, got %d", rec.Code)
		}
		if rec := env.do(t, http.MethodPost, "/api/characters/43/reconstruct", `{"template":"nope"}`, "d1"); rec.Code != http.StatusForbidden {
			t.Errorf("expected 403 before the template lookup for a squad member, got %d", rec.Code)
		}
		if rec := env.do(t, http.MethodPost, "/api/characters/42/reconstruct", `{}`, "d1"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 without template, got %d", rec.Code)
		}
	})

	t.Run("partial reconstruct", func(t *testing.T) {
		env := newTestEnv(t)
		env.do(t, http.MethodPost, "/api/characters/42/capture", `{"name":"Doctrine"}`, "d1")
		env.api.FailOn("CreateWing", 2, shared.ErrRemoteUnavailable)

		rec := env.do(t, http.MethodPost, "/api/characters/42/reconstruct", `{"template":"Doctrine"}`, "d1")
		if rec.Code != http.StatusMultiStatus {
			t.Fatalf("expected 207, got %d %s", rec.Code, rec.Body.String())
		}

		body := decode[reconstructFailure](t, rec)
		if body.Step != tasks.StepCreateWing || body.WingIndex != 1 || len(body.Mapping.Wings) != 1 || len(body.Mapping.Squads) != 1 {
			t.Errorf("unexpected failure body %+v", body)
		}
	})

	t.Run("reconstruct stream", func(t *testing.T) {
		env := newTestEnv(t)
		env.do(t, http.MethodPost, "/api/characters/42/capture", `{"name":"Doctrine"}`, "d1")

		rec := env.do(t, http.MethodPost, "/api/characters/42/reconstruct", `{"template":"Doctrine"}`, "d1", "Accept", "text/event-stream")
		if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "text/event-stream" {
			t.Fatalf("expected event stream, got %d %q", rec.Code, rec.Header().Get("Content-Type"))
		}

		out := rec.Body.String()
		if !strings.Contains(out, "event: progress\ndata: {") || !strings.Contains(out, `"phase":"create_wing"`) {
			t.Errorf("expected progress events, got:\n%s", out)
		}
		if !strings.HasSuffix(strings.TrimSpace(out), "}") || !strings.Contains(out, "event: result") {
			t.Errorf("expected a final result event, got:\n%s", out)
		}
	})

	t.Run("management", func(t *testing.T) {
		env := newTestEnv(t)

		tc := []struct {
			name   string
			method string
			path   string
			body   string
			status int
		}{
			{"settings", http.MethodPut, "/api/characters/42/fleet/settings", `{"motd":"form up","is_free_move":true}`, http.StatusNoContent},
			{"empty settings", http.MethodPut, "/api/characters/42/fleet/settings", `{}`, http.StatusBadRequest},
			{"move member", http.MethodPut, "/api/characters/42/fleet/members/43", `{"role":"squad_commander","wing_id":2,"squad_id":21}`, http.StatusNoContent},
			{"move with bad role", http.MethodPut, "/api/characters/42/fleet/members/43", `{"role":"admiral"}`, http.StatusBadRequest},
			{"delete squad", http.MethodDelete, "/api/characters/42/fleet/squads/11", "", http.StatusNoContent},
			{"delete wing", http.MethodDelete, "/api/characters/42/fleet/wings/2", "", http.StatusNoContent},
			{"delete unknown wing", http.MethodDelete, "/api/characters/42/fleet/wings/9", "", http.StatusNotFound},
			{"not commander", http.MethodDelete, "/api/characters/43/fleet/wings/1", "", http.StatusForbidden},
			{"bad id", http.MethodDelete, "/api/characters/42/fleet/squads/x", "", http.StatusBadRequest},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				if rec := env.do(t, tt.method, tt.path, tt.body, "d1"); rec.Code != tt.status {
					t.Errorf("expected %d, got %d %s", tt.status, rec.Code, rec.Body.String())
				}
			})
		}

		if info := env.api.Info(1001); info.MOTD != "form up" || !info.IsFreeMove {
			t.Errorf("expected settings to be applied, got %+v", info)
		}
		if wings := env.api.Wings(1001); len(wings) != 1 || len(wings[0].Squads) != 0 {
			t.Errorf("unexpected structure %+v", wings)
		}
	})

	t.Run("errorBody", func(t *testing.T) {
		status, body := errorBody(shared.ErrNotFound)
		if status != http.StatusNotFound {
			t.Errorf("expected 404, got %d", status)
		}
		if m, ok := body.(map[string]string); !ok || m["error"] == "" {
			t.Errorf("unexpected body %+v", body)
		}
	})
}
