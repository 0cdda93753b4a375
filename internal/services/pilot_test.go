package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/shared"
)

func TestPilotReads(t *testing.T) {
	t.Run("public lookups send no credential", func(t *testing.T) {
		mux := http.NewServeMux()
		noAuth := func(next http.HandlerFunc) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "" {
					t.Errorf("expected no Authorization on %s, got %q", r.URL.Path, got)
				}
				next(w, r)
			}
		}
		mux.HandleFunc("GET /characters/42/{$}", noAuth(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"name": "Pilot One", "corporation_id": 98000001, "alliance_id": 99000001,
				"birthday": "2015-03-24T11:37:00Z", "security_status": 1.5,
			})
		}))
		mux.HandleFunc("GET /corporations/98000001/{$}", noAuth(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"name": "Corp", "ticker": "CRP", "member_count": 12})
		}))
		mux.HandleFunc("GET /alliances/99000001/{$}", noAuth(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"name": "Alliance", "ticker": "ALLY"})
		}))

		srv := httptest.NewServer(mux)
		defer srv.Close()

		// A failing credential source must not matter for public endpoints.
		svc := NewESIService(shared.ESIConfig{BaseURL: srv.URL}, staticToken(""), srv.Client())
		ctx := context.Background()

		info, err := svc.GetPilot(ctx, 42)
		if err != nil {
			t.Fatalf("GetPilot: %v", err)
		}
		if info.Name != "Pilot One" || info.CorporationID != 98000001 || info.Birthday.Year() != 2015 {
			t.Errorf("unexpected pilot %+v", info)
		}

		corp, err := svc.GetCorporation(ctx, info.CorporationID)
		if err != nil || corp.Ticker != "CRP" || corp.MemberCount != 12 {
			t.Errorf("GetCorporation = %+v, %v", corp, err)
		}

		alliance, err := svc.GetAlliance(ctx, info.AllianceID)
		if err != nil || alliance.Ticker != "ALLY" {
			t.Errorf("GetAlliance = %+v, %v", alliance, err)
		}
	})

	t.Run("authenticated reads", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /characters/42/location/", func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
				t.Errorf("expected bearer token, got %q", got)
			}
			writeJSON(w, http.StatusOK, map[string]any{"solar_system_id": 30000142, "station_id": 60003760})
		})
		mux.HandleFunc("GET /characters/42/ship/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ship_item_id": 1, "ship_name": "Boaty", "ship_type_id": 587})
		})
		mux.HandleFunc("GET /characters/42/online/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"online": true, "logins": 9})
		})
		mux.HandleFunc("GET /characters/42/skills/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"total_sp": 5000000,
				"skills": []map[string]any{
					{"skill_id": 3327, "active_skill_level": 4, "trained_skill_level": 5, "skillpoints_in_skill": 45255},
				},
			})
		})
		mux.HandleFunc("GET /characters/42/clones/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"home_location": map[string]any{"location_id": 60003760, "location_type": "station"},
				"jump_clones": []map[string]any{
					{"jump_clone_id": 5, "location_id": 60008494, "location_type": "station", "implants": []int64{22107}},
				},
			})
		})
		mux.HandleFunc("GET /characters/42/implants/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, []int64{9899, 9941})
		})
		mux.HandleFunc("GET /characters/42/fatigue/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"jump_fatigue_expire_date": "2030-01-01T00:00:00Z"})
		})
		mux.HandleFunc("GET /characters/42/fittings/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, []map[string]any{
				{"fitting_id": 1, "name": "Logi", "ship_type_id": 11985, "items": []map[string]any{
					{"type_id": 3608, "flag": "HiSlot0", "quantity": 1},
				}},
			})
		})

		svc := newTestESI(t, mux, time.Second)
		ctx := context.Background()

		loc, err := svc.GetLocation(ctx, 42)
		if err != nil || loc.SolarSystemID != 30000142 || !loc.Docked() {
			t.Errorf("GetLocation = %+v, %v", loc, err)
		}
		ship, err := svc.GetShip(ctx, 42)
		if err != nil || ship.ShipTypeID != 587 || ship.ShipName != "Boaty" {
			t.Errorf("GetShip = %+v, %v", ship, err)
		}
		online, err := svc.GetOnline(ctx, 42)
		if err != nil || !online.Online || online.Logins != 9 {
			t.Errorf("GetOnline = %+v, %v", online, err)
		}
		skills, err := svc.GetSkills(ctx, 42)
		if err != nil {
			t.Fatalf("GetSkills: %v", err)
		}
		if skills.TotalSP != 5000000 || skills.Level(3327) != 4 || skills.Level(1) != 0 {
			t.Errorf("unexpected skills %+v", skills)
		}
		clones, err := svc.GetClones(ctx, 42)
		if err != nil {
			t.Fatalf("GetClones: %v", err)
		}
		if len(clones.JumpClones) != 1 || len(clones.ActiveImplants) != 2 || clones.HomeLocation.LocationID != 60003760 {
			t.Errorf("unexpected clones %+v", clones)
		}
		fatigue, err := svc.GetFatigue(ctx, 42)
		if err != nil {
			t.Fatalf("GetFatigue: %v", err)
		}
		if fatigue.Remaining(time.Date(2029, 12, 31, 23, 0, 0, 0, time.UTC)) != time.Hour {
			t.Errorf("unexpected fatigue %+v", fatigue)
		}
		fittings, err := svc.GetFittings(ctx, 42)
		if err != nil || len(fittings) != 1 || fittings[0].Items[0].Flag != "HiSlot0" {
			t.Errorf("GetFittings = %+v, %v", fittings, err)
		}
	})

	t.Run("SetWaypoint", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /ui/autopilot/waypoint/", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("destination_id") != "30000142" || q.Get("add_to_beginning") != "false" || q.Get("clear_other_waypoints") != "true" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			w.WriteHeader(http.StatusNoContent)
		})

		wp := models.Waypoint{DestinationID: 30000142, ClearOtherWaypoints: true}
		if err := newTestESI(t, mux, time.Second).SetWaypoint(context.Background(), 42, wp); err != nil {
			t.Errorf("SetWaypoint: %v", err)
		}
	})

	t.Run("missing scope maps to permission denied", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "token not valid for scope"})
		})

		_, err := newTestESI(t, handler, time.Second).GetFatigue(context.Background(), 42)
		if !errors.Is(err, shared.ErrPermissionDenied) {
			t.Errorf("expected ErrPermissionDenied, got %v", err)
		}
	})

	t.Run("implants failure fails clones", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /characters/42/clones/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"jump_clones": []any{}})
		})
		mux.HandleFunc("GET /characters/42/implants/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "down"})
		})

		_, err := newTestESI(t, mux, time.Second).GetClones(context.Background(), 42)
		if !errors.Is(err, shared.ErrRemoteUnavailable) {
			t.Errorf("expected ErrRemoteUnavailable, got %v", err)
		}
	})
}
