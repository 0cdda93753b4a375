package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func body() models.FleetSnapshot {
	return models.FleetSnapshot{
		Settings: &models.FleetSettings{IsFreeMove: true, MOTD: "Welcome", CapturedAt: time.Now().UTC()},
		Wings:    []models.TemplateWing{{WingID: 1, Name: "Main"}, {WingID: 2, Name: "Support"}},
		Squads: []models.TemplateSquad{
			{WingID: 1, SquadID: 11, Name: "DPS"},
			{WingID: 2, SquadID: 21, Name: "Logi"},
		},
	}
}

func TestUserRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))
		user := models.NewUser(0, "123456789", "pilot")

		if err := repo.Create(user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		if user.ID() == "" {
			t.Error("user ID should be set after creation")
		}
		if user.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", user.Sequence())
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))
		user := models.NewUser(0, "123456789", "pilot")
		if err := repo.Create(user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		retrieved, err := repo.Get(user.ID())
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}

		if retrieved.DiscordID() != "123456789" {
			t.Errorf("expected discord id 123456789, got %s", retrieved.DiscordID())
		}

		if _, err := repo.Get("missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Upsert", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))

		first, err := repo.Upsert("42", "old-name")
		if err != nil {
			t.Fatalf("failed to upsert user: %v", err)
		}

		second, err := repo.Upsert("42", "new-name")
		if err != nil {
			t.Fatalf("failed to upsert user: %v", err)
		}

		if first.ID() != second.ID() {
			t.Errorf("expected the same user, got %s and %s", first.ID(), second.ID())
		}

		stored, err := repo.GetByDiscordID("42")
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if stored.Username() != "new-name" {
			t.Errorf("expected username new-name, got %s", stored.Username())
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))
		user := models.NewUser(0, "1", "pilot")
		if err := repo.Create(user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		if err := repo.Delete(user.ID()); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}

		if _, err := repo.Get(user.ID()); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected deleted user to be hidden, got %v", err)
		}
		if err := repo.Delete(user.ID()); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("List loads linked characters", func(t *testing.T) {
		db := setupTestDB(t)
		users := NewUserRepository(db)
		chars := NewCharacterRepository(db)

		user, err := users.Upsert("7", "pilot")
		if err != nil {
			t.Fatalf("failed to upsert user: %v", err)
		}
		if _, err := users.Upsert("8", "other"); err != nil {
			t.Fatalf("failed to upsert user: %v", err)
		}

		for _, id := range []int64{2112000001, 2112000002} {
			c := models.NewCharacter(0, id, "Alt")
			c.SetUserID(user.ID())
			if err := chars.Create(c); err != nil {
				t.Fatalf("failed to create character: %v", err)
			}
		}

		list, err := users.List(map[string]any{"discord_id": "7"})
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("expected 1 user, got %d", len(list))
		}
		if ids := list[0].CharacterIDs(); len(ids) != 2 || ids[0] != 2112000001 {
			t.Errorf("unexpected character ids %v", ids)
		}

		all, err := users.List(nil)
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 users, got %d", len(all))
		}
	})
}

func TestCharacterRepository(t *testing.T) {
	t.Run("Create and GetByCharacterID", func(t *testing.T) {
		repo := NewCharacterRepository(setupTestDB(t))
		expires := time.Now().UTC().Add(20 * time.Minute).Truncate(time.Second)

		c := models.NewCharacter(0, 2112000001, "Pilot One")
		c.SetTokens("access", "refresh", expires)
		c.SetScopes([]string{"esi-fleets.read_fleet.v1", "esi-fleets.write_fleet.v1"})
		if err := repo.Create(c); err != nil {
			t.Fatalf("failed to create character: %v", err)
		}

		got, err := repo.GetByCharacterID(2112000001)
		if err != nil {
			t.Fatalf("failed to get character: %v", err)
		}

		if got.AccessToken() != "access" || got.RefreshToken() != "refresh" {
			t.Errorf("unexpected tokens %q %q", got.AccessToken(), got.RefreshToken())
		}
		if !got.ExpiresAt().Equal(expires) {
			t.Errorf("expected expiry %v, got %v", expires, got.ExpiresAt())
		}
		if len(got.Scopes()) != 2 {
			t.Errorf("expected 2 scopes, got %v", got.Scopes())
		}
		if got.UserID() != "" {
			t.Errorf("expected no owner, got %s", got.UserID())
		}
	})

	t.Run("Create rejects duplicate character", func(t *testing.T) {
		repo := NewCharacterRepository(setupTestDB(t))
		if err := repo.Create(models.NewCharacter(0, 1, "A")); err != nil {
			t.Fatalf("failed to create character: %v", err)
		}
		if err := repo.Create(models.NewCharacter(0, 1, "A")); !errors.Is(err, shared.ErrDuplicateName) {
			t.Errorf("expected ErrDuplicateName, got %v", err)
		}
	})

	t.Run("Upsert keeps owner", func(t *testing.T) {
		db := setupTestDB(t)
		users := NewUserRepository(db)
		repo := NewCharacterRepository(db)

		user, err := users.Upsert("99", "pilot")
		if err != nil {
			t.Fatalf("failed to upsert user: %v", err)
		}

		c := models.NewCharacter(0, 5, "Pilot")
		c.SetUserID(user.ID())
		if err := repo.Upsert(c); err != nil {
			t.Fatalf("failed to upsert character: %v", err)
		}

		relinked := models.NewCharacter(0, 5, "Pilot Renamed")
		relinked.SetTokens("a2", "r2", time.Now().Add(time.Hour))
		if err := repo.Upsert(relinked); err != nil {
			t.Fatalf("failed to upsert character: %v", err)
		}

		got, err := repo.GetByCharacterID(5)
		if err != nil {
			t.Fatalf("failed to get character: %v", err)
		}
		if got.UserID() != user.ID() {
			t.Errorf("expected owner %s to be kept, got %q", user.ID(), got.UserID())
		}
		if got.Name() != "Pilot Renamed" || got.AccessToken() != "a2" {
			t.Errorf("expected updated name and token, got %s %s", got.Name(), got.AccessToken())
		}
		if got.ID() != c.ID() {
			t.Errorf("expected upsert to reuse row %s, got %s", c.ID(), got.ID())
		}
	})

	t.Run("UpdateTokens", func(t *testing.T) {
		repo := NewCharacterRepository(setupTestDB(t))
		if err := repo.Create(models.NewCharacter(0, 5, "Pilot")); err != nil {
			t.Fatalf("failed to create character: %v", err)
		}

		if err := repo.UpdateTokens(5, "new-access", "new-refresh", time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("failed to update tokens: %v", err)
		}

		got, _ := repo.GetByCharacterID(5)
		if got.AccessToken() != "new-access" {
			t.Errorf("expected new-access, got %s", got.AccessToken())
		}

		if err := repo.UpdateTokens(6, "a", "r", time.Now()); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("List expiring", func(t *testing.T) {
		repo := NewCharacterRepository(setupTestDB(t))
		now := time.Now().UTC()

		soon := models.NewCharacter(0, 1, "Soon")
		soon.SetTokens("a", "r", now.Add(10*time.Minute))
		later := models.NewCharacter(0, 2, "Later")
		later.SetTokens("a", "r", now.Add(3*time.Hour))
		noRefresh := models.NewCharacter(0, 3, "NoRefresh")
		noRefresh.SetTokens("a", "", now.Add(5*time.Minute))

		for _, c := range []*models.Character{soon, later, noRefresh} {
			if err := repo.Create(c); err != nil {
				t.Fatalf("failed to create character: %v", err)
			}
		}

		list, err := repo.List(map[string]any{
			"expiring_before":   now.Add(time.Hour),
			"has_refresh_token": true,
		})
		if err != nil {
			t.Fatalf("failed to list characters: %v", err)
		}
		if len(list) != 1 || list[0].CharacterID() != 1 {
			t.Errorf("expected only character 1, got %d results", len(list))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewCharacterRepository(setupTestDB(t))
		c := models.NewCharacter(0, 5, "Pilot")
		if err := repo.Create(c); err != nil {
			t.Fatalf("failed to create character: %v", err)
		}
		if err := repo.Delete(c.ID()); err != nil {
			t.Fatalf("failed to delete character: %v", err)
		}
		if _, err := repo.Get(c.ID()); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestTemplateRepository(t *testing.T) {
	t.Run("Save and Get", func(t *testing.T) {
		repo := NewTemplateRepository(setupTestDB(t))

		tpl, err := repo.Save(2112000001, "Home Defense", body())
		if err != nil {
			t.Fatalf("failed to save template: %v", err)
		}

		got, err := repo.Get(tpl.ID())
		if err != nil {
			t.Fatalf("failed to get template: %v", err)
		}

		if got.Name() != "Home Defense" || got.OwnerID() != 2112000001 {
			t.Errorf("unexpected template %s owned by %d", got.Name(), got.OwnerID())
		}

		b := got.Body()
		if len(b.Wings) != 2 || len(b.Squads) != 2 {
			t.Fatalf("expected 2 wings and 2 squads, got %d and %d", len(b.Wings), len(b.Squads))
		}
		if b.Settings == nil || b.Settings.MOTD != "Welcome" || !b.Settings.IsFreeMove {
			t.Errorf("settings not round-tripped: %+v", b.Settings)
		}
		if b.Squads[1].WingID != 2 || b.Squads[1].Name != "Logi" {
			t.Errorf("squad order or parent lost: %+v", b.Squads)
		}
	})

	t.Run("duplicate name", func(t *testing.T) {
		repo := NewTemplateRepository(setupTestDB(t))

		if _, err := repo.Save(1, "Home Defense", body()); err != nil {
			t.Fatalf("first save failed: %v", err)
		}

		_, err := repo.Save(2, "Home Defense", body())
		if !errors.Is(err, shared.ErrDuplicateName) {
			t.Fatalf("expected ErrDuplicateName, got %v", err)
		}

		list, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list templates: %v", err)
		}
		if len(list) != 1 {
			t.Errorf("expected exactly one template, got %d", len(list))
		}
	})

	t.Run("rejects invalid body", func(t *testing.T) {
		repo := NewTemplateRepository(setupTestDB(t))
		b := body()
		b.Squads[0].WingID = 99

		if _, err := repo.Save(1, "Broken", b); !errors.Is(err, shared.ErrInvalidTemplate) {
			t.Errorf("expected ErrInvalidTemplate, got %v", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		repo := NewTemplateRepository(setupTestDB(t))

		if _, err := repo.Get("missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := repo.GetByName("missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("List filters by owner", func(t *testing.T) {
		repo := NewTemplateRepository(setupTestDB(t))
		for i, owner := range []int64{1, 2, 1} {
			if _, err := repo.Save(owner, string(rune('A'+i)), body()); err != nil {
				t.Fatalf("failed to save template: %v", err)
			}
		}

		owned, err := repo.List(map[string]any{"owner_id": int64(1)})
		if err != nil {
			t.Fatalf("failed to list templates: %v", err)
		}
		if len(owned) != 2 || owned[0].Name() != "A" || owned[1].Name() != "C" {
			t.Errorf("unexpected templates for owner 1: %d", len(owned))
		}

		limited, _ := repo.List(map[string]any{"limit": 1})
		if len(limited) != 1 {
			t.Errorf("expected limit to apply, got %d", len(limited))
		}
	})
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "fleet_templates")
		if err != nil {
			t.Fatalf("failed to get next sequence: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "nope"); err == nil {
		t.Error("expected error for unknown table")
	}
}
