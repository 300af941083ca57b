//go:build integration

package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	handler "github.com/joinix/joinix/internal/adapters/http"
	"github.com/joinix/joinix/internal/adapters/postgres"
	"github.com/joinix/joinix/internal/core/domain"
	"github.com/joinix/joinix/internal/core/usecases"
	"github.com/joinix/joinix/internal/pkg/config"
)

// setupTestDB connects to the database from JOINIX_* env vars and migrates it.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("joinix-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN(), postgres.PoolOptions{MaxConns: 5})
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	if _, err := db.Migrate(ctx, slog.Default()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func setupTestDeps(t *testing.T, db *postgres.DB) *handler.Dependencies {
	exec := newExec(t)
	profiles := postgres.NewProfileRepo(db)
	events := postgres.NewEventRepo(db)

	return &handler.Dependencies{
		Profiles: usecases.NewProfileService(profiles, nil, nil, exec),
		Events:   usecases.NewEventService(events, profiles, nil, nil, exec),
		Chat:     usecases.NewChatService(postgres.NewConversationRepo(db), exec),
		Checks:   map[string]handler.Pinger{"database": db},
	}
}

func TestIntegration_Ready(t *testing.T) {
	db := setupTestDB(t)
	app := setupApp(setupTestDeps(t, db))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestIntegration_EventLifecycle(t *testing.T) {
	db := setupTestDB(t)
	app := setupApp(setupTestDeps(t, db))

	host := "it-host-" + uuid.NewString()[:8]
	player := "it-player-" + uuid.NewString()[:8]
	for _, id := range []string{host, player} {
		resp := do(t, app, "POST", "/v1/profiles", id, map[string]any{"display_name": "Player " + id[:6]})
		if resp.status != 201 {
			t.Fatalf("create profile %s: %d %s", id, resp.status, resp.body)
		}
	}

	start := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second)
	resp := do(t, app, "POST", "/v1/events", host, map[string]any{
		"title":     "Integration basket",
		"sport":     "basketball",
		"capacity":  2,
		"location":  bilbao,
		"starts_at": start.Format(time.RFC3339),
		"ends_at":   start.Add(time.Hour).Format(time.RFC3339),
	})
	if resp.status != 201 {
		t.Fatalf("create event: %d %s", resp.status, resp.body)
	}
	var created domain.Event
	resp.decode(t, &created)

	resp = do(t, app, "POST", fmt.Sprintf("/v1/events/%s/join", created.ID), player, nil)
	if resp.status != 200 {
		t.Fatalf("join: %d %s", resp.status, resp.body)
	}

	resp = do(t, app, "GET", "/v1/events/nearby?lat=43.2609&lon=-2.9280&radius_km=1&sport=basketball&status=open", "", nil)
	if resp.status != 200 {
		t.Fatalf("nearby: %d %s", resp.status, resp.body)
	}
	var nearby []domain.Event
	if err := json.Unmarshal(resp.body, &nearby); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range nearby {
		if e.ID == created.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("expected event %s in nearby results", created.ID)
	}

	resp = do(t, app, "POST", "/v1/conversations", player, map[string]any{"participant_id": host, "event_id": created.ID})
	if resp.status != 200 {
		t.Fatalf("start conversation: %d %s", resp.status, resp.body)
	}
	var conv domain.Conversation
	resp.decode(t, &conv)

	resp = do(t, app, "POST", "/v1/conversations/"+conv.ID+"/messages", player, map[string]any{"body": "see you there"})
	if resp.status != 201 {
		t.Fatalf("send message: %d %s", resp.status, resp.body)
	}
}
