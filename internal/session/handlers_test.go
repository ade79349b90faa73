package session

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend-geomine/internal/auth"
	"backend-geomine/internal/mission"
	"backend-geomine/internal/tiles"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func sessionApp(mgr *Manager, player string) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app.Group("/sessions"), mgr, func(c *fiber.Ctx) error {
		c.Locals("player_id", player)
		return c.Next()
	})
	return app
}

func postJSON(app *fiber.App, path, body string) (*http.Response, error) {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	return app.Test(req)
}

func TestSessionHandlersLifecycle(t *testing.T) {
	mgr := NewManager(testSettings(), nil, &fakeMissions{}, nil, nil)
	defer mgr.StopAll()
	app := sessionApp(mgr, "player-1")

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/sessions/", nil))
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status: %v", err)
	}
	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil || snap.ID == "" {
		t.Fatalf("decode snapshot: %v", err)
	}
	base := "/sessions/" + snap.ID

	resp, err = postJSON(app, base+"/samples", `{"lat":40,"lon":-73,"accuracy_m":10,"timestamp":"2024-05-01T10:00:00Z"}`)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("sample status: %v", err)
	}
	var out Outcome
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || !out.Accepted || len(out.Strikes) != 2 {
		t.Fatalf("unexpected outcome %+v", out)
	}

	resp, err = postJSON(app, base+"/samples", `{"lat":40,"lon":-73,"accuracy_m":80,"timestamp":"2024-05-01T10:00:05Z"}`)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("rejected sample status: %v", err)
	}
	out = Outcome{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Accepted || out.Advisory == "" {
		t.Fatalf("expected advisory for rejected sample")
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, base, nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("snapshot status: %v", err)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, base+"/tiles?span=1", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("tiles status: %v", err)
	}
	var list []tiles.Tile
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil || len(list) != 2 {
		t.Fatalf("expected the two mined tiles near origin, got %+v", list)
	}
	for _, tile := range list {
		if tile.Status != tiles.StatusMined {
			t.Fatalf("tile %s should be mined", tile.ID)
		}
	}

	resp, err = postJSON(app, base+"/destination", `{"distance_m":500}`)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("destination status: %v", err)
	}
	resp, err = postJSON(app, base+"/destination", `{"distance_m":123}`)
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request for unknown preset")
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, base+"/missions", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("missions status: %v", err)
	}
	var missions []mission.Mission
	if err := json.NewDecoder(resp.Body).Decode(&missions); err != nil || len(missions) != 1 {
		t.Fatalf("expected one mission")
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, base, nil))
	if err != nil || resp.StatusCode != http.StatusNoContent {
		t.Fatalf("stop status: %v", err)
	}
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, base, nil))
	if err != nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found after stop")
	}
}

func TestSessionHandlersOwnership(t *testing.T) {
	mgr := NewManager(testSettings(), nil, nil, nil, nil)
	defer mgr.StopAll()

	snap, err := mgr.Start(context.Background(), "player-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	intruder := sessionApp(mgr, "player-2")
	resp, err := intruder.Test(httptest.NewRequest(http.MethodGet, "/sessions/"+snap.ID, nil))
	if err != nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("other players must not see the session")
	}
	resp, err = postJSON(intruder, "/sessions/"+snap.ID+"/samples", `{"lat":1,"lon":1}`)
	if err != nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("other players must not push samples")
	}
}

func TestSessionHandlersBadSample(t *testing.T) {
	mgr := NewManager(testSettings(), nil, &fakeMissions{}, nil, nil)
	defer mgr.StopAll()
	app := sessionApp(mgr, "player-1")

	snap, _ := mgr.Start(context.Background(), "player-1")
	resp, err := postJSON(app, "/sessions/"+snap.ID+"/samples", `{`)
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request")
	}
	resp, err = postJSON(app, "/sessions/"+snap.ID+"/destination", `{"distance_m":200}`)
	if err != nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict without a position fix")
	}
}

func TestMissionCreatedOverHTTPProgressesInLiveSession(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	columns := []string{
		"id", "player_id", "title", "description", "points", "status", "type", "is_ai_generated",
		"start_lat", "start_lon", "target_distance_m", "distance_traveled_m", "created_at",
	}
	now := time.Now()
	mock.ExpectQuery(`SELECT id, player_id, title`).
		WithArgs("player-1").
		WillReturnRows(pgxmock.NewRows(columns))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("player-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO missions`).
		WithArgs(pgxmock.AnyArg(), "player-1", "Travel 200m", pgxmock.AnyArg(), 15, "available", "destination", false, 40.0, -73.0, 200.0, 0.0).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectQuery(`SELECT id, player_id, title`).
		WithArgs("player-1").
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("dest-9", "player-1", "Travel 200m", "walk", 15, "available", "destination", false, 40.0, -73.0, 200.0, 0.0, now))
	mock.ExpectExec(`UPDATE missions SET status=\$2`).
		WithArgs("dest-9", "available", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE missions SET status=\$2`).
		WithArgs("dest-9", "completed", 200.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	svc := mission.NewService(mock)
	mgr := NewManager(testSettings(), nil, svc, nil, nil)
	defer mgr.StopAll()

	app := sessionApp(mgr, "player-1")
	mission.RegisterRoutes(app.Group("/missions"), svc, func(c *fiber.Ctx) error {
		c.Locals("player_id", "player-1")
		return c.Next()
	}, mgr.RefreshMissions)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/sessions/", nil))
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status: %v", err)
	}
	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if _, err := mgr.Push(context.Background(), snap.ID, sampleAt(40, -73, 10, 0)); err != nil {
		t.Fatalf("push: %v", err)
	}

	resp, err = postJSON(app, "/missions/destination", `{"distance_m":200,"lat":40,"lon":-73}`)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("destination status: %v", err)
	}

	var completed []mission.Mission
	for i := 1; i <= 2; i++ {
		out, err := mgr.Push(context.Background(), snap.ID, sampleAt(40+0.001*float64(i), -73, 10, time.Duration(i)*5*time.Second))
		if err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
		completed = append(completed, out.Completed...)
	}
	if len(completed) != 1 || completed[0].ID != "dest-9" {
		t.Fatalf("expected the new mission to complete in the live session, got %+v", completed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuthorizeStreamOnlyOwner(t *testing.T) {
	mgr := NewManager(testSettings(), nil, nil, nil, nil)
	defer mgr.StopAll()
	snap, err := mgr.Start(context.Background(), "player-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	svc := auth.NewService("secret", nil)
	authorize := AuthorizeStream(mgr, svc)
	app := fiber.New()
	app.Get("/ws/:sessionID", func(c *fiber.Ctx) error {
		if err := authorize(c, c.Params("sessionID")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusOK)
	})

	token := func(player string) string {
		tokens, err := svc.IssueToken(player)
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		return tokens.AccessToken
	}

	cases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"owner by query", "/ws/" + snap.ID + "?token=" + token("player-1"), "", http.StatusOK},
		{"owner by header", "/ws/" + snap.ID, "Bearer " + token("player-1"), http.StatusOK},
		{"other player", "/ws/" + snap.ID + "?token=" + token("player-2"), "", http.StatusNotFound},
		{"unknown session", "/ws/missing?token=" + token("player-1"), "", http.StatusNotFound},
		{"bad token", "/ws/" + snap.ID + "?token=garbage", "", http.StatusUnauthorized},
		{"no token", "/ws/" + snap.ID, "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		resp, err := app.Test(req)
		if err != nil || resp.StatusCode != tc.want {
			t.Fatalf("%s: expected %d", tc.name, tc.want)
		}
	}
}
