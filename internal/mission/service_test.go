package mission

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend-geomine/internal/shared/geo"

	"github.com/pashagolub/pgxmock/v3"
)

var pgErr = errors.New("db error")

var listColumns = []string{
	"id", "player_id", "title", "description", "points", "status", "type", "is_ai_generated",
	"start_lat", "start_lon", "target_distance_m", "distance_traveled_m", "created_at",
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	return mock
}

func TestListMissions(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT id, player_id, title`).
		WithArgs("player-1").
		WillReturnRows(pgxmock.NewRows(listColumns).
			AddRow("m1", "player-1", "Travel 500m", "walk", 40, "available", "destination", false, 40.0, -73.0, 500.0, 12.5, now).
			AddRow("m2", "player-1", "Photo", "take a photo", 10, "pending", "standard", true, 0.0, 0.0, 0.0, 0.0, now))

	missions, err := NewService(mock).List(context.Background(), "player-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(missions) != 2 {
		t.Fatalf("expected 2 missions")
	}
	if missions[0].Destination == nil || missions[0].Destination.DistanceTraveledM != 12.5 {
		t.Fatalf("expected destination details")
	}
	if missions[1].Destination != nil || missions[1].Status != StatusPending {
		t.Fatalf("standard mission should carry no destination")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListMissionsError(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, player_id, title`).WithArgs("player-1").WillReturnError(pgErr)
	if _, err := NewService(mock).List(context.Background(), "player-1"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCreateStandardMission(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO missions`).
		WithArgs(pgxmock.AnyArg(), "player-1", "Photo", "", 10, "available", "standard", false, 0.0, 0.0, 0.0, 0.0).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	m, err := NewService(mock).Create(context.Background(), Mission{PlayerID: "player-1", Title: "Photo", Points: 10})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.ID == "" || m.Status != StatusAvailable || m.Type != KindStandard {
		t.Fatalf("unexpected mission %+v", m)
	}
}

func TestCreateValidation(t *testing.T) {
	if _, err := NewService(nil).Create(context.Background(), Mission{PlayerID: "player-1"}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestCreateDestination(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("player-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO missions`).
		WithArgs(pgxmock.AnyArg(), "player-1", "Travel 500m", pgxmock.AnyArg(), 40, "available", "destination", false, 40.0, -73.0, 500.0, 0.0).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	m, err := NewService(mock).CreateDestination(context.Background(), "player-1", 500, geo.Point{Lat: 40, Lon: -73})
	if err != nil {
		t.Fatalf("create destination: %v", err)
	}
	if m.Destination == nil || m.Destination.TargetDistanceM != 500 || m.Points != 40 {
		t.Fatalf("unexpected destination mission %+v", m)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateDestinationRules(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()

	svc := NewService(mock)
	if _, err := svc.CreateDestination(context.Background(), "player-1", 750, geo.Point{}); !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("expected unknown preset, got %v", err)
	}

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("player-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	if _, err := svc.CreateDestination(context.Background(), "player-1", 200, geo.Point{}); !errors.Is(err, ErrActiveDestination) {
		t.Fatalf("expected active destination, got %v", err)
	}

	mock.ExpectQuery(`SELECT EXISTS`).WithArgs("player-1").WillReturnError(pgErr)
	if _, err := svc.CreateDestination(context.Background(), "player-1", 200, geo.Point{}); !errors.Is(err, pgErr) {
		t.Fatalf("expected db error, got %v", err)
	}
}

func TestSubmit(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()

	svc := NewService(mock)
	mock.ExpectExec(`UPDATE missions SET status='pending'`).
		WithArgs("m1", "player-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := svc.Submit(context.Background(), "player-1", "m1"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	mock.ExpectExec(`UPDATE missions SET status='pending'`).
		WithArgs("m2", "player-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	if err := svc.Submit(context.Background(), "player-1", "m2"); !errors.Is(err, ErrNotSubmittable) {
		t.Fatalf("expected not submittable, got %v", err)
	}
}

func TestSaveProgress(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()

	svc := NewService(mock)
	if err := svc.SaveProgress(context.Background(), Mission{ID: "m0", Type: KindStandard}); err != nil {
		t.Fatalf("standard missions are skipped: %v", err)
	}

	mock.ExpectExec(`UPDATE missions SET status=\$2, distance_traveled_m=\$3`).
		WithArgs("m1", "completed", 500.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	m := destination("m1", geo.Point{}, 500, 500)
	m.Status = StatusCompleted
	if err := svc.SaveProgress(context.Background(), m); err != nil {
		t.Fatalf("save progress: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
