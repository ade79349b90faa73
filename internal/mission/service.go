package mission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"backend-geomine/internal/db"
	"backend-geomine/internal/shared/geo"

	"github.com/google/uuid"
)

var (
	ErrActiveDestination = errors.New("a destination mission is already active")
	ErrUnknownPreset     = errors.New("unknown destination distance")
	ErrNotSubmittable    = errors.New("mission cannot be submitted")
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

const missionColumns = `id, player_id, title, description, points, status, type, is_ai_generated,
		       COALESCE(start_lat,0), COALESCE(start_lon,0), COALESCE(target_distance_m,0),
		       COALESCE(distance_traveled_m,0), created_at`

func (s *Service) List(ctx context.Context, playerID string) ([]Mission, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+missionColumns+`
		FROM missions WHERE player_id=$1
		ORDER BY created_at DESC
	`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missions []Mission
	for rows.Next() {
		var (
			m            Mission
			status, kind string
			d            DestinationDetails
		)
		if err := rows.Scan(&m.ID, &m.PlayerID, &m.Title, &m.Description, &m.Points, &status, &kind, &m.IsAIGenerated,
			&d.StartLat, &d.StartLon, &d.TargetDistanceM, &d.DistanceTraveledM, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Status = Status(status)
		m.Type = Kind(kind)
		if m.Type == KindDestination {
			m.Destination = &d
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}

func (s *Service) Create(ctx context.Context, input Mission) (Mission, error) {
	if strings.TrimSpace(input.Title) == "" || input.PlayerID == "" {
		return Mission{}, errors.New("title and player_id required")
	}
	input.ID = uuid.NewString()
	input.Status = StatusAvailable
	if input.Type == "" {
		input.Type = KindStandard
	}
	return s.insert(ctx, input)
}

func (s *Service) CreateDestination(ctx context.Context, playerID string, meters int, start geo.Point) (Mission, error) {
	preset, ok := PresetFor(meters)
	if !ok {
		return Mission{}, fmt.Errorf("%w: %d", ErrUnknownPreset, meters)
	}

	var active bool
	if err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM missions
			WHERE player_id=$1 AND type='destination' AND status='available'
		)
	`, playerID).Scan(&active); err != nil {
		return Mission{}, err
	}
	if active {
		return Mission{}, ErrActiveDestination
	}

	return s.insert(ctx, Mission{
		ID:          uuid.NewString(),
		PlayerID:    playerID,
		Title:       fmt.Sprintf("Travel %dm", preset.Meters),
		Description: fmt.Sprintf("Complete a %s to earn a geodrop.", strings.ToLower(preset.Label)),
		Points:      preset.Points,
		Status:      StatusAvailable,
		Type:        KindDestination,
		Destination: &DestinationDetails{
			StartLat:        start.Lat,
			StartLon:        start.Lon,
			TargetDistanceM: float64(preset.Meters),
		},
	})
}

func (s *Service) insert(ctx context.Context, m Mission) (Mission, error) {
	var d DestinationDetails
	if m.Destination != nil {
		d = *m.Destination
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO missions (id, player_id, title, description, points, status, type, is_ai_generated,
		                      start_lat, start_lon, target_distance_m, distance_traveled_m)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at
	`, m.ID, m.PlayerID, m.Title, m.Description, m.Points, string(m.Status), string(m.Type), m.IsAIGenerated,
		d.StartLat, d.StartLon, d.TargetDistanceM, d.DistanceTraveledM)
	if err := row.Scan(&m.CreatedAt); err != nil {
		return Mission{}, err
	}
	return m, nil
}

// Submit moves an available standard mission to pending review.
func (s *Service) Submit(ctx context.Context, playerID, id string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE missions SET status='pending'
		WHERE id=$1 AND player_id=$2 AND type='standard' AND status='available'
	`, id, playerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotSubmittable
	}
	return nil
}

// SaveProgress writes back status and distance of a destination mission.
func (s *Service) SaveProgress(ctx context.Context, m Mission) error {
	if m.Destination == nil {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		UPDATE missions SET status=$2, distance_traveled_m=$3
		WHERE id=$1
	`, m.ID, string(m.Status), m.Destination.DistanceTraveledM)
	return err
}
