package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"backend-geomine/internal/grid"
	"backend-geomine/internal/mining"
	"backend-geomine/internal/mission"
	"backend-geomine/internal/position"
	"backend-geomine/internal/shared/geo"
	"backend-geomine/internal/stream"
	"backend-geomine/internal/tiles"
)

const geomineDescription = "Geomine"

// Sink receives the side effects of a processed sample, after the whole
// pipeline has run. Implementations must not call back into the Engine.
type Sink interface {
	PointsEarned(points int, description string)
	FloatingText(ft stream.FloatingText)
	// Advisory receives the current advisory; an empty message clears it.
	Advisory(message string)
	MissionsUpdated(changed []mission.Mission)
	Processed(out Outcome)
}

// Deps are the per-session collaborators of an Engine.
type Deps struct {
	Mined     *tiles.MinedSet
	Missions  []mission.Mission
	Persister *tiles.Persister
	Sink      Sink
	// Reward overrides the random tile reward.
	Reward func() int
}

// Outcome describes what one sample did to the session.
type Outcome struct {
	Accepted  bool              `json:"accepted"`
	First     bool              `json:"first"`
	Advisory  string            `json:"advisory,omitempty"`
	Added     int               `json:"tiles_added"`
	Strikes   []mining.Strike   `json:"strikes,omitempty"`
	Missions  []mission.Mission `json:"missions,omitempty"`
	Completed []mission.Mission `json:"completed,omitempty"`
	Snapshot  Snapshot          `json:"snapshot"`
	// Reject is set when the filter discarded the sample.
	Reject error `json:"-"`
}

// Engine runs the tracking pipeline of one map session. Samples are
// handled one at a time; every exported method is safe for concurrent use.
type Engine struct {
	settings Settings

	mu        sync.Mutex
	state     State
	filter    *position.Filter
	projector *grid.Projector
	field     *tiles.Field
	miner     *mining.Miner
	missions  []mission.Mission
	pos       grid.Position
	coords    geo.Point
	advisory  string
	fatal     bool
	persister *tiles.Persister
	sink      Sink

	stopped chan struct{}
}

func NewEngine(settings Settings, deps Deps) *Engine {
	miner := mining.NewMiner(settings.MiningRadius, settings.MaxPerTick)
	if deps.Reward != nil {
		miner.Reward = deps.Reward
	}
	sink := deps.Sink
	if sink == nil {
		sink = NopSink{}
	}
	gen := tiles.Generator{Mode: settings.HashMode, Density: settings.Density}
	if gen.Density <= 0 {
		gen.Density = tiles.DefaultDensity
	}

	return &Engine{
		settings:  settings,
		state:     StateUninitialized,
		filter:    position.NewFilter(settings.MaxAccuracyM, settings.MaxSpeedMps),
		projector: grid.NewProjector(settings.MetersPerTile),
		field: tiles.NewField(tiles.Options{
			GridRange:  settings.GridRange,
			EvictRange: settings.EvictRange,
			Exists:     gen.Exists,
		}, deps.Mined),
		miner:     miner,
		missions:  append([]mission.Mission(nil), deps.Missions...),
		persister: deps.Persister,
		sink:      sink,
		stopped:   make(chan struct{}),
	}
}

// Handle runs one raw sample through filter, projection, generation,
// mining and mission evaluation, then emits notifications.
// Rejected samples are not errors; they come back with Outcome.Reject set.
func (e *Engine) Handle(ctx context.Context, s position.Sample) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateStopped {
		return Outcome{}, ErrStopped
	}
	if e.fatal {
		return Outcome{}, ErrCapabilityMissing
	}

	if err := e.filter.Check(s); err != nil {
		e.advisory = err.Error()
		out := Outcome{Advisory: e.advisory, Reject: err, Snapshot: e.snapshotLocked()}
		e.sink.Advisory(e.advisory)
		return out, nil
	}

	out := Outcome{Accepted: true}
	e.coords = s.Point()
	pos, first := e.projector.Project(e.coords)
	e.pos = pos
	if first {
		e.state = StateTracking
		out.First = true
	}

	minedBefore := e.field.Mined().Len()
	out.Added = e.field.EnsureAround(pos)
	out.Strikes = e.miner.Scan(e.field, pos)

	updated, changed := mission.Evaluate(e.missions, e.coords)
	e.missions = updated
	out.Missions = changed
	for _, m := range changed {
		if m.Status == mission.StatusCompleted {
			out.Completed = append(out.Completed, m)
		}
	}

	if e.persister != nil && e.field.Mined().Len() != minedBefore {
		if encoded, err := e.field.Mined().Encode(); err != nil {
			log.Printf("encode mined tiles: %v", err)
		} else {
			e.persister.Save(encoded)
		}
	}

	cleared := e.advisory != ""
	e.advisory = ""
	out.Snapshot = e.snapshotLocked()

	if cleared {
		e.sink.Advisory("")
	}
	for _, st := range out.Strikes {
		e.sink.PointsEarned(st.Points, geomineDescription)
		e.sink.FloatingText(e.floatingText(fmt.Sprintf("+%d MOBX", st.Points)))
	}
	for _, m := range out.Completed {
		e.sink.PointsEarned(m.Points, m.Title)
		e.sink.FloatingText(e.floatingText(fmt.Sprintf("Geodrop! +%d MOBX", m.Points)))
	}
	if len(changed) > 0 {
		e.sink.MissionsUpdated(changed)
	}
	e.sink.Processed(out)
	return out, nil
}

// Fail reports a location source error. A missing capability is terminal
// and reported once; anything else only sets the advisory.
func (e *Engine) Fail(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateStopped || e.fatal {
		return
	}
	if errors.Is(err, ErrCapabilityMissing) {
		e.fatal = true
		e.advisory = "Geolocation is not supported by your browser."
	} else {
		e.advisory = err.Error()
	}
	e.sink.Advisory(e.advisory)
}

// Run consumes src until the context ends, the engine is stopped or the
// source reports a missing capability.
func (e *Engine) Run(ctx context.Context, src Source) error {
	samples, errs, err := src.Start(ctx)
	if err != nil {
		e.Fail(err)
		return err
	}
	defer src.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stopped:
			return nil
		case s, ok := <-samples:
			if !ok {
				return nil
			}
			if _, err := e.Handle(ctx, s); err != nil {
				if errors.Is(err, ErrStopped) {
					return nil
				}
				return err
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			e.Fail(err)
			if errors.Is(err, ErrCapabilityMissing) {
				return err
			}
		}
	}
}

// Stop moves the session to stopped and flushes the mined set.
// Later samples fail with ErrStopped.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state == StateStopped {
		e.mu.Unlock()
		return
	}
	e.state = StateStopped
	close(e.stopped)
	persister := e.persister
	e.mu.Unlock()

	if persister != nil {
		persister.Close()
	}
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Tiles returns the generated tiles within span cells of the current cell.
func (e *Engine) Tiles(span int) []tiles.Tile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.field.Tiles(e.pos.Cell(), span)
}

// Missions returns a copy of the session's mission collection.
func (e *Engine) Missions() []mission.Mission {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]mission.Mission(nil), e.missions...)
}

// ReplaceMissions swaps in a freshly loaded mission collection. Missions
// the session already tracks keep a completion or a longer distance
// reached locally, so a stale read never reopens a paid out mission.
func (e *Engine) ReplaceMissions(missions []mission.Mission) {
	e.mu.Lock()
	defer e.mu.Unlock()

	local := make(map[string]mission.Mission, len(e.missions))
	for _, m := range e.missions {
		local[m.ID] = m
	}
	next := make([]mission.Mission, 0, len(missions))
	for _, m := range missions {
		next = append(next, reconcile(local[m.ID], m))
	}
	e.missions = next
}

func reconcile(local, fresh mission.Mission) mission.Mission {
	if local.ID == "" || local.Destination == nil || fresh.Destination == nil {
		return fresh
	}
	if local.Status == mission.StatusCompleted {
		return local
	}
	if local.Destination.DistanceTraveledM > fresh.Destination.DistanceTraveledM {
		d := *fresh.Destination
		d.DistanceTraveledM = local.Destination.DistanceTraveledM
		fresh.Destination = &d
	}
	return fresh
}

// AddMission puts m at the front of the collection, matching the newest
// first order of the mission list.
func (e *Engine) AddMission(m mission.Mission) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.missions = append([]mission.Mission{m}, e.missions...)
}

// Coords returns the last accepted coordinate.
func (e *Engine) Coords() (geo.Point, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.coords, e.state != StateUninitialized
}

func (e *Engine) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:      e.state,
		Position:   e.pos,
		Cell:       e.pos.Cell(),
		Advisory:   e.advisory,
		TileCount:  e.field.Len(),
		MinedCount: e.field.Mined().Len(),
	}
	if origin, ok := e.projector.Origin(); ok {
		snap.Origin = &Coordinate{Lat: origin.Lat, Lon: origin.Lon}
		snap.Coords = &Coordinate{Lat: e.coords.Lat, Lon: e.coords.Lon}
	}
	return snap
}

func (e *Engine) floatingText(text string) stream.FloatingText {
	ttl := e.settings.FloatingTextTTL
	if ttl <= 0 {
		ttl = DefaultFloatingTextTTL
	}
	return stream.FloatingText{
		Text:        text,
		ScreenX:     e.settings.ViewportWidth / 2,
		ScreenY:     e.settings.ViewportHeight / 2,
		ExpiresInMs: ttl.Milliseconds(),
	}
}

// NopSink discards every notification.
type NopSink struct{}

func (NopSink) PointsEarned(int, string) {}
func (NopSink) FloatingText(stream.FloatingText) {}
func (NopSink) Advisory(string) {}
func (NopSink) MissionsUpdated([]mission.Mission) {}
func (NopSink) Processed(Outcome) {}
