package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"backend-geomine/internal/kv"
	"backend-geomine/internal/mission"
	"backend-geomine/internal/position"
	"backend-geomine/internal/shared/geo"
	"backend-geomine/internal/stream"
	"backend-geomine/internal/tiles"
	"backend-geomine/internal/wallet"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const sideEffectTimeout = 5 * time.Second

// MissionStore is the mission collection accessor of a session.
type MissionStore interface {
	List(ctx context.Context, playerID string) ([]mission.Mission, error)
	SaveProgress(ctx context.Context, m mission.Mission) error
	CreateDestination(ctx context.Context, playerID string, meters int, start geo.Point) (mission.Mission, error)
}

// Ledger receives earned points.
type Ledger interface {
	Credit(ctx context.Context, playerID string, amount float64, description string, kind wallet.Kind) (wallet.Transaction, error)
}

// Publisher delivers UI events to the clients of a session.
type Publisher interface {
	Publish(sessionID string, ev stream.Event)
}

type Manager struct {
	settings  Settings
	store     kv.Store
	missions  MissionStore
	ledger    Ledger
	publisher Publisher

	mu       sync.RWMutex
	sessions map[string]*live
	byPlayer map[string]string
	starting map[string]*sync.Mutex
}

type live struct {
	id       string
	playerID string
	engine   *Engine
	source   *ChannelSource
	limiter  *rate.Limiter
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewManager wires sessions to their collaborators. Any of missions,
// ledger and publisher may be nil.
func NewManager(settings Settings, store kv.Store, missions MissionStore, ledger Ledger, publisher Publisher) *Manager {
	if store == nil {
		store = kv.NewMemoryStore()
	}
	if settings.MinedTilesKey == "" {
		settings.MinedTilesKey = tiles.DefaultMinedTilesKey
	}
	return &Manager{
		settings:  settings,
		store:     store,
		missions:  missions,
		ledger:    ledger,
		publisher: publisher,
		sessions:  map[string]*live{},
		byPlayer:  map[string]string{},
		starting:  map[string]*sync.Mutex{},
	}
}

// playerLock serializes Start for one player.
func (m *Manager) playerLock(playerID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.starting[playerID]
	if !ok {
		l = &sync.Mutex{}
		m.starting[playerID] = l
	}
	return l
}

// MinedKey is the key-value key holding a player's mined tiles.
func (m *Manager) MinedKey(playerID string) string {
	return m.settings.MinedTilesKey + ":" + playerID
}

// Start opens a session for the player. A previous session of the same
// player is stopped, and its mined set flushed, before the new one loads it.
func (m *Manager) Start(ctx context.Context, playerID string) (Snapshot, error) {
	lock := m.playerLock(playerID)
	lock.Lock()
	defer lock.Unlock()

	var missions []mission.Mission
	if m.missions != nil {
		list, err := m.missions.List(ctx, playerID)
		if err != nil {
			return Snapshot{}, err
		}
		missions = list
	}

	m.mu.RLock()
	previous, hasPrevious := m.byPlayer[playerID]
	m.mu.RUnlock()
	if hasPrevious {
		_ = m.Stop(previous)
	}

	key := m.MinedKey(playerID)
	s := &live{
		id:       uuid.NewString(),
		playerID: playerID,
		source:   NewChannelSource(16),
		done:     make(chan struct{}),
	}
	if m.settings.SampleRate > 0 {
		burst := m.settings.SampleBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(m.settings.SampleRate), burst)
	}
	s.engine = NewEngine(m.settings, Deps{
		Mined:     tiles.LoadMinedSet(ctx, m.store, key),
		Missions:  missions,
		Persister: tiles.NewPersister(m.store, key),
		Sink:      &sink{manager: m, sessionID: s.id, playerID: playerID},
	})

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		defer close(s.done)
		err := s.engine.Run(runCtx, s.source)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrStopped) {
			log.Printf("session %s ended: %v", s.id, err)
		}
	}()

	m.mu.Lock()
	m.sessions[s.id] = s
	m.byPlayer[playerID] = s.id
	m.mu.Unlock()

	snap := s.engine.Snapshot()
	snap.ID = s.id
	return snap, nil
}

func (m *Manager) get(sessionID string) (*live, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Owner returns the player a session belongs to.
func (m *Manager) Owner(sessionID string) (string, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return "", err
	}
	return s.playerID, nil
}

// Push handles one sample synchronously and returns its outcome.
func (m *Manager) Push(ctx context.Context, sessionID string, sample position.Sample) (Outcome, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return Outcome{}, err
	}
	if s.limiter != nil && !s.limiter.Allow() {
		return Outcome{}, ErrRateLimited
	}
	return s.engine.Handle(ctx, sample)
}

// Enqueue hands a sample to the session's run loop.
func (m *Manager) Enqueue(ctx context.Context, sessionID string, sample position.Sample) error {
	s, err := m.get(sessionID)
	if err != nil {
		return err
	}
	if s.limiter != nil && !s.limiter.Allow() {
		return ErrRateLimited
	}
	return s.source.Push(ctx, sample)
}

func (m *Manager) Snapshot(sessionID string) (Snapshot, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := s.engine.Snapshot()
	snap.ID = s.id
	return snap, nil
}

func (m *Manager) Tiles(sessionID string, span int) ([]tiles.Tile, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.engine.Tiles(span), nil
}

func (m *Manager) Missions(sessionID string) ([]mission.Mission, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.engine.Missions(), nil
}

// StartDestination creates a destination mission starting at the session's
// current coordinate and adds it to the session.
func (m *Manager) StartDestination(ctx context.Context, sessionID string, meters int) (mission.Mission, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return mission.Mission{}, err
	}
	if m.missions == nil {
		return mission.Mission{}, errors.New("missions unavailable")
	}
	start, ok := s.engine.Coords()
	if !ok {
		return mission.Mission{}, ErrNoFix
	}
	created, err := m.missions.CreateDestination(ctx, s.playerID, meters, start)
	if err != nil {
		return mission.Mission{}, err
	}
	s.engine.AddMission(created)
	m.publish(sessionID, stream.Event{Type: stream.EventMission, Data: created})
	return created, nil
}

// RefreshMissions reloads the player's missions into their live session,
// if any. Mission routes call it after creating or submitting a mission.
func (m *Manager) RefreshMissions(ctx context.Context, playerID string) error {
	if m.missions == nil {
		return nil
	}
	m.mu.RLock()
	s, ok := m.sessions[m.byPlayer[playerID]]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	list, err := m.missions.List(ctx, playerID)
	if err != nil {
		return err
	}
	s.engine.ReplaceMissions(list)
	return nil
}

// Stop tears a session down. The mined set is flushed before it returns.
func (m *Manager) Stop(sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
		if m.byPlayer[s.playerID] == sessionID {
			delete(m.byPlayer, s.playerID)
		}
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	s.engine.Stop()
	s.source.Stop()
	s.cancel()
	<-s.done
	return nil
}

func (m *Manager) StopAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		_ = m.Stop(id)
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) publish(sessionID string, ev stream.Event) {
	if m.publisher != nil {
		m.publisher.Publish(sessionID, ev)
	}
}

// sink applies engine side effects for one session.
type sink struct {
	manager   *Manager
	sessionID string
	playerID  string
}

func (s *sink) PointsEarned(points int, description string) {
	if s.manager.ledger == nil {
		return
	}
	kind := wallet.KindMissionReward
	if description == geomineDescription {
		kind = wallet.KindGeomine
	}
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	if _, err := s.manager.ledger.Credit(ctx, s.playerID, float64(points), description, kind); err != nil {
		log.Printf("credit %d points to %s: %v", points, s.playerID, err)
	}
}

func (s *sink) FloatingText(ft stream.FloatingText) {
	s.manager.publish(s.sessionID, stream.Event{Type: stream.EventFloatingText, Data: ft})
}

func (s *sink) Advisory(message string) {
	s.manager.publish(s.sessionID, stream.Event{Type: stream.EventAdvisory, Data: stream.Advisory{Message: message}})
}

func (s *sink) MissionsUpdated(changed []mission.Mission) {
	for _, m := range changed {
		if s.manager.missions != nil {
			ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
			if err := s.manager.missions.SaveProgress(ctx, m); err != nil {
				log.Printf("save mission %s progress: %v", m.ID, err)
			}
			cancel()
		}
		s.manager.publish(s.sessionID, stream.Event{Type: stream.EventMission, Data: m})
	}
}

func (s *sink) Processed(out Outcome) {
	snap := out.Snapshot
	snap.ID = s.sessionID
	s.manager.publish(s.sessionID, stream.Event{Type: stream.EventSnapshot, Data: snap})
}
