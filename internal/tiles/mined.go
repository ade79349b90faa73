package tiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"backend-geomine/internal/grid"
	"backend-geomine/internal/kv"
)

const DefaultMinedTilesKey = "v3-mined-tiles"

var ErrCorruptMinedSet = errors.New("corrupt mined tile set")

// MinedSet records every harvested cell. It only grows.
type MinedSet struct {
	ids   map[uint64]struct{}
	order []grid.Cell
}

func NewMinedSet() *MinedSet {
	return &MinedSet{ids: map[uint64]struct{}{}}
}

func (m *MinedSet) Add(c grid.Cell) bool {
	if _, ok := m.ids[c.Key()]; ok {
		return false
	}
	m.ids[c.Key()] = struct{}{}
	m.order = append(m.order, c)
	return true
}

func (m *MinedSet) Has(c grid.Cell) bool {
	_, ok := m.ids[c.Key()]
	return ok
}

func (m *MinedSet) Len() int {
	return len(m.order)
}

// IDs returns the tile ids in insertion order.
func (m *MinedSet) IDs() []string {
	ids := make([]string, 0, len(m.order))
	for _, c := range m.order {
		ids = append(ids, c.ID())
	}
	return ids
}

// Encode serializes the set as a JSON array of "x,y" strings.
func (m *MinedSet) Encode() (string, error) {
	b, err := json.Marshal(m.IDs())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func DecodeMinedSet(raw string) (*MinedSet, error) {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptMinedSet, err)
	}
	if ids == nil {
		return nil, fmt.Errorf("%w: not an array", ErrCorruptMinedSet)
	}
	set := NewMinedSet()
	for _, id := range ids {
		c, err := grid.ParseCell(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrCorruptMinedSet, id)
		}
		set.Add(c)
	}
	return set, nil
}

// LoadMinedSet reads the set stored under key. A missing, unreadable or
// corrupt record yields an empty set; corrupt records are removed.
func LoadMinedSet(ctx context.Context, store kv.Store, key string) *MinedSet {
	raw, err := store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			log.Printf("load mined tiles %s: %v", key, err)
		}
		return NewMinedSet()
	}

	set, err := DecodeMinedSet(raw)
	if err != nil {
		log.Printf("discarding mined tiles %s: %v", key, err)
		if err := store.Remove(ctx, key); err != nil {
			log.Printf("remove mined tiles %s: %v", key, err)
		}
		return NewMinedSet()
	}
	return set
}

// Persister writes mined set snapshots in the background. Save never blocks;
// when writes fall behind only the latest snapshot is kept.
type Persister struct {
	store   kv.Store
	key     string
	timeout time.Duration

	mu      sync.Mutex
	pending *string
	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewPersister(store kv.Store, key string) *Persister {
	p := &Persister{
		store:   store,
		key:     key,
		timeout: 5 * time.Second,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *Persister) Save(snapshot string) {
	p.mu.Lock()
	p.pending = &snapshot
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Close flushes any pending snapshot and stops the writer.
func (p *Persister) Close() {
	p.once.Do(func() {
		close(p.stop)
	})
	<-p.done
}

func (p *Persister) loop() {
	defer close(p.done)
	for {
		select {
		case <-p.wake:
			p.flush()
		case <-p.stop:
			p.flush()
			return
		}
	}
}

func (p *Persister) flush() {
	p.mu.Lock()
	snapshot := p.pending
	p.pending = nil
	p.mu.Unlock()
	if snapshot == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.store.Set(ctx, p.key, *snapshot); err != nil {
		log.Printf("persist mined tiles %s: %v", p.key, err)
	}
}
