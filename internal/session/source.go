package session

import (
	"context"
	"errors"
	"sync"

	"backend-geomine/internal/position"
)

var ErrSourceStarted = errors.New("source already started")

// Source is a push-based stream of location samples. Stop cancels the
// stream; no samples are delivered afterwards.
type Source interface {
	Start(ctx context.Context) (<-chan position.Sample, <-chan error, error)
	Stop()
}

// ChannelSource is a Source fed by Push, used for samples arriving over
// a websocket.
type ChannelSource struct {
	samples chan position.Sample
	errs    chan error
	done    chan struct{}

	mu        sync.RWMutex
	started   bool
	stopped   bool
	unsupport bool
	once      sync.Once
}

func NewChannelSource(buffer int) *ChannelSource {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelSource{
		samples: make(chan position.Sample, buffer),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
}

// Unsupported makes Start fail with ErrCapabilityMissing.
func (s *ChannelSource) Unsupported() *ChannelSource {
	s.mu.Lock()
	s.unsupport = true
	s.mu.Unlock()
	return s
}

func (s *ChannelSource) Start(context.Context) (<-chan position.Sample, <-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.unsupport:
		return nil, nil, ErrCapabilityMissing
	case s.stopped:
		return nil, nil, ErrStopped
	case s.started:
		return nil, nil, ErrSourceStarted
	}
	s.started = true
	return s.samples, s.errs, nil
}

// Push delivers a sample, waiting for buffer space.
func (s *ChannelSource) Push(ctx context.Context, sample position.Sample) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return ErrStopped
	}
	select {
	case s.samples <- sample:
		return nil
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fail delivers a source error. It is dropped if one is already pending.
func (s *ChannelSource) Fail(err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return
	}
	select {
	case s.errs <- err:
	default:
	}
}

func (s *ChannelSource) Stop() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.stopped = true
		close(s.samples)
		close(s.errs)
		s.mu.Unlock()
	})
}
