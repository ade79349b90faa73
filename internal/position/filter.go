package position

import (
	"errors"
	"fmt"
	"time"

	"backend-geomine/internal/shared/geo"
)

const (
	DefaultMaxAccuracyM = 50.0
	DefaultMaxSpeedMps  = 45.0
)

var (
	ErrPoorSignal      = errors.New("poor gps signal")
	ErrUnusualMovement = errors.New("unusual movement detected")
)

// Sample is one raw reading from the host location service.
type Sample struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	AccuracyM float64   `json:"accuracy_m"`
	Timestamp time.Time `json:"timestamp"`
}

func (s Sample) Point() geo.Point {
	return geo.Point{Lat: s.Lat, Lon: s.Lon}
}

// RejectError is returned by Filter.Check when a sample is discarded.
type RejectError struct {
	Reason    error
	AccuracyM float64
	SpeedMps  float64
}

func (e *RejectError) Error() string {
	switch {
	case errors.Is(e.Reason, ErrPoorSignal):
		return fmt.Sprintf("Poor GPS signal (accuracy: %.0fm).", e.AccuracyM)
	case errors.Is(e.Reason, ErrUnusualMovement):
		return "Unusual movement detected."
	}
	return e.Reason.Error()
}

func (e *RejectError) Unwrap() error {
	return e.Reason
}

// Filter drops samples with poor accuracy or an implausible speed relative to
// the last accepted sample. A rejected sample leaves the filter untouched.
type Filter struct {
	MaxAccuracyM float64
	MaxSpeedMps  float64

	last    Sample
	hasLast bool
}

func NewFilter(maxAccuracyM, maxSpeedMps float64) *Filter {
	if maxAccuracyM <= 0 {
		maxAccuracyM = DefaultMaxAccuracyM
	}
	if maxSpeedMps <= 0 {
		maxSpeedMps = DefaultMaxSpeedMps
	}
	return &Filter{MaxAccuracyM: maxAccuracyM, MaxSpeedMps: maxSpeedMps}
}

func (f *Filter) Check(s Sample) error {
	if s.AccuracyM > f.MaxAccuracyM {
		return &RejectError{Reason: ErrPoorSignal, AccuracyM: s.AccuracyM}
	}

	if f.hasLast {
		elapsed := s.Timestamp.Sub(f.last.Timestamp).Seconds()
		if elapsed > 0 {
			speed := geo.DistanceM(f.last.Point(), s.Point()) / elapsed
			if speed > f.MaxSpeedMps {
				return &RejectError{Reason: ErrUnusualMovement, AccuracyM: s.AccuracyM, SpeedMps: speed}
			}
		}
	}

	f.last = s
	f.hasLast = true
	return nil
}

// Last returns the most recent accepted sample.
func (f *Filter) Last() (Sample, bool) {
	return f.last, f.hasLast
}
