// Package breaker wraps a registry.RecordStore with a circuit breaker so that
// an unavailable store fails fast instead of queueing publishes.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
	"github.com/tendant/simple-registry/pkg/registry"
)

// ErrOpen is returned while the breaker is open.
var ErrOpen = errors.New("circuit breaker open")

// Options configures the breaker
type Options struct {
	// Threshold is the number of consecutive failures that trips the breaker (default: 5)
	Threshold int64
	// InitialInterval is the first wait before a trial call is allowed (default: 1s)
	InitialInterval time.Duration
	// MaxInterval caps the wait between trial calls (default: 1m)
	MaxInterval time.Duration
}

// Store is a registry.RecordStore guarded by a circuit breaker. Only
// infrastructure failures count against the breaker; duplicates and misses
// are ordinary answers.
type Store struct {
	next    registry.RecordStore
	breaker *circuit.Breaker
}

// New wraps next with a breaker configured from opts
func New(next registry.RecordStore, opts Options) *Store {
	if opts.Threshold <= 0 {
		opts.Threshold = 5
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = time.Second
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = time.Minute
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = opts.InitialInterval
	expBackoff.MaxInterval = opts.MaxInterval
	expBackoff.Multiplier = 2.0
	expBackoff.MaxElapsedTime = 0
	expBackoff.Reset()

	return &Store{
		next: next,
		breaker: circuit.NewBreakerWithOptions(&circuit.Options{
			BackOff:    expBackoff,
			ShouldTrip: circuit.ConsecutiveTripFunc(opts.Threshold),
		}),
	}
}

// Tripped reports whether the breaker is open
func (s *Store) Tripped() bool {
	return s.breaker.Tripped()
}

// call runs fn through the breaker. Errors accepted by expected are passed
// back to the caller without being counted as failures.
func (s *Store) call(fn func() error, expected ...error) error {
	var answer error
	err := s.breaker.Call(func() error {
		err := fn()
		for _, e := range expected {
			if errors.Is(err, e) {
				answer = err
				return nil
			}
		}
		return err
	}, 0)
	if err != nil {
		if errors.Is(err, circuit.ErrBreakerOpen) {
			return fmt.Errorf("%w: %w", ErrOpen, registry.ErrStoreUnavailable)
		}
		return err
	}
	return answer
}

func (s *Store) PutRecordIfAbsent(ctx context.Context, record *registry.PackageRecord) error {
	return s.call(func() error {
		return s.next.PutRecordIfAbsent(ctx, record)
	}, registry.ErrDuplicateVersion, context.Canceled)
}

func (s *Store) GetRecord(ctx context.Context, name, version string) (*registry.PackageRecord, error) {
	var record *registry.PackageRecord
	err := s.call(func() error {
		var err error
		record, err = s.next.GetRecord(ctx, name, version)
		return err
	}, registry.ErrRecordNotFound, context.Canceled)
	return record, err
}

func (s *Store) ListRecords(ctx context.Context, name string) ([]*registry.PackageRecord, error) {
	var records []*registry.PackageRecord
	err := s.call(func() error {
		var err error
		records, err = s.next.ListRecords(ctx, name)
		return err
	}, context.Canceled)
	return records, err
}

func (s *Store) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.call(func() error {
		var err error
		names, err = s.next.ListNames(ctx)
		return err
	}, context.Canceled)
	return names, err
}
