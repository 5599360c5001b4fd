package sim

import (
	"context"
	"log/slog"

	"github.com/roach88/armguard/internal/addon"
)

// Options configures a World.
type Options struct {
	// Params seeds the durable parameter layer.
	Params map[string]float64

	// Store, when set, backs the durable parameters and receives the journal.
	Store interface {
		ParamStore
		JournalSink
	}

	// Session labels journal entries. Generated when empty and Store is set.
	Session string

	// Sessions generates Session when it is empty. Defaults to UUIDv7.
	Sessions SessionGenerator

	Logger *slog.Logger
}

// World is a complete simulated host.
type World struct {
	Clock    *Clock
	Host     *Host
	Vehicle  *Vehicle
	Params   *ParamTable
	Terrain  *Terrain
	Recorder *Recorder
	Session  string
}

// NewWorld builds a World at virtual time zero.
func NewWorld(ctx context.Context, opts Options) (*World, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := NewClock()
	rec := NewRecorder(clock, logger)

	var backing ParamStore
	if opts.Store != nil {
		backing = opts.Store
		session := opts.Session
		if session == "" {
			gen := opts.Sessions
			if gen == nil {
				gen = UUIDv7Generator{}
			}
			session = gen.Generate()
		}
		rec.Journal(opts.Store, session)
	}

	params, err := NewParamTable(ctx, opts.Params, backing, rec)
	if err != nil {
		return nil, err
	}

	session := rec.Session()
	if session == "" {
		session = opts.Session
	}

	return &World{
		Clock:    clock,
		Host:     NewHost(clock, logger),
		Vehicle:  NewVehicle(rec),
		Params:   params,
		Terrain:  &Terrain{},
		Recorder: rec,
		Session:  session,
	}, nil
}

// Collaborators exposes the world as the add-on's host capabilities.
func (w *World) Collaborators() addon.Collaborators {
	return addon.Collaborators{
		Params:   w.Params,
		Arming:   w.Vehicle,
		Notifier: w.Recorder,
		State:    w.Vehicle,
		Follow:   w.Vehicle,
		Terrain:  w.Terrain,
		Fence:    w.Vehicle,
		Motors:   w.Vehicle,
		Clock:    w.Clock,
	}
}
