package sim

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/roach88/armguard/internal/store"
)

// ErrNoParam is returned when writing a parameter the table does not define.
var ErrNoParam = errors.New("no such parameter")

// ParamStore is the durable backing for a ParamTable.
type ParamStore interface {
	SaveParam(ctx context.Context, name string, value float64) error
	Params(ctx context.Context) ([]store.Param, error)
}

// ParamTable models the autopilot's parameters as a durable layer with a
// live overlay on top. Set touches only the overlay, so a Reboot brings
// back the durable values.
type ParamTable struct {
	durable map[string]float64
	live    map[string]float64
	backing ParamStore
	rec     *Recorder
}

// NewParamTable creates a table whose durable layer is defaults overlaid
// with anything already saved in backing. backing may be nil.
func NewParamTable(ctx context.Context, defaults map[string]float64, backing ParamStore, rec *Recorder) (*ParamTable, error) {
	t := &ParamTable{
		durable: make(map[string]float64, len(defaults)),
		live:    make(map[string]float64),
		backing: backing,
		rec:     rec,
	}
	for name, v := range defaults {
		t.durable[store.CanonicalParamName(name)] = v
	}
	if backing == nil {
		return t, nil
	}
	saved, err := backing.Params(ctx)
	if err != nil {
		return nil, fmt.Errorf("load params: %w", err)
	}
	for _, p := range saved {
		t.durable[p.Name] = p.Value
	}
	return t, nil
}

// Get returns the live value, falling back to the durable one.
func (t *ParamTable) Get(name string) (float64, bool) {
	key := store.CanonicalParamName(name)
	if v, ok := t.live[key]; ok {
		return v, true
	}
	v, ok := t.durable[key]
	return v, ok
}

// Set changes the live value of an existing parameter.
func (t *ParamTable) Set(name string, value float64) error {
	key := store.CanonicalParamName(name)
	if _, ok := t.durable[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNoParam, key)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("set %s: non-finite value %v", key, value)
	}
	prev, _ := t.Get(key)
	t.live[key] = value
	if prev != value && t.rec != nil {
		t.rec.param(key, value)
	}
	return nil
}

// SetAndSave writes a durable value, creating the parameter if needed, and
// drops any live override for it.
func (t *ParamTable) SetAndSave(ctx context.Context, name string, value float64) error {
	key := store.CanonicalParamName(name)
	if t.backing != nil {
		if err := t.backing.SaveParam(ctx, key, value); err != nil {
			return err
		}
	} else if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("save param %s: non-finite value %v", key, value)
	}
	prev, had := t.Get(key)
	t.durable[key] = value
	delete(t.live, key)
	if (!had || prev != value) && t.rec != nil {
		t.rec.param(key, value)
	}
	return nil
}

// Durable returns the saved value, ignoring the live overlay.
func (t *ParamTable) Durable(name string) (float64, bool) {
	v, ok := t.durable[store.CanonicalParamName(name)]
	return v, ok
}

// Reboot discards every live override.
func (t *ParamTable) Reboot() {
	clear(t.live)
}

// Names returns every defined parameter name, sorted.
func (t *ParamTable) Names() []string {
	return slices.Sorted(maps.Keys(t.durable))
}
