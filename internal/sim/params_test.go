package sim

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/armguard/internal/store"
)

func TestParamTable_LiveOverlayAndReboot(t *testing.T) {
	clock := NewClock()
	rec := NewRecorder(clock, nil)
	p, err := NewParamTable(context.Background(), map[string]float64{"FOLL_OFS_Z": -5}, nil, rec)
	require.NoError(t, err)

	require.NoError(t, p.Set("foll_ofs_z", -15))

	v, ok := p.Get("FOLL_OFS_Z")
	assert.True(t, ok)
	assert.Equal(t, -15.0, v)
	d, _ := p.Durable("FOLL_OFS_Z")
	assert.Equal(t, -5.0, d, "live writes never reach the durable layer")

	p.Reboot()
	v, _ = p.Get("FOLL_OFS_Z")
	assert.Equal(t, -5.0, v)
}

func TestParamTable_SetRejects(t *testing.T) {
	p, err := NewParamTable(context.Background(), map[string]float64{"FOLL_OFS_Z": 0}, nil, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, p.Set("NOT_A_PARAM", 1), ErrNoParam)
	assert.Error(t, p.Set("FOLL_OFS_Z", math.NaN()))
}

func TestParamTable_RecordsOnlyChanges(t *testing.T) {
	clock := NewClock()
	rec := NewRecorder(clock, nil)
	p, err := NewParamTable(context.Background(), map[string]float64{"FOLL_OFS_Z": -5}, nil, rec)
	require.NoError(t, err)

	require.NoError(t, p.Set("FOLL_OFS_Z", -15))
	require.NoError(t, p.Set("FOLL_OFS_Z", -15))
	require.NoError(t, p.Set("FOLL_OFS_Z", -10))

	assert.Len(t, rec.Filter(EventParam), 2)
}

func TestParamTable_SaveSurvivesRebootAndRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "params.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	p, err := NewParamTable(ctx, map[string]float64{"FOLL_OFS_Z": -5, "RTL_ALTITUDE": 60}, st, nil)
	require.NoError(t, err)

	require.NoError(t, p.Set("FOLL_OFS_Z", -15))
	require.NoError(t, p.SetAndSave(ctx, "RTL_ALTITUDE", 150))
	p.Reboot()

	v, _ := p.Get("RTL_ALTITUDE")
	assert.Equal(t, 150.0, v)

	fresh, err := NewParamTable(ctx, map[string]float64{"FOLL_OFS_Z": -5, "RTL_ALTITUDE": 60}, st, nil)
	require.NoError(t, err)
	v, _ = fresh.Get("RTL_ALTITUDE")
	assert.Equal(t, 150.0, v, "saved value overrides defaults")
	v, _ = fresh.Get("FOLL_OFS_Z")
	assert.Equal(t, -5.0, v, "live corrections were never saved")

	saved, err := st.Params(ctx)
	require.NoError(t, err)
	assert.Equal(t, []store.Param{{Name: "RTL_ALTITUDE", Value: 150}}, saved)
}

func TestParamTable_Names(t *testing.T) {
	p, err := NewParamTable(context.Background(), map[string]float64{"b": 1, "A": 2}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, p.Names())
}
