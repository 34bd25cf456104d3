package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/pulses"
	"github.com/OpenTraceLab/OpenTraceTLP/pkg/tlp"
)

// sampleRaw builds a record with 3 steps, 3 pulses of 4 samples and 4
// leakage sweeps. seed shifts every value.
func sampleRaw(t *testing.T, seed float64) *tlp.RawData {
	t.Helper()
	const nb, length = 3, 4
	set := pulses.NewTimeSet(pulses.BasisIV, nb, length, 2e-9)
	v := make([][]float64, nb)
	c := make([][]float64, nb)
	for i := range v {
		v[i] = make([]float64, length)
		c[i] = make([]float64, length)
		for k := range v[i] {
			v[i][k] = seed + float64(10*i+k)
			c[i][k] = v[i][k] / 50
		}
	}
	require.NoError(t, set.SetChannel(pulses.VoltageChannel, v))
	require.NoError(t, set.SetChannel(pulses.CurrentChannel, c))
	require.NoError(t, set.SetValim([]float64{10, 20, 30}))
	require.NoError(t, set.SetOffsets([]float64{-1e-9, -1e-9, -2e-9}))

	return &tlp.RawData{
		DeviceName: "dut-1",
		TesterName: "Oryx",
		SourcePath: "/data/run" + seedTag(seed) + ".tsr",
		Pulses:     set,
		Voltage:    []float64{seed + 1, seed + 2, seed + 3},
		Current:    []float64{0.1, 0.2, 0.3},
		LeakEvol:   []float64{1e-9, 2e-9, 4e-9},
		LeakIVs: []tlp.IVCurve{
			{Voltage: []float64{0, 1}, Current: []float64{1e-12, 2e-12}},
			{Voltage: []float64{0, 1, 2}, Current: []float64{1e-12, 2e-12, 3e-12}},
			{Voltage: []float64{0, 1}, Current: []float64{3e-12, 4e-12}},
			{Voltage: []float64{0, 1, 2}, Current: []float64{5e-12, 6e-12, 7e-12}},
		},
	}
}

func seedTag(v float64) string {
	return string(rune('a' + int(v)%26))
}

// assertSameRecord compares a stored record with the data it came from.
func assertSameRecord(t *testing.T, want *tlp.RawData, got *tlp.Droplet) {
	t.Helper()
	assert.Equal(t, want.DeviceName, got.DeviceName())
	assert.Equal(t, want.TesterName, got.TesterName())
	assert.Equal(t, want.SourcePath, got.OriginalFilePath())
	assert.Equal(t, want.Voltage, got.TLPCurve().Voltage())
	assert.Equal(t, want.Current, got.TLPCurve().Current())
	assert.Equal(t, want.LeakEvol, got.LeakEvol())
	if lv, ok := got.LeakVoltage(); want.LeakVoltage == nil {
		assert.False(t, ok)
	} else {
		assert.True(t, ok)
		assert.Equal(t, *want.LeakVoltage, lv)
	}
	assert.Equal(t, len(want.LeakIVs), len(got.IVLeak()))
	for k, iv := range got.IVLeak() {
		assert.Equal(t, want.LeakIVs[k].Voltage, iv.Voltage)
		assert.Equal(t, want.LeakIVs[k].Current, iv.Current)
	}

	wp, gp := want.Pulses, got.Pulses()
	require.Equal(t, wp.PulsesNb(), gp.PulsesNb())
	require.Equal(t, wp.PulsesLength(), gp.PulsesLength())
	assert.Equal(t, wp.DeltaT(), gp.DeltaT())
	assert.Equal(t, wp.Valim(), gp.Valim())
	assert.Equal(t, wp.Offsets(), gp.Offsets())
	for i := 0; i < wp.PulsesNb(); i++ {
		for _, c := range []pulses.Channel{pulses.VoltageChannel, pulses.CurrentChannel} {
			w, err := wp.Pulse(i, c)
			require.NoError(t, err)
			g, err := gp.Pulse(i, c)
			require.NoError(t, err)
			assert.Equal(t, w, g, "pulse %d channel %d", i, c)
		}
	}
}

func TestCreateAppendRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.oef")
	c, err := Create(path, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	raw := sampleRaw(t, 0)
	name, err := c.Append("", raw)
	require.NoError(t, err)
	assert.Equal(t, "runa", name)
	assert.True(t, c.Has(name))
	assert.Equal(t, 1, c.Len())

	// readable before any flush
	d, err := c.Read(name)
	require.NoError(t, err)
	assertSameRecord(t, raw, d)
	assert.True(t, d.HasTransientPulses())
	assert.True(t, d.HasLeakageIVs())
	assert.True(t, d.HasLeakageEvolution())
	require.NoError(t, c.Close())

	c, err = Open(path, ReadOnly)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, []string{"runa"}, c.Names())
	assert.Equal(t, DefaultCompression, c.Compression())
	d, err = c.Read(name)
	require.NoError(t, err)
	assertSameRecord(t, raw, d)

	info, err := c.Info(name)
	require.NoError(t, err)
	assert.Equal(t, schemaCurrent, info.Schema)
	assert.NotEqual(t, uuid.Nil, info.UUID)
	assert.Equal(t, []string{"IVTime", "iv_leak", "iv_leak_len", "leak_evol", "offsets_t", "tlp_curve", "valim"}, info.Datasets)
}

func TestAppendThenCloseIsDurable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.oef")
	c, err := Create(path)
	require.NoError(t, err)
	var raws []*tlp.RawData
	for i := 0; i < 5; i++ {
		raw := sampleRaw(t, float64(i))
		raws = append(raws, raw)
		_, err := c.Append("", raw)
		require.NoError(t, err)
	}
	require.NoError(t, c.Close())

	c, err = Open(path, ReadOnly)
	require.NoError(t, err)
	defer c.Close()
	require.Equal(t, 5, c.Len())
	for i, name := range c.Names() {
		d, err := c.Read(name)
		require.NoError(t, err)
		assertSameRecord(t, raws[i], d)
	}
}

func TestNamingConflict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.oef")
	c, err := Create(path)
	require.NoError(t, err)
	defer c.Close()

	first := sampleRaw(t, 1)
	_, err = c.Append("dut", first)
	require.NoError(t, err)

	_, err = c.Append("dut", sampleRaw(t, 2))
	var nc *NamingConflictError
	require.True(t, errors.As(err, &nc))
	assert.Equal(t, "dut", nc.Name)

	d, err := c.Read("dut")
	require.NoError(t, err)
	assertSameRecord(t, first, d)

	// derived names are checked too
	_, err = c.Append("", first)
	require.NoError(t, err)
	_, err = c.Append("", first)
	require.True(t, errors.As(err, &nc))
	assert.Equal(t, "runb", nc.Name)
	assert.Equal(t, 2, c.Len())
}

func TestAppendRejectsInvalidRecord(t *testing.T) {
	c, err := Create(filepath.Join(t.TempDir(), "bench.oef"))
	require.NoError(t, err)
	defer c.Close()

	raw := sampleRaw(t, 0)
	raw.Current = raw.Current[:1]
	_, err = c.Append("bad", raw)
	assert.ErrorIs(t, err, tlp.ErrInvalid)
	assert.False(t, c.Has("bad"))
}

func TestReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.oef")
	c, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c, err = Open(path, ReadOnly)
	require.NoError(t, err)
	_, err = c.Append("x", sampleRaw(t, 0))
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.NoError(t, c.Flush())
	require.NoError(t, c.Close())
}

func TestRecordNotFound(t *testing.T) {
	c, err := Create(filepath.Join(t.TempDir(), "bench.oef"))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Read("nope")
	assert.ErrorIs(t, err, ErrRecordNotFound)
	var se *StructureError
	assert.False(t, errors.As(err, &se))
	_, err = c.Info("nope")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestClosed(t *testing.T) {
	c, err := Create(filepath.Join(t.TempDir(), "bench.oef"))
	require.NoError(t, err)
	_, err = c.Append("a", sampleRaw(t, 0))
	require.NoError(t, err)
	d, err := c.Read("a")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Close(), ErrClosed)
	assert.ErrorIs(t, c.Flush(), ErrClosed)
	_, err = c.Read("a")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Append("b", sampleRaw(t, 1))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = d.Pulses().Pulse(0, pulses.VoltageChannel)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Walk(func(string, *tlp.Droplet, error) error { return nil }), ErrClosed)
}

func TestOpenNotContainer(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"empty": "",
		"short": "OEF",
		"text":  "this is not a container at all",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		_, err := Open(path, ReadOnly)
		assert.ErrorIs(t, err, ErrNotContainer, name)
	}

	_, err := Open(filepath.Join(dir, "absent"), ReadOnly)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRecordWithoutOptionalParts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.oef")
	c, err := Create(path)
	require.NoError(t, err)
	raw := &tlp.RawData{
		DeviceName: "dut",
		TesterName: "HANWA",
		SourcePath: "/data/dev.tcf",
		Voltage:    []float64{1, 2},
		Current:    []float64{0.1, 0.2},
		LeakEvol:   []float64{0, 0},
	}
	leakBias := 0.8
	raw.LeakVoltage = &leakBias
	_, err = c.Append("plain", raw)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c, err = Open(path, ReadOnly)
	require.NoError(t, err)
	defer c.Close()
	d, err := c.Read("plain")
	require.NoError(t, err)
	assert.False(t, d.HasTransientPulses())
	assert.False(t, d.HasLeakageIVs())
	assert.False(t, d.HasLeakageEvolution())
	assert.Equal(t, tlp.EvolutionZero, d.LeakEvolState())
	assert.Equal(t, 0, d.Pulses().PulsesNb())
	assert.Equal(t, 2, d.Pulses().PulsesLength())
	assert.Nil(t, d.IVLeak())
	v, ok := d.LeakVoltage()
	assert.True(t, ok)
	assert.Equal(t, 0.8, v)
}
