package importers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/pulses"
	"github.com/OpenTraceLab/OpenTraceTLP/pkg/tlp"
)

const oryxStamp = "04-29-09_05'40'45_PM"

// oryxFixture holds the expected content of a generated .tsr file.
type oryxFixture struct {
	vdut, idut, leak []float64
}

func writeOryxTSR(t *testing.T, path string, rows int, extended bool) oryxFixture {
	t.Helper()
	var fx oryxFixture
	var b strings.Builder
	b.WriteString("\"[=====Test Setup=====]\"\n\"Operator\",\"bench\"\n")
	b.WriteString("\"[=====Test Result Table (A)=====]\"\n")
	for i := 1; i <= rows; i++ {
		vsupply := float64(10 * i)
		vdut := 0.5 * float64(i)
		idut := 0.01 * float64(i)
		leak := 1e-9 * float64(i)
		fx.vdut = append(fx.vdut, vdut)
		fx.idut = append(fx.idut, idut)
		fx.leak = append(fx.leak, leak)
		if extended {
			b.WriteString(csvRow(float64(i), vsupply, 2*idut, vdut, idut, leak))
		} else {
			b.WriteString(csvRow(float64(i), vsupply, vdut, idut, leak))
		}
		b.WriteString("\n")
	}
	b.WriteString("\"[EOF]\"\n")
	writeFile(t, path, b.String())
	return fx
}

// oryxWaveform renders a .wfm file: 13 header lines, t[ns],value rows and
// a trailer.
func oryxWaveform(samples int, value func(k int) float64) string {
	var b strings.Builder
	for i := 0; i < 13; i++ {
		fmt.Fprintf(&b, "\"Header line %d\",\"x\"\r\n", i)
	}
	for k := 0; k < samples; k++ {
		fmt.Fprintf(&b, "%s,%s\r\n", ftoa(-2+0.5*float64(k)), ftoa(value(k)))
	}
	b.WriteString("\"[EOF]\"\r\n\r\n")
	return b.String()
}

func oryxMembers(volts []int, currs []int, samples int) []member {
	var out []member
	// written in reverse so that archive order is not sorted
	for i := len(volts) - 1; i >= 0; i-- {
		v := volts[i]
		out = append(out, member{
			name: fmt.Sprintf("%s_TlpVolt_%dV.wfm", oryxStamp, v),
			body: oryxWaveform(samples, func(k int) float64 { return float64(v + k) }),
		})
	}
	for i := len(currs) - 1; i >= 0; i-- {
		v := currs[i]
		out = append(out, member{
			name: fmt.Sprintf("%s_TlpCurr_%dV.wfm", oryxStamp, v),
			body: oryxWaveform(samples, func(int) float64 { return float64(v) / 100 }),
		})
	}
	out = append(out, member{
		name: oryxStamp + "_TlpVMonCh3_10V.wfm",
		body: oryxWaveform(samples, func(int) float64 { return 0 }),
	})
	return out
}

func supplyVoltages(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = 10 * (i + 1)
	}
	return out
}

func TestOryxEndToEnd(t *testing.T) {
	dir := t.TempDir()
	tsr := filepath.Join(dir, "run1.tsr")
	fx := writeOryxTSR(t, tsr, 12, false)
	volts := supplyVoltages(12)
	writeZip(t, filepath.Join(dir, "run1.zip"), oryxMembers(volts, volts, 8))

	raw, err := NewOryx(nil).Decode(tsr)
	require.NoError(t, err)

	assert.Equal(t, fx.vdut, raw.Voltage)
	assert.Equal(t, fx.idut, raw.Current)
	assert.Equal(t, "Oryx", raw.TesterName)
	assert.Equal(t, UnknownDevice, raw.DeviceName)
	assert.True(t, filepath.IsAbs(raw.SourcePath))
	assert.Equal(t, []string{SectionLeakIVs}, raw.Missing)

	d, err := tlp.NewDroplet(raw)
	require.NoError(t, err)
	assert.True(t, d.HasTransientPulses())
	assert.True(t, d.HasLeakageEvolution())
	assert.False(t, d.HasLeakageIVs())
	assert.Equal(t, 12, d.TLPCurve().Len())
	assert.Equal(t, fx.leak, d.LeakEvol())

	p := d.Pulses()
	require.Equal(t, 12, p.PulsesNb())
	assert.Equal(t, 8, p.PulsesLength())
	assert.InDelta(t, 0.5e-9, p.DeltaT(), 1e-18)
	for i, v := range p.Valim() {
		assert.Equal(t, float64(volts[i]), v)
	}
	for _, off := range p.Offsets() {
		assert.InDelta(t, -2e-9, off, 1e-18)
	}

	// pulse 10 is the 100 V one, which sorts after 90 V numerically
	v, err := p.Pulse(9, pulses.VoltageChannel)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 101, 102, 103, 104, 105, 106, 107}, v)
	c, err := p.Pulse(9, pulses.CurrentChannel)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, c[0], 1e-12)
}

func TestOryxWaveformDirectory(t *testing.T) {
	dir := t.TempDir()
	tsr := filepath.Join(dir, "run1.tsr")
	writeOryxTSR(t, tsr, 3, false)
	for _, m := range oryxMembers(supplyVoltages(3), supplyVoltages(3), 4) {
		writeFile(t, filepath.Join(dir, "run1", m.name), m.body)
	}

	raw, err := NewOryx(nil).Decode(tsr)
	require.NoError(t, err)
	assert.Equal(t, 3, raw.Pulses.PulsesNb())
	assert.Equal(t, 4, raw.Pulses.PulsesLength())
}

func TestOryxEmptyDirectoryFallsBackToZip(t *testing.T) {
	dir := t.TempDir()
	tsr := filepath.Join(dir, "run1.tsr")
	writeOryxTSR(t, tsr, 3, false)
	// a directory with unrelated files only
	writeFile(t, filepath.Join(dir, "run1", "notes.txt"), "bench log\n")
	writeZip(t, filepath.Join(dir, "run1.zip"), oryxMembers(supplyVoltages(3), supplyVoltages(3), 4))

	raw, err := NewOryx(nil).Decode(tsr)
	require.NoError(t, err)
	assert.Equal(t, 3, raw.Pulses.PulsesNb())
	assert.Equal(t, []float64{10, 20, 30}, raw.Pulses.Valim())
	assert.NotContains(t, raw.Missing, SectionWaveforms)

	require.NoError(t, os.Remove(filepath.Join(dir, "run1", "notes.txt")))
	raw, err = NewOryx(nil).Decode(tsr)
	require.NoError(t, err)
	assert.Equal(t, 3, raw.Pulses.PulsesNb())
}

func TestOryxExtendedLayout(t *testing.T) {
	dir := t.TempDir()
	tsr := filepath.Join(dir, "run2.tsr")
	fx := writeOryxTSR(t, tsr, 4, true)

	raw, err := NewOryx(nil).Decode(tsr)
	require.NoError(t, err)
	assert.Equal(t, fx.vdut, raw.Voltage)
	assert.Equal(t, fx.idut, raw.Current)
	assert.Equal(t, fx.leak, raw.LeakEvol)
}

func TestOryxWithoutWaveforms(t *testing.T) {
	dir := t.TempDir()
	tsr := filepath.Join(dir, "run1.tsr")
	writeOryxTSR(t, tsr, 5, false)
	// not a zip: recognized by signature, not by extension
	writeFile(t, filepath.Join(dir, "run1.zip"), "this is not an archive")

	raw, err := NewOryx(nil).Decode(tsr)
	require.NoError(t, err)
	assert.Contains(t, raw.Missing, SectionWaveforms)

	d, err := tlp.NewDroplet(raw)
	require.NoError(t, err)
	assert.False(t, d.HasTransientPulses())
	assert.Equal(t, 0, d.Pulses().PulsesNb())
	assert.Equal(t, 5, d.Pulses().PulsesLength())
	assert.Equal(t, 5, d.TLPCurve().Len())
}

func TestOryxWaveformCountMismatch(t *testing.T) {
	dir := t.TempDir()
	tsr := filepath.Join(dir, "run1.tsr")
	writeOryxTSR(t, tsr, 5, false)
	writeZip(t, filepath.Join(dir, "run1.zip"), oryxMembers(supplyVoltages(5), supplyVoltages(4), 4))

	_, err := NewOryx(nil).Decode(tsr)
	var ce *ConsistencyError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, 4, ce.Got)
	assert.Equal(t, 5, ce.Want)
	assert.Equal(t, "Oryx", ce.Tester)
}

func TestOryxMissingTable(t *testing.T) {
	dir := t.TempDir()
	tsr := filepath.Join(dir, "bad.tsr")
	writeFile(t, tsr, "\"[=====Test Setup=====]\"\n")

	_, err := NewOryx(nil).Decode(tsr)
	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, tsr, fe.Path)

	_, err = NewOryx(nil).Decode(filepath.Join(dir, "absent.tsr"))
	require.True(t, errors.As(err, &fe))
}

func oryxCTR(curves int) string {
	var b strings.Builder
	b.WriteString("[HEADER]\nOryx leakage\n")
	for c := 0; c < curves; c++ {
		fmt.Fprintf(&b, "[DATA]\nLeakage curve %d\nIndex,Voltage,Current\n", c)
		for k := 0; k < 3; k++ {
			fmt.Fprintf(&b, "%d,%s,%s\n", k, ftoa(float64(k)), ftoa(float64(c+1)*1e-12*float64(k)))
		}
	}
	return b.String()
}

func TestOryxLeakCurves(t *testing.T) {
	dir := t.TempDir()
	tsr := filepath.Join(dir, "run1.tsr")
	writeOryxTSR(t, tsr, 2, false)
	writeFile(t, filepath.Join(dir, "run1.ctr"), oryxCTR(3))

	raw, err := NewOryx(nil).Decode(tsr)
	require.NoError(t, err)
	require.Len(t, raw.LeakIVs, 3)
	assert.Equal(t, []float64{0, 1, 2}, raw.LeakIVs[2].Voltage)
	assert.InDelta(t, 6e-12, raw.LeakIVs[2].Current[2], 1e-24)
	assert.NotContains(t, raw.Missing, SectionLeakIVs)
}

func TestOryxLeakCountMismatch(t *testing.T) {
	dir := t.TempDir()
	tsr := filepath.Join(dir, "run1.tsr")
	writeOryxTSR(t, tsr, 4, false)
	writeFile(t, filepath.Join(dir, "run1.ctr"), oryxCTR(2))

	_, err := NewOryx(nil).Decode(tsr)
	var ce *ConsistencyError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "leakage curve count", ce.What)
}
