package storage

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/pulses"
	"github.com/OpenTraceLab/OpenTraceTLP/pkg/tlp"
)

// Schema revisions of a group. Revision 1 stores IVTime as [2,N,L] and has
// no offsets_t nor schema attribute; revision 2 stores [N,2,L].
const (
	schemaLegacy  = 1
	schemaCurrent = 2
)

// Attribute and dataset names.
const (
	attrDeviceName   = "device_name"
	attrTesterName   = "tester_name"
	attrOriginalPath = "original_file_path"
	attrSchema       = "schema"
	attrUUID         = "uuid"
	attrDeltaT       = "delta_t"
	attrLeakVoltage  = "leak_voltage"

	dsCurve     = "tlp_curve"
	dsIVTime    = "IVTime"
	dsValim     = "valim"
	dsOffsets   = "offsets_t"
	dsLeakEvol  = "leak_evol"
	dsIVLeak    = "iv_leak"
	dsIVLeakLen = "iv_leak_len"
)

func (c *Container) encodeDroplet(name string, d *tlp.Droplet, schema int) (*group, error) {
	g := newGroup(name)
	g.attrs[attrDeviceName] = stringAttr(d.DeviceName())
	g.attrs[attrTesterName] = stringAttr(d.TesterName())
	g.attrs[attrOriginalPath] = stringAttr(d.OriginalFilePath())
	if schema != schemaLegacy {
		g.attrs[attrSchema] = intAttr(int64(schema))
		g.attrs[attrUUID] = stringAttr(uuid.NewString())
	}
	if v, ok := d.LeakVoltage(); ok {
		g.attrs[attrLeakVoltage] = floatAttr(v)
	}

	curve := d.TLPCurve()
	if err := c.putFloats(g, dsCurve, []int{2, curve.Len()}, curve.Voltage(), curve.Current()); err != nil {
		return nil, err
	}

	if d.HasTransientPulses() {
		if err := c.putPulses(g, d.Pulses(), schema); err != nil {
			return nil, err
		}
	}

	if d.LeakEvolState() != tlp.EvolutionAbsent {
		evol := d.LeakEvol()
		if err := c.putFloats(g, dsLeakEvol, []int{len(evol)}, evol); err != nil {
			return nil, err
		}
	}

	if ivs := d.IVLeak(); len(ivs) > 0 {
		var v, i []float64
		lens := make([]int64, len(ivs))
		for k, iv := range ivs {
			v = append(v, iv.Voltage...)
			i = append(i, iv.Current...)
			lens[k] = int64(iv.Len())
		}
		if err := c.putFloats(g, dsIVLeak, []int{2, len(v)}, v, i); err != nil {
			return nil, err
		}
		if err := c.putDataset(g, dsIVLeakLen, dtypeInt64, []int{len(lens)}, [][]byte{encodeInts(lens)}); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (c *Container) putPulses(g *group, p tlp.PulseSource, schema int) error {
	nb, length := p.PulsesNb(), p.PulsesLength()
	rows := make([][]byte, 0, 2*nb)
	shape := []int{nb, 2, length}
	if schema == schemaLegacy {
		shape = []int{2, nb, length}
		for ch := pulses.Channel1; ch <= pulses.Channel2; ch++ {
			for i := 0; i < nb; i++ {
				s, err := p.Pulse(i, ch)
				if err != nil {
					return fmt.Errorf("storage: pulse %d: %w", i, err)
				}
				rows = append(rows, encodeFloats(s))
			}
		}
	} else {
		for i := 0; i < nb; i++ {
			for ch := pulses.Channel1; ch <= pulses.Channel2; ch++ {
				s, err := p.Pulse(i, ch)
				if err != nil {
					return fmt.Errorf("storage: pulse %d: %w", i, err)
				}
				rows = append(rows, encodeFloats(s))
			}
		}
	}
	if err := c.putDataset(g, dsIVTime, dtypeFloat64, shape, rows); err != nil {
		return err
	}
	if err := c.putFloats(g, dsValim, []int{nb}, p.Valim()); err != nil {
		return err
	}
	if schema != schemaLegacy {
		if err := c.putFloats(g, dsOffsets, []int{nb}, p.Offsets()); err != nil {
			return err
		}
	}
	g.attrs[attrDeltaT] = floatAttr(p.DeltaT())
	return nil
}

func (c *Container) putFloats(g *group, name string, shape []int, rows ...[]float64) error {
	enc := make([][]byte, len(rows))
	for i, r := range rows {
		enc[i] = encodeFloats(r)
	}
	return c.putDataset(g, name, dtypeFloat64, shape, enc)
}

// putDataset writes one chunk frame per row and records the dataset in g.
func (c *Container) putDataset(g *group, name string, t dtype, shape []int, rows [][]byte) error {
	d := &dataset{name: name, dtype: t, shape: shape, codec: c.compression}
	for _, row := range rows {
		ref := chunkRef{count: len(row) / 8}
		if len(row) > 0 {
			z, err := compressData(row, c.compression)
			if err != nil {
				return fmt.Errorf("storage: compress %s: %w", name, err)
			}
			ref.offset, ref.size = c.end, uint32(len(z))
			if err := c.writeFrame(frameChunk, z); err != nil {
				return err
			}
		}
		d.chunks = append(d.chunks, ref)
	}
	g.datasets[name] = d
	return nil
}

// decodeDroplet checks the structure of g and builds its record. Every
// dataset except IVTime is loaded eagerly.
func (c *Container) decodeDroplet(g *group) (*tlp.Droplet, error) {
	raw := &tlp.RawData{}
	var err error
	if raw.DeviceName, err = stringAttrOf(g, attrDeviceName); err != nil {
		return nil, err
	}
	if raw.TesterName, err = stringAttrOf(g, attrTesterName); err != nil {
		return nil, err
	}
	if raw.SourcePath, err = stringAttrOf(g, attrOriginalPath); err != nil {
		return nil, err
	}
	schema, err := schemaOf(g)
	if err != nil {
		return nil, err
	}
	if a, ok := g.attrs[attrLeakVoltage]; ok {
		if a.kind != attrFloat {
			return nil, structErr(g.name, "attribute %s is not a float", attrLeakVoltage)
		}
		v := a.f
		raw.LeakVoltage = &v
	}

	curve, err := checkDataset(g, dsCurve, dtypeFloat64, 2)
	if err != nil {
		return nil, err
	}
	if curve.shape[0] != 2 {
		return nil, structErr(g.name, "%s has %d rows, want 2", dsCurve, curve.shape[0])
	}
	if raw.Voltage, err = c.readFloats(g.name, curve, 0); err != nil {
		return nil, err
	}
	if raw.Current, err = c.readFloats(g.name, curve, 1); err != nil {
		return nil, err
	}

	if _, ok := g.datasets[dsIVTime]; ok {
		view, err := c.pulseView(g, schema)
		if err != nil {
			return nil, err
		}
		raw.Pulses = view
	}

	if _, ok := g.datasets[dsLeakEvol]; ok {
		d, err := checkDataset(g, dsLeakEvol, dtypeFloat64, 1)
		if err != nil {
			return nil, err
		}
		if raw.LeakEvol, err = c.readFloats(g.name, d, 0); err != nil {
			return nil, err
		}
	}

	if _, ok := g.datasets[dsIVLeak]; ok {
		if raw.LeakIVs, err = c.readIVLeak(g); err != nil {
			return nil, err
		}
	}

	d, err := tlp.NewDroplet(raw)
	if err != nil {
		return nil, &StructureError{Group: g.name, Reason: "invalid record", Err: err}
	}
	return d, nil
}

func (c *Container) readIVLeak(g *group) ([]tlp.IVCurve, error) {
	data, err := checkDataset(g, dsIVLeak, dtypeFloat64, 2)
	if err != nil {
		return nil, err
	}
	if data.shape[0] != 2 {
		return nil, structErr(g.name, "%s has %d rows, want 2", dsIVLeak, data.shape[0])
	}
	lensDS, err := checkDataset(g, dsIVLeakLen, dtypeInt64, 1)
	if err != nil {
		return nil, err
	}
	raw, err := c.readRow(g.name, lensDS, 0)
	if err != nil {
		return nil, err
	}
	lens := decodeInts(raw)
	var total int64
	for _, n := range lens {
		if n < 0 {
			return nil, structErr(g.name, "negative leakage curve length %d", n)
		}
		total += n
	}
	if total != int64(data.shape[1]) {
		return nil, structErr(g.name, "leakage curve lengths sum to %d, %s holds %d", total, dsIVLeak, data.shape[1])
	}
	v, err := c.readFloats(g.name, data, 0)
	if err != nil {
		return nil, err
	}
	cur, err := c.readFloats(g.name, data, 1)
	if err != nil {
		return nil, err
	}
	ivs := make([]tlp.IVCurve, len(lens))
	var at int64
	for k, n := range lens {
		ivs[k] = tlp.IVCurve{Voltage: v[at : at+n], Current: cur[at : at+n]}
		at += n
	}
	return ivs, nil
}

func stringAttrOf(g *group, key string) (string, error) {
	a, ok := g.attrs[key]
	if !ok {
		return "", structErr(g.name, "missing attribute %s", key)
	}
	if a.kind != attrString {
		return "", structErr(g.name, "attribute %s is not a string", key)
	}
	return a.s, nil
}

func schemaOf(g *group) (int, error) {
	a, ok := g.attrs[attrSchema]
	if !ok {
		return schemaLegacy, nil
	}
	if a.kind != attrInt {
		return 0, structErr(g.name, "attribute %s is not an integer", attrSchema)
	}
	switch a.i {
	case schemaLegacy, schemaCurrent:
		return int(a.i), nil
	default:
		return 0, structErr(g.name, "unsupported schema revision %d", a.i)
	}
}

// checkDataset returns the named dataset after checking its type, rank and
// chunk table.
func checkDataset(g *group, name string, t dtype, rank int) (*dataset, error) {
	d, ok := g.datasets[name]
	if !ok {
		return nil, structErr(g.name, "missing dataset %s", name)
	}
	if d.dtype != t {
		return nil, structErr(g.name, "dataset %s is %s, want %s", name, d.dtype, t)
	}
	if d.rank() != rank {
		return nil, structErr(g.name, "dataset %s has rank %d, want %d", name, d.rank(), rank)
	}
	for _, s := range d.shape {
		if s < 0 || s > math.MaxInt32 {
			return nil, structErr(g.name, "dataset %s has shape %v", name, d.shape)
		}
	}
	if !d.codec.valid() {
		return nil, structErr(g.name, "dataset %s uses unknown compression %d", name, d.codec)
	}
	if len(d.chunks) != d.rows() {
		return nil, structErr(g.name, "dataset %s has %d chunks, want %d", name, len(d.chunks), d.rows())
	}
	for i, ch := range d.chunks {
		if ch.count != d.rowLen() {
			return nil, structErr(g.name, "dataset %s chunk %d holds %d values, want %d", name, i, ch.count, d.rowLen())
		}
	}
	return d, nil
}

// readRow reads and inflates chunk r of d.
func (c *Container) readRow(groupName string, d *dataset, r int) ([]byte, error) {
	ref := d.chunks[r]
	if ref.count == 0 {
		return nil, nil
	}
	info, err := c.f.Stat()
	if err != nil {
		return nil, err
	}
	fh, err := readFrameHeader(c.f, ref.offset, info.Size())
	if errors.Is(err, errTruncated) {
		return nil, &StructureError{Group: groupName, Reason: fmt.Sprintf("dataset %s chunk %d", d.name, r), Err: err}
	}
	if err != nil {
		return nil, err
	}
	if fh.kind != frameChunk || fh.length != ref.size {
		return nil, structErr(groupName, "dataset %s chunk %d points at a %s frame of %d bytes", d.name, r, fh.kind, fh.length)
	}
	payload, err := readFramePayload(c.f, ref.offset, fh)
	if err != nil {
		return nil, &StructureError{Group: groupName, Reason: fmt.Sprintf("dataset %s chunk %d", d.name, r), Err: err}
	}
	data, err := decompressData(payload, d.codec, 8*ref.count)
	if err != nil {
		return nil, &StructureError{Group: groupName, Reason: fmt.Sprintf("dataset %s chunk %d", d.name, r), Err: err}
	}
	return data, nil
}

func (c *Container) readFloats(groupName string, d *dataset, r int) ([]float64, error) {
	b, err := c.readRow(groupName, d, r)
	if err != nil {
		return nil, err
	}
	return decodeFloats(b), nil
}

// RecordInfo describes a stored record without loading its datasets.
type RecordInfo struct {
	Name   string
	Schema int
	// UUID is uuid.Nil for legacy records.
	UUID     uuid.UUID
	Datasets []string
}

// Info returns the description of the record stored under name.
func (c *Container) Info(name string) (RecordInfo, error) {
	if c.closed {
		return RecordInfo{}, ErrClosed
	}
	g, ok := c.groups[name]
	if !ok {
		return RecordInfo{}, fmt.Errorf("%w: %q", ErrRecordNotFound, name)
	}
	schema, err := schemaOf(g)
	if err != nil {
		return RecordInfo{}, err
	}
	info := RecordInfo{Name: name, Schema: schema}
	if a, ok := g.attrs[attrUUID]; ok && a.kind == attrString {
		if info.UUID, err = uuid.Parse(a.s); err != nil {
			return RecordInfo{}, &StructureError{Group: name, Reason: "malformed uuid", Err: err}
		}
	}
	for n := range g.datasets {
		info.Datasets = append(info.Datasets, n)
	}
	sort.Strings(info.Datasets)
	return info, nil
}
