package storage

import (
	"fmt"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// Group frame wire layout (protobuf encoding, no generated code):
//
//	Group   { 1: name string; 2: repeated Attr; 3: repeated Dataset }
//	Attr    { 1: key string; 2: str string | 3: num fixed64 | 4: int zigzag }
//	Dataset { 1: name string; 2: dtype; 3: packed shape; 4: codec; 5: repeated Chunk }
//	Chunk   { 1: offset; 2: stored length; 3: value count }
const (
	fieldGroupName    protowire.Number = 1
	fieldGroupAttr    protowire.Number = 2
	fieldGroupDataset protowire.Number = 3

	fieldAttrKey protowire.Number = 1
	fieldAttrStr protowire.Number = 2
	fieldAttrNum protowire.Number = 3
	fieldAttrInt protowire.Number = 4

	fieldDatasetName  protowire.Number = 1
	fieldDatasetDtype protowire.Number = 2
	fieldDatasetShape protowire.Number = 3
	fieldDatasetCodec protowire.Number = 4
	fieldDatasetChunk protowire.Number = 5

	fieldChunkOffset protowire.Number = 1
	fieldChunkSize   protowire.Number = 2
	fieldChunkCount  protowire.Number = 3
)

type attrKind uint8

const (
	attrString attrKind = iota + 1
	attrFloat
	attrInt
)

type attrValue struct {
	kind attrKind
	s    string
	f    float64
	i    int64
}

func stringAttr(s string) attrValue { return attrValue{kind: attrString, s: s} }
func floatAttr(f float64) attrValue { return attrValue{kind: attrFloat, f: f} }
func intAttr(i int64) attrValue     { return attrValue{kind: attrInt, i: i} }

type dtype uint8

const (
	dtypeFloat64 dtype = 1
	dtypeInt64   dtype = 2
)

func (t dtype) String() string {
	switch t {
	case dtypeFloat64:
		return "float64"
	case dtypeInt64:
		return "int64"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(t))
	}
}

// chunkRef locates one chunk frame. A chunk of zero values has no frame.
type chunkRef struct {
	offset int64
	size   uint32
	count  int
}

// dataset is a row-major array split into chunks along its last axis: one
// chunk per row, or a single chunk for rank 1.
type dataset struct {
	name   string
	dtype  dtype
	shape  []int
	codec  Compression
	chunks []chunkRef
}

func (d *dataset) rank() int { return len(d.shape) }

// rowLen is the number of values per chunk.
func (d *dataset) rowLen() int {
	if len(d.shape) == 0 {
		return 0
	}
	return d.shape[len(d.shape)-1]
}

// rows is the number of chunks the shape calls for.
func (d *dataset) rows() int {
	n := 1
	for _, s := range d.shape[:max(len(d.shape)-1, 0)] {
		n *= s
	}
	return n
}

// group is the decoded content of a group frame.
type group struct {
	name     string
	attrs    map[string]attrValue
	datasets map[string]*dataset
	// frame offset, used to order groups
	offset int64
}

func newGroup(name string) *group {
	return &group{
		name:     name,
		attrs:    make(map[string]attrValue),
		datasets: make(map[string]*dataset),
	}
}

func (g *group) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldGroupName, protowire.BytesType)
	b = protowire.AppendString(b, g.name)

	keys := make([]string, 0, len(g.attrs))
	for k := range g.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b = protowire.AppendTag(b, fieldGroupAttr, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalAttr(k, g.attrs[k]))
	}

	names := make([]string, 0, len(g.datasets))
	for n := range g.datasets {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		b = protowire.AppendTag(b, fieldGroupDataset, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalDataset(g.datasets[n]))
	}
	return b
}

func marshalAttr(key string, v attrValue) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldAttrKey, protowire.BytesType)
	b = protowire.AppendString(b, key)
	switch v.kind {
	case attrString:
		b = protowire.AppendTag(b, fieldAttrStr, protowire.BytesType)
		b = protowire.AppendString(b, v.s)
	case attrFloat:
		b = protowire.AppendTag(b, fieldAttrNum, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(v.f))
	case attrInt:
		b = protowire.AppendTag(b, fieldAttrInt, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(v.i))
	}
	return b
}

func marshalDataset(d *dataset) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldDatasetName, protowire.BytesType)
	b = protowire.AppendString(b, d.name)
	b = protowire.AppendTag(b, fieldDatasetDtype, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(d.dtype))

	var shape []byte
	for _, s := range d.shape {
		shape = protowire.AppendVarint(shape, uint64(s))
	}
	b = protowire.AppendTag(b, fieldDatasetShape, protowire.BytesType)
	b = protowire.AppendBytes(b, shape)

	b = protowire.AppendTag(b, fieldDatasetCodec, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(d.codec))

	for _, c := range d.chunks {
		var cb []byte
		cb = protowire.AppendTag(cb, fieldChunkOffset, protowire.VarintType)
		cb = protowire.AppendVarint(cb, uint64(c.offset))
		cb = protowire.AppendTag(cb, fieldChunkSize, protowire.VarintType)
		cb = protowire.AppendVarint(cb, uint64(c.size))
		cb = protowire.AppendTag(cb, fieldChunkCount, protowire.VarintType)
		cb = protowire.AppendVarint(cb, uint64(c.count))
		b = protowire.AppendTag(b, fieldDatasetChunk, protowire.BytesType)
		b = protowire.AppendBytes(b, cb)
	}
	return b
}

// wireField is one decoded field of a message.
type wireField struct {
	num   protowire.Number
	typ   protowire.Type
	bytes []byte
	u     uint64
}

// fields splits a message into its fields.
func fields(b []byte) ([]wireField, error) {
	var out []wireField
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		f := wireField{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.u, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		out = append(out, f)
	}
	return out, nil
}

func unmarshalGroup(b []byte) (*group, error) {
	fs, err := fields(b)
	if err != nil {
		return nil, fmt.Errorf("storage: group frame: %w", err)
	}
	g := newGroup("")
	for _, f := range fs {
		switch {
		case f.num == fieldGroupName && f.typ == protowire.BytesType:
			g.name = string(f.bytes)
		case f.num == fieldGroupAttr && f.typ == protowire.BytesType:
			k, v, err := unmarshalAttr(f.bytes)
			if err != nil {
				return nil, err
			}
			g.attrs[k] = v
		case f.num == fieldGroupDataset && f.typ == protowire.BytesType:
			d, err := unmarshalDataset(f.bytes)
			if err != nil {
				return nil, err
			}
			g.datasets[d.name] = d
		}
	}
	if g.name == "" {
		return nil, fmt.Errorf("storage: group frame has no name")
	}
	return g, nil
}

func unmarshalAttr(b []byte) (string, attrValue, error) {
	fs, err := fields(b)
	if err != nil {
		return "", attrValue{}, fmt.Errorf("storage: attribute: %w", err)
	}
	var key string
	var v attrValue
	for _, f := range fs {
		switch {
		case f.num == fieldAttrKey && f.typ == protowire.BytesType:
			key = string(f.bytes)
		case f.num == fieldAttrStr && f.typ == protowire.BytesType:
			v = stringAttr(string(f.bytes))
		case f.num == fieldAttrNum && f.typ == protowire.Fixed64Type:
			v = floatAttr(math.Float64frombits(f.u))
		case f.num == fieldAttrInt && f.typ == protowire.VarintType:
			v = intAttr(protowire.DecodeZigZag(f.u))
		}
	}
	return key, v, nil
}

func unmarshalDataset(b []byte) (*dataset, error) {
	fs, err := fields(b)
	if err != nil {
		return nil, fmt.Errorf("storage: dataset: %w", err)
	}
	d := &dataset{}
	for _, f := range fs {
		switch {
		case f.num == fieldDatasetName && f.typ == protowire.BytesType:
			d.name = string(f.bytes)
		case f.num == fieldDatasetDtype && f.typ == protowire.VarintType:
			d.dtype = dtype(f.u)
		case f.num == fieldDatasetShape && f.typ == protowire.BytesType:
			for rest := f.bytes; len(rest) > 0; {
				v, n := protowire.ConsumeVarint(rest)
				if n < 0 {
					return nil, fmt.Errorf("storage: dataset %q shape: %w", d.name, protowire.ParseError(n))
				}
				d.shape = append(d.shape, int(v))
				rest = rest[n:]
			}
		case f.num == fieldDatasetCodec && f.typ == protowire.VarintType:
			d.codec = Compression(f.u)
		case f.num == fieldDatasetChunk && f.typ == protowire.BytesType:
			c, err := unmarshalChunk(f.bytes)
			if err != nil {
				return nil, fmt.Errorf("storage: dataset %q: %w", d.name, err)
			}
			d.chunks = append(d.chunks, c)
		}
	}
	return d, nil
}

func unmarshalChunk(b []byte) (chunkRef, error) {
	fs, err := fields(b)
	if err != nil {
		return chunkRef{}, err
	}
	var c chunkRef
	for _, f := range fs {
		if f.typ != protowire.VarintType {
			continue
		}
		switch f.num {
		case fieldChunkOffset:
			c.offset = int64(f.u)
		case fieldChunkSize:
			c.size = uint32(f.u)
		case fieldChunkCount:
			c.count = int(f.u)
		}
	}
	return c, nil
}
