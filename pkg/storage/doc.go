// Package storage keeps measurement records in an append-only OEF file.
//
// An OEF file is a 16-byte header followed by frames. Chunk frames hold
// compressed little-endian arrays; a group frame names a record, carries
// its attributes and lists the chunks of each of its datasets. A record
// exists once its group frame is on disk, so an interrupted append leaves
// only an incomplete tail. The tail is ignored when the file is opened and
// cut off before the next append.
//
// Each record stores:
//
//	attributes  device_name, tester_name, original_file_path, schema, uuid, delta_t
//	tlp_curve   2 x n          voltage and current of the TLP curve
//	IVTime      N x 2 x L      transient pulses, one chunk per pulse channel
//	valim       N              supply voltage of each pulse
//	offsets_t   N              time of the first sample of each pulse
//	leak_evol   n              leakage evolution
//	iv_leak     2 x sum(len)   leakage sweeps, concatenated
//	iv_leak_len k              length of each sweep
//
// Records written by older releases (schema revision 1) store IVTime as
// 2 x N x L and have no offsets_t; they are read transparently.
//
// Usage:
//
//	c, err := storage.Create("bench.oef", storage.WithCompression(storage.CompressionZstd))
//	name, err := c.Append("", raw)
//	err = c.Close()
//
//	c, err = storage.Open("bench.oef", storage.ReadOnly)
//	d, err := c.Read(name)
//	v, err := d.Pulses().Pulse(0, pulses.VoltageChannel)
//
// A Container must be closed to persist its appends. Only one handle may
// write a file at a time.
package storage
