// Package trace decodes the scheduler trace stream sent by the firmware
// uplink and renders it for people.
package trace

import (
	"errors"
	"io"

	"claw/protocol"
)

// Stats counts what the decoder has seen
type Stats struct {
	Blocks  int // Valid blocks
	Events  int // Events decoded
	Resyncs int // Times garbage was skipped up to a sync byte
	Lost    int // Blocks missing according to the sequence numbers
	Corrupt int // Valid blocks whose payload did not decode
	Bytes   int // Bytes read from the stream
}

// Decoder reassembles blocks from a byte stream that may start mid-block
// and may drop bytes, and yields the events inside them
type Decoder struct {
	r       io.Reader
	fifo    *protocol.FifoBuffer
	chunk   [256]byte
	pending []protocol.TraceEvent
	nextSeq uint8
	synced  bool
	stats   Stats
}

// NewDecoder creates a decoder reading from r
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:    r,
		fifo: protocol.NewFifoBuffer(4 * protocol.BlockMax),
	}
}

// Stats returns the counters so far
func (d *Decoder) Stats() Stats {
	return d.stats
}

// Next returns the next event. It returns io.EOF once the reader is
// exhausted; a partial block left at the end is discarded.
func (d *Decoder) Next() (protocol.TraceEvent, error) {
	for len(d.pending) == 0 {
		if err := d.fill(); err != nil {
			return protocol.TraceEvent{}, err
		}
	}
	e := d.pending[0]
	d.pending = d.pending[1:]
	return e, nil
}

// fill decodes one buffered block, reading from the stream until one is
// complete
func (d *Decoder) fill() error {
	for {
		if data := d.fifo.Data(); len(data) > 0 {
			seq, payload, n, err := protocol.ParseBlock(data)
			switch {
			case err == nil:
				d.accept(seq, payload)
				d.fifo.Pop(n)
				return nil
			case errors.Is(err, protocol.ErrBlockShort):
				// Wait for the rest
			default:
				d.resync(data)
				continue
			}
		}

		n, err := d.r.Read(d.chunk[:min(len(d.chunk), d.fifo.Free())])
		d.stats.Bytes += n
		if n > 0 {
			d.fifo.Write(d.chunk[:n])
			continue
		}
		if err != nil {
			return err
		}
	}
}

// resync drops bytes up to and including the next sync byte
func (d *Decoder) resync(data []byte) {
	d.stats.Resyncs++
	d.synced = false
	for i := 1; i < len(data); i++ {
		if data[i] == protocol.BlockSync {
			d.fifo.Pop(i + 1)
			return
		}
	}
	d.fifo.Pop(len(data))
}

func (d *Decoder) accept(seq uint8, payload []byte) {
	d.stats.Blocks++
	if d.synced && seq != d.nextSeq {
		d.stats.Lost += int((seq - d.nextSeq) & protocol.BlockSeqMask)
	}
	d.nextSeq = (seq + 1) & protocol.BlockSeqMask
	d.synced = true

	var events []protocol.TraceEvent
	err := protocol.DecodeTracePayload(payload, func(e protocol.TraceEvent) {
		events = append(events, e)
	})
	if err != nil {
		d.stats.Corrupt++
		return
	}
	d.stats.Events += len(events)
	d.pending = append(d.pending, events...)
}
