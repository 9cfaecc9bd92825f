package blockpress

import (
	"bytes"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

var _ DecoderEngine = (*blockDecoder)(nil)

type decodeState int

const (
	decodeStateStreamHeader decodeState = iota
	decodeStateBlockHeader
	decodeStatePayload
	decodeStateDone
	decodeStateFailed
)

// blockDecoder is the default DecoderEngine: an incremental state machine
// over the block stream that tolerates arbitrary input splits.
type blockDecoder struct {
	state decodeState

	// scratch stages the bytes of the wire element currently being
	// parsed; want is the full size of that element.
	scratch []byte
	want    int

	header streamHeader
	block  blockHeader

	zdec *zstd.Decoder

	// staged holds decoded content awaiting delivery.
	staged bytes.Buffer
}

// NewDecoderEngine creates the default decoder engine.
func NewDecoderEngine() DecoderEngine {
	return &blockDecoder{want: streamHeaderSize}
}

func (d *blockDecoder) DecompressStream(in *ReadBuffer, out *WriteBuffer) DecodeResult {
	if d.state == decodeStateFailed {
		return DecodeResultError
	}
	for {
		d.deliver(out)
		if d.state == decodeStateDone {
			if d.staged.Len() == 0 {
				return DecodeResultSuccess
			}
			return DecodeResultNeedsMoreOutput
		}
		if d.staged.Len() > 0 {
			// The output view is full; stop before buffering more.
			return DecodeResultNeedsMoreOutput
		}
		if !d.fill(in) {
			return DecodeResultNeedsMoreInput
		}
		if err := d.step(); err != nil {
			d.state = decodeStateFailed
			d.scratch = nil
			d.staged.Reset()
			return DecodeResultError
		}
	}
}

// fill copies bytes from in into scratch until it holds the want bytes of
// the element being parsed.  It reports whether the element is complete.
func (d *blockDecoder) fill(in *ReadBuffer) bool {
	missing := d.want - len(d.scratch)
	if missing <= 0 {
		return true
	}
	n := in.Len()
	if n > missing {
		n = missing
	}
	if n > 0 {
		d.scratch = append(d.scratch, in.Bytes()[:n]...)
		in.advance(n)
	}
	return len(d.scratch) == d.want
}

func (d *blockDecoder) step() error {
	defer func() {
		d.scratch = d.scratch[:0]
	}()
	switch d.state {
	case decodeStateStreamHeader:
		if err := d.header.UnmarshalBinary(d.scratch); err != nil {
			return err
		}
		d.state = decodeStateBlockHeader
		d.want = blockHeaderSize
	case decodeStateBlockHeader:
		if err := d.block.UnmarshalBinary(d.scratch); err != nil {
			return err
		}
		d.state = decodeStatePayload
		d.want = int(d.block.CompressedSize)
	case decodeStatePayload:
		if err := d.consumePayload(); err != nil {
			return err
		}
		if d.block.Kind == blockKindEnd {
			d.state = decodeStateDone
			d.want = 0
		} else {
			d.state = decodeStateBlockHeader
			d.want = blockHeaderSize
		}
	default:
		return fmt.Errorf("decode step in state %d", d.state)
	}
	return nil
}

func (d *blockDecoder) consumePayload() error {
	switch d.block.Kind {
	case blockKindEnd:
		return nil
	case blockKindMetadata:
		// Metadata is validated and skipped.
		checksum := uint32((xxhash.Sum64(d.scratch) << 32) >> 32)
		if checksum != d.block.Checksum {
			return fmt.Errorf("metadata checksum mismatch %d vs %d", checksum, d.block.Checksum)
		}
		return nil
	}

	if d.block.Codec == codecZstd && d.zdec == nil {
		var err error
		d.zdec, err = zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(maxBlockContent),
		)
		if err != nil {
			return err
		}
	}
	content, err := decompressContent(d.block.Codec, d.zdec, d.scratch, int(d.block.ContentSize))
	if err != nil {
		return err
	}
	if len(content) != int(d.block.ContentSize) {
		return fmt.Errorf("content length mismatch %d vs %d", len(content), d.block.ContentSize)
	}
	checksum := uint32((xxhash.Sum64(content) << 32) >> 32)
	if checksum != d.block.Checksum {
		return fmt.Errorf("content checksum mismatch %d vs %d", checksum, d.block.Checksum)
	}
	d.staged.Write(content)
	return nil
}

// deliver moves staged output into the caller's view.
func (d *blockDecoder) deliver(out *WriteBuffer) {
	n := d.staged.Len()
	if free := out.Free(); n > free {
		n = free
	}
	if n > 0 {
		out.write(d.staged.Next(n))
	}
}

func (d *blockDecoder) TakeOutput(limit int) []byte {
	if limit == 0 {
		return nil
	}
	n := d.staged.Len()
	if limit > 0 && limit < n {
		n = limit
	}
	if n == 0 {
		return nil
	}
	return d.staged.Next(n)
}

func (d *blockDecoder) Close() error {
	d.scratch = nil
	d.staged.Reset()
	if d.zdec != nil {
		d.zdec.Close()
	}
	return nil
}

// decoderDecompress is the engine's whole-buffer entry point backing
// DecompressBuffer.  It reports false unless the stream decodes cleanly
// and fits out.
func decoderDecompress(in *ReadBuffer, out *WriteBuffer) bool {
	d := NewDecoderEngine()
	defer func() {
		_ = d.Close()
	}()
	return d.DecompressStream(in, out) == DecodeResultSuccess
}
