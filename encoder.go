package blockpress

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

var _ EncoderEngine = (*blockEncoder)(nil)

// blockEncoder is the default EncoderEngine.  It cuts the stream into
// blocks of 1<<blockBits bytes and compresses them one at a time with a
// one-shot backend codec, framing each with a blockHeader.
type blockEncoder struct {
	mode       uint32
	quality    uint32
	windowBits uint32
	blockBits  uint32

	started  bool
	finished bool
	failed   bool
	emitting bool

	blockSize int
	codec     uint8
	zenc      *zstd.Encoder

	// pending accumulates content until a block boundary; queue holds
	// framed output awaiting delivery.
	pending bytes.Buffer
	queue   bytes.Buffer
}

// NewEncoderEngine creates the default encoder engine.  Parameters can be
// adjusted with SetParameter until the first CompressStream call, which
// freezes them and emits the stream header.
func NewEncoderEngine() EncoderEngine {
	return &blockEncoder{
		quality:    defaultQuality,
		windowBits: defaultWindowBits,
	}
}

func (e *blockEncoder) SetParameter(param EncoderParam, value uint32) bool {
	if e.started {
		return false
	}
	switch param {
	case ParamMode:
		if value > uint32(ModeFont) {
			return false
		}
		e.mode = value
	case ParamQuality:
		if value > maxQuality {
			return false
		}
		e.quality = value
	case ParamWindowBits:
		if value < minWindowBits || value > maxWindowBits {
			return false
		}
		e.windowBits = value
	case ParamBlockBits:
		if value != 0 && (value < minBlockBits || value > maxBlockBits) {
			return false
		}
		e.blockBits = value
	default:
		return false
	}
	return true
}

// effectiveBlockBits resolves blockBits 0 from the quality: fast
// qualities use the smallest block, high qualities follow the window.
func (e *blockEncoder) effectiveBlockBits() uint32 {
	if e.blockBits != 0 {
		return e.blockBits
	}
	if e.quality >= 9 {
		bits := e.windowBits
		if bits < minBlockBits {
			bits = minBlockBits
		}
		if bits > 21 {
			bits = 21
		}
		return bits
	}
	return minBlockBits
}

func (e *blockEncoder) start() error {
	bits := e.effectiveBlockBits()
	e.blockSize = 1 << bits
	e.codec = codecForQuality(e.quality)
	if e.codec == codecZstd {
		var err error
		e.zenc, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstdLevelForQuality(e.quality)),
			zstd.WithWindowSize(1<<e.windowBits),
			zstd.WithEncoderConcurrency(1),
		)
		if err != nil {
			return err
		}
	}
	hdr := streamHeader{
		Mode:       uint8(e.mode),
		WindowBits: uint8(e.windowBits),
		BlockBits:  uint8(bits),
	}
	var buf [streamHeaderSize]byte
	hdr.marshalBinaryInline(buf[:])
	e.queue.Write(buf[:])
	e.started = true
	return nil
}

func (e *blockEncoder) CompressStream(op CompressOp, in *ReadBuffer, out *WriteBuffer) bool {
	if e.failed {
		return false
	}
	if !e.started {
		if err := e.start(); err != nil {
			e.failed = true
			return false
		}
	}
	if e.finished {
		// Only draining remains after the end block.
		if in.Len() > 0 {
			e.failed = true
			return false
		}
		e.deliver(out)
		return true
	}

	switch op {
	case OpProcess, OpFlush, OpFinish:
		e.emitting = false
		e.pending.Write(in.Bytes())
		in.advance(in.Len())
		for e.pending.Len() >= e.blockSize {
			if err := e.cutBlock(e.blockSize); err != nil {
				e.failed = true
				return false
			}
		}
		if op != OpProcess && e.pending.Len() > 0 {
			if err := e.cutBlock(e.pending.Len()); err != nil {
				e.failed = true
				return false
			}
		}
		if op == OpFinish {
			e.writeBlockHeader(blockHeader{Kind: blockKindEnd, Codec: codecRaw})
			e.finished = true
		}
	case OpEmitMetadata:
		// A repeat of an in-progress emission frames nothing new; the
		// block went on the queue when the emission began.
		if !e.emitting {
			if in.Len() > maxMetadataSize {
				e.failed = true
				return false
			}
			// Flush pending data first so block order follows call order.
			if e.pending.Len() > 0 {
				if err := e.cutBlock(e.pending.Len()); err != nil {
					e.failed = true
					return false
				}
			}
			e.writeMetadata(in.Bytes())
			in.advance(in.Len())
			e.emitting = true
		}
	default:
		e.failed = true
		return false
	}

	e.deliver(out)
	if e.queue.Len() == 0 {
		// An emission ends once its block has fully drained.
		e.emitting = false
	}
	return true
}

// cutBlock removes n bytes from pending and frames them as one data block.
func (e *blockEncoder) cutBlock(n int) error {
	content := e.pending.Next(n)
	payload, used, err := compressContent(e.codec, e.zenc, content)
	if err != nil {
		return err
	}
	e.writeBlockHeader(blockHeader{
		Kind:           blockKindData,
		Codec:          used,
		CompressedSize: uint32(len(payload)),
		ContentSize:    uint32(len(content)),
		Checksum:       uint32((xxhash.Sum64(content) << 32) >> 32),
	})
	e.queue.Write(payload)
	return nil
}

func (e *blockEncoder) writeMetadata(p []byte) {
	e.writeBlockHeader(blockHeader{
		Kind:           blockKindMetadata,
		Codec:          codecRaw,
		CompressedSize: uint32(len(p)),
		ContentSize:    uint32(len(p)),
		Checksum:       uint32((xxhash.Sum64(p) << 32) >> 32),
	})
	e.queue.Write(p)
}

func (e *blockEncoder) writeBlockHeader(hdr blockHeader) {
	var buf [blockHeaderSize]byte
	hdr.marshalBinaryInline(buf[:])
	e.queue.Write(buf[:])
}

// deliver moves queued output into the caller's view.
func (e *blockEncoder) deliver(out *WriteBuffer) {
	n := e.queue.Len()
	if free := out.Free(); n > free {
		n = free
	}
	if n > 0 {
		out.write(e.queue.Next(n))
	}
}

func (e *blockEncoder) HasMoreOutput() bool {
	return e.queue.Len() > 0
}

func (e *blockEncoder) IsFinished() bool {
	return e.finished && e.queue.Len() == 0
}

func (e *blockEncoder) TakeOutput(limit int) []byte {
	if limit == 0 {
		return nil
	}
	n := e.queue.Len()
	if limit > 0 && limit < n {
		n = limit
	}
	if n == 0 {
		return nil
	}
	return e.queue.Next(n)
}

func (e *blockEncoder) Close() error {
	e.pending.Reset()
	e.queue.Reset()
	if e.zenc != nil {
		return e.zenc.Close()
	}
	return nil
}

// encoderCompress is the engine's whole-buffer entry point backing
// CompressBuffer.  It reports false when the engine fails or out cannot
// hold the complete stream.
func encoderCompress(params *CompressParams, in *ReadBuffer, out *WriteBuffer) bool {
	e := NewEncoderEngine()
	defer func() {
		_ = e.Close()
	}()

	e.SetParameter(ParamMode, uint32(params.Mode()))
	e.SetParameter(ParamQuality, params.Quality())
	e.SetParameter(ParamWindowBits, params.WindowBits())
	e.SetParameter(ParamBlockBits, params.BlockBits())

	if !e.CompressStream(OpFinish, in, out) {
		return false
	}
	return e.IsFinished()
}
