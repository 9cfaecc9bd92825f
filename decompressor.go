package blockpress

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DeStatus is the status of a decompression step.
type DeStatus int

const (
	// DeNeedInput means all given input was consumed but the stream is
	// incomplete.
	DeNeedInput DeStatus = iota
	// DeNeedOutput means the output view filled up before all produced
	// output could be delivered; drain with TakeOutput or repeat the
	// call with a fresh view.
	DeNeedOutput
	// DeFinished means the stream terminated cleanly.  The session must
	// be discarded afterwards.
	DeFinished
)

func (s DeStatus) String() string {
	switch s {
	case DeNeedInput:
		return "need-input"
	case DeNeedOutput:
		return "need-output"
	case DeFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Decompressor is an incremental decompression session over exactly one
// decoder engine instance.
//
// A session must not be used from multiple goroutines at once and a
// closed session must not be reused.
type Decompressor interface {
	// Decompress consumes input from in and writes decoded output into
	// out, advancing both views in place.  The returned status is only
	// meaningful when the error is nil; errors are terminal for the
	// session.
	Decompress(in *ReadBuffer, out *WriteBuffer) (DeStatus, error)

	// TakeOutput removes and returns up to limit bytes the engine
	// produced but could not place into an output view.  limit == 0
	// returns nil immediately, limit < 0 means no limit.  The returned
	// slice is only valid until the next call on the session.
	TakeOutput(limit int) []byte

	// Close releases the engine instance.  Safe to call more than once.
	Close() error
}

type decompressorImpl struct {
	engine DecoderEngine
	logger *zap.Logger

	totalIn  *atomic.Int64
	totalOut *atomic.Int64

	once *sync.Once
}

var _ Decompressor = (*decompressorImpl)(nil)

// NewDecompressor creates a decompression session with a fresh default
// engine unless one is injected through WithDEngine.
func NewDecompressor(opts ...dOption) (Decompressor, error) {
	d := decompressorImpl{
		logger:   zap.NewNop(),
		totalIn:  atomic.NewInt64(0),
		totalOut: atomic.NewInt64(0),
		once:     &sync.Once{},
	}
	for _, o := range opts {
		if err := o(&d); err != nil {
			return nil, err
		}
	}
	if d.engine == nil {
		d.engine = NewDecoderEngine()
	}
	return &d, nil
}

func (d *decompressorImpl) Decompress(in *ReadBuffer, out *WriteBuffer) (DeStatus, error) {
	inBefore, outBefore := in.Len(), out.Len()

	result := d.engine.DecompressStream(in, out)

	d.totalIn.Add(int64(inBefore - in.Len()))
	d.totalOut.Add(int64(out.Len() - outBefore))

	var status DeStatus
	switch result {
	case DecodeResultSuccess:
		status = DeFinished
	case DecodeResultNeedsMoreInput:
		status = DeNeedInput
	case DecodeResultNeedsMoreOutput:
		status = DeNeedOutput
	case DecodeResultError:
		return 0, ErrCodec
	default:
		panic(fmt.Sprintf("unknown decoder result code %d", result))
	}

	d.logger.Debug("decompress step",
		zap.Stringer("status", status),
		zap.Int("consumed", inBefore-in.Len()),
		zap.Int("written", out.Len()-outBefore))
	return status, nil
}

func (d *decompressorImpl) TakeOutput(limit int) []byte {
	p := d.engine.TakeOutput(limit)
	d.totalOut.Add(int64(len(p)))
	return p
}

func (d *decompressorImpl) Close() (err error) {
	d.once.Do(func() {
		d.logger.Debug("closing decompressor",
			zap.Int64("totalIn", d.totalIn.Load()),
			zap.Int64("totalOut", d.totalOut.Load()))
		err = multierr.Append(err, d.engine.Close())
	})
	return
}
