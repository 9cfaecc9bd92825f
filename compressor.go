package blockpress

import (
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// CoStatus is the status of a compression step.
type CoStatus int

const (
	// CoUnfinished means the operation has not completed: input remains,
	// output is still buffered inside the engine, or the stream is not
	// yet terminated.  The caller must repeat the same operation.
	CoUnfinished CoStatus = iota
	// CoFinished means the operation completed.
	CoFinished
)

func (s CoStatus) String() string {
	switch s {
	case CoUnfinished:
		return "unfinished"
	case CoFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Compressor is an incremental compression session over exactly one
// encoder engine instance.
//
// A session must not be used from multiple goroutines at once and a
// closed session must not be reused.
type Compressor interface {
	// SetParams applies the parameter set to the engine, one parameter at
	// a time.  Values the engine rejects, and any parameters applied
	// after the first byte was processed, are ignored; call SetParams
	// before the first Compress.
	SetParams(params *CompressParams)

	// Compress consumes input from in and writes produced output into
	// out, advancing both views in place.  op selects the operation;
	// after a non-OpProcess operation returned CoUnfinished, the caller
	// must repeat the same operation with the same (now advanced) input
	// view until CoFinished.  Switching operations mid-sequence is
	// undefined.
	//
	// OpProcess always returns CoFinished: loop on in.Len() to consume
	// everything.  The returned status is only meaningful when the error
	// is nil.
	Compress(op CompressOp, in *ReadBuffer, out *WriteBuffer) (CoStatus, error)

	// TakeOutput removes and returns up to limit bytes the engine
	// produced but could not place into an output view.  limit == 0
	// returns nil immediately, limit < 0 means no limit.  The returned
	// slice is only valid until the next call on the session.
	TakeOutput(limit int) []byte

	// Close releases the engine instance.  Safe to call more than once.
	Close() error
}

type compressorImpl struct {
	engine EncoderEngine
	logger *zap.Logger

	totalIn  *atomic.Int64
	totalOut *atomic.Int64

	once *sync.Once
}

var _ Compressor = (*compressorImpl)(nil)

// NewCompressor creates a compression session with a fresh default engine
// unless one is injected through WithCEngine.
func NewCompressor(opts ...cOption) (Compressor, error) {
	c := compressorImpl{
		logger:   zap.NewNop(),
		totalIn:  atomic.NewInt64(0),
		totalOut: atomic.NewInt64(0),
		once:     &sync.Once{},
	}
	for _, o := range opts {
		if err := o(&c); err != nil {
			return nil, err
		}
	}
	if c.engine == nil {
		c.engine = NewEncoderEngine()
	}
	return &c, nil
}

func (c *compressorImpl) SetParams(params *CompressParams) {
	c.logger.Debug("applying parameters", zap.Object("params", params))
	apply := []struct {
		param EncoderParam
		value uint32
	}{
		{ParamMode, uint32(params.Mode())},
		{ParamQuality, params.Quality()},
		{ParamWindowBits, params.WindowBits()},
		{ParamBlockBits, params.BlockBits()},
	}
	for _, a := range apply {
		if !c.engine.SetParameter(a.param, a.value) {
			c.logger.Debug("parameter rejected by engine",
				zap.Uint32("param", uint32(a.param)), zap.Uint32("value", a.value))
		}
	}
}

func (c *compressorImpl) Compress(op CompressOp, in *ReadBuffer, out *WriteBuffer) (CoStatus, error) {
	inBefore, outBefore := in.Len(), out.Len()

	if !c.engine.CompressStream(op, in, out) {
		return 0, ErrCodec
	}

	c.totalIn.Add(int64(inBefore - in.Len()))
	c.totalOut.Add(int64(out.Len() - outBefore))

	status := c.status(op, in)
	c.logger.Debug("compress step",
		zap.Stringer("op", op),
		zap.Stringer("status", status),
		zap.Int("consumed", inBefore-in.Len()),
		zap.Int("written", out.Len()-outBefore))
	return status, nil
}

// status derives the step result from the engine state.  The checks run
// in a fixed order so the derivation stays auditable.
func (c *compressorImpl) status(op CompressOp, in *ReadBuffer) CoStatus {
	switch {
	case op == OpProcess:
		return CoFinished
	case in.Len() != 0:
		return CoUnfinished
	case c.engine.HasMoreOutput():
		return CoUnfinished
	case op == OpFinish && !c.engine.IsFinished():
		return CoUnfinished
	default:
		return CoFinished
	}
}

func (c *compressorImpl) TakeOutput(limit int) []byte {
	p := c.engine.TakeOutput(limit)
	c.totalOut.Add(int64(len(p)))
	return p
}

func (c *compressorImpl) Close() (err error) {
	c.once.Do(func() {
		c.logger.Debug("closing compressor",
			zap.Int64("totalIn", c.totalIn.Load()),
			zap.Int64("totalOut", c.totalOut.Load()))
		err = multierr.Append(err, c.engine.Close())
	})
	return
}
