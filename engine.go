package blockpress

import "io"

// CompressOp selects how aggressively a compression step must emit the
// data accumulated so far.
type CompressOp uint32

const (
	// OpProcess compresses input opportunistically.  The encoder is free
	// to hold data back until a full block accumulates.
	OpProcess CompressOp = iota
	// OpFlush forces out everything accumulated so far, making the
	// produced output decodable up to this point.
	OpFlush
	// OpFinish flushes and terminates the stream.  No further data may be
	// written afterwards.
	OpFinish
	// OpEmitMetadata emits the step's input as an out-of-band metadata
	// block of at most 16 MiB.  Metadata is not part of the decoded
	// output.
	OpEmitMetadata
)

func (op CompressOp) String() string {
	switch op {
	case OpProcess:
		return "process"
	case OpFlush:
		return "flush"
	case OpFinish:
		return "finish"
	case OpEmitMetadata:
		return "emit-metadata"
	default:
		return "unknown"
	}
}

// EncoderParam identifies a tunable encoder parameter.
type EncoderParam uint32

const (
	ParamMode EncoderParam = iota
	ParamQuality
	ParamWindowBits
	ParamBlockBits
)

// DecodeResult is the result code of a decoder engine step.
type DecodeResult int

const (
	// DecodeResultError: the input is not a valid stream.  The engine is
	// unusable afterwards.
	DecodeResultError DecodeResult = iota
	// DecodeResultSuccess: the stream terminated cleanly and all output
	// has been delivered.  Input past the end of the stream is left
	// unconsumed.
	DecodeResultSuccess
	// DecodeResultNeedsMoreInput: all given input was consumed but the
	// stream is incomplete.
	DecodeResultNeedsMoreInput
	// DecodeResultNeedsMoreOutput: the engine holds produced output that
	// did not fit the output view.  Drain it with TakeOutput or repeat
	// the call with a fresh view.
	DecodeResultNeedsMoreOutput
)

// EncoderEngine is the stateful compressor consumed by a Compressor
// session.  The default engine is created by NewEncoderEngine; tests and
// alternative backends can inject their own with WithCEngine.
//
// An engine instance is not safe for concurrent use.
type EncoderEngine interface {
	// SetParameter applies one parameter.  It reports false when the
	// value is out of range or the stream has already started, in which
	// case the previous value stays in effect.
	SetParameter(param EncoderParam, value uint32) bool

	// CompressStream consumes input from in and writes produced output
	// into out, advancing both views.  Output that does not fit in out is
	// retained and reported by HasMoreOutput.  It reports false when the
	// engine failed; the engine is unusable afterwards.
	CompressStream(op CompressOp, in *ReadBuffer, out *WriteBuffer) bool

	// HasMoreOutput reports whether the engine retains produced output
	// not yet delivered.
	HasMoreOutput() bool

	// IsFinished reports whether the stream is terminated and all output
	// has been delivered.
	IsFinished() bool

	// TakeOutput removes and returns up to limit bytes of retained
	// output.  limit == 0 returns nil immediately, limit < 0 means no
	// limit.  The returned slice is only valid until the next call into
	// the engine.
	TakeOutput(limit int) []byte

	// Close releases the engine.
	io.Closer
}

// DecoderEngine is the stateful decompressor consumed by a Decompressor
// session.
//
// An engine instance is not safe for concurrent use.
type DecoderEngine interface {
	// DecompressStream consumes input from in and writes decoded output
	// into out, advancing both views.  Output that does not fit in out is
	// retained until drained with TakeOutput or a later call.
	DecompressStream(in *ReadBuffer, out *WriteBuffer) DecodeResult

	// TakeOutput removes and returns up to limit bytes of retained
	// output.  Same contract as EncoderEngine.TakeOutput.
	TakeOutput(limit int) []byte

	// Close releases the engine.
	io.Closer
}
