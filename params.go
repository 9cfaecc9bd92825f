package blockpress

import "go.uber.org/zap/zapcore"

// CompressMode declares the type of content being compressed.  It is a
// hint: the engine records it in the stream but applies no mode-specific
// modelling.
type CompressMode uint32

const (
	// ModeGeneric makes no assumptions about the input.
	ModeGeneric CompressMode = iota
	// ModeText declares UTF-8 text input.
	ModeText
	// ModeFont declares WOFF 2.0 font input.
	ModeFont
)

func (m CompressMode) String() string {
	switch m {
	case ModeGeneric:
		return "generic"
	case ModeText:
		return "text"
	case ModeFont:
		return "font"
	default:
		return "unknown"
	}
}

// CompressParams is the parameter set consumed when a compression session
// starts.  The zero value is not useful; create one with
// NewCompressParams and adjust it with the fluent setters:
//
//	params := blockpress.NewCompressParams().SetQuality(9).SetWindowBits(22)
//
// Setters store values as given.  Out-of-range values are rejected by the
// engine when the set is applied, leaving the engine's previous value in
// place.
type CompressParams struct {
	mode       CompressMode
	quality    uint32
	windowBits uint32
	blockBits  uint32
}

// NewCompressParams returns a parameter set with the default mode
// (generic), quality (11), window bits (22) and block bits (0, meaning
// derive from quality).
func NewCompressParams() *CompressParams {
	return &CompressParams{
		mode:       ModeGeneric,
		quality:    defaultQuality,
		windowBits: defaultWindowBits,
		blockBits:  0,
	}
}

// SetMode sets the content mode.
func (p *CompressParams) SetMode(mode CompressMode) *CompressParams {
	p.mode = mode
	return p
}

// SetQuality sets the compression quality, 0 (fastest) to 11 (best).
func (p *CompressParams) SetQuality(quality uint32) *CompressParams {
	p.quality = quality
	return p
}

// SetWindowBits sets the log2 of the encoder window size, 10 to 24.
func (p *CompressParams) SetWindowBits(bits uint32) *CompressParams {
	p.windowBits = bits
	return p
}

// SetBlockBits sets the log2 of the block size used to cut the stream,
// 16 to 24, or 0 to derive the block size from the quality.
func (p *CompressParams) SetBlockBits(bits uint32) *CompressParams {
	p.blockBits = bits
	return p
}

// Mode returns the content mode.
func (p *CompressParams) Mode() CompressMode { return p.mode }

// Quality returns the compression quality.
func (p *CompressParams) Quality() uint32 { return p.quality }

// WindowBits returns the log2 of the window size.
func (p *CompressParams) WindowBits() uint32 { return p.windowBits }

// BlockBits returns the log2 of the block size, 0 meaning derived.
func (p *CompressParams) BlockBits() uint32 { return p.blockBits }

// WindowSize returns the window size in bytes, for display purposes.
func (p *CompressParams) WindowSize() int { return 1 << p.windowBits }

// BlockSize returns the block size in bytes, for display purposes.
func (p *CompressParams) BlockSize() int { return 1 << p.blockBits }

func (p *CompressParams) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("Mode", p.mode.String())
	enc.AddUint32("Quality", p.quality)
	enc.AddUint32("WindowBits", p.windowBits)
	enc.AddUint32("BlockBits", p.blockBits)
	return nil
}
