package blockpress

import "go.uber.org/zap"

type dOption func(*decompressorImpl) error

// WithDLogger sets the logger used by the decompression session.
func WithDLogger(l *zap.Logger) dOption {
	return func(d *decompressorImpl) error { d.logger = l; return nil }
}

// WithDEngine injects a decoder engine in place of the default one.
// The session takes ownership and releases it on Close.
func WithDEngine(e DecoderEngine) dOption {
	return func(d *decompressorImpl) error { d.engine = e; return nil }
}
