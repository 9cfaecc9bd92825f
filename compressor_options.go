package blockpress

import "go.uber.org/zap"

type cOption func(*compressorImpl) error

// WithCLogger sets the logger used by the compression session.
func WithCLogger(l *zap.Logger) cOption {
	return func(c *compressorImpl) error { c.logger = l; return nil }
}

// WithCEngine injects an encoder engine in place of the default one.
// The session takes ownership and releases it on Close.
func WithCEngine(e EncoderEngine) cOption {
	return func(c *compressorImpl) error { c.engine = e; return nil }
}
