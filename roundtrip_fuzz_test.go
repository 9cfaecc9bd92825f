//go:build go1.18
// +build go1.18

package blockpress_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	blockpress "github.com/blockpress/blockpress-go"
)

func FuzzRoundTrip(f *testing.F) {
	f.Add([]byte("hello world"), uint8(11))
	f.Add([]byte{}, uint8(0))
	f.Add(bytes.Repeat([]byte("abcd"), 32768), uint8(3))

	f.Fuzz(func(t *testing.T, src []byte, quality uint8) {
		params := blockpress.NewCompressParams().SetQuality(uint32(quality) % 12)

		// Worst case: raw blocks plus per-block framing.
		bound := len(src) + 14*(len(src)/(1<<16)+2) + 64
		dst := blockpress.NewWriteBuffer(make([]byte, bound))
		n, err := blockpress.CompressBuffer(params, src, dst)
		assert.NoError(t, err)
		assert.Equal(t, dst.Len(), n)

		out := blockpress.NewWriteBuffer(make([]byte, len(src)))
		m, err := blockpress.DecompressBuffer(dst.Bytes(), out)
		assert.NoError(t, err)
		assert.Equal(t, len(src), m)
		assert.Equal(t, src, out.Bytes())
	})
}

func FuzzDecompress(f *testing.F) {
	seed := blockpress.NewWriteBuffer(make([]byte, 1024))
	n, err := blockpress.CompressBuffer(blockpress.NewCompressParams(), []byte("fuzz seed"), seed)
	assert.NoError(f, err)

	f.Add(seed.Bytes()[:n])
	f.Add([]byte{})
	f.Add(make([]byte, 64))

	f.Fuzz(func(t *testing.T, in []byte) {
		d, err := blockpress.NewDecompressor()
		assert.NoError(t, err)
		defer d.Close()

		view := blockpress.NewReadBuffer(in)
		for {
			status, err := d.Decompress(view, blockpress.NewWriteBuffer(make([]byte, 4096)))
			if err != nil {
				assert.Equal(t, blockpress.ErrCodec, err)
				return
			}
			if status != blockpress.DeNeedOutput {
				return
			}
		}
	})
}
