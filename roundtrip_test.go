package blockpress_test

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	blockpress "github.com/blockpress/blockpress-go"
)

// compressStream runs a compression session to completion, draining
// retained output after every step.
func compressStream(t testing.TB, params *blockpress.CompressParams, src []byte) []byte {
	t.Helper()

	c, err := blockpress.NewCompressor()
	assert.NoError(t, err)
	defer c.Close()
	c.SetParams(params)

	in := blockpress.NewReadBuffer(src)
	var stream []byte
	for {
		status, err := c.Compress(blockpress.OpFinish, in, blockpress.NewWriteBuffer(nil))
		if !assert.NoError(t, err) {
			return stream
		}
		stream = append(stream, c.TakeOutput(-1)...)
		if status == blockpress.CoFinished {
			return stream
		}
	}
}

// decompressStream runs a decompression session to completion, draining
// retained output after every step.
func decompressStream(t testing.TB, stream []byte) []byte {
	t.Helper()

	d, err := blockpress.NewDecompressor()
	assert.NoError(t, err)
	defer d.Close()

	in := blockpress.NewReadBuffer(stream)
	var content []byte
	for {
		status, err := d.Decompress(in, blockpress.NewWriteBuffer(nil))
		if !assert.NoError(t, err) {
			return content
		}
		content = append(content, d.TakeOutput(-1)...)
		if status == blockpress.DeFinished {
			return content
		}
		if !assert.Equal(t, blockpress.DeNeedOutput, status, "stream should be complete") {
			return content
		}
	}
}

// countBlockKinds tallies the blocks of a finished stream by kind byte,
// walking the 14-byte block headers after the 8-byte stream header.
func countBlockKinds(stream []byte) map[byte]int {
	kinds := make(map[byte]int)
	for i := 8; i+14 <= len(stream); {
		kinds[stream[i]]++
		i += 14 + int(binary.LittleEndian.Uint32(stream[i+2:i+6]))
	}
	return kinds
}

func TestRoundTripFlushThenFinish(t *testing.T) {
	t.Parallel()

	c, err := blockpress.NewCompressor()
	assert.NoError(t, err)
	defer c.Close()

	out := blockpress.NewWriteBuffer(make([]byte, 256))

	in := blockpress.NewReadBuffer([]byte("hel"))
	status, err := c.Compress(blockpress.OpFlush, in, out)
	assert.NoError(t, err)
	assert.Equal(t, blockpress.CoFinished, status)
	assert.Equal(t, 3, in.Consumed())

	in = blockpress.NewReadBuffer([]byte("lo!"))
	status, err = c.Compress(blockpress.OpFinish, in, out)
	assert.NoError(t, err)
	assert.Equal(t, blockpress.CoFinished, status)
	assert.Equal(t, 3, in.Consumed())

	d, err := blockpress.NewDecompressor()
	assert.NoError(t, err)
	defer d.Close()

	decodedIn := blockpress.NewReadBuffer(out.Bytes())
	decoded := blockpress.NewWriteBuffer(make([]byte, 64))
	dStatus, err := d.Decompress(decodedIn, decoded)
	assert.NoError(t, err)
	assert.Equal(t, blockpress.DeFinished, dStatus)
	assert.Equal(t, 0, decodedIn.Len())
	assert.Equal(t, []byte("hello!"), decoded.Bytes())
}

func TestRoundTripEmptyStream(t *testing.T) {
	t.Parallel()

	stream := compressStream(t, blockpress.NewCompressParams(), nil)
	assert.NotEmpty(t, stream)

	content := decompressStream(t, stream)
	assert.Equal(t, []byte(nil), content)
}

func TestDecompressGarbage(t *testing.T) {
	t.Parallel()

	d, err := blockpress.NewDecompressor()
	assert.NoError(t, err)
	defer d.Close()

	in := blockpress.NewReadBuffer(make([]byte, 1024))
	out := blockpress.NewWriteBuffer(make([]byte, 1024))

	_, err = d.Decompress(in, out)
	assert.Equal(t, blockpress.ErrCodec, err)
	assert.ErrorIs(t, err, blockpress.ErrCodec)

	// The session stays failed.
	_, err = d.Decompress(in, out)
	assert.Equal(t, blockpress.ErrCodec, err)
}

func TestRoundTripQualities(t *testing.T) {
	t.Parallel()

	src := bytes.Repeat([]byte("a quality sweep across every backend codec. "), 4096)

	for _, quality := range []uint32{0, 1, 2, 3, 4, 5, 7, 9, 11} {
		quality := quality
		t.Run(strconv.Itoa(int(quality)), func(t *testing.T) {
			t.Parallel()

			params := blockpress.NewCompressParams().SetQuality(quality)
			stream := compressStream(t, params, src)
			assert.Less(t, len(stream), len(src))

			content := decompressStream(t, stream)
			assert.Equal(t, src, content)
		})
	}
}

func TestRoundTripIncompressible(t *testing.T) {
	t.Parallel()

	src := make([]byte, 8192)
	_, err := rand.New(rand.NewSource(7)).Read(src)
	assert.NoError(t, err)

	stream := compressStream(t, blockpress.NewCompressParams(), src)
	// One raw block plus stream framing.
	assert.Equal(t, len(src)+36, len(stream))

	content := decompressStream(t, stream)
	assert.Equal(t, src, content)
}

func TestRoundTripBlockBoundary(t *testing.T) {
	t.Parallel()

	for i, size := range []int{1 << 16, 1<<16 + 1, 2 << 16, 2<<16 - 1} {
		size := size
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			t.Parallel()

			src := make([]byte, size)
			_, err := rand.New(rand.NewSource(int64(size))).Read(src)
			assert.NoError(t, err)

			params := blockpress.NewCompressParams().SetBlockBits(16)
			stream := compressStream(t, params, src)
			content := decompressStream(t, stream)
			assert.Equal(t, src, content)
		})
	}
}

func TestMetadataTooLarge(t *testing.T) {
	t.Parallel()

	c, err := blockpress.NewCompressor()
	assert.NoError(t, err)
	defer c.Close()

	meta := blockpress.NewReadBuffer(make([]byte, 16<<20+1))
	_, err = c.Compress(blockpress.OpEmitMetadata, meta, blockpress.NewWriteBuffer(nil))
	assert.Equal(t, blockpress.ErrCodec, err)
}

func TestSessionPartialOutput(t *testing.T) {
	t.Parallel()

	src := make([]byte, 100*1024)
	_, err := rand.New(rand.NewSource(11)).Read(src)
	assert.NoError(t, err)

	c, err := blockpress.NewCompressor()
	assert.NoError(t, err)
	defer c.Close()
	c.SetParams(blockpress.NewCompressParams().SetQuality(3))

	in := blockpress.NewReadBuffer(src)
	status, err := c.Compress(blockpress.OpProcess, in, blockpress.NewWriteBuffer(nil))
	assert.NoError(t, err)
	assert.Equal(t, blockpress.CoFinished, status)
	assert.Equal(t, 0, in.Len())

	// Finish into small views, repeating the operation until it lands.
	var stream []byte
	steps := 0
	for {
		out := blockpress.NewWriteBuffer(make([]byte, 4096))
		status, err = c.Compress(blockpress.OpFinish, blockpress.NewReadBuffer(nil), out)
		assert.NoError(t, err)
		stream = append(stream, out.Bytes()...)
		steps++
		if status == blockpress.CoFinished {
			break
		}
	}
	assert.Greater(t, steps, 1, "incompressible input should overflow a single view")

	out := blockpress.NewWriteBuffer(make([]byte, len(src)))
	n, err := blockpress.DecompressBuffer(stream, out)
	assert.NoError(t, err)
	assert.Equal(t, len(src), n)
	assert.Equal(t, src, out.Bytes())
}

func TestSessionTakeOutputDrain(t *testing.T) {
	t.Parallel()

	c, err := blockpress.NewCompressor()
	assert.NoError(t, err)
	defer c.Close()

	in := blockpress.NewReadBuffer([]byte("drained in pieces"))
	status, err := c.Compress(blockpress.OpFinish, in, blockpress.NewWriteBuffer(nil))
	assert.NoError(t, err)
	assert.Equal(t, blockpress.CoUnfinished, status)

	assert.Nil(t, c.TakeOutput(0))

	var stream []byte
	stream = append(stream, c.TakeOutput(3)...)
	assert.Equal(t, 3, len(stream))
	stream = append(stream, c.TakeOutput(-1)...)
	assert.Nil(t, c.TakeOutput(-1))

	status, err = c.Compress(blockpress.OpFinish, blockpress.NewReadBuffer(nil), blockpress.NewWriteBuffer(nil))
	assert.NoError(t, err)
	assert.Equal(t, blockpress.CoFinished, status)

	content := decompressStream(t, stream)
	assert.Equal(t, []byte("drained in pieces"), content)
}

func TestSetParamsFrozenAtFirstByte(t *testing.T) {
	t.Parallel()

	c, err := blockpress.NewCompressor()
	assert.NoError(t, err)
	defer c.Close()
	c.SetParams(blockpress.NewCompressParams().SetWindowBits(20))

	out := blockpress.NewWriteBuffer(make([]byte, 256))
	_, err = c.Compress(blockpress.OpProcess, blockpress.NewReadBuffer([]byte("fir")), out)
	assert.NoError(t, err)

	// Too late: the stream already started.
	c.SetParams(blockpress.NewCompressParams().SetWindowBits(24))

	_, err = c.Compress(blockpress.OpFinish, blockpress.NewReadBuffer([]byte("st!")), out)
	assert.NoError(t, err)

	stream := out.Bytes()
	assert.Equal(t, byte(20), stream[6], "window bits recorded at start time")

	content := decompressStream(t, stream)
	assert.Equal(t, []byte("first!"), content)
}

func TestMetadataInterleaved(t *testing.T) {
	t.Parallel()

	c, err := blockpress.NewCompressor()
	assert.NoError(t, err)
	defer c.Close()

	out := blockpress.NewWriteBuffer(make([]byte, 1024))

	meta := blockpress.NewReadBuffer([]byte(`{"origin":"unit"}`))
	status, err := c.Compress(blockpress.OpEmitMetadata, meta, out)
	assert.NoError(t, err)
	assert.Equal(t, blockpress.CoFinished, status)
	assert.Equal(t, 0, meta.Len())

	_, err = c.Compress(blockpress.OpProcess, blockpress.NewReadBuffer([]byte("payload ")), out)
	assert.NoError(t, err)
	status, err = c.Compress(blockpress.OpFinish, blockpress.NewReadBuffer([]byte("bytes")), out)
	assert.NoError(t, err)
	assert.Equal(t, blockpress.CoFinished, status)

	content := decompressStream(t, out.Bytes())
	assert.Equal(t, []byte("payload bytes"), content)
}

func TestMetadataPartialOutput(t *testing.T) {
	t.Parallel()

	c, err := blockpress.NewCompressor()
	assert.NoError(t, err)
	defer c.Close()

	var stream []byte

	// First annotation lands through 4-byte views.
	meta := blockpress.NewReadBuffer([]byte("first annotation"))
	status := blockpress.CoUnfinished
	for steps := 0; steps < 32 && status != blockpress.CoFinished; steps++ {
		out := blockpress.NewWriteBuffer(make([]byte, 4))
		status, err = c.Compress(blockpress.OpEmitMetadata, meta, out)
		if !assert.NoError(t, err) {
			return
		}
		stream = append(stream, out.Bytes()...)
	}
	assert.Equal(t, blockpress.CoFinished, status)
	assert.Equal(t, 0, meta.Len())

	_, err = c.Compress(blockpress.OpProcess, blockpress.NewReadBuffer([]byte("payload")), blockpress.NewWriteBuffer(nil))
	assert.NoError(t, err)

	// Second annotation with no output room at all, drained between repeats.
	meta = blockpress.NewReadBuffer([]byte("second"))
	status = blockpress.CoUnfinished
	for steps := 0; steps < 32 && status != blockpress.CoFinished; steps++ {
		status, err = c.Compress(blockpress.OpEmitMetadata, meta, blockpress.NewWriteBuffer(nil))
		if !assert.NoError(t, err) {
			return
		}
		stream = append(stream, c.TakeOutput(-1)...)
	}
	assert.Equal(t, blockpress.CoFinished, status)

	for {
		status, err = c.Compress(blockpress.OpFinish, blockpress.NewReadBuffer(nil), blockpress.NewWriteBuffer(nil))
		if !assert.NoError(t, err) {
			return
		}
		stream = append(stream, c.TakeOutput(-1)...)
		if status == blockpress.CoFinished {
			break
		}
	}

	// Each emission frames exactly one metadata block.
	assert.Equal(t, map[byte]int{0x01: 1, 0x02: 2, 0x03: 1}, countBlockKinds(stream))

	content := decompressStream(t, stream)
	assert.Equal(t, []byte("payload"), content)
}
