package blockpress

import (
	"fmt"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	lz4 "github.com/pierrec/lz4/v4"
)

// codecForQuality maps quality to the backend codec used for data blocks.
func codecForQuality(quality uint32) uint8 {
	switch {
	case quality <= 1:
		return codecSnappy
	case quality <= 3:
		return codecLZ4
	default:
		return codecZstd
	}
}

// zstdLevelForQuality maps the upper quality range onto zstd encoder levels.
func zstdLevelForQuality(quality uint32) zstd.EncoderLevel {
	switch {
	case quality <= 5:
		return zstd.SpeedFastest
	case quality <= 7:
		return zstd.SpeedDefault
	case quality <= 9:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

// compressContent compresses src with the requested codec and reports the
// codec actually used: content that does not shrink is stored raw.
func compressContent(codec uint8, zenc *zstd.Encoder, src []byte) ([]byte, uint8, error) {
	var dst []byte
	switch codec {
	case codecRaw:
		return src, codecRaw, nil
	case codecSnappy:
		dst = snappy.Encode(nil, src)
	case codecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(src)))
		n, err := lz4.CompressBlock(src, buf, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("lz4 block compression: %w", err)
		}
		// n == 0 means incompressible.
		dst = buf[:n]
	case codecZstd:
		dst = zenc.EncodeAll(src, nil)
	default:
		return nil, 0, fmt.Errorf("unknown block codec %d", codec)
	}
	if len(dst) == 0 || len(dst) >= len(src) {
		return src, codecRaw, nil
	}
	return dst, codec, nil
}

// decompressContent reverses compressContent.  contentSize comes from the
// block header and bounds every allocation.
func decompressContent(codec uint8, zdec *zstd.Decoder, payload []byte, contentSize int) ([]byte, error) {
	switch codec {
	case codecRaw:
		return payload, nil
	case codecSnappy:
		n, err := snappy.DecodedLen(payload)
		if err != nil {
			return nil, fmt.Errorf("snappy block length: %w", err)
		}
		if n != contentSize {
			return nil, fmt.Errorf("snappy length mismatch %d vs %d", n, contentSize)
		}
		dst, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, fmt.Errorf("snappy block decompression: %w", err)
		}
		return dst, nil
	case codecLZ4:
		dst := make([]byte, contentSize)
		n, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4 block decompression: %w", err)
		}
		return dst[:n], nil
	case codecZstd:
		dst, err := zdec.DecodeAll(payload, make([]byte, 0, contentSize))
		if err != nil {
			return nil, fmt.Errorf("zstd block decompression: %w", err)
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("unknown block codec %d", codec)
	}
}
