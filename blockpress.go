package blockpress

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap/zapcore"
)

const (
	/*
		A compressed stream is a stream header followed by a sequence of
		blocks, terminated by an end block:

			|`Stream_Header`|`Block`|...|`Block`|`End_Block`|

		Stream Header Format

			|`Magic_Number`|`Version`|`Mode`|`Window_Bits`|`Block_Bits`|
			|--------------|---------|------|-------------|------------|
			| 4 bytes      | 1 byte  |1 byte| 1 byte      | 1 byte     |

		Magic_Number

		Value: 0xB10C0DEC, __little-endian__ format.

		Version

		Value: 0x01.  A decoder must reject any other value.

		Mode, Window_Bits, Block_Bits

		The parameters the stream was encoded with, recorded for
		diagnostics and validated on decode.  Block_Bits is stored
		resolved and is never 0.
	*/
	streamMagicNumber uint32 = 0xB10C0DEC

	streamFormatVersion = 0x01

	streamHeaderSize = 8

	blockHeaderSize = 14

	// maxBlockContent is the maximum content size of a single block.  The
	// encoder never cuts blocks larger than 1<<maxBlockBits; the decoder
	// enforces the same cap to prevent OOMs due to untrusted input.
	maxBlockContent = 16 << 20

	// maxMetadataSize is the cap on a single metadata block payload.
	maxMetadataSize = 16 << 20
)

// Block kinds.
const (
	blockKindData     = 0x01
	blockKindMetadata = 0x02
	blockKindEnd      = 0x03
)

// Block codecs.
const (
	codecRaw    = 0x00
	codecSnappy = 0x01
	codecLZ4    = 0x02
	codecZstd   = 0x03
)

// Parameter ranges accepted by the engine.
const (
	maxQuality    = 11
	minWindowBits = 10
	maxWindowBits = 24
	minBlockBits  = 16
	maxBlockBits  = 24

	defaultQuality    = 11
	defaultWindowBits = 22
)

type streamHeader struct {
	// Mode is the declared content type of the stream.
	Mode uint8
	// WindowBits is the log2 of the encoder window size.
	WindowBits uint8
	// BlockBits is the log2 of the block size the stream was cut with.
	BlockBits uint8
}

func (h *streamHeader) marshalBinaryInline(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:], streamMagicNumber)
	dst[4] = streamFormatVersion
	dst[5] = h.Mode
	dst[6] = h.WindowBits
	dst[7] = h.BlockBits
}

func (h *streamHeader) MarshalBinary() ([]byte, error) {
	dst := make([]byte, streamHeaderSize)
	h.marshalBinaryInline(dst)
	return dst, nil
}

func (h *streamHeader) UnmarshalBinary(p []byte) error {
	if len(p) != streamHeaderSize {
		return fmt.Errorf("stream header length mismatch %d vs %d", len(p), streamHeaderSize)
	}
	magic := binary.LittleEndian.Uint32(p[0:])
	if magic != streamMagicNumber {
		return fmt.Errorf("stream magic mismatch %x vs %x", magic, streamMagicNumber)
	}
	if p[4] != streamFormatVersion {
		return fmt.Errorf("unsupported stream version %d", p[4])
	}
	h.Mode = p[5]
	h.WindowBits = p[6]
	h.BlockBits = p[7]
	if h.Mode > uint8(ModeFont) {
		return fmt.Errorf("unknown stream mode %d", h.Mode)
	}
	if h.WindowBits < minWindowBits || h.WindowBits > maxWindowBits {
		return fmt.Errorf("window bits %d out of range %d..%d", h.WindowBits, minWindowBits, maxWindowBits)
	}
	if h.BlockBits < minBlockBits || h.BlockBits > maxBlockBits {
		return fmt.Errorf("block bits %d out of range %d..%d", h.BlockBits, minBlockBits, maxBlockBits)
	}
	return nil
}

func (h *streamHeader) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint8("Mode", h.Mode)
	enc.AddUint8("WindowBits", h.WindowBits)
	enc.AddUint8("BlockBits", h.BlockBits)
	return nil
}

/*
blockHeader precedes every block payload in the stream.

	|`Block_Kind`|`Block_Codec`|`Compressed_Size`|`Content_Size`|`Checksum`|
	|------------|-------------|-----------------|--------------|----------|
	| 1 byte     | 1 byte      | 4 bytes         | 4 bytes      | 4 bytes  |

Block_Kind

Data blocks (0x01) carry a slice of the stream.  Metadata blocks (0x02)
carry out-of-band bytes that a decoder validates and skips.  The end
block (0x03) terminates the stream and carries no payload.

Block_Codec

The codec the content was stored with.  Raw (0x00) means the content is
stored uncompressed and `Compressed_Size` equals `Content_Size`.
Metadata content is always stored raw.

Checksum

Value: the least significant 32 bits of the XXH64 digest of the content
(after decompression), stored in little-endian format.  Zero for end
blocks.
*/
type blockHeader struct {
	Kind  uint8
	Codec uint8
	// CompressedSize is the payload size as stored in the stream.
	CompressedSize uint32
	// ContentSize is the size of the content after decompression.
	ContentSize uint32
	// Checksum is the least significant 32 bits of the XXH64 digest of the content.
	Checksum uint32
}

func (h *blockHeader) marshalBinaryInline(dst []byte) {
	dst[0] = h.Kind
	dst[1] = h.Codec
	binary.LittleEndian.PutUint32(dst[2:], h.CompressedSize)
	binary.LittleEndian.PutUint32(dst[6:], h.ContentSize)
	binary.LittleEndian.PutUint32(dst[10:], h.Checksum)
}

func (h *blockHeader) MarshalBinary() ([]byte, error) {
	dst := make([]byte, blockHeaderSize)
	h.marshalBinaryInline(dst)
	return dst, nil
}

func (h *blockHeader) UnmarshalBinary(p []byte) error {
	if len(p) != blockHeaderSize {
		return fmt.Errorf("block header length mismatch %d vs %d", len(p), blockHeaderSize)
	}
	h.Kind = p[0]
	h.Codec = p[1]
	h.CompressedSize = binary.LittleEndian.Uint32(p[2:])
	h.ContentSize = binary.LittleEndian.Uint32(p[6:])
	h.Checksum = binary.LittleEndian.Uint32(p[10:])
	return h.validate()
}

func (h *blockHeader) validate() error {
	switch h.Kind {
	case blockKindData, blockKindMetadata, blockKindEnd:
	default:
		return fmt.Errorf("unknown block kind %d", h.Kind)
	}
	switch h.Codec {
	case codecRaw, codecSnappy, codecLZ4, codecZstd:
	default:
		return fmt.Errorf("unknown block codec %d", h.Codec)
	}
	if h.CompressedSize > maxBlockContent || h.ContentSize > maxBlockContent {
		return fmt.Errorf("block size %d/%d beyond %d", h.CompressedSize, h.ContentSize, maxBlockContent)
	}
	switch h.Kind {
	case blockKindEnd:
		if h.CompressedSize != 0 || h.ContentSize != 0 || h.Checksum != 0 {
			return fmt.Errorf("end block with payload %d/%d", h.CompressedSize, h.ContentSize)
		}
	case blockKindMetadata:
		if h.Codec != codecRaw {
			return fmt.Errorf("metadata block with codec %d", h.Codec)
		}
	case blockKindData:
		if h.ContentSize == 0 {
			return fmt.Errorf("empty data block")
		}
	}
	if h.Codec == codecRaw && h.CompressedSize != h.ContentSize {
		return fmt.Errorf("raw block size mismatch %d vs %d", h.CompressedSize, h.ContentSize)
	}
	if h.ContentSize != 0 && h.CompressedSize == 0 {
		return fmt.Errorf("block content %d with no payload", h.ContentSize)
	}
	return nil
}

func (h *blockHeader) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint8("Kind", h.Kind)
	enc.AddUint8("Codec", h.Codec)
	enc.AddUint32("CompressedSize", h.CompressedSize)
	enc.AddUint32("ContentSize", h.ContentSize)
	enc.AddUint32("Checksum", h.Checksum)
	return nil
}
