package blockpress

// CompressBuffer compresses src in a single call, assuming the caller
// provisioned dst large enough for the complete stream.  On success the
// written prefix of dst holds the result and the number of bytes written
// is returned.  All failures, most commonly dst being too small, surface
// as ErrCodec; the contents of dst are then undefined.
func CompressBuffer(params *CompressParams, src []byte, dst *WriteBuffer) (int, error) {
	before := dst.Len()
	if !encoderCompress(params, NewReadBuffer(src), dst) {
		return 0, ErrCodec
	}
	return dst.Len() - before, nil
}

// DecompressBuffer decompresses src, which must hold one complete
// stream, in a single call.  Same contract as CompressBuffer: truncated
// input and an undersized dst both surface as ErrCodec.
func DecompressBuffer(src []byte, dst *WriteBuffer) (int, error) {
	before := dst.Len()
	if !decoderDecompress(NewReadBuffer(src), dst) {
		return 0, ErrCodec
	}
	return dst.Len() - before, nil
}
