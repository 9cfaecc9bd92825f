package blockpress

import "errors"

// ErrCodec is the single recoverable error surfaced by sessions and
// one-shot calls.  It reports that the engine failed: malformed input on
// decode, an oversized metadata block, an output region too small for a
// one-shot call.  It deliberately carries no further detail; callers
// compare against it with errors.Is or plain equality.
var ErrCodec = errors.New("codec error")
