package network

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4"
)

// compressMinSize is the payload size above which lz4 framing pays for
// itself; small payloads (ping, addr, inv) are sent raw rather than
// spending a compression pass on them, mirroring the size threshold
// real Neo N3 nodes use before bothering to compress a P2P payload.
const compressMinSize = 128

// compressPayload lz4-compresses raw, prefixing the result with raw's
// original length (needed to size UncompressBlock's destination buffer,
// since lz4's block format carries no length of its own). It reports
// false if compression didn't actually shrink the payload, in which
// case the caller should send raw uncompressed.
func compressPayload(raw []byte) ([]byte, bool) {
	bound := lz4.CompressBlockBound(len(raw))
	dst := make([]byte, 4+bound)
	binary.LittleEndian.PutUint32(dst, uint32(len(raw)))
	n, err := lz4.CompressBlock(raw, dst[4:], nil)
	if err != nil || n == 0 || 4+n >= len(raw) {
		return nil, false
	}
	return dst[:4+n], true
}

// decompressPayload reverses compressPayload.
func decompressPayload(compressed []byte) ([]byte, error) {
	if len(compressed) < 4 {
		return nil, fmt.Errorf("network: truncated compressed payload")
	}
	origLen := binary.LittleEndian.Uint32(compressed[:4])
	if origLen > maxPayloadSize {
		return nil, errPayloadTooLarge
	}
	dst := make([]byte, origLen)
	n, err := lz4.UncompressBlock(compressed[4:], dst)
	if err != nil {
		return nil, fmt.Errorf("network: decompressing payload: %w", err)
	}
	return dst[:n], nil
}
