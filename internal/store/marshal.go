package store

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"

	"github.com/roach88/idlc/internal/codegen"
)

// Compression identifies the codec of a stored plan blob. Values are
// persisted in the runs table and must not change.
type Compression uint8

const (
	// CompressionNone stores the CBOR plan as is. Also used when a codec
	// would not shrink the blob.
	CompressionNone Compression = 0

	// CompressionLZ4 is LZ4 block compression.
	CompressionLZ4 Compression = 1

	// CompressionZstd is zstd at the default level.
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses a codec name.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd", "":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainRoutine = "idlc/routine/v1"
	DomainSchema  = "idlc/schema/v1"
)

var errIncompressible = errors.New("data is incompressible")

var (
	cborEnc     cbor.EncMode
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("store: CBOR encoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("store: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("store: zstd decoder initialization failed: " + err.Error())
	}
}

// digestWithDomain computes BLAKE3 with domain separation.
// Format: BLAKE3(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func digestWithDomain(domain string, data []byte) string {
	h := blake3.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RoutineDigest is the content digest of a routine description. Two
// routines with the same name, signature, direction and operations share
// a digest.
func RoutineDigest(r codegen.RoutineDoc) (string, error) {
	data, err := cborEnc.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("routine digest: %w", err)
	}
	return digestWithDomain(DomainRoutine, data), nil
}

// SchemaDigest identifies a set of schema sources. Paths are hashed with
// their contents in sorted order, so the digest is independent of load
// order.
func SchemaDigest(sources map[string][]byte) string {
	paths := make([]string, 0, len(sources))
	for p := range sources {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := blake3.New()
	h.Write([]byte(DomainSchema))
	h.Write([]byte{0x00})
	for _, p := range paths {
		h.Write([]byte(p))
		h.Write([]byte{0x00})
		h.Write(sources[p])
		h.Write([]byte{0x00})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// marshalPlan encodes a plan document and compresses it with c. The
// returned codec is CompressionNone when c would not shrink the data.
func marshalPlan(doc *codegen.PlanDoc, c Compression) ([]byte, Compression, int, error) {
	raw, err := doc.MarshalCBOR()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("marshal plan: %w", err)
	}
	blob, err := compress(raw, c)
	if errors.Is(err, errIncompressible) {
		return raw, CompressionNone, len(raw), nil
	}
	if err != nil {
		return nil, 0, 0, fmt.Errorf("marshal plan: %w", err)
	}
	return blob, c, len(raw), nil
}

// unmarshalPlan reverses marshalPlan.
func unmarshalPlan(blob []byte, c Compression, size int) (*codegen.PlanDoc, error) {
	raw, err := decompress(blob, c, size)
	if err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}
	return codegen.UnmarshalPlanCBOR(raw)
}

func compress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// CompressBlock returns 0 for incompressible input.
		if n == 0 || n >= len(data) {
			return nil, errIncompressible
		}
		return dst[:n], nil
	case CompressionZstd:
		out := zstdEncoder.EncodeAll(data, nil)
		if len(out) >= len(data) {
			return nil, errIncompressible
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported compression %s", c)
}

func decompress(data []byte, c Compression, size int) ([]byte, error) {
	switch c {
	case CompressionNone:
		if len(data) != size {
			return nil, fmt.Errorf("stored plan: size %d does not match expected %d", len(data), size)
		}
		return data, nil
	case CompressionLZ4:
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(data, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if n != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", n, size)
		}
		return dst, nil
	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(out) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), size)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported compression %s", c)
}
