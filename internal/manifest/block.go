package manifest

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// Digest is the BLAKE3-256 sum of a block's encrypted content.
type Digest [32]byte

// HashBlock computes the digest stored in BlockAccess.
func HashBlock(data []byte) Digest {
	return Digest(blake3.Sum256(data))
}

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(b []byte) error {
	if hex.DecodedLen(len(b)) != len(d) {
		return fmt.Errorf("digest: expected %d hex chars, got %d", 2*len(d), len(b))
	}
	_, err := hex.Decode(d[:], b)
	return err
}

// BlockAccess references one stored block of a file.
type BlockAccess struct {
	ID     uuid.UUID `cbor:"id"`
	Key    []byte    `cbor:"key"`
	Offset uint64    `cbor:"offset"`
	Size   uint64    `cbor:"size"`
	Digest Digest    `cbor:"digest"`
}

// Verify reports whether data matches the recorded digest.
func (b BlockAccess) Verify(data []byte) bool {
	got := HashBlock(data)
	return subtle.ConstantTimeCompare(got[:], b.Digest[:]) == 1
}

// DirtyBlockAccess references locally written data not yet uploaded.
type DirtyBlockAccess struct {
	ID     uuid.UUID `cbor:"id"`
	Offset uint64    `cbor:"offset"`
	Size   uint64    `cbor:"size"`
}

func cloneBlocks(in []BlockAccess) []BlockAccess {
	if in == nil {
		return nil
	}
	out := make([]BlockAccess, len(in))
	for i, b := range in {
		b.Key = append([]byte(nil), b.Key...)
		out[i] = b
	}
	return out
}

func cloneDirtyBlocks(in []DirtyBlockAccess) []DirtyBlockAccess {
	if in == nil {
		return nil
	}
	return append([]DirtyBlockAccess(nil), in...)
}
