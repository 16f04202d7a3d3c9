package rpc

import (
	"github.com/dmitrijs2005/gophvault/internal/codec"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype of every Backend call
// ("application/grpc+cbor").
const CodecName = "cbor"

// Codec carries RPC messages as deterministic CBOR.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error)      { return codec.Marshal(v) }
func (Codec) Unmarshal(data []byte, v any) error { return codec.Unmarshal(data, v) }
func (Codec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(Codec{})
}
