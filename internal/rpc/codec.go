// Package rpc provides the inter-service transport named in spec §6's
// "Inter-service RPC surface": real gRPC servers and clients carrying
// the plain Go request/response structs under api/gen/linkflow/...,
// JSON-encoded rather than protobuf-encoded.
//
// api/gen/linkflow/... is hand-maintained rather than protoc-generated:
// there is no protoc/buf toolchain in this build, so those packages
// declare plain structs with Getter methods in the shape protoc-gen-go
// would produce, and this package supplies the matching grpc.Codec that
// marshals them as JSON instead of requiring proto.Message. grpc.Server
// and grpc.ClientConn are otherwise used exactly as any other gRPC
// service would use them: real listeners, real dialing, real unary
// interceptors.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

// CallOption selects the JSON codec for one client call. Every generated
// client method in api/gen/linkflow/... appends this so the call is
// encoded without a proto.Message.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(codecName)
}
