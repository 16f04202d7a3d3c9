package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service of the backend.
const ServiceName = "gophvault.v1.Backend"

const (
	MethodPing               = "Ping"
	MethodVlobRead           = "VlobRead"
	MethodVlobUpdate         = "VlobUpdate"
	MethodPkiSubmit          = "PkiEnrollmentSubmit"
	MethodPkiInfo            = "PkiEnrollmentInfo"
	MethodPkiList            = "PkiEnrollmentList"
	MethodPkiReject          = "PkiEnrollmentReject"
	MethodPkiAccept          = "PkiEnrollmentAccept"
	MethodBlockCreateURL     = "BlockCreateURL"
	MethodBlockReadURL       = "BlockReadURL"
	MethodOrganizationConfig = "OrganizationConfig"
)

// FullMethod returns the "/service/method" path seen by interceptors.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// BackendServer is implemented by the server side handler.
type BackendServer interface {
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	VlobRead(context.Context, *VlobReadRequest) (*VlobReadResponse, error)
	VlobUpdate(context.Context, *VlobUpdateRequest) (*VlobUpdateResponse, error)
	PkiEnrollmentSubmit(context.Context, *PkiSubmitRequest) (*PkiSubmitResponse, error)
	PkiEnrollmentInfo(context.Context, *PkiInfoRequest) (*PkiInfoResponse, error)
	PkiEnrollmentList(context.Context, *PkiListRequest) (*PkiListResponse, error)
	PkiEnrollmentReject(context.Context, *PkiRejectRequest) (*PkiRejectResponse, error)
	PkiEnrollmentAccept(context.Context, *PkiAcceptRequest) (*PkiAcceptResponse, error)
	BlockCreateURL(context.Context, *BlockURLRequest) (*BlockURLResponse, error)
	BlockReadURL(context.Context, *BlockURLRequest) (*BlockURLResponse, error)
	OrganizationConfig(context.Context, *OrganizationConfigRequest) (*OrganizationConfigResponse, error)
}

func unary[Req, Resp any](method string, call func(BackendServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BackendServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BackendServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// BackendServiceDesc describes the backend for grpc.Server.RegisterService.
var BackendServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BackendServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodPing, BackendServer.Ping),
		unary(MethodVlobRead, BackendServer.VlobRead),
		unary(MethodVlobUpdate, BackendServer.VlobUpdate),
		unary(MethodPkiSubmit, BackendServer.PkiEnrollmentSubmit),
		unary(MethodPkiInfo, BackendServer.PkiEnrollmentInfo),
		unary(MethodPkiList, BackendServer.PkiEnrollmentList),
		unary(MethodPkiReject, BackendServer.PkiEnrollmentReject),
		unary(MethodPkiAccept, BackendServer.PkiEnrollmentAccept),
		unary(MethodBlockCreateURL, BackendServer.BlockCreateURL),
		unary(MethodBlockReadURL, BackendServer.BlockReadURL),
		unary(MethodOrganizationConfig, BackendServer.OrganizationConfig),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophvault/v1/backend",
}

func RegisterBackendServer(s grpc.ServiceRegistrar, srv BackendServer) {
	s.RegisterService(&BackendServiceDesc, srv)
}
