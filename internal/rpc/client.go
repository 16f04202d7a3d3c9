package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// BackendClient is the typed client side of BackendServiceDesc.
type BackendClient struct {
	cc grpc.ClientConnInterface
}

func NewBackendClient(cc grpc.ClientConnInterface) *BackendClient {
	return &BackendClient{cc: cc}
}

func invoke[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in *Req, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BackendClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingRequest, PingResponse](ctx, c.cc, MethodPing, in, opts)
}

func (c *BackendClient) VlobRead(ctx context.Context, in *VlobReadRequest, opts ...grpc.CallOption) (*VlobReadResponse, error) {
	return invoke[VlobReadRequest, VlobReadResponse](ctx, c.cc, MethodVlobRead, in, opts)
}

func (c *BackendClient) VlobUpdate(ctx context.Context, in *VlobUpdateRequest, opts ...grpc.CallOption) (*VlobUpdateResponse, error) {
	return invoke[VlobUpdateRequest, VlobUpdateResponse](ctx, c.cc, MethodVlobUpdate, in, opts)
}

func (c *BackendClient) PkiEnrollmentSubmit(ctx context.Context, in *PkiSubmitRequest, opts ...grpc.CallOption) (*PkiSubmitResponse, error) {
	return invoke[PkiSubmitRequest, PkiSubmitResponse](ctx, c.cc, MethodPkiSubmit, in, opts)
}

func (c *BackendClient) PkiEnrollmentInfo(ctx context.Context, in *PkiInfoRequest, opts ...grpc.CallOption) (*PkiInfoResponse, error) {
	return invoke[PkiInfoRequest, PkiInfoResponse](ctx, c.cc, MethodPkiInfo, in, opts)
}

func (c *BackendClient) PkiEnrollmentList(ctx context.Context, in *PkiListRequest, opts ...grpc.CallOption) (*PkiListResponse, error) {
	return invoke[PkiListRequest, PkiListResponse](ctx, c.cc, MethodPkiList, in, opts)
}

func (c *BackendClient) PkiEnrollmentReject(ctx context.Context, in *PkiRejectRequest, opts ...grpc.CallOption) (*PkiRejectResponse, error) {
	return invoke[PkiRejectRequest, PkiRejectResponse](ctx, c.cc, MethodPkiReject, in, opts)
}

func (c *BackendClient) PkiEnrollmentAccept(ctx context.Context, in *PkiAcceptRequest, opts ...grpc.CallOption) (*PkiAcceptResponse, error) {
	return invoke[PkiAcceptRequest, PkiAcceptResponse](ctx, c.cc, MethodPkiAccept, in, opts)
}

func (c *BackendClient) BlockCreateURL(ctx context.Context, in *BlockURLRequest, opts ...grpc.CallOption) (*BlockURLResponse, error) {
	return invoke[BlockURLRequest, BlockURLResponse](ctx, c.cc, MethodBlockCreateURL, in, opts)
}

func (c *BackendClient) BlockReadURL(ctx context.Context, in *BlockURLRequest, opts ...grpc.CallOption) (*BlockURLResponse, error) {
	return invoke[BlockURLRequest, BlockURLResponse](ctx, c.cc, MethodBlockReadURL, in, opts)
}

func (c *BackendClient) OrganizationConfig(ctx context.Context, in *OrganizationConfigRequest, opts ...grpc.CallOption) (*OrganizationConfigResponse, error) {
	return invoke[OrganizationConfigRequest, OrganizationConfigResponse](ctx, c.cc, MethodOrganizationConfig, in, opts)
}
