package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/client/models"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/rpc"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	endpointURL    string
	accessToken    string
	requestTimeout time.Duration
	dialOptions    []grpc.DialOption

	mu      sync.Mutex
	conn    *grpc.ClientConn
	backend *rpc.BackendClient
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if s.accessToken != "" {
		ctx = withAccessToken(ctx, s.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewGRPCClient does not connect; the first call does.
func NewGRPCClient(endpointURL, accessToken string, requestTimeout time.Duration, opts ...grpc.DialOption) *GRPCClient {
	return &GRPCClient{
		endpointURL:    endpointURL,
		accessToken:    accessToken,
		requestTimeout: requestTimeout,
		dialOptions:    opts,
	}
}

func (s *GRPCClient) client() (*rpc.BackendClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend != nil {
		return s.backend, nil
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, s.dialOptions...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.conn = conn
	s.backend = rpc.NewBackendClient(conn)
	return s.backend, nil
}

// discard drops the cached connection so the next call dials again.
func (s *GRPCClient) discard() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = nil
	s.backend = nil
}

func (s *GRPCClient) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.backend = nil
	return err
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		s.discard()
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

// call runs fn under the request timeout and maps transport errors.
func call[Resp any](ctx context.Context, s *GRPCClient, fn func(ctx context.Context, c *rpc.BackendClient) (*Resp, error)) (*Resp, error) {
	c, err := s.client()
	if err != nil {
		return nil, err
	}

	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	resp, err := fn(ctx, c)
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) Ping(ctx context.Context) (string, error) {
	resp, err := call(ctx, s, func(ctx context.Context, c *rpc.BackendClient) (*rpc.PingResponse, error) {
		return c.Ping(ctx, &rpc.PingRequest{Ping: "ping"})
	})
	if err != nil {
		return "", err
	}
	if resp.Status != rpc.StatusOK {
		return "", ErrUnavailable
	}
	return resp.APIVersion, nil
}

func (s *GRPCClient) VlobRead(ctx context.Context, id uuid.UUID, version *uint64) (*models.RemoteVlob, error) {
	resp, err := call(ctx, s, func(ctx context.Context, c *rpc.BackendClient) (*rpc.VlobReadResponse, error) {
		return c.VlobRead(ctx, &rpc.VlobReadRequest{VlobID: id, Version: version})
	})
	if err != nil {
		return nil, err
	}
	if err := rpc.ErrorFromStatus(resp.Status, nil); err != nil {
		return nil, err
	}
	return &models.RemoteVlob{
		ID:        id,
		Version:   resp.Version,
		Blob:      resp.Blob,
		Author:    resp.Author,
		CreatedOn: resp.CreatedOn,
	}, nil
}

func (s *GRPCClient) VlobUpdate(ctx context.Context, id uuid.UUID, version uint64, blob []byte) error {
	resp, err := call(ctx, s, func(ctx context.Context, c *rpc.BackendClient) (*rpc.VlobUpdateResponse, error) {
		return c.VlobUpdate(ctx, &rpc.VlobUpdateRequest{VlobID: id, Version: version, Blob: blob})
	})
	if err != nil {
		return err
	}
	return rpc.ErrorFromStatus(resp.Status, nil)
}

func (s *GRPCClient) BlockCreateURL(ctx context.Context, id uuid.UUID) (string, error) {
	resp, err := call(ctx, s, func(ctx context.Context, c *rpc.BackendClient) (*rpc.BlockURLResponse, error) {
		return c.BlockCreateURL(ctx, &rpc.BlockURLRequest{BlockID: id})
	})
	if err != nil {
		return "", err
	}
	return resp.URL, rpc.ErrorFromStatus(resp.Status, nil)
}

func (s *GRPCClient) BlockReadURL(ctx context.Context, id uuid.UUID) (string, error) {
	resp, err := call(ctx, s, func(ctx context.Context, c *rpc.BackendClient) (*rpc.BlockURLResponse, error) {
		return c.BlockReadURL(ctx, &rpc.BlockURLRequest{BlockID: id})
	})
	if err != nil {
		return "", err
	}
	return resp.URL, rpc.ErrorFromStatus(resp.Status, nil)
}

func (s *GRPCClient) PkiSubmit(ctx context.Context, org string, req *models.EnrollmentSubmission) error {
	resp, err := call(ctx, s, func(ctx context.Context, c *rpc.BackendClient) (*rpc.PkiSubmitResponse, error) {
		return c.PkiEnrollmentSubmit(ctx, &rpc.PkiSubmitRequest{
			OrganizationID:   org,
			EnrollmentID:     req.EnrollmentID,
			Certificate:      req.Certificate,
			CertificateSHA1:  req.CertificateSHA1,
			PayloadSignature: req.PayloadSignature,
			Payload:          req.Payload,
			Force:            req.Force,
		})
	})
	if err != nil {
		return err
	}
	return rpc.ErrorFromStatus(resp.Status, resp.SubmittedOn)
}

func (s *GRPCClient) PkiInfo(ctx context.Context, org string, id uuid.UUID) (*models.EnrollmentStatus, error) {
	resp, err := call(ctx, s, func(ctx context.Context, c *rpc.BackendClient) (*rpc.PkiInfoResponse, error) {
		return c.PkiEnrollmentInfo(ctx, &rpc.PkiInfoRequest{OrganizationID: org, EnrollmentID: id})
	})
	if err != nil {
		return nil, err
	}
	if err := rpc.ErrorFromStatus(resp.Status, nil); err != nil {
		return nil, err
	}
	return &models.EnrollmentStatus{
		EnrollmentID:  id,
		State:         resp.EnrollmentState,
		SubmittedOn:   resp.SubmittedOn,
		CancelledOn:   resp.CancelledOn,
		RejectedOn:    resp.RejectedOn,
		AcceptedOn:    resp.AcceptedOn,
		AcceptPayload: resp.AcceptPayload,
	}, nil
}

func (s *GRPCClient) OrganizationConfig(ctx context.Context) (*models.OrganizationConfig, error) {
	resp, err := call(ctx, s, func(ctx context.Context, c *rpc.BackendClient) (*rpc.OrganizationConfigResponse, error) {
		return c.OrganizationConfig(ctx, &rpc.OrganizationConfigRequest{})
	})
	if err != nil {
		return nil, err
	}
	if err := rpc.ErrorFromStatus(resp.Status, nil); err != nil {
		return nil, err
	}
	return &models.OrganizationConfig{ActiveUsersLimit: resp.ActiveUsersLimit}, nil
}
