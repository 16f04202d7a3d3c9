package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/rpc"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/services"
	"github.com/google/uuid"
	"google.golang.org/grpc"
)

// Vlobs is the part of services.VlobService the endpoint uses.
type Vlobs interface {
	Read(ctx context.Context, org string, id uuid.UUID, version *uint64) (*models.Vlob, error)
	Update(ctx context.Context, org, author string, id uuid.UUID, version uint64, blob []byte, now time.Time) error
}

// Enrollments is the part of services.PkiService the endpoint uses.
type Enrollments interface {
	Submit(ctx context.Context, org string, req *services.SubmitRequest, now time.Time) error
	Info(ctx context.Context, org string, id uuid.UUID) (*models.EnrollmentInfo, error)
	List(ctx context.Context, org string) ([]models.SubmittedEnrollment, error)
	Reject(ctx context.Context, org string, id uuid.UUID, now time.Time) error
	Accept(ctx context.Context, org, accepterDevice string, id uuid.UUID, req *services.AcceptRequest, now time.Time) error
}

type Blocks interface {
	CreateURL(ctx context.Context, org, author string, id uuid.UUID, now time.Time) (string, error)
	ReadURL(ctx context.Context, org string, id uuid.UUID) (string, error)
}

type Organizations interface {
	Config(ctx context.Context, id string) (*models.Organization, error)
}

// GRPCServer exposes the backend services over gRPC with the CBOR codec.
type GRPCServer struct {
	address       string
	vlobs         Vlobs
	enrollments   Enrollments
	blocks        Blocks
	organizations Organizations
	logger        logging.Logger
	jwtSecret     []byte
	now           func() time.Time
}

func NewGRPCServer(a string, l logging.Logger, vs Vlobs, ps Enrollments, bs Blocks, orgs Organizations, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:       a,
		logger:        l.With("module", "grpc_server"),
		vlobs:         vs,
		enrollments:   ps,
		blocks:        bs,
		organizations: orgs,
		jwtSecret:     []byte(secretKey),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.recoveryInterceptor, s.accessTokenInterceptor))

	rpc.RegisterBackendServer(srv, &handler{s})

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
