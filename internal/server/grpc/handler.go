package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/rpc"
	"github.com/dmitrijs2005/gophvault/internal/server/auth"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// handler implements rpc.BackendServer on top of GRPCServer's services.
type handler struct {
	*GRPCServer
}

var _ rpc.BackendServer = (*handler)(nil)

// outcome maps a service error to a response status. Untyped errors become
// gRPC errors and are logged.
func (h *handler) outcome(ctx context.Context, op string, err error) (string, error) {
	if st, ok := rpc.StatusFromError(err); ok {
		return st, nil
	}
	if errors.Is(err, common.ErrorUnauthorized) {
		return "", status.Error(codes.Unauthenticated, "unauthorized")
	}
	h.logger.Error(ctx, "request failed", "op", op, "error", err)
	return "", status.Error(codes.Internal, "internal error")
}

func (h *handler) identity(ctx context.Context) (*auth.Identity, error) {
	id, ok := identityFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthenticated")
	}
	return id, nil
}

func (h *handler) Ping(ctx context.Context, req *rpc.PingRequest) (*rpc.PingResponse, error) {
	return &rpc.PingResponse{Status: rpc.StatusOK, Pong: req.Ping, APIVersion: common.APIVersion}, nil
}

func (h *handler) VlobRead(ctx context.Context, req *rpc.VlobReadRequest) (*rpc.VlobReadResponse, error) {
	id, err := h.identity(ctx)
	if err != nil {
		return nil, err
	}

	v, err := h.vlobs.Read(ctx, id.OrganizationID, req.VlobID, req.Version)
	if err != nil {
		st, err := h.outcome(ctx, "vlob_read", err)
		if err != nil {
			return nil, err
		}
		return &rpc.VlobReadResponse{Status: st}, nil
	}

	return &rpc.VlobReadResponse{
		Status:    rpc.StatusOK,
		Version:   v.Version,
		Blob:      v.Blob,
		Author:    v.Author,
		CreatedOn: v.CreatedOn,
	}, nil
}

func (h *handler) VlobUpdate(ctx context.Context, req *rpc.VlobUpdateRequest) (*rpc.VlobUpdateResponse, error) {
	id, err := h.identity(ctx)
	if err != nil {
		return nil, err
	}

	err = h.vlobs.Update(ctx, id.OrganizationID, id.DeviceID, req.VlobID, req.Version, req.Blob, h.now())
	st, err := h.outcome(ctx, "vlob_update", err)
	if err != nil {
		return nil, err
	}
	return &rpc.VlobUpdateResponse{Status: st}, nil
}

func (h *handler) PkiEnrollmentSubmit(ctx context.Context, req *rpc.PkiSubmitRequest) (*rpc.PkiSubmitResponse, error) {
	h.logger.Info(ctx, "Enrollment submit", "organization", req.OrganizationID, "enrollment", req.EnrollmentID, "force", req.Force)

	serr := h.enrollments.Submit(ctx, req.OrganizationID, &services.SubmitRequest{
		EnrollmentID:     req.EnrollmentID,
		Certificate:      req.Certificate,
		CertificateSHA1:  req.CertificateSHA1,
		PayloadSignature: req.PayloadSignature,
		Payload:          req.Payload,
		Force:            req.Force,
	}, h.now())

	st, err := h.outcome(ctx, "pki_submit", serr)
	if err != nil {
		return nil, err
	}
	return &rpc.PkiSubmitResponse{Status: st, SubmittedOn: rpc.SubmittedOnFromError(serr)}, nil
}

func (h *handler) PkiEnrollmentInfo(ctx context.Context, req *rpc.PkiInfoRequest) (*rpc.PkiInfoResponse, error) {
	info, err := h.enrollments.Info(ctx, req.OrganizationID, req.EnrollmentID)
	if err != nil {
		st, err := h.outcome(ctx, "pki_info", err)
		if err != nil {
			return nil, err
		}
		return &rpc.PkiInfoResponse{Status: st}, nil
	}
	return infoResponse(info), nil
}

func timePtr(t time.Time) *time.Time { return &t }

func infoResponse(info *models.EnrollmentInfo) *rpc.PkiInfoResponse {
	resp := &rpc.PkiInfoResponse{Status: rpc.StatusOK, EnrollmentState: string(info.State)}
	switch {
	case info.Submitted != nil:
		resp.SubmittedOn = timePtr(info.Submitted.SubmittedOn)
	case info.Cancelled != nil:
		resp.SubmittedOn = timePtr(info.Cancelled.SubmittedOn)
		resp.CancelledOn = timePtr(info.Cancelled.CancelledOn)
	case info.Rejected != nil:
		resp.SubmittedOn = timePtr(info.Rejected.SubmittedOn)
		resp.RejectedOn = timePtr(info.Rejected.RejectedOn)
	case info.Accepted != nil:
		resp.SubmittedOn = timePtr(info.Accepted.SubmittedOn)
		resp.AcceptedOn = timePtr(info.Accepted.AcceptedOn)
		resp.AccepterCertificate = info.Accepted.AccepterCertificate
		resp.AcceptPayloadSignature = info.Accepted.AcceptPayloadSignature
		resp.AcceptPayload = info.Accepted.AcceptPayload
	}
	return resp
}

func (h *handler) PkiEnrollmentList(ctx context.Context, _ *rpc.PkiListRequest) (*rpc.PkiListResponse, error) {
	id, err := h.identity(ctx)
	if err != nil {
		return nil, err
	}

	list, err := h.enrollments.List(ctx, id.OrganizationID)
	if err != nil {
		st, err := h.outcome(ctx, "pki_list", err)
		if err != nil {
			return nil, err
		}
		return &rpc.PkiListResponse{Status: st}, nil
	}

	items := make([]rpc.PkiListItem, 0, len(list))
	for _, e := range list {
		items = append(items, rpc.PkiListItem{
			EnrollmentID:     e.EnrollmentID,
			SubmittedOn:      e.SubmittedOn,
			Certificate:      e.SubmitterCertificate,
			PayloadSignature: e.SubmitPayloadSignature,
			Payload:          e.SubmitPayload,
		})
	}
	return &rpc.PkiListResponse{Status: rpc.StatusOK, Enrollments: items}, nil
}

func (h *handler) PkiEnrollmentReject(ctx context.Context, req *rpc.PkiRejectRequest) (*rpc.PkiRejectResponse, error) {
	id, err := h.identity(ctx)
	if err != nil {
		return nil, err
	}

	err = h.enrollments.Reject(ctx, id.OrganizationID, req.EnrollmentID, h.now())
	st, err := h.outcome(ctx, "pki_reject", err)
	if err != nil {
		return nil, err
	}
	return &rpc.PkiRejectResponse{Status: st}, nil
}

func (h *handler) PkiEnrollmentAccept(ctx context.Context, req *rpc.PkiAcceptRequest) (*rpc.PkiAcceptResponse, error) {
	id, err := h.identity(ctx)
	if err != nil {
		return nil, err
	}

	err = h.enrollments.Accept(ctx, id.OrganizationID, id.DeviceID, req.EnrollmentID, &services.AcceptRequest{
		AccepterCertificate: req.AccepterCertificate,
		PayloadSignature:    req.PayloadSignature,
		Payload:             req.Payload,
		User: &models.User{
			OrganizationID:  id.OrganizationID,
			UserID:          req.UserID,
			Profile:         models.UserProfile(req.Profile),
			UserCertificate: req.UserCertificate,
			UserCertifier:   id.DeviceID,
		},
		Device: &models.Device{
			OrganizationID:    id.OrganizationID,
			DeviceID:          req.DeviceID,
			DeviceCertificate: req.DeviceCertificate,
			DeviceCertifier:   id.DeviceID,
		},
	}, h.now())

	st, err := h.outcome(ctx, "pki_accept", err)
	if err != nil {
		return nil, err
	}
	return &rpc.PkiAcceptResponse{Status: st}, nil
}

func (h *handler) blockURL(ctx context.Context, op string, get func(id *auth.Identity) (string, error)) (*rpc.BlockURLResponse, error) {
	id, err := h.identity(ctx)
	if err != nil {
		return nil, err
	}

	url, err := get(id)
	if err != nil {
		st, err := h.outcome(ctx, op, err)
		if err != nil {
			return nil, err
		}
		return &rpc.BlockURLResponse{Status: st}, nil
	}
	return &rpc.BlockURLResponse{Status: rpc.StatusOK, URL: url}, nil
}

func (h *handler) BlockCreateURL(ctx context.Context, req *rpc.BlockURLRequest) (*rpc.BlockURLResponse, error) {
	return h.blockURL(ctx, "block_create_url", func(id *auth.Identity) (string, error) {
		return h.blocks.CreateURL(ctx, id.OrganizationID, id.DeviceID, req.BlockID, h.now())
	})
}

func (h *handler) BlockReadURL(ctx context.Context, req *rpc.BlockURLRequest) (*rpc.BlockURLResponse, error) {
	return h.blockURL(ctx, "block_read_url", func(id *auth.Identity) (string, error) {
		return h.blocks.ReadURL(ctx, id.OrganizationID, req.BlockID)
	})
}

func (h *handler) OrganizationConfig(ctx context.Context, _ *rpc.OrganizationConfigRequest) (*rpc.OrganizationConfigResponse, error) {
	id, err := h.identity(ctx)
	if err != nil {
		return nil, err
	}

	org, err := h.organizations.Config(ctx, id.OrganizationID)
	if err != nil {
		st, err := h.outcome(ctx, "organization_config", err)
		if err != nil {
			return nil, err
		}
		return &rpc.OrganizationConfigResponse{Status: st}, nil
	}
	return &rpc.OrganizationConfigResponse{Status: rpc.StatusOK, ActiveUsersLimit: org.ActiveUsersLimit}, nil
}
