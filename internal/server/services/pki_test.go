package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/events"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const org = "CoolOrg"

var (
	certC     = []byte("-----certificate C-----")
	submitted = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
)

type pkiFixture struct {
	svc  *PkiService
	rm   *fakeRepoManager
	rec  *recorder
	mock sqlmock.Sqlmock
}

func newPkiFixture(t *testing.T) *pkiFixture {
	t.Helper()
	db, mock := newSQLMockDB(t)
	rm := newFakeRepoManager()
	bus, rec := newBus()
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
	return &pkiFixture{svc: NewPkiService(db, rm, bus, testConfig(), logging.Discard()), rm: rm, rec: rec, mock: mock}
}

func submitReq(id uuid.UUID, cert []byte, force bool) *SubmitRequest {
	return &SubmitRequest{
		EnrollmentID:     id,
		Certificate:      cert,
		CertificateSHA1:  cryptox.CertificateSHA1(cert),
		PayloadSignature: []byte("sig"),
		Payload:          []byte("payload"),
		Force:            force,
	}
}

func acceptReq(user, device string) *AcceptRequest {
	return &AcceptRequest{
		AccepterCertificate: []byte("admin-cert"),
		PayloadSignature:    []byte("asig"),
		Payload:             []byte("apayload"),
		User:                &models.User{UserID: user, Profile: models.UserProfileStandard, UserCertificate: []byte("ucert")},
		Device:              &models.Device{DeviceID: device, DeviceCertificate: []byte("dcert")},
	}
}

func (f *pkiFixture) submit(t *testing.T, req *SubmitRequest, at time.Time, commit bool) error {
	t.Helper()
	if commit {
		expectCommit(f.mock)
	} else {
		expectRollback(f.mock)
	}
	return f.svc.Submit(context.Background(), org, req, at)
}

func TestPkiService_SubmitRejectsHashMismatch(t *testing.T) {
	f := newPkiFixture(t)

	req := submitReq(uuid.New(), certC, false)
	req.CertificateSHA1 = []byte("nope")
	err := f.svc.Submit(context.Background(), org, req, submitted)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestPkiService_SubmitIDAlreadyUsed(t *testing.T) {
	f := newPkiFixture(t)
	id := uuid.New()

	require.NoError(t, f.submit(t, submitReq(id, certC, false), submitted, true))

	err := f.submit(t, submitReq(id, []byte("other cert"), false), submitted, false)
	assert.ErrorIs(t, err, common.ErrIDAlreadyUsed)
	assert.Equal(t, []string{org, org}, f.rm.u.locks, "every submit holds the organization lock")
}

func TestPkiService_SubmitTwiceWithoutForce(t *testing.T) {
	f := newPkiFixture(t)

	require.NoError(t, f.submit(t, submitReq(uuid.New(), certC, false), submitted, true))

	err := f.submit(t, submitReq(uuid.New(), certC, false), submitted.Add(time.Minute), false)
	assert.ErrorIs(t, err, common.ErrCertificateAlreadySubmitted)

	var withTime *common.SubmittedOnError
	require.ErrorAs(t, err, &withTime)
	assert.Equal(t, submitted, withTime.SubmittedOn)
	assert.Len(t, f.rec.all(), 1)
}

func TestPkiService_SubmitWithForceCancelsPrevious(t *testing.T) {
	f := newPkiFixture(t)
	first, second := uuid.New(), uuid.New()
	later := submitted.Add(time.Hour)

	require.NoError(t, f.submit(t, submitReq(first, certC, false), submitted, true))
	require.NoError(t, f.submit(t, submitReq(second, certC, true), later, true))

	info, err := f.svc.Info(context.Background(), org, first)
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentCancelled, info.State)
	assert.Equal(t, later, info.Cancelled.CancelledOn)
	assert.Equal(t, submitted, info.Cancelled.SubmittedOn)

	info, err = f.svc.Info(context.Background(), org, second)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentSubmitted, info.State)

	// one event for the first submit, then cancel + submit
	assert.Len(t, f.rec.all(), 3)
	for _, e := range f.rec.all() {
		assert.Equal(t, events.PkiEnrollmentUpdated{OrganizationID: org}, e)
	}
}

func TestPkiService_SubmitAfterRejectIsAllowed(t *testing.T) {
	f := newPkiFixture(t)
	first := uuid.New()

	require.NoError(t, f.submit(t, submitReq(first, certC, false), submitted, true))
	expectCommit(f.mock)
	require.NoError(t, f.svc.Reject(context.Background(), org, first, submitted))

	require.NoError(t, f.submit(t, submitReq(uuid.New(), certC, false), submitted, true))
	assert.Len(t, f.rm.e.records, 2, "history is kept")
}

func TestPkiService_InfoNotFound(t *testing.T) {
	f := newPkiFixture(t)

	_, err := f.svc.Info(context.Background(), org, uuid.New())
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPkiService_RejectAndAcceptAreTerminal(t *testing.T) {
	f := newPkiFixture(t)
	id := uuid.New()

	require.NoError(t, f.submit(t, submitReq(id, certC, false), submitted, true))

	expectCommit(f.mock)
	require.NoError(t, f.svc.Reject(context.Background(), org, id, submitted))

	expectRollback(f.mock)
	assert.ErrorIs(t, f.svc.Reject(context.Background(), org, id, submitted), common.ErrNoLongerAvailable)

	expectRollback(f.mock)
	err := f.svc.Accept(context.Background(), org, "admin@pc", id, acceptReq("bob", "bob@laptop"), submitted)
	assert.ErrorIs(t, err, common.ErrNoLongerAvailable)
	assert.Empty(t, f.rm.u.users, "no account is created for a decided enrollment")

	expectRollback(f.mock)
	assert.ErrorIs(t, f.svc.Reject(context.Background(), org, uuid.New(), submitted), common.ErrorNotFound)
}

func TestPkiService_AcceptFailuresLeaveEnrollmentSubmitted(t *testing.T) {
	cases := []struct {
		name  string
		setup func(f *pkiFixture)
		want  error
	}{
		{
			name: "user exists",
			setup: func(f *pkiFixture) {
				f.rm.u.users["bob"] = &models.User{UserID: "bob"}
			},
			want: common.ErrAlreadyExists,
		},
		{
			name: "active users limit",
			setup: func(f *pkiFixture) {
				limit := int64(1)
				f.rm.u.limit = &limit
				f.rm.u.users["alice"] = &models.User{UserID: "alice"}
			},
			want: common.ErrActiveUsersLimitReached,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newPkiFixture(t)
			id := uuid.New()
			require.NoError(t, f.submit(t, submitReq(id, certC, false), submitted, true))
			tc.setup(f)

			expectRollback(f.mock)
			err := f.svc.Accept(context.Background(), org, "admin@pc", id, acceptReq("bob", "bob@laptop"), submitted)
			assert.ErrorIs(t, err, tc.want)

			info, err := f.svc.Info(context.Background(), org, id)
			require.NoError(t, err)
			assert.Equal(t, models.EnrollmentSubmitted, info.State)
		})
	}
}

func TestPkiService_AcceptValidatesAccount(t *testing.T) {
	f := newPkiFixture(t)

	err := f.svc.Accept(context.Background(), org, "admin@pc", uuid.New(), acceptReq("bob", "alice@laptop"), submitted)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	err = f.svc.Accept(context.Background(), org, "admin@pc", uuid.New(), &AcceptRequest{}, submitted)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestPkiService_EndToEnd(t *testing.T) {
	f := newPkiFixture(t)
	e1, e2 := uuid.New(), uuid.New()
	acceptedOn := submitted.Add(time.Hour)

	require.NoError(t, f.submit(t, submitReq(e1, certC, false), submitted, true))

	pending, err := f.svc.List(context.Background(), org)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, e1, pending[0].EnrollmentID)
	assert.Equal(t, []byte("payload"), pending[0].SubmitPayload)

	expectCommit(f.mock)
	require.NoError(t, f.svc.Accept(context.Background(), org, "admin@pc", e1, acceptReq("bob", "bob@laptop"), acceptedOn))

	info, err := f.svc.Info(context.Background(), org, e1)
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentAccepted, info.State)
	require.NotNil(t, info.Accepted)
	assert.Nil(t, info.Submitted)
	assert.Equal(t, acceptedOn, info.Accepted.AcceptedOn)
	assert.Equal(t, []byte("admin-cert"), info.Accepted.AccepterCertificate)
	assert.Equal(t, []byte("apayload"), info.Accepted.AcceptPayload)

	raw := f.rm.e.find(e1)
	assert.Equal(t, "admin@pc", *raw.AccepterDevice)
	assert.Equal(t, "bob@laptop", *raw.AcceptedDevice)

	pending, err = f.svc.List(context.Background(), org)
	require.NoError(t, err)
	assert.Empty(t, pending)

	err = f.submit(t, submitReq(uuid.New(), certC, false), acceptedOn, false)
	assert.ErrorIs(t, err, common.ErrAlreadyEnrolled)
	var withTime *common.SubmittedOnError
	require.ErrorAs(t, err, &withTime)
	assert.Equal(t, submitted, withTime.SubmittedOn)

	require.NoError(t, f.rm.u.Revoke(context.Background(), org, "bob", acceptedOn.Add(time.Minute)))

	require.NoError(t, f.submit(t, submitReq(e2, certC, false), acceptedOn.Add(2*time.Minute), true))
	info, err = f.svc.Info(context.Background(), org, e2)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentSubmitted, info.State)
}
