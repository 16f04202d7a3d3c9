package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/events"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/blocks"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/enrollments"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/organizations"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/vlobs"
	"github.com/google/uuid"
)

// -------- test fakes --------

type fakeVlobsRepo struct {
	vlobs.Repository
	data      map[uuid.UUID][]*models.Vlob
	readCalls int
	appendErr error
	listOut   []uint64
}

func newFakeVlobsRepo() *fakeVlobsRepo {
	return &fakeVlobsRepo{data: map[uuid.UUID][]*models.Vlob{}}
}

func (f *fakeVlobsRepo) Read(ctx context.Context, org string, id uuid.UUID, version uint64) (*models.Vlob, error) {
	f.readCalls++
	for _, v := range f.data[id] {
		if v.Version == version {
			return v, nil
		}
	}
	return nil, common.ErrVersionNotFound
}

func (f *fakeVlobsRepo) ReadLatest(ctx context.Context, org string, id uuid.UUID) (*models.Vlob, error) {
	f.readCalls++
	h := f.data[id]
	if len(h) == 0 {
		return nil, common.ErrorNotFound
	}
	return h[len(h)-1], nil
}

func (f *fakeVlobsRepo) Append(ctx context.Context, v *models.Vlob) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	if uint64(len(f.data[v.VlobID]))+1 != v.Version {
		return common.ErrVersionConflict
	}
	f.data[v.VlobID] = append(f.data[v.VlobID], v)
	return nil
}

func (f *fakeVlobsRepo) ListVersions(ctx context.Context, org string, id uuid.UUID) ([]uint64, error) {
	if f.listOut != nil {
		return f.listOut, nil
	}
	var out []uint64
	for _, v := range f.data[id] {
		out = append(out, v.Version)
	}
	return out, nil
}

type fakeUsersRepo struct {
	users.Repository
	users     map[string]*models.User
	devices   map[string]string
	limit     *int64
	locks     []string
	lockErr   error
	createErr error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{users: map[string]*models.User{}, devices: map[string]string{}}
}

func (f *fakeUsersRepo) TakeWriteLock(ctx context.Context, org string) error {
	f.locks = append(f.locks, org)
	return f.lockErr
}

func (f *fakeUsersRepo) CreateUserWithDevice(ctx context.Context, u *models.User, d *models.Device) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.limit != nil {
		var active int64
		for _, existing := range f.users {
			if !existing.IsRevoked(u.CreatedOn) {
				active++
			}
		}
		if active >= *f.limit {
			return common.ErrActiveUsersLimitReached
		}
	}
	if _, ok := f.users[u.UserID]; ok {
		return common.ErrAlreadyExists
	}
	if _, ok := f.devices[d.DeviceID]; ok {
		return common.ErrAlreadyExists
	}
	cp := *u
	f.users[u.UserID] = &cp
	f.devices[d.DeviceID] = u.UserID
	return nil
}

func (f *fakeUsersRepo) GetUser(ctx context.Context, org, userID string) (*models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) GetUserByDevice(ctx context.Context, org, deviceID string) (*models.User, error) {
	userID, ok := f.devices[deviceID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return f.GetUser(ctx, org, userID)
}

func (f *fakeUsersRepo) Revoke(ctx context.Context, org, userID string, now time.Time) error {
	u, ok := f.users[userID]
	if !ok {
		return common.ErrorNotFound
	}
	if u.RevokedOn == nil {
		u.RevokedOn = &now
	}
	return nil
}

type fakeEnrollmentsRepo struct {
	enrollments.Repository
	records []*models.Enrollment
	listErr error
}

func (f *fakeEnrollmentsRepo) find(id uuid.UUID) *models.Enrollment {
	for _, e := range f.records {
		if e.EnrollmentID == id {
			return e
		}
	}
	return nil
}

func (f *fakeEnrollmentsRepo) Get(ctx context.Context, org string, id uuid.UUID) (*models.Enrollment, error) {
	e := f.find(id)
	if e == nil {
		return nil, common.ErrorNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEnrollmentsRepo) GetForUpdate(ctx context.Context, org string, id uuid.UUID) (*models.Enrollment, error) {
	return f.Get(ctx, org, id)
}

func (f *fakeEnrollmentsRepo) ListByCertificateHash(ctx context.Context, org string, sha1 []byte) ([]*models.Enrollment, error) {
	var out []*models.Enrollment
	for _, e := range f.records {
		if string(e.SubmitterCertificateSHA1) == string(sha1) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].State < out[j].State })
	return out, nil
}

func (f *fakeEnrollmentsRepo) ListSubmitted(ctx context.Context, org string) ([]*models.Enrollment, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.Enrollment
	for _, e := range f.records {
		if e.State == models.EnrollmentSubmitted {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEnrollmentsRepo) Create(ctx context.Context, e *models.Enrollment) error {
	if f.find(e.EnrollmentID) != nil {
		return common.ErrIDAlreadyUsed
	}
	cp := *e
	cp.State = models.EnrollmentSubmitted
	f.records = append(f.records, &cp)
	return nil
}

func (f *fakeEnrollmentsRepo) submitted(id uuid.UUID) (*models.Enrollment, error) {
	e := f.find(id)
	if e == nil || e.State != models.EnrollmentSubmitted {
		return nil, common.ErrIntegrityViolation
	}
	return e, nil
}

func (f *fakeEnrollmentsRepo) Cancel(ctx context.Context, org string, id uuid.UUID, now time.Time) error {
	e, err := f.submitted(id)
	if err != nil {
		return err
	}
	e.State, e.CancelledOn = models.EnrollmentCancelled, &now
	return nil
}

func (f *fakeEnrollmentsRepo) Reject(ctx context.Context, org string, id uuid.UUID, now time.Time) error {
	e, err := f.submitted(id)
	if err != nil {
		return err
	}
	e.State, e.RejectedOn = models.EnrollmentRejected, &now
	return nil
}

func (f *fakeEnrollmentsRepo) Accept(ctx context.Context, org string, id uuid.UUID, a *models.Acceptance) error {
	e, err := f.submitted(id)
	if err != nil {
		return err
	}
	accepter, accepted := a.AccepterDevice, a.AcceptedDevice
	e.State = models.EnrollmentAccepted
	e.AcceptedOn = &a.AcceptedOn
	e.AccepterCertificate = a.AccepterCertificate
	e.AcceptPayloadSignature = a.AcceptPayloadSignature
	e.AcceptPayload = a.AcceptPayload
	e.AccepterDevice = &accepter
	e.AcceptedDevice = &accepted
	return nil
}

type fakeOrgsRepo struct {
	organizations.Repository
	orgs map[string]*models.Organization
}

func (f *fakeOrgsRepo) Create(ctx context.Context, org *models.Organization) error {
	if _, ok := f.orgs[org.ID]; ok {
		return common.ErrAlreadyExists
	}
	f.orgs[org.ID] = org
	return nil
}

func (f *fakeOrgsRepo) Get(ctx context.Context, id string) (*models.Organization, error) {
	org, ok := f.orgs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return org, nil
}

func (f *fakeOrgsRepo) SetActiveUsersLimit(ctx context.Context, id string, limit *int64) error {
	org, ok := f.orgs[id]
	if !ok {
		return common.ErrorNotFound
	}
	org.ActiveUsersLimit = limit
	return nil
}

type fakeBlocksRepo struct {
	blocks.Repository
	blocks map[uuid.UUID]*models.Block
	getErr error
}

func (f *fakeBlocksRepo) Create(ctx context.Context, b *models.Block) error {
	if _, ok := f.blocks[b.BlockID]; ok {
		return common.ErrAlreadyExists
	}
	cp := *b
	f.blocks[b.BlockID] = &cp
	return nil
}

func (f *fakeBlocksRepo) Get(ctx context.Context, org string, id uuid.UUID) (*models.Block, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.blocks[id]
	if !ok || b.OrganizationID != org {
		return nil, common.ErrorNotFound
	}
	return b, nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	o *fakeOrgsRepo
	u *fakeUsersRepo
	v *fakeVlobsRepo
	e *fakeEnrollmentsRepo
	b *fakeBlocksRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		o: &fakeOrgsRepo{orgs: map[string]*models.Organization{}},
		u: newFakeUsersRepo(),
		v: newFakeVlobsRepo(),
		e: &fakeEnrollmentsRepo{},
		b: &fakeBlocksRepo{blocks: map[uuid.UUID]*models.Block{}},
	}
}

func (m *fakeRepoManager) Organizations(db dbx.DBTX) organizations.Repository { return m.o }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository                 { return m.u }
func (m *fakeRepoManager) Vlobs(db dbx.DBTX) vlobs.Repository                 { return m.v }
func (m *fakeRepoManager) Enrollments(db dbx.DBTX) enrollments.Repository     { return m.e }
func (m *fakeRepoManager) Blocks(db dbx.DBTX) blocks.Repository               { return m.b }

// recorder collects every event published on a bus.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Handle(ctx context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

// -------- helpers --------

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                   "k",
		AccessTokenValidityDuration: time.Hour,
		StoreOperationTimeout:       time.Second,
		S3Region:                    "us-east-1",
		S3RootUser:                  "minioadmin",
		S3RootPassword:              "minioadmin",
		S3BaseEndpoint:              "http://127.0.0.1:9000",
		S3Bucket:                    "gophvault",
		BlockURLValidityDuration:    time.Minute,
	}
}

func newBus() (*events.Bus, *recorder) {
	bus := events.NewBus(logging.Discard())
	rec := &recorder{}
	bus.Subscribe("recorder", rec)
	return bus, rec
}

func expectCommit(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectCommit()
}

func expectRollback(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectRollback()
}
