package events

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) (*Bus, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l := logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	return NewBus(l), &buf
}

type recorder struct {
	mu  sync.Mutex
	got []Event
}

func (r *recorder) Handle(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, e)
	return nil
}

func TestBus_PublishToAllSubscribers(t *testing.T) {
	bus, _ := newTestBus(t)
	a, b := &recorder{}, &recorder{}
	bus.Subscribe("a", a)
	bus.Subscribe("b", b)

	e1 := PkiEnrollmentUpdated{OrganizationID: "CoolOrg"}
	e2 := VlobUpdated{OrganizationID: "CoolOrg", VlobID: uuid.New(), Version: 2, Author: "alice@laptop"}
	bus.Publish(context.Background(), e1, e2)

	assert.Equal(t, []Event{e1, e2}, a.got)
	assert.Equal(t, []Event{e1, e2}, b.got)
}

func TestBus_FailingSubscriberIsLoggedAndIsolated(t *testing.T) {
	bus, buf := newTestBus(t)
	ok := &recorder{}
	bus.Subscribe("broken", SubscriberFunc(func(context.Context, Event) error {
		return errors.New("socket closed")
	}))
	bus.Subscribe("ok", ok)

	bus.Publish(context.Background(), PkiEnrollmentUpdated{OrganizationID: "CoolOrg"})

	assert.Len(t, ok.got, 1)
	out := buf.String()
	assert.True(t, strings.Contains(out, "event delivery failed"), out)
	assert.True(t, strings.Contains(out, "subscriber=broken"), out)
	assert.True(t, strings.Contains(out, "socket closed"), out)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus, _ := newTestBus(t)
	r := &recorder{}
	unsubscribe := bus.Subscribe("r", r)

	bus.Publish(context.Background(), PkiEnrollmentUpdated{OrganizationID: "o"})
	unsubscribe()
	unsubscribe()
	bus.Publish(context.Background(), PkiEnrollmentUpdated{OrganizationID: "o"})

	assert.Len(t, r.got, 1)
}

func TestEncodeDecode(t *testing.T) {
	evts := []Event{
		VlobUpdated{OrganizationID: "CoolOrg", VlobID: uuid.New(), Version: 7, Author: "bob@phone"},
		PkiEnrollmentUpdated{OrganizationID: "CoolOrg"},
	}
	for _, e := range evts {
		b, err := Encode(e)
		require.NoError(t, err)
		back, err := Decode(b)
		require.NoError(t, err)
		assert.Equal(t, e, back)
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, in := range []string{
		`not json`,
		`{"kind":"vlob.deleted","payload":{}}`,
		`{"kind":"vlob.updated","payload":{"version":"seven"}}`,
	} {
		_, err := Decode([]byte(in))
		assert.ErrorIs(t, err, common.ErrInvalidInput, in)
	}
}
