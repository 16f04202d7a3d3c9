package rpc

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_UUIDsTravelAsText(t *testing.T) {
	id := uuid.New()
	b, err := Codec{}.Marshal(&PkiInfoRequest{OrganizationID: "org", EnrollmentID: id})
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, Codec{}.Unmarshal(b, &generic))
	assert.Equal(t, id.String(), generic["enrollment_id"])

	var out PkiInfoRequest
	require.NoError(t, Codec{}.Unmarshal(b, &out))
	assert.Equal(t, id, out.EnrollmentID)
}
