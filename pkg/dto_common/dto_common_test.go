package dtocommon

import (
	"encoding/json"
	"errors"
	"testing"

	reasoncodes "zk-attestation/pkg/reason_codes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailureFactory(t *testing.T) {
	body := []byte(`{"broken"`)

	dto := NewAttestationFailureFactory("", body).CreateErrorDto("", errors.New("bad json"), reasoncodes.ErrUnmarshal)
	raw, err := dto.Serialize()
	require.NoError(t, err)

	var out AttestationFailureDto
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, body, out.RequestBody)
	assert.Equal(t, "bad json", out.Error)
	assert.Equal(t, reasoncodes.ErrUnmarshal, out.ReasonCode)

	dto = NewAttestationFailureFactory("evt-1", body).CreateErrorDto("age", errors.New("too young"), reasoncodes.ErrParameterValidation)
	failure, ok := dto.(AttestationFailureDto)
	require.True(t, ok)
	assert.Equal(t, "evt-1", failure.EventId)
	assert.Equal(t, "age", failure.Kind)
	assert.Nil(t, failure.RequestBody)
}
