package attestation

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	reasoncodes "zk-attestation/pkg/reason_codes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateAgeOn(t *testing.T) {
	dob := NewDate(1995, time.January, 1)

	tests := []struct {
		name     string
		asOf     Date
		expected int
		wantErr  bool
	}{
		{"day before birthday", NewDate(2013, time.December, 31), 18, false},
		{"on eighteenth birthday", NewDate(2013, time.January, 1), 18, false},
		{"day before eighteenth birthday", NewDate(2012, time.December, 31), 17, false},
		{"birth day", NewDate(1995, time.January, 1), 0, false},
		{"before birth", NewDate(1994, time.December, 31), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			age, err := dob.AgeOn(tt.asOf)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, age)
		})
	}
}

func TestDateJSON(t *testing.T) {
	var r AttributeRecord
	require.NoError(t, json.Unmarshal([]byte(`{"reference_id":"123456789012","name":"A","date_of_birth":"1995-01-01","region":"Karnataka"}`), &r))
	assert.Equal(t, int64(19950101), r.DateOfBirth.Int())

	code, ok := r.RegionCode()
	assert.True(t, ok)
	assert.Equal(t, "KA", code)

	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"date_of_birth":"1995-01-01"`)

	assert.Error(t, json.Unmarshal([]byte(`{"date_of_birth":"01/01/1995"}`), &r))
}

func TestNormalizeRegion(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		ok       bool
	}{
		{"KA", "KA", true},
		{" mh ", "MH", true},
		{"Tamil Nadu", "TN", true},
		{"jammu & kashmir", "JK", true},
		{"Orissa", "OD", true},
		{"Atlantis", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			code, ok := NormalizeRegion(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, code)
		})
	}
}

func TestParamsValidation(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		params  Params
		wantErr bool
	}{
		{"age ok", KindAge, AgeParams{Threshold: 18}, false},
		{"age zero", KindAge, AgeParams{Threshold: 0}, false},
		{"age negative", KindAge, AgeParams{Threshold: -1}, true},
		{"age too large", KindAge, AgeParams{Threshold: 151}, true},
		{"region ok", KindRegion, RegionParams{AllowedRegions: []string{"KA", "mh"}}, false},
		{"region empty", KindRegion, RegionParams{}, true},
		{"region unsupported", KindRegion, RegionParams{AllowedRegions: []string{"KA", "XX"}}, true},
		{"region too many", KindRegion, RegionParams{AllowedRegions: []string{"KA", "MH", "DL", "TN", "KL", "GA", "GJ", "RJ", "UP"}}, true},
		{"uniqueness ok", KindUniqueness, UniquenessParams{Scope: "s"}, false},
		{"uniqueness no scope", KindUniqueness, UniquenessParams{Epoch: "e"}, true},
		{"kind mismatch", KindAge, RegionParams{AllowedRegions: []string{"KA"}}, true},
		{"missing params", KindAge, nil, true},
		{"unknown kind", Kind("height"), AgeParams{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckParams(tt.kind, tt.params)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrParameterValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDecodeParams(t *testing.T) {
	p, err := DecodeParams(KindRegion, json.RawMessage(`{"allowed_regions":["KA","MH"],"nonce":"n"}`))
	require.NoError(t, err)
	assert.Equal(t, RegionParams{AllowedRegions: []string{"KA", "MH"}, Nonce: "n"}, p)

	_, err = DecodeParams(KindAge, json.RawMessage(`{"threshold":"eighteen"}`))
	assert.ErrorIs(t, err, ErrParameterValidation)

	_, err = DecodeParams(KindAge, nil)
	assert.ErrorIs(t, err, ErrParameterValidation)
}

func TestFingerprint(t *testing.T) {
	a, err := Fingerprint(KindRegion, "ref", RegionParams{AllowedRegions: []string{"MH", "KA"}})
	require.NoError(t, err)
	b, err := Fingerprint(KindRegion, "ref", RegionParams{AllowedRegions: []string{"ka", "MH", "KA"}})
	require.NoError(t, err)
	assert.Equal(t, a, b, "region order and duplicates must not change the fingerprint")

	c, err := Fingerprint(KindRegion, "other-ref", RegionParams{AllowedRegions: []string{"MH", "KA"}})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	d, err := Fingerprint(KindRegion, "ref", RegionParams{AllowedRegions: []string{"MH", "KA"}, Nonce: "n"})
	require.NoError(t, err)
	assert.NotEqual(t, a, d)

	e, err := Fingerprint(KindUniqueness, "ref", UniquenessParams{Scope: "s", Epoch: "e"})
	require.NoError(t, err)
	f, err := Fingerprint(KindUniqueness, "ref", UniquenessParams{Scope: "s", Epoch: "f"})
	require.NoError(t, err)
	assert.NotEqual(t, e, f)
}

func TestErrorMatching(t *testing.T) {
	timeout := NewProofTimeoutError(KindAge, time.Second)
	assert.ErrorIs(t, timeout, ErrProofGeneration)
	assert.ErrorIs(t, timeout, ErrProofTimeout)
	assert.Equal(t, reasoncodes.ErrProofTimeout, timeout.Reason())

	failure := NewProofGenerationError(KindRegion, errors.New("boom"))
	assert.ErrorIs(t, failure, ErrProofGeneration)
	assert.NotErrorIs(t, failure, ErrProofTimeout)
	assert.Contains(t, failure.Error(), "boom")

	wrapped := errors.Join(errors.New("context"), NewCircuitLoadError(KindUniqueness, errors.New("missing file")))
	var attErr *Error
	require.ErrorAs(t, wrapped, &attErr)
	assert.Equal(t, KindUniqueness, attErr.Kind)
	assert.ErrorIs(t, wrapped, ErrCircuitLoad)
	assert.NotErrorIs(t, wrapped, ErrChallengeExpired)
}

func TestAttestationCloneAndJSON(t *testing.T) {
	threshold := 18
	original := &Attestation{
		Kind:          KindAge,
		Proof:         []byte{1, 2, 3},
		PublicSignals: []string{"100", "1", "18", "20260101"},
		Metadata: Metadata{
			CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Params:     AgeParams{Threshold: 18, Nonce: "n"},
			Commitment: "100",
			Threshold:  &threshold,
		},
	}

	clone := original.Clone()
	clone.Proof[0] = 9
	clone.PublicSignals[0] = "999"
	*clone.Metadata.Threshold = 21
	assert.Equal(t, byte(1), original.Proof[0])
	assert.Equal(t, "100", original.Commitment())
	assert.Equal(t, 18, *original.Metadata.Threshold)

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var back Attestation
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, *original, back)
}
