package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sampleInput struct {
	Code  string `validate:"required,max=8"`
	GSTIN string `validate:"omitempty,gstin"`
	State string `validate:"omitempty,statecode"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(sampleInput{Code: "CASH", GSTIN: "27AAPFU0939F1ZV", State: "27"}))

	err := ValidateStruct(sampleInput{})
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "missing_code", Reason(err))

	err = ValidateStruct(sampleInput{Code: "X", GSTIN: "27AAPFU0939F1Z"})
	require.Equal(t, "invalid_gstin", Reason(err))

	err = ValidateStruct(sampleInput{Code: "X", State: "55"})
	require.Equal(t, "invalid_state", Reason(err))
}

func TestGSTINHelpers(t *testing.T) {
	require.True(t, ValidGSTIN("29ABCDE1234F1Z5"))
	require.False(t, ValidGSTIN("99ABCDE1234F1Z5"))
	require.Equal(t, "29", StateFromGSTIN("29ABCDE1234F1Z5"))
	require.Empty(t, StateFromGSTIN(""))
	require.True(t, ValidStateCode("97"))
	require.False(t, ValidStateCode("00"))
}
