package common

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	Months int    `json:"months" validate:"required,min=1"`
	Method string `json:"paymentMethod" validate:"required,oneof=bank_transfer credit"`
}

func TestDecodeJSONValidatesFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"months":0,"paymentMethod":"card"}`))
	var p samplePayload
	err := DecodeJSON(req, &p)
	require.Error(t, err)

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_FAILED", appErr.Code)
	require.Equal(t, map[string]string{"months": "required", "paymentMethod": "oneof"}, appErr.Details)
}

func TestDecodeJSONRejectsUnknownAndEmpty(t *testing.T) {
	var p samplePayload
	err := DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"months":1,"paymentMethod":"credit","x":1}`)), &p)
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "BAD_REQUEST", appErr.Code)

	err = DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``)), &p)
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "request body is required", appErr.Message)
}

func TestDecodeJSONAccepts(t *testing.T) {
	var p samplePayload
	err := DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"months":3,"paymentMethod":"credit"}`)), &p)
	require.NoError(t, err)
	require.Equal(t, samplePayload{Months: 3, Method: "credit"}, p)
}
