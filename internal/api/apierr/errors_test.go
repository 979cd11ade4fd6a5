package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/echorelay/internal/document"
	"github.com/mcoot/echorelay/internal/model"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{model.ErrInvalidArgument, http.StatusBadRequest, CodeInvalidRequest},
		{document.ErrInvalidJSON, http.StatusBadRequest, CodeInvalidRequest},
		{model.ErrMalformedIdentity, http.StatusBadRequest, CodeMalformedIdentity},
		{model.ErrIdentityMismatch, http.StatusBadRequest, CodeIdentityMismatch},
		{model.ErrInvalidLobbyType, http.StatusBadRequest, CodeInvalidLobbyType},
		{model.ErrInvalidChannel, http.StatusBadRequest, CodeInvalidChannel},
		{model.ErrAccountNotFound, http.StatusNotFound, CodeAccountNotFound},
		{model.ErrSessionNotFound, http.StatusNotFound, CodeSessionNotFound},
		{model.ErrSessionAlreadyStarting, http.StatusConflict, CodeSessionAlreadyStarting},
		{model.ErrSessionStartRejected, http.StatusBadGateway, CodeSessionStartRejected},
		{model.ErrHandshakeTimeout, http.StatusGatewayTimeout, CodeHandshakeTimeout},
		{model.ErrBackingStoreUnavailable, http.StatusInternalServerError, CodeInternalError},
		{model.ErrCorruptRecord, http.StatusInternalServerError, CodeInternalError},
		{errors.New("boom"), http.StatusInternalServerError, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			wrapped := fmt.Errorf("context: %w", tt.err)
			he := toHTTPError(wrapped)
			assert.Equal(t, tt.status, he.status)
			assert.Equal(t, tt.code, he.apiError.Code)
		})
	}
}

func TestCorruptRecordIsServerFault(t *testing.T) {
	// A stored document that fails to parse still wraps the decoder sentinel
	err := fmt.Errorf("%w: account OVR-ORG-1: %w", model.ErrCorruptRecord, document.ErrInvalidJSON)

	rr := httptest.NewRecorder()
	WriteError(rr, err)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, CodeInternalError, resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "json")
}

func TestWriteErrorHidesInternals(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, fmt.Errorf("%w: redis: dial tcp 10.0.0.5:6379: refused", model.ErrBackingStoreUnavailable))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, CodeInternalError, resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "10.0.0.5")
}
