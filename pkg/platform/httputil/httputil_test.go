package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "trialgate/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("domain errors carry their detail", func(t *testing.T) {
		rec := httptest.NewRecorder()
		err := dErrors.New(dErrors.CodeValidation, "enrollment date is required").
			WithRecord("PAT001").
			WithField("enrollment_date", "required")

		WriteError(rec, err)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, string(dErrors.CodeValidation), resp.Error)
		assert.Equal(t, "enrollment date is required", resp.ErrorDescription)
		assert.Equal(t, "PAT001", resp.RecordID)
		assert.Equal(t, "required", resp.Fields["enrollment_date"])
	})

	t.Run("internal errors omit their detail", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeInternal, "failed to store participant"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, string(dErrors.CodeInternal), resp.Error)
		assert.Empty(t, resp.ErrorDescription)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})

	t.Run("plain errors map to internal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, errors.New("boom"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

type fakeRequest struct {
	Name string `json:"name"`
}

func (r *fakeRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required").WithField("name", "required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("decodes and validates", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":"ok"}`))
		rec := httptest.NewRecorder()

		req, ok := DecodeAndPrepare[fakeRequest](rec, r, logger, r.Context(), "req-1")
		require.True(t, ok)
		assert.Equal(t, "ok", req.Name)
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"name":`))
		rec := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[fakeRequest](rec, r, logger, r.Context(), "req-1")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("failed validation writes the field detail", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{}`))
		rec := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[fakeRequest](rec, r, logger, r.Context(), "req-1")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "required", resp.Fields["name"])
	})
}
