package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboarding/internal/kyc/service"
	"onboarding/internal/kyc/store"
)

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	svc := service.NewService(store.NewMemoryStore(),
		service.WithHasher(plainHasher{}),
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func submitBody(email, username, pan, aadhaar string) map[string]any {
	return map[string]any{
		"fullName":             "Asha Rao",
		"dob":                  "1992-04-01",
		"gender":               "F",
		"address":              "12 MG Road, Bengaluru",
		"email":                email,
		"phone":                "9876543210",
		"pan":                  pan,
		"aadhaar":              aadhaar,
		"username":             username,
		"password":             "s3cret-pass",
		"requestedAccountType": "SAVINGS",
	}
}

func doJSON(t *testing.T, r chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleSubmit(t *testing.T) {
	t.Run("creates a pending application", func(t *testing.T) {
		r := newTestRouter(t)

		rec := doJSON(t, r, http.MethodPost, "/api/applications",
			submitBody("asha@example.com", "asharao", "ABCDE1234F", "123412341234"))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var created struct {
			ID     string `json:"id"`
			Status string `json:"status"`
			Email  string `json:"email"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "PENDING", created.Status)
		assert.Equal(t, "asha@example.com", created.Email)

		// The application is immediately retrievable.
		rec = doJSON(t, r, http.MethodGet, "/api/applications/"+created.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("maps duplicate identity to 409", func(t *testing.T) {
		r := newTestRouter(t)

		rec := doJSON(t, r, http.MethodPost, "/api/applications",
			submitBody("asha@example.com", "asharao", "ABCDE1234F", "123412341234"))
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = doJSON(t, r, http.MethodPost, "/api/applications",
			submitBody("asha@example.com", "other", "FGHIJ5678K", "432143214321"))
		require.Equal(t, http.StatusConflict, rec.Code)

		var envelope map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
		assert.Equal(t, "conflict", envelope["error"])
		assert.Contains(t, envelope["error_description"], "email")
	})

	t.Run("maps validation failure to 400", func(t *testing.T) {
		r := newTestRouter(t)

		body := submitBody("asha@example.com", "asharao", "not-a-pan", "123412341234")
		rec := doJSON(t, r, http.MethodPost, "/api/applications", body)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects a malformed body", func(t *testing.T) {
		r := newTestRouter(t)

		req := httptest.NewRequest(http.MethodPost, "/api/applications", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleGetDocument(t *testing.T) {
	r := newTestRouter(t)

	photo := []byte{0x89, 'P', 'N', 'G'}
	body := submitBody("asha@example.com", "asharao", "ABCDE1234F", "123412341234")
	body["passportPhoto"] = map[string]any{
		"data":        base64.StdEncoding.EncodeToString(photo),
		"contentType": "image/png",
	}

	rec := doJSON(t, r, http.MethodPost, "/api/applications", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	t.Run("streams the stored bytes with their content type", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodGet,
			fmt.Sprintf("/api/applications/%s/documents/passport", created.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Equal(t, photo, rec.Body.Bytes())
	})

	t.Run("404 for an absent slot", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodGet,
			fmt.Sprintf("/api/applications/%s/documents/pan", created.ID), nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("400 for an unknown document type", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodGet,
			fmt.Sprintf("/api/applications/%s/documents/selfie", created.ID), nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("400 for a malformed application id", func(t *testing.T) {
		rec := doJSON(t, r, http.MethodGet, "/api/applications/not-a-uuid/documents/passport", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
