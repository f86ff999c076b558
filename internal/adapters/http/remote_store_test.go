package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/fieldsync/internal/domain"
	"github.com/bft-labs/fieldsync/pkg/log"
)

func TestRemoteStore_RequestShape(t *testing.T) {
	tests := []struct {
		action domain.Action
		method string
	}{
		{domain.ActionCreate, http.MethodPost},
		{domain.ActionUpdate, http.MethodPatch},
		{domain.ActionDelete, http.MethodDelete},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			var got *http.Request
			var body []byte
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r
				body, _ = io.ReadAll(r.Body)
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"id":"r1"}`))
			}))
			defer srv.Close()

			store := NewRemoteStore(srv.Client(), Config{ServiceURL: srv.URL + "/", AuthKey: "secret", Hostname: "tablet-3"}, log.NewNoopLogger())
			data, err := store.Perform(context.Background(),
				domain.Kind{Action: tt.action, Entity: "stationControl"},
				json.RawMessage(`{"station":4}`), "key-1")

			require.NoError(t, err)
			assert.JSONEq(t, `{"id":"r1"}`, string(data))
			assert.Equal(t, tt.method, got.Method)
			assert.Equal(t, "/v1/records/stationControl", got.URL.Path)
			assert.Equal(t, "Bearer secret", got.Header.Get("Authorization"))
			assert.Equal(t, "key-1", got.Header.Get("Idempotency-Key"))
			assert.Equal(t, "tablet-3", got.Header.Get("X-Agent-Hostname"))
			assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
			assert.JSONEq(t, `{"station":4}`, string(body))
		})
	}
}

func TestRemoteStore_StatusClassification(t *testing.T) {
	tests := []struct {
		status       int
		body         string
		connectivity bool
		message      string
	}{
		{http.StatusServiceUnavailable, "", true, ""},
		{http.StatusBadGateway, "", true, ""},
		{http.StatusGatewayTimeout, "", true, ""},
		{http.StatusRequestTimeout, "", true, ""},
		{http.StatusTooManyRequests, "", true, ""},
		{http.StatusConflict, `{"error":"duplicate entry"}`, false, "duplicate entry"},
		{http.StatusUnprocessableEntity, `{"message":"station required"}`, false, "station required"},
		{http.StatusForbidden, "not yours", false, "not yours"},
		{http.StatusBadRequest, "", false, "Bad Request"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			store := NewRemoteStore(srv.Client(), Config{ServiceURL: srv.URL}, log.NewNoopLogger())
			_, err := store.Perform(context.Background(), domain.Kind{Action: domain.ActionCreate, Entity: "x"}, json.RawMessage(`{}`), "k")
			require.Error(t, err)

			assert.Equal(t, tt.connectivity, errors.Is(err, domain.ErrConnectivity))
			if !tt.connectivity {
				var logical *domain.LogicalError
				require.True(t, errors.As(err, &logical))
				assert.Equal(t, tt.status, logical.StatusCode)
				assert.Equal(t, tt.message, logical.Message)
			}
		})
	}
}

func TestRemoteStore_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	store := NewRemoteStore(http.DefaultClient, Config{ServiceURL: url}, log.NewNoopLogger())
	_, err := store.Perform(context.Background(), domain.Kind{Action: domain.ActionCreate, Entity: "x"}, json.RawMessage(`{}`), "k")

	assert.ErrorIs(t, err, domain.ErrConnectivity)
}

func TestRemoteStore_EmptySuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := NewRemoteStore(srv.Client(), Config{ServiceURL: srv.URL}, log.NewNoopLogger())
	data, err := store.Perform(context.Background(), domain.Kind{Action: domain.ActionDelete, Entity: "x"}, json.RawMessage(`{"id":"1"}`), "k")

	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestRemoteStore_UnknownAction(t *testing.T) {
	store := NewRemoteStore(http.DefaultClient, Config{ServiceURL: "http://127.0.0.1:1"}, log.NewNoopLogger())
	_, err := store.Perform(context.Background(), domain.Kind{Action: "merge", Entity: "x"}, json.RawMessage(`{}`), "k")
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}
