package outbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSchemaReturnsLatestVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/subjects/streak_events-reset-value/versions/latest", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":17,"version":3}`))
	}))
	defer srv.Close()

	client := NewSchemaRegistryClient(srv.URL+"/", time.Second)
	id, err := client.EnsureSchema(context.Background(), "streak_events-reset-value", streakResetSchema)
	require.NoError(t, err)
	require.Equal(t, 17, id)
}

func TestEnsureSchemaRegistersMissingSubject(t *testing.T) {
	var registered map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error_code":40401}`))
		case http.MethodPost:
			assert.Equal(t, "/subjects/streak_events-activity_recorded-value/versions", r.URL.Path)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&registered))
			_, _ = w.Write([]byte(`{"id":5}`))
		}
	}))
	defer srv.Close()

	client := NewSchemaRegistryClient(srv.URL, time.Second)
	id, err := client.EnsureSchema(context.Background(), "streak_events-activity_recorded-value", activityRecordedSchema)
	require.NoError(t, err)
	require.Equal(t, 5, id)
	require.Equal(t, "JSON", registered["schemaType"])
	require.Equal(t, activityRecordedSchema, registered["schema"])
}

func TestEnsureSchemaSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`boom`))
	}))
	defer srv.Close()

	client := NewSchemaRegistryClient(srv.URL, time.Second)
	_, err := client.EnsureSchema(context.Background(), "subject", "{}")
	require.ErrorContains(t, err, "status 500")
}
