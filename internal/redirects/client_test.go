package redirects

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByOldID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/fromid", r.URL.Path)

		var body map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]int{"old": 9954}, body)

		w.Write([]byte(`{"old":9954,"new":42,"author":"Rob Sewell","slug":"imperialism-today"}`))
	}))
	defer srv.Close()

	record, err := NewClient(srv.URL).ByOldID(context.Background(), 9954)

	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 9954, record.Old)
	assert.Equal(t, "imperialism-today", record.Slug)
	assert.Equal(t, "Rob Sewell", record.Author)
}

func TestByNewID_SendsNewKeyOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]int{"new": 42}, body)

		w.Write([]byte(`{"old":9954,"new":42,"author":"Rob Sewell","slug":"imperialism-today"}`))
	}))
	defer srv.Close()

	record, err := NewClient(srv.URL).ByNewID(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, 42, record.New)
}

func TestLookup_UnknownIDIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`null`))
	}))
	defer srv.Close()

	record, err := NewClient(srv.URL).ByOldID(context.Background(), 1)

	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestLookup_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).ByOldID(context.Background(), 1)

	assert.Error(t, err)
}

func TestLookup_CircuitBreakerOpensOnRepeatedServerErrors(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	_, err := c.ByOldID(context.Background(), 1)
	require.Error(t, err)
	assert.EqualValues(t, 4, atomic.LoadInt32(&attempts))

	_, err = c.ByOldID(context.Background(), 1)
	require.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.EqualValues(t, 5, atomic.LoadInt32(&attempts))
}
