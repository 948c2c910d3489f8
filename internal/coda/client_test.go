package coda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient creates a client pointed at a test server, with timings
// small enough for tests.
func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	client, err := NewClient(Options{
		Token:           "test-token",
		BaseURL:         serverURL,
		RPS:             10000,
		Burst:           10000,
		Retries:         3,
		RetryInterval:   time.Millisecond,
		BackoffInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

// TestNewClient_RequiresToken verifies that a client cannot be created
// without a token.
func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient(Options{})
	assert.Error(t, err)
}

// TestClient_AuthorizationHeader verifies that every request carries the
// bearer token.
func TestClient_AuthorizationHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"items": []}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	err := client.forEach(context.Background(), "/docs", nil, func(json.RawMessage) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

// TestClient_Pagination verifies that nextPageLink cursors are followed and
// that items from all pages reach the callback in order.
func TestClient_Pagination(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/docs":
			// First page advertises the maximum page size and links to page 2.
			assert.Equal(t, "200", r.URL.Query().Get("limit"))
			fmt.Fprintf(w, `{"items": [{"n": 1}, {"n": 2}], "nextPageLink": %q}`, srv.URL+"/docs-page-2")
		case "/docs-page-2":
			fmt.Fprint(w, `{"items": [{"n": 3}]}`)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	var got []int
	err := client.forEach(context.Background(), "/docs", nil, func(item json.RawMessage) error {
		var v struct {
			N int `json:"n"`
		}
		require.NoError(t, json.Unmarshal(item, &v))
		got = append(got, v.N)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

// TestClient_NotFound verifies that 404 responses map to ErrNotFound and
// are not retried.
func TestClient_NotFound(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "Doc not found"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.GetDoc(context.Background(), "missing-doc")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "Doc not found")
	assert.Equal(t, int64(1), requests.Load(), "4xx responses must not be retried")
}

// TestClient_Unauthorized verifies that 401 responses map to ErrUnauthorized.
func TestClient_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "Invalid token"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.GetDoc(context.Background(), "some-doc")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

// TestClient_RetriesServerErrors verifies that 5xx responses are retried
// until a success comes through.
func TestClient_RetriesServerErrors(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"message": "boom"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id": "doc-1", "name": "Doc"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	doc, err := client.GetDoc(context.Background(), "doc-1")

	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID())
	assert.Equal(t, int64(3), requests.Load())
}

// TestClient_RetriesExhausted verifies that a persistently failing endpoint
// eventually surfaces its error.
func TestClient_RetriesExhausted(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.GetDoc(context.Background(), "doc-1")

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	// Retries: 3 → at most 4 attempts.
	assert.Equal(t, int64(4), requests.Load())
}

// TestClient_TooManyRequests verifies that a 429 trips the shared backoff
// gate and that the request succeeds on retry after the pause.
func TestClient_TooManyRequests(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message": "Rate limited"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id": "doc-1", "name": "Doc"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	start := time.Now()
	doc, err := client.GetDoc(context.Background(), "doc-1")

	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID())
	// The second attempt must have waited out the backoff window.
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

// TestClient_ContextCancellation verifies that a cancelled context aborts
// the retry loop immediately.
func TestClient_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, srv.URL)
	_, err := client.GetDoc(ctx, "doc-1")
	assert.ErrorIs(t, err, context.Canceled)
}

// TestClient_UpsertRows verifies the upsert request method, path and payload.
func TestClient_UpsertRows(t *testing.T) {
	var gotMethod, gotPath, gotContentType string
	var gotBody UpsertRowsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	req := UpsertRowsRequest{Rows: []RowEdit{
		{Cells: []CellEdit{{Column: "Name", Value: "Alice"}}},
	}}
	err := client.UpsertRows(context.Background(), "doc-1", "grid-1", req)

	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/docs/doc-1/tables/grid-1/rows", gotPath)
	assert.Equal(t, "application/json", gotContentType)
	require.Len(t, gotBody.Rows, 1)
	assert.Equal(t, "Name", gotBody.Rows[0].Cells[0].Column)
	assert.Equal(t, "Alice", gotBody.Rows[0].Cells[0].Value)
}
