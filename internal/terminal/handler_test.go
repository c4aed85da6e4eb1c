package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"posnexus/internal/checkout"
	"posnexus/internal/offline"
)

func newTestServer(t *testing.T, f *fixture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(NewHandler(f.term, f.queue), zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandler_Health(t *testing.T) {
	srv := newTestServer(t, newFixture(t, true, nil))
	resp := do(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandler_ScanStatuses(t *testing.T) {
	f := newFixture(t, true, nil)
	srv := newTestServer(t, f)

	resp := do(t, http.MethodPost, srv.URL+"/scan", `{"code":"CHIPS-XL"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		Remaining int    `json:"remaining"`
		Match     string `json:"match"`
		Cart      struct {
			Total string `json:"total"`
		} `json:"cart"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.Remaining)
	assert.Equal(t, "exact", body.Match)
	assert.Equal(t, "2.25", body.Cart.Total)

	resp = do(t, http.MethodPost, srv.URL+"/scan", `{"code":"nope"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/scan", `{"code":"GUM"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/scan", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_CartLifecycle(t *testing.T) {
	f := newFixture(t, true, nil)
	srv := newTestServer(t, f)

	resp := do(t, http.MethodPost, srv.URL+"/cart/items/"+colaID.String()+"/increment", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/cart/items", `{"product_id":"`+colaID.String()+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/cart/items/"+colaID.String()+"/increment", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPatch, srv.URL+"/cart/items/"+colaID.String(), `{"quantity":4}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view CartView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 4, view.Lines[0].Quantity)
	assert.Equal(t, "6", view.Total.String())

	resp = do(t, http.MethodPatch, srv.URL+"/cart/items/"+colaID.String(), `{"quantity":9}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodPatch, srv.URL+"/cart/items/not-a-uuid", `{"quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPatch, srv.URL+"/cart/items/"+chipsID.String(), `{"quantity":1}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodDelete, srv.URL+"/cart/items/"+colaID.String(), "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/cart/items", `{"product_id":"`+chipsID.String()+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = do(t, http.MethodDelete, srv.URL+"/cart", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/cart", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Empty(t, view.Lines)
}

func TestHandler_Checkout(t *testing.T) {
	t.Run("empty cart", func(t *testing.T) {
		srv := newTestServer(t, newFixture(t, true, nil))
		resp := do(t, http.MethodPost, srv.URL+"/checkout", "")
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("committed", func(t *testing.T) {
		f := newFixture(t, true, nil)
		srv := newTestServer(t, f)
		do(t, http.MethodPost, srv.URL+"/scan", `{"code":"COLA-1"}`)

		resp := do(t, http.MethodPost, srv.URL+"/checkout", `{"payment_method":"card"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "committed", body["state"])
		assert.Equal(t, false, body["degraded"])
	})

	t.Run("degraded", func(t *testing.T) {
		f := newFixture(t, true, func(context.Context, checkout.Sale) error {
			return errors.New("timeout")
		})
		srv := newTestServer(t, f)
		do(t, http.MethodPost, srv.URL+"/scan", `{"code":"COLA-1"}`)

		resp := do(t, http.MethodPost, srv.URL+"/checkout", "")
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "queued_offline", body["state"])
		assert.Equal(t, true, body["degraded"])

		resp = do(t, http.MethodGet, srv.URL+"/offline/pending", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var pending []offline.Record
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&pending))
		require.Len(t, pending, 1)
		assert.Equal(t, "timeout", pending[0].Reason)
	})

	t.Run("queue failure", func(t *testing.T) {
		f := newFixture(t, false, nil)
		f.queue.FailWrites(errors.New("disk full"))
		srv := newTestServer(t, f)
		do(t, http.MethodPost, srv.URL+"/scan", `{"code":"COLA-1"}`)

		resp := do(t, http.MethodPost, srv.URL+"/checkout", "")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Len(t, f.term.Cart().Lines, 1)
	})
}

func TestHandler_KeysAndCamera(t *testing.T) {
	f := newFixture(t, true, nil)
	srv := newTestServer(t, f)

	resp := do(t, http.MethodPost, srv.URL+"/keys", `{"events":[{"key":"a"}]}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	require.NoError(t, f.term.Mount(context.Background()))
	resp = do(t, http.MethodPost, srv.URL+"/keys",
		`{"events":[{"key":"C","timestamp":1000},{"key":"O","timestamp":1010},{"key":"L","timestamp":1020},{"key":"A","timestamp":1030},{"key":"Enter","timestamp":1040}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var keys map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&keys))
	assert.Equal(t, 5, keys["accepted"])
	assert.Equal(t, 1, keys["scans"])

	resp = do(t, http.MethodPost, srv.URL+"/camera/decoded", `{"code":"5000112"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/camera/open", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = do(t, http.MethodPost, srv.URL+"/camera/decoded", `{"code":"5000112"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp = do(t, http.MethodPost, srv.URL+"/camera/close", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandler_Notifications(t *testing.T) {
	f := newFixture(t, true, nil)
	srv := newTestServer(t, f)
	do(t, http.MethodPost, srv.URL+"/scan", `{"code":"nope"}`)

	resp := do(t, http.MethodGet, srv.URL+"/notifications", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []struct {
		ID      string `json:"id"`
		Level   string `json:"level"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.NotEmpty(t, list)
	last := list[len(list)-1]
	assert.Equal(t, "warning", last.Level)

	resp = do(t, http.MethodDelete, srv.URL+"/notifications/"+last.ID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, http.MethodDelete, srv.URL+"/notifications/"+last.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_ReloadCatalog(t *testing.T) {
	srv := newTestServer(t, newFixture(t, true, nil))

	resp := do(t, http.MethodPost, srv.URL+"/catalog/reload", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 4, body["products"])
}
