package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/catalog/book"
)

const quixoteJSON = `{"text":"Don Quixote","authors":["Miguel de Cervantes"],"year":1605}`

type copyBody struct {
	ID        uuid.UUID `json:"id"`
	Title     book.Title
	Condition string `json:"condition"`
	Status    string `json:"status"`
}

func newServer(t *testing.T) (*httptest.Server, *catalog.Catalog) {
	t.Helper()
	cat := catalog.New(catalog.WithVerify(true))
	r := chi.NewRouter()
	r.Route("/api/v1", New(cat).Routes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, cat
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func purchase(t *testing.T, srv *httptest.Server) copyBody {
	t.Helper()
	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/titles/purchase", quixoteJSON)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var cp copyBody
	require.NoError(t, json.Unmarshal(body, &cp))
	return cp
}

func TestPurchaseAndGet(t *testing.T) {
	srv, cat := newServer(t)
	cp := purchase(t, srv)
	assert.Equal(t, "available", cp.Status)
	assert.Equal(t, "good", cp.Condition)
	assert.Equal(t, "Don Quixote", cp.Title.Text())

	resp, body := do(t, http.MethodGet, srv.URL+"/api/v1/copies/"+cp.ID.String(), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got copyBody
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, cp.ID, got.ID)

	assert.Len(t, cat.Find(context.Background(), "quixote"), 1)
}

func TestPurchaseValidation(t *testing.T) {
	srv, _ := newServer(t)
	for _, body := range []string{
		`{"text":"","authors":["x"],"year":1999}`,
		`{"text":"T","authors":[],"year":1999}`,
		`{"text":"T","authors":["x"],"year":0}`,
		`{"text":"T","authors":["x"],"year":1999,"isbn":"1"}`,
		`not json`,
	} {
		resp, _ := do(t, http.MethodPost, srv.URL+"/api/v1/titles/purchase", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestCirculation(t *testing.T) {
	srv, _ := newServer(t)
	cp := purchase(t, srv)
	base := srv.URL + "/api/v1/copies/" + cp.ID.String()

	var out circulationResponse
	resp, body := do(t, http.MethodPost, base+"/checkout", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.Applied)
	assert.Equal(t, "checked_out", out.Status)

	resp, body = do(t, http.MethodPost, base+"/checkout", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &out))
	assert.False(t, out.Applied)
	assert.Equal(t, catalog.NotAvailable, out.Outcome)

	resp, body = do(t, http.MethodPost, base+"/checkout?strict=true", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "copy not available")

	resp, _ = do(t, http.MethodPost, base+"/checkin", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, base+"/checkin?strict=1", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = do(t, http.MethodPost, base+"/lose", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "lost", out.Status)

	resp, _ = do(t, http.MethodPost, base+"/lose?strict=true", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "already lost")

	resp, body = do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got copyBody
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "lost", got.Status, "lost copies stay addressable")
}

func TestCopyLookupErrors(t *testing.T) {
	srv, _ := newServer(t)
	resp, _ := do(t, http.MethodGet, srv.URL+"/api/v1/copies/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/v1/copies/"+uuid.NewString()+"/checkout", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSetCondition(t *testing.T) {
	srv, _ := newServer(t)
	cp := purchase(t, srv)
	url := srv.URL + "/api/v1/copies/" + cp.ID.String()

	resp, body := do(t, http.MethodPatch, url, `{"condition":"damaged"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got copyBody
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "damaged", got.Condition)
	assert.Equal(t, "available", got.Status, "condition never moves a copy")

	resp, _ = do(t, http.MethodPatch, url, `{"condition":"soggy"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodPatch, url, `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCopiesListing(t *testing.T) {
	srv, _ := newServer(t)
	first := purchase(t, srv)
	purchase(t, srv)
	do(t, http.MethodPost, srv.URL+"/api/v1/copies/"+first.ID.String()+"/checkout", "")

	list := func(query string) []copyBody {
		resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/titles/copies"+query, quixoteJSON)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var res struct {
			Count  int        `json:"count"`
			Copies []copyBody `json:"copies"`
		}
		require.NoError(t, json.Unmarshal(body, &res))
		assert.Equal(t, res.Count, len(res.Copies))
		return res.Copies
	}
	assert.Len(t, list(""), 2)
	available := list("?available=true")
	require.Len(t, available, 1)
	assert.NotEqual(t, first.ID, available[0].ID)
	assert.Empty(t, list("?lost=true"))

	do(t, http.MethodPost, srv.URL+"/api/v1/copies/"+first.ID.String()+"/lose", "")
	lost := list("?lost=true")
	require.Len(t, lost, 1)
	assert.Equal(t, first.ID, lost[0].ID)
}

func TestStats(t *testing.T) {
	srv, _ := newServer(t)
	purchase(t, srv)
	resp, body := do(t, http.MethodGet, srv.URL+"/api/v1/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats catalog.Stats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, 1, stats.Titles)
	assert.Equal(t, 1, stats.Available)
	assert.Equal(t, 1, stats.IndexedTitles)
}
