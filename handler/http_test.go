package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"halfjourney/internal/usecase"
)

func TestServeHTTP_PassesThroughSignedBody(t *testing.T) {
	h := newTestInteractionHandler(t, usecase.NewRouter())
	srv := httptest.NewServer(h)
	defer srv.Close()

	ev := signedEvent(`{"type":1}`)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/interactions", strings.NewReader(ev.Body))
	require.NoError(t, err)
	for k, v := range ev.Headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.JSONEq(t, `{"type":1}`, string(body))
}

func TestServeHTTP_Unsigned(t *testing.T) {
	h := newTestInteractionHandler(t, usecase.NewRouter())
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Post(srv.URL, "application/json", strings.NewReader(`{"type":1}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
