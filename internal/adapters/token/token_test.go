package token

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	tok string
	err error
}

func (s staticSource) AccessToken(context.Context) (string, error) { return s.tok, s.err }

func newServer(src staticSource) *httptest.Server {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/get-access-token", Handler(src))
	return httptest.NewServer(r)
}

func TestHandler_ReturnsPlainText(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/get-access-token", Handler(staticSource{tok: "abc123"}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/get-access-token", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc123", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestHandler_VendorFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/get-access-token", Handler(staticSource{err: errors.New("vendor down")}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/get-access-token", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "vendor down")
}

func TestHTTPSource_RoundTrip(t *testing.T) {
	srv := newServer(staticSource{tok: "tok-42"})
	defer srv.Close()

	src := NewHTTPSource(srv.URL+"/api/get-access-token", time.Second)
	tok, err := src.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-42", tok)
}

func TestHTTPSource_NonSuccessStatus(t *testing.T) {
	srv := newServer(staticSource{err: errors.New("bad key")})
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL+"/api/get-access-token", time.Second).AccessToken(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Contains(t, se.Body, "bad key")
}

func TestHTTPSource_EmptyBody(t *testing.T) {
	srv := newServer(staticSource{tok: ""})
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL+"/api/get-access-token", time.Second).AccessToken(context.Background())
	assert.ErrorIs(t, err, ErrEmptyToken)
}

func TestHTTPSource_NetworkError(t *testing.T) {
	srv := newServer(staticSource{tok: "x"})
	url := srv.URL + "/api/get-access-token"
	srv.Close()

	_, err := NewHTTPSource(url, time.Second).AccessToken(context.Background())
	require.Error(t, err)
}
