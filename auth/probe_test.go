package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestHTTPProber(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	p := NewHTTPProber(0, time.Second, zerolog.Nop())

	assert.NoError(t, p.Probe(context.Background(), ok.URL))
	assert.Error(t, p.Probe(context.Background(), down.URL))
	assert.Error(t, p.Probe(context.Background(), "http://127.0.0.1:1"))
}
