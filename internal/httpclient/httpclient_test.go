package httpclient_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dbcv/platform/internal/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolUserAgent(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		agents []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	pool, err := httpclient.New(httpclient.Config{UserAgent: "TestAgent/1.0"})
	require.NoError(t, err)
	defer pool.Close()

	resp, err := pool.HTTP().Get(server.URL)
	require.NoError(t, err)
	_, _ = io.ReadAll(resp.Body)
	resp.Body.Close()

	_, err = pool.Resty().R().Get(server.URL)
	require.NoError(t, err)

	assert.Equal(t, []string{"TestAgent/1.0", "TestAgent/1.0"}, agents)
}

func TestPoolProxiesRoundRobin(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		hits = map[string]int{}
	)
	newProxy := func(name string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			hits[name]++
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
	}
	first, second := newProxy("first"), newProxy("second")
	defer first.Close()
	defer second.Close()

	pool, err := httpclient.New(httpclient.Config{Proxies: []string{first.URL, second.URL}})
	require.NoError(t, err)
	defer pool.Close()

	for i := 0; i < 4; i++ {
		resp, err := pool.HTTP().Get("http://upstream.invalid/data")
		require.NoError(t, err)
		resp.Body.Close()
	}

	assert.Equal(t, map[string]int{"first": 2, "second": 2}, hits)
}

func TestPoolInvalidProxy(t *testing.T) {
	t.Parallel()

	_, err := httpclient.New(httpclient.Config{Proxies: []string{"not a url"}})
	assert.Error(t, err)
}

func TestPoolCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	pool, err := httpclient.New(httpclient.Config{})
	require.NoError(t, err)

	assert.False(t, pool.Closed())
	assert.NoError(t, pool.Close())
	assert.NoError(t, pool.Close())
	assert.True(t, pool.Closed())
}

func TestPoolHasNoClientTimeout(t *testing.T) {
	t.Parallel()

	pool, err := httpclient.New(httpclient.Config{})
	require.NoError(t, err)
	defer pool.Close()

	assert.Equal(t, time.Duration(0), pool.HTTP().Timeout)
	assert.Equal(t, time.Duration(0), pool.Resty().GetClient().Timeout)
}
