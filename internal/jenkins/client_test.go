package jenkins

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmslite/check-jenkins-queue/internal/config"
)

const loadBody = `{"_class":"hudson.model.OverallLoadStatistics",` +
	`"busyExecutors":{"min":{"latest":2.0}},` +
	`"queueLength":{"min":{"latest":5.0}}}`

// fakeJenkins serves the overall load endpoint with the given handler
// and counts the requests it receives
type fakeJenkins struct {
	*httptest.Server
	requests atomic.Int32
	last     atomic.Pointer[http.Request]
}

func newFakeJenkins(t *testing.T, handler http.HandlerFunc) *fakeJenkins {
	t.Helper()

	f := &fakeJenkins{}
	r := chi.NewRouter()
	r.Get(LoadPath, func(w http.ResponseWriter, req *http.Request) {
		f.requests.Add(1)
		f.last.Store(req.Clone(context.Background()))
		handler(w, req)
	})
	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Close)
	return f
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func testConfig(baseURL string) config.Config {
	return config.Config{
		BaseURL:        baseURL,
		TimeoutSeconds: 5,
		NoProxy:        true,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchLoad_Success(t *testing.T) {
	srv := newFakeJenkins(t, jsonHandler(http.StatusOK, loadBody))

	client, err := NewClient(testConfig(srv.URL), discardLogger())
	require.NoError(t, err)
	defer client.Close()

	m, err := client.FetchLoad(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5.0, m.QueueLength)
	assert.Equal(t, 2.0, m.BusyExecutors)
	assert.EqualValues(t, 1, srv.requests.Load())

	req := srv.last.Load()
	require.NotNil(t, req)
	assert.Equal(t, LoadTree, req.URL.Query().Get("tree"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.NotEmpty(t, req.Header.Get("X-Request-ID"))
	assert.True(t, strings.HasPrefix(req.Header.Get("User-Agent"), config.Program+"/"))
}

func TestLoadURL(t *testing.T) {
	client, err := NewClient(testConfig("http://jenkins.example.com:8080/ci"), discardLogger())
	require.NoError(t, err)

	assert.Equal(t,
		"http://jenkins.example.com:8080/ci/overallLoad/api/json?tree=busyExecutors[min[latest]],queueLength[min[latest]]",
		client.LoadURL(),
	)
}

func TestFetchLoad_BasicAuth(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		password string
		wantAuth bool
	}{
		{name: "both present", user: "admin", password: "token", wantAuth: true},
		{name: "user only", user: "admin", wantAuth: false},
		{name: "password only", password: "token", wantAuth: false},
		{name: "neither", wantAuth: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeJenkins(t, jsonHandler(http.StatusOK, loadBody))

			cfg := testConfig(srv.URL)
			cfg.Username = tt.user
			cfg.Password = tt.password
			client, err := NewClient(cfg, discardLogger())
			require.NoError(t, err)

			_, err = client.FetchLoad(context.Background())
			require.NoError(t, err)

			user, pass, ok := srv.last.Load().BasicAuth()
			assert.Equal(t, tt.wantAuth, ok)
			if tt.wantAuth {
				assert.Equal(t, tt.user, user)
				assert.Equal(t, tt.password, pass)
			}
		})
	}
}

func TestFetchLoad_HTTPError(t *testing.T) {
	srv := newFakeJenkins(t, jsonHandler(http.StatusServiceUnavailable, `{"error":"restarting"}`))

	client, err := NewClient(testConfig(srv.URL), discardLogger())
	require.NoError(t, err)

	_, err = client.FetchLoad(context.Background())
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr), "want *FetchError, got %T", err)
	assert.Equal(t, http.StatusServiceUnavailable, fetchErr.StatusCode)
	assert.Equal(t, client.LoadURL(), fetchErr.URL)
	assert.Contains(t, err.Error(), client.LoadURL())
	assert.Contains(t, err.Error(), "503 Service Unavailable")
	assert.EqualValues(t, 1, srv.requests.Load(), "no retry expected")
}

func TestFetchLoad_Unauthorized(t *testing.T) {
	srv := newFakeJenkins(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})

	client, err := NewClient(testConfig(srv.URL), discardLogger())
	require.NoError(t, err)

	_, err = client.FetchLoad(context.Background())

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "401 Unauthorized", fetchErr.Status)
}

func TestFetchLoad_ParseErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{
			name:      "missing queueLength",
			body:      `{"busyExecutors":{"min":{"latest":1}}}`,
			wantField: "queueLength.min.latest",
		},
		{
			name:      "missing busyExecutors",
			body:      `{"queueLength":{"min":{"latest":1}}}`,
			wantField: "busyExecutors.min.latest",
		},
		{
			name:      "null latest",
			body:      `{"busyExecutors":{"min":{"latest":1}},"queueLength":{"min":{"latest":null}}}`,
			wantField: "queueLength.min.latest",
		},
		{
			name:      "missing min",
			body:      `{"busyExecutors":{"min":{"latest":1}},"queueLength":{}}`,
			wantField: "queueLength.min.latest",
		},
		{
			name:      "string value",
			body:      `{"busyExecutors":{"min":{"latest":1}},"queueLength":{"min":{"latest":"5"}}}`,
			wantField: "queueLength.min.latest",
		},
		{
			name:      "negative value",
			body:      `{"busyExecutors":{"min":{"latest":-1}},"queueLength":{"min":{"latest":0}}}`,
			wantField: "busyExecutors.min.latest",
		},
		{
			name: "not json",
			body: `<html>Jenkins is getting ready to work</html>`,
		},
		{
			name: "empty body",
			body: ``,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeJenkins(t, jsonHandler(http.StatusOK, tt.body))

			client, err := NewClient(testConfig(srv.URL), discardLogger())
			require.NoError(t, err)

			_, err = client.FetchLoad(context.Background())

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "want *ParseError, got %T: %v", err, err)
			assert.Equal(t, tt.wantField, parseErr.Field)
			assert.Equal(t, client.LoadURL(), parseErr.URL)
		})
	}
}

func TestFetchLoad_BodyTooLarge(t *testing.T) {
	big := `{"queueLength":{"min":{"latest":1}},"pad":"` + strings.Repeat("x", maxBodySize) + `"}`
	srv := newFakeJenkins(t, jsonHandler(http.StatusOK, big))

	client, err := NewClient(testConfig(srv.URL), discardLogger())
	require.NoError(t, err)

	_, err = client.FetchLoad(context.Background())

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.ErrorIs(t, err, errTooLarge)
}

func TestFetchLoad_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := newFakeJenkins(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	cfg := testConfig(srv.URL)
	client, err := NewClient(cfg, discardLogger())
	require.NoError(t, err)
	client.timeout = 100 * time.Millisecond
	client.httpClient.Timeout = 100 * time.Millisecond

	start := time.Now()
	_, err = client.FetchLoad(context.Background())

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr), "want *FetchError, got %T: %v", err, err)
	assert.Zero(t, fetchErr.StatusCode)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFetchLoad_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewClient(testConfig(url), discardLogger())
	require.NoError(t, err)

	_, err = client.FetchLoad(context.Background())

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Contains(t, err.Error(), url)
}

func TestFetchLoad_ExplicitProxy(t *testing.T) {
	var proxied atomic.Pointer[string]
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uri := r.RequestURI
		proxied.Store(&uri)
		jsonHandler(http.StatusOK, loadBody)(w, r)
	}))
	defer proxy.Close()

	cfg := testConfig("http://jenkins.invalid:8080")
	cfg.ProxyURL = proxy.URL
	client, err := NewClient(cfg, discardLogger())
	require.NoError(t, err)

	m, err := client.FetchLoad(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5.0, m.QueueLength)

	got := proxied.Load()
	require.NotNil(t, got, "request did not reach the proxy")
	assert.True(t, strings.HasPrefix(*got, "http://jenkins.invalid:8080/overallLoad/api/json"), "proxy saw %q", *got)
}

func TestProxyFunc(t *testing.T) {
	t.Setenv("HTTP_PROXY", "http://env-proxy.example:3128")
	t.Setenv("HTTPS_PROXY", "http://env-proxy.example:3128")
	t.Setenv("NO_PROXY", "")
	t.Setenv("no_proxy", "")
	t.Setenv("REQUEST_METHOD", "")

	req := httptest.NewRequest(http.MethodGet, "http://jenkins.example.com/overallLoad/api/json", nil)

	t.Run("environment proxy by default", func(t *testing.T) {
		fn, err := proxyFunc(config.Config{})
		require.NoError(t, err)
		require.NotNil(t, fn)

		u, err := fn(req)
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, "env-proxy.example:3128", u.Host)
	})

	t.Run("noproxy ignores environment", func(t *testing.T) {
		fn, err := proxyFunc(config.Config{NoProxy: true})
		require.NoError(t, err)
		assert.Nil(t, fn)
	})

	t.Run("explicit proxy wins", func(t *testing.T) {
		fn, err := proxyFunc(config.Config{ProxyURL: "http://squid.internal:8080", NoProxy: true})
		require.NoError(t, err)

		u, err := fn(req)
		require.NoError(t, err)
		assert.Equal(t, "squid.internal:8080", u.Host)
	})

	t.Run("invalid proxy", func(t *testing.T) {
		_, err := proxyFunc(config.Config{ProxyURL: "http://bad host:80"})
		assert.Error(t, err)
	})
}

func TestFetchLoad_DebugTrace(t *testing.T) {
	srv := newFakeJenkins(t, jsonHandler(http.StatusOK, loadBody))

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	client, err := NewClient(testConfig(srv.URL), logger)
	require.NoError(t, err)

	_, err = client.FetchLoad(context.Background())
	require.NoError(t, err)

	out := logs.String()
	assert.Contains(t, out, "GET "+client.LoadURL()+" ...")
	assert.Contains(t, out, "queue_length=5")
}
