package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/fgravato/falcon-rtr/internal/config"
	apierrors "github.com/fgravato/falcon-rtr/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   string
}

// fakeAPI is a minimal Falcon stand-in that records every request it receives.
type fakeAPI struct {
	mu           sync.Mutex
	tokenCalls   int
	requests     []recordedRequest
	tokenHandler http.HandlerFunc
	handlers     map[string]http.HandlerFunc
}

func newFakeAPI(t *testing.T) (*fakeAPI, *Client) {
	t.Helper()

	f := &fakeAPI{handlers: make(map[string]http.HandlerFunc)}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c := NewClient(config.APIConfig{
		BaseURL:      srv.URL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Timeout:      5 * time.Second,
	})
	return f, c
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   string(body),
	})
	handler, ok := f.handlers[r.URL.Path]
	if r.URL.Path == TokenPath {
		f.tokenCalls++
		handler, ok = f.tokenHandler, true
	}
	f.mu.Unlock()

	if !ok || handler == nil {
		if r.URL.Path == TokenPath {
			writeJSON(w, http.StatusCreated, map[string]interface{}{
				"access_token": "test-token",
				"token_type":   "bearer",
				"expires_in":   1799,
			})
			return
		}
		http.NotFound(w, r)
		return
	}

	// Handlers see the body that was already consumed above.
	r.Body = io.NopCloser(bytes.NewReader(body))
	handler(w, r)
}

func (f *fakeAPI) handle(path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[path] = h
}

func (f *fakeAPI) getTokenCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenCalls
}

func (f *fakeAPI) requestsTo(path string) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []recordedRequest
	for _, r := range f.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeAPI) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func okQuery(resources []string, total int) map[string]interface{} {
	return map[string]interface{}{
		"meta": map[string]interface{}{
			"query_time": 0.01,
			"trace_id":   "trace",
			"pagination": map[string]interface{}{"offset": 0, "limit": DevicePageSize, "total": total},
		},
		"resources": resources,
		"errors":    []interface{}{},
	}
}

func TestTokenIsFetchedLazilyOnce(t *testing.T) {
	f, c := newFakeAPI(t)
	f.handle(PutFilesQueriesPath, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, okQuery([]string{"pf-1"}, 1))
	})
	ctx := context.Background()

	assert.False(t, c.Authenticated())

	_, err := c.ListPutFiles(ctx)
	require.NoError(t, err)
	_, err = c.ListPutFiles(ctx)
	require.NoError(t, err)

	assert.True(t, c.Authenticated())
	assert.Equal(t, 1, f.getTokenCalls())

	tokenReqs := f.requestsTo(TokenPath)
	require.Len(t, tokenReqs, 1)
	form, err := url.ParseQuery(tokenReqs[0].Body)
	require.NoError(t, err)
	assert.Equal(t, "client-id", form.Get("client_id"))
	assert.Equal(t, "client-secret", form.Get("client_secret"))
	assert.Equal(t, "client_credentials", form.Get("grant_type"))
	assert.Equal(t, "application/x-www-form-urlencoded", tokenReqs[0].Header.Get("Content-Type"))
	assert.Empty(t, tokenReqs[0].Header.Get("Authorization"))

	for _, r := range f.requestsTo(PutFilesQueriesPath) {
		assert.Equal(t, "bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Empty(t, r.Header.Get("Content-Type"))
	}
}

func TestConcurrentFirstCallsAuthenticateOnce(t *testing.T) {
	f, c := newFakeAPI(t)
	f.handle(ScriptsQueriesPath, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, okQuery(nil, 0))
	})

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = c.ListScripts(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.getTokenCalls())
}

func TestExplicitAuthenticate(t *testing.T) {
	f, c := newFakeAPI(t)
	f.handle(ScriptsQueriesPath, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, okQuery(nil, 0))
	})
	ctx := context.Background()

	require.NoError(t, c.Authenticate(ctx))
	assert.True(t, c.Authenticated())

	_, err := c.ListScripts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.getTokenCalls())
}

func TestUnsupportedMethodFailsBeforeNetwork(t *testing.T) {
	f, c := newFakeAPI(t)

	for _, method := range []string{http.MethodDelete, http.MethodPut, http.MethodPatch, "get"} {
		err := c.Do(context.Background(), Request{Method: method, Path: PutFilesEntitiesPath}, nil)

		var unsupported *apierrors.UnsupportedMethodError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, method, unsupported.Method)
	}

	assert.Equal(t, 0, f.requestCount())
	assert.False(t, c.Authenticated())
}

func TestHTTPErrorIsSurfaced(t *testing.T) {
	f, c := newFakeAPI(t)
	f.handle(PutFilesQueriesPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"errors":[{"code":500,"message":"boom"}]}`))
	})

	resp, err := c.ListPutFiles(context.Background())
	assert.Nil(t, resp)

	var httpErr *apierrors.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Equal(t, http.MethodGet, httpErr.Method)
	assert.Contains(t, httpErr.Body, "boom")
}

func TestStatusCodesAbove400AreErrors(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 429, 502} {
		f, c := newFakeAPI(t)
		f.handle(ScriptsQueriesPath, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		})

		_, err := c.ListScripts(context.Background())
		assert.Equal(t, status, apierrors.StatusCode(err), "status %d", status)
	}
}

func TestDecodeErrorIsSurfaced(t *testing.T) {
	f, c := newFakeAPI(t)
	f.handle(ScriptsQueriesPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"resources": [`))
	})

	_, err := c.ListScripts(context.Background())

	var decodeErr *apierrors.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Contains(t, decodeErr.URL, ScriptsQueriesPath)
}

func TestTokenFailureStopsRequest(t *testing.T) {
	f, c := newFakeAPI(t)
	f.tokenHandler = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"code":401,"message":"access denied"}]}`))
	}

	_, err := c.ListScripts(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apierrors.StatusCode(err))
	assert.Empty(t, f.requestsTo(ScriptsQueriesPath))
	assert.False(t, c.Authenticated())
}

func TestEmptyTokenIsAnError(t *testing.T) {
	f, c := newFakeAPI(t)
	f.tokenHandler = func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]interface{}{"token_type": "bearer"})
	}

	err := c.Authenticate(context.Background())
	require.ErrorIs(t, err, apierrors.ErrEmptyToken)
	assert.False(t, c.Authenticated())
}

func TestHeadersAreDerivedPerCall(t *testing.T) {
	f, c := newFakeAPI(t)
	f.handle(BatchInitSessionPath, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]interface{}{"batch_id": "b1"})
	})
	f.handle(ScriptsQueriesPath, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, okQuery(nil, 0))
	})
	ctx := context.Background()

	_, err := c.InitSession(ctx, []string{"h1"})
	require.NoError(t, err)

	err = c.Do(ctx, Request{
		Method:  http.MethodGet,
		Path:    ScriptsQueriesPath,
		Headers: map[string]string{"X-Trace": "abc", "accept": "application/vnd.custom+json"},
	}, nil)
	require.NoError(t, err)

	_, err = c.ListScripts(ctx)
	require.NoError(t, err)

	initReqs := f.requestsTo(BatchInitSessionPath)
	require.Len(t, initReqs, 1)
	assert.Equal(t, "application/json", initReqs[0].Header.Get("Content-Type"))

	scriptReqs := f.requestsTo(ScriptsQueriesPath)
	require.Len(t, scriptReqs, 2)
	assert.Equal(t, "abc", scriptReqs[0].Header.Get("X-Trace"))
	assert.Equal(t, "application/vnd.custom+json", scriptReqs[0].Header.Get("Accept"))
	assert.Empty(t, scriptReqs[0].Header.Get("Content-Type"))

	// The override does not leak into later calls.
	assert.Empty(t, scriptReqs[1].Header.Get("X-Trace"))
	assert.Equal(t, "application/json", scriptReqs[1].Header.Get("Accept"))
	assert.Empty(t, scriptReqs[1].Header.Get("Content-Type"))
}

func TestContextCancellation(t *testing.T) {
	_, c := newFakeAPI(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListScripts(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }

func TestSetHTTPClientReplacesTransport(t *testing.T) {
	f, c := newFakeAPI(t)

	var paths []string
	c.SetHTTPClient(doerFunc(func(r *http.Request) (*http.Response, error) {
		paths = append(paths, r.URL.Path)
		return nil, io.ErrUnexpectedEOF
	}))

	_, err := c.ListScripts(context.Background())
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, []string{TokenPath}, paths)
	assert.False(t, c.Authenticated())
	assert.Equal(t, 0, f.requestCount())
}
