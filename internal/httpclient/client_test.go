package httpclient

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarwindow/pvpoll/internal/errors"
)

func newMockClient(t *testing.T, cfg Config) (*Client, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	cfg.Transport = mt
	client := New(&cfg)
	t.Cleanup(client.Close)
	return client, mt
}

func TestNewDefaults(t *testing.T) {
	client := New(nil)
	assert.Equal(t, DefaultTimeout, client.defaultTimeout)
	assert.Equal(t, DefaultUserAgent, client.userAgent)
	assert.Equal(t, "httpclient", client.component)

	custom := New(&Config{DefaultTimeout: 3 * time.Second, UserAgent: "probe/2", Component: "solaredge"})
	assert.Equal(t, 3*time.Second, custom.defaultTimeout)
	assert.Equal(t, "probe/2", custom.userAgent)
}

func TestDoInjectsUserAgentAndDeadline(t *testing.T) {
	client, mt := newMockClient(t, Config{UserAgent: "pvpoll-test/1.0"})

	var (
		gotUA       string
		hasDeadline bool
	)
	mt.RegisterResponder(http.MethodGet, "https://example.test/ok",
		func(req *http.Request) (*http.Response, error) {
			gotUA = req.Header.Get("User-Agent")
			_, hasDeadline = req.Context().Deadline()
			return httpmock.NewStringResponse(http.StatusOK, "fine"), nil
		})

	resp, err := client.Get(context.Background(), "https://example.test/ok")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, "pvpoll-test/1.0", gotUA)
	assert.True(t, hasDeadline, "default timeout must apply")
}

func TestDoKeepsExplicitUserAgent(t *testing.T) {
	client, mt := newMockClient(t, Config{})
	var gotUA string
	mt.RegisterResponder(http.MethodGet, "https://example.test/ua",
		func(req *http.Request) (*http.Response, error) {
			gotUA = req.Header.Get("User-Agent")
			return httpmock.NewStringResponse(http.StatusOK, ""), nil
		})

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "https://example.test/ua", http.NoBody)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "explicit")

	resp, err := client.Do(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "explicit", gotUA)
}

func TestDoRejectsNilRequest(t *testing.T) {
	client := New(nil)
	_, err := client.Do(context.Background(), nil)
	require.Error(t, err)
}

func TestHooksObserveRequests(t *testing.T) {
	client, mt := newMockClient(t, Config{})
	mt.RegisterResponder(http.MethodGet, "https://example.test/hook",
		httpmock.NewStringResponder(http.StatusTeapot, ""))

	var before, after int
	var status int
	client.SetBeforeRequestHook(func(*http.Request) { before++ })
	client.SetAfterResponseHook(func(_ *http.Request, resp *http.Response, err error, d time.Duration) {
		after++
		require.NoError(t, err)
		status = resp.StatusCode
		assert.GreaterOrEqual(t, d, time.Duration(0))
	})

	resp, err := client.Get(context.Background(), "https://example.test/hook")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, 1, before)
	assert.Equal(t, 1, after)
	assert.Equal(t, http.StatusTeapot, status)
}

func TestGetJSON(t *testing.T) {
	client, mt := newMockClient(t, Config{Component: "probe"})

	mt.RegisterResponder(http.MethodGet, "https://example.test/data",
		httpmock.NewStringResponder(http.StatusOK, `{"value": 42.5}`))
	mt.RegisterResponder(http.MethodGet, "https://example.test/broken",
		httpmock.NewStringResponder(http.StatusOK, `{"value": `))
	mt.RegisterResponder(http.MethodGet, "https://example.test/denied",
		httpmock.NewStringResponder(http.StatusForbidden, `invalid api_key=abc123`))
	mt.RegisterResponder(http.MethodGet, "https://example.test/down?api_key=secret",
		httpmock.NewErrorResponder(context.DeadlineExceeded))

	var out struct {
		Value float64 `json:"value"`
	}
	require.NoError(t, client.GetJSON(context.Background(), "https://example.test/data", &out))
	assert.InDelta(t, 42.5, out.Value, 0)

	err := client.GetJSON(context.Background(), "https://example.test/broken", &out)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryParsing))

	err = client.GetJSON(context.Background(), "https://example.test/denied", &out)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryHTTP))
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.NotContains(t, err.Error(), "abc123")

	err = client.GetJSON(context.Background(), "https://example.test/down?api_key=secret", &out)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryTimeout))
	assert.NotContains(t, err.Error(), "secret")
}

func TestRateLimitWaitHonoursContext(t *testing.T) {
	client, mt := newMockClient(t, Config{RateLimit: 0.001})
	mt.RegisterResponder(http.MethodGet, "https://example.test/ok", httpmock.NewStringResponder(http.StatusOK, "{}"))

	resp, err := client.Get(context.Background(), "https://example.test/ok")
	require.NoError(t, err, "the first request uses the burst token")
	require.NoError(t, resp.Body.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Get(ctx, "https://example.test/ok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
	assert.Equal(t, 1, mt.GetTotalCallCount())
}

func TestNoRateLimitByDefault(t *testing.T) {
	assert.Nil(t, New(nil).limiter)
	assert.NotNil(t, New(&Config{RateLimit: 2}).limiter)
}
