package env

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bridgeerrors "github.com/wehubfusion/rackbridge/pkg/errors"
	"github.com/wehubfusion/rackbridge/pkg/rack"
	"github.com/wehubfusion/rackbridge/pkg/rewind"
)

type fakeSource struct {
	attrs         map[string]any
	headers       map[string]string
	noHeaders     bool
	method        string
	pathInfo      string
	scheme        string
	contentType   string
	contentLength int64
	serverPort    int
	body          string
	headerLookups int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		attrs:         map[string]any{},
		headers:       map[string]string{},
		contentLength: -1,
		serverPort:    8080,
	}
}

func (s *fakeSource) AttributeNames() []string {
	names := make([]string, 0, len(s.attrs))
	for k := range s.attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (s *fakeSource) Attribute(name string) any {
	return s.attrs[name]
}

func (s *fakeSource) HeaderNames() ([]string, bool) {
	if s.noHeaders {
		return nil, false
	}
	names := make([]string, 0, len(s.headers))
	for k := range s.headers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, true
}

func (s *fakeSource) Header(name string) (string, bool) {
	s.headerLookups++
	for k, v := range s.headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func (s *fakeSource) Method() string {
	return s.method
}

func (s *fakeSource) PathInfo() string {
	return s.pathInfo
}

func (s *fakeSource) RequestURI() string {
	return "/app" + s.pathInfo
}

func (s *fakeSource) ScriptName() string {
	return "/app"
}

func (s *fakeSource) QueryString() string {
	return ""
}

func (s *fakeSource) RemoteAddr() string {
	return "10.0.0.1"
}

func (s *fakeSource) RemoteHost() string {
	return "client.local"
}

func (s *fakeSource) RemoteUser() string {
	return ""
}

func (s *fakeSource) ContentType() string {
	return s.contentType
}

func (s *fakeSource) ContentLength() int64 {
	return s.contentLength
}

func (s *fakeSource) Scheme() string {
	return s.scheme
}

func (s *fakeSource) ServerName() string {
	return "example.org"
}

func (s *fakeSource) ServerPort() int {
	return s.serverPort
}

func (s *fakeSource) Body() io.Reader {
	return strings.NewReader(s.body)
}

func (s *fakeSource) Native() any {
	return s
}

func newTestAdapter(t *testing.T, src RequestSource) *Adapter {
	t.Helper()
	a, err := NewAdapter(src, WithContext(rack.NewContext(nil, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestClassify(t *testing.T) {
	tests := map[string]keyKind{
		"rack.input":        kindBuiltin,
		"container.request": kindBuiltin,
		"runtime.version":   kindBuiltin,
		"platform.version":  kindBuiltin,
		"HTTP_ACCEPT":       kindHeader,
		"PATH_INFO":         kindVariable,
		"HTTPS":             kindVariable,
		"custom":            kindVariable,
	}
	for key, want := range tests {
		assert.Equal(t, want, classify(key), key)
	}
}

func TestHeaderKeyRoundTrip(t *testing.T) {
	for _, name := range []string{"Accept", "Accept-Encoding", "X-Forwarded-Proto", "Dnt"} {
		key := HeaderKey(name)
		assert.True(t, strings.HasPrefix(key, HeaderPrefix))
		assert.Equal(t, name, HeaderName(key))
	}
	assert.Equal(t, "HTTP_ACCEPT_ENCODING", HeaderKey("accept-encoding"))
	assert.Equal(t, "Accept-Encoding", HeaderName("HTTP_ACCEPT_ENCODING"))
}

func TestEagerAndLazyAgree(t *testing.T) {
	build := func() *fakeSource {
		src := newFakeSource()
		src.method = "POST"
		src.pathInfo = "/items"
		src.scheme = "https"
		src.contentType = "application/json"
		src.contentLength = 12
		src.headers["Accept"] = "text/html"
		src.headers["X-Request-Id"] = "abc"
		src.attrs["custom.attr"] = "x"
		return src
	}

	eager := newTestAdapter(t, build()).Populate()
	lazy := newTestAdapter(t, build()).Env()

	for _, key := range eager.Keys() {
		want, _ := eager.Get(key)
		got, ok := lazy.Get(key)
		require.True(t, ok, key)
		switch key {
		case KeyInput, KeyErrors, KeyRequest, KeyContainerContext, KeyContext:
			assert.NotNil(t, got, key)
		default:
			assert.Equal(t, want, got, key)
		}
	}
}

func TestPopulateDefaults(t *testing.T) {
	src := newFakeSource()
	e := newTestAdapter(t, src).Populate()

	assert.Equal(t, "GET", e.GetString(VarRequestMethod))
	assert.Equal(t, "http", e.GetString(KeyURLScheme))
	assert.Equal(t, "8080", e.GetString(VarServerPort))
	assert.Equal(t, rack.DefaultServerInfo, e.GetString(VarServerSoftware))
	assert.Equal(t, Version, e.GetString(KeyVersion))
	assert.False(t, e.Has(VarContentLength))
	assert.False(t, e.Has(VarContentType))
	assert.False(t, e.Has(VarHTTPS))

	v, _ := e.Get(KeyMultithread)
	assert.Equal(t, true, v)
	v, _ = e.Get(KeyRunOnce)
	assert.Equal(t, false, v)
}

func TestAttributesWinOverComputed(t *testing.T) {
	src := newFakeSource()
	src.method = "PUT"
	src.attrs[VarRequestMethod] = "PATCH"
	src.attrs[VarServerPort] = 9000
	src.attrs[VarContentLength] = -1
	src.attrs[VarContentType] = nil
	src.attrs["empty"] = nil

	e := newTestAdapter(t, src).Env()
	assert.True(t, e.Has(VarRequestMethod))
	assert.Equal(t, "PATCH", e.GetString(VarRequestMethod))
	assert.Equal(t, "9000", e.GetString(VarServerPort))
	assert.True(t, e.Has("empty"))
	assert.Equal(t, "", e.GetString("empty"))

	assert.False(t, e.Has(VarContentLength))
	assert.False(t, e.Has(VarContentType))
}

func TestFirstWriterWins(t *testing.T) {
	src := newFakeSource()
	e := newTestAdapter(t, src).Env()
	require.NoError(t, e.Set(VarPathInfo, "/override"))

	assert.Equal(t, "/override", e.GetString(VarPathInfo))
}

func TestFrozenEnvIsNotPopulated(t *testing.T) {
	src := newFakeSource()
	src.headers["Accept"] = "*/*"
	a := newTestAdapter(t, src)
	e := a.Env()
	e.Freeze()

	_, ok := e.Get(VarRequestMethod)
	assert.False(t, ok)
	assert.Same(t, e, a.Populate())
	assert.False(t, e.Has("HTTP_ACCEPT"))
	assert.ErrorIs(t, e.Set("x", 1), bridgeerrors.ErrFrozen)
	assert.ErrorIs(t, e.Delete("x"), bridgeerrors.ErrFrozen)

	dup := e.Dup()
	assert.False(t, dup.Frozen())
	assert.Equal(t, "GET", dup.GetString(VarRequestMethod))
}

func TestContentLength(t *testing.T) {
	src := newFakeSource()
	src.contentLength = 0
	e := newTestAdapter(t, src).Env()
	assert.Equal(t, "0", e.GetString(VarContentLength))

	src = newFakeSource()
	src.contentLength = -1
	e = newTestAdapter(t, src).Env()
	_, ok := e.Get(VarContentLength)
	assert.False(t, ok)
}

func TestContentHeadersSkipped(t *testing.T) {
	src := newFakeSource()
	src.headers["content-type"] = "text/plain"
	src.headers["CONTENT-LENGTH"] = "5"
	src.headers["Accept"] = "*/*"

	e := newTestAdapter(t, src).Populate()
	assert.False(t, e.Has("HTTP_CONTENT_TYPE"))
	assert.False(t, e.Has("HTTP_CONTENT_LENGTH"))
	assert.Equal(t, "*/*", e.GetString("HTTP_ACCEPT"))

	lazy := newTestAdapter(t, src).Env()
	_, ok := lazy.Get("HTTP_CONTENT_TYPE")
	assert.False(t, ok)
}

func TestMissingHeaderAccess(t *testing.T) {
	src := newFakeSource()
	src.noHeaders = true
	src.headers["Accept"] = "*/*"

	e := newTestAdapter(t, src).Populate()
	for _, key := range e.Keys() {
		assert.False(t, strings.HasPrefix(key, HeaderPrefix), key)
	}
}

func TestHTTPSFollowsScheme(t *testing.T) {
	src := newFakeSource()
	src.scheme = "https"
	e := newTestAdapter(t, src).Env()
	assert.Equal(t, "on", e.GetString(VarHTTPS))
	assert.Equal(t, "https", e.GetString(KeyURLScheme))

	src = newFakeSource()
	src.scheme = "http"
	e = newTestAdapter(t, src).Populate()
	assert.False(t, e.Has(VarHTTPS))
}

func TestHTTPSFollowsStoredScheme(t *testing.T) {
	tests := []struct {
		name      string
		scheme    string
		attribute string
		wantHTTPS bool
	}{
		{name: "attribute downgrades", scheme: "https", attribute: "http", wantHTTPS: false},
		{name: "attribute upgrades", scheme: "http", attribute: "https", wantHTTPS: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newSource := func() *fakeSource {
				src := newFakeSource()
				src.scheme = tt.scheme
				src.attrs[KeyURLScheme] = tt.attribute
				return src
			}

			eager := newTestAdapter(t, newSource()).Populate()
			assert.Equal(t, tt.attribute, eager.GetString(KeyURLScheme))
			assert.Equal(t, tt.wantHTTPS, eager.Has(VarHTTPS))

			lazy := newTestAdapter(t, newSource()).Env()
			v, ok := lazy.Get(VarHTTPS)
			assert.Equal(t, tt.wantHTTPS, ok)
			if tt.wantHTTPS {
				assert.Equal(t, "on", v)
			}
			assert.Equal(t, tt.attribute, lazy.GetString(KeyURLScheme))
		})
	}
}

func TestLazyLookupIsCached(t *testing.T) {
	src := newFakeSource()
	src.headers["Accept"] = "*/*"
	e := newTestAdapter(t, src).Env()

	e.GetString("HTTP_ACCEPT")
	e.GetString("HTTP_ACCEPT")
	assert.Equal(t, 1, src.headerLookups)
}

func TestInputIsRewindable(t *testing.T) {
	src := newFakeSource()
	src.body = "hello"
	e := newTestAdapter(t, src).Env()

	v, ok := e.Get(KeyInput)
	require.True(t, ok)
	in := v.(*rewind.Input)
	got, err := in.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	require.NoError(t, in.Rewind())
	got, err = in.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestContextResolution(t *testing.T) {
	t.Cleanup(func() { rack.SetDefault(nil) })
	rack.SetDefault(nil)

	_, err := NewAdapter(newFakeSource())
	require.Error(t, err)
	assert.True(t, bridgeerrors.IsMissingContext(err))

	fallback := rack.NewContext(nil, nil)
	rack.SetDefault(fallback)
	a, err := NewAdapter(newFakeSource())
	require.NoError(t, err)
	assert.Same(t, fallback, a.Context())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	own := rack.NewContext(nil, nil)
	req = req.WithContext(rack.IntoContext(req.Context(), own))
	a, err = NewAdapter(NewHTTPSource(req))
	require.NoError(t, err)
	assert.Same(t, own, a.Context())

	explicit := rack.NewContext(nil, nil)
	a, err = NewAdapter(NewHTTPSource(req), WithContext(explicit))
	require.NoError(t, err)
	assert.Same(t, explicit, a.Context())
}

func TestHTTPSource(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "https://example.org:8443/app/items?q=1", strings.NewReader("body"))
	req.TLS = &tls.ConnectionState{}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Add("X-Tag", "a")
	req.Header.Add("X-Tag", "b")
	req.SetBasicAuth("alice", "secret")

	a := newTestAdapter(t, NewHTTPSource(req, WithScriptName("/app/"), WithAttributes(map[string]any{"tenant": 7})))
	e := a.Populate()

	assert.Equal(t, "POST", e.GetString(VarRequestMethod))
	assert.Equal(t, "/app", e.GetString(VarScriptName))
	assert.Equal(t, "/items", e.GetString(VarPathInfo))
	assert.Equal(t, "q=1", e.GetString(VarQueryString))
	assert.Equal(t, "example.org", e.GetString(VarServerName))
	assert.Equal(t, "8443", e.GetString(VarServerPort))
	assert.Equal(t, "https", e.GetString(KeyURLScheme))
	assert.Equal(t, "on", e.GetString(VarHTTPS))
	assert.Equal(t, "alice", e.GetString(VarRemoteUser))
	assert.Equal(t, "text/plain", e.GetString(VarContentType))
	assert.Equal(t, "4", e.GetString(VarContentLength))
	assert.Equal(t, "gzip", e.GetString("HTTP_ACCEPT_ENCODING"))
	assert.Equal(t, "a, b", e.GetString("HTTP_X_TAG"))
	assert.Equal(t, "example.org:8443", e.GetString("HTTP_HOST"))
	assert.Equal(t, "7", e.GetString("tenant"))
	assert.False(t, e.Has("HTTP_CONTENT_TYPE"))

	v, _ := e.Get(KeyRequest)
	assert.Same(t, req, v)
}
