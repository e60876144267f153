package env

import (
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/wehubfusion/rackbridge/pkg/rack"
)

// HTTPSource exposes a net/http request as a RequestSource.
type HTTPSource struct {
	req        *http.Request
	attributes map[string]any
	scriptName string
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithAttributes attaches container attributes to the request.
func WithAttributes(attrs map[string]any) HTTPOption {
	return func(s *HTTPSource) {
		s.attributes = attrs
	}
}

// WithScriptName sets the mount prefix. PATH_INFO is the remainder of the
// request path after it.
func WithScriptName(prefix string) HTTPOption {
	return func(s *HTTPSource) {
		s.scriptName = strings.TrimSuffix(prefix, "/")
	}
}

// NewHTTPSource wraps req.
func NewHTTPSource(req *http.Request, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{req: req}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPSource) AttributeNames() []string {
	names := make([]string, 0, len(s.attributes))
	for name := range s.attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *HTTPSource) Attribute(name string) any {
	return s.attributes[name]
}

// HeaderNames includes Host, which net/http moves out of the header map.
func (s *HTTPSource) HeaderNames() ([]string, bool) {
	names := make([]string, 0, len(s.req.Header)+1)
	for name := range s.req.Header {
		names = append(names, name)
	}
	if s.req.Host != "" && s.req.Header.Get("Host") == "" {
		names = append(names, "Host")
	}
	sort.Strings(names)
	return names, true
}

// Header joins repeated values with ", ".
func (s *HTTPSource) Header(name string) (string, bool) {
	if strings.EqualFold(name, "Host") && s.req.Host != "" {
		return s.req.Host, true
	}
	values := s.req.Header.Values(name)
	if len(values) == 0 {
		return "", false
	}
	return strings.Join(values, ", "), true
}

func (s *HTTPSource) Method() string {
	return s.req.Method
}

func (s *HTTPSource) PathInfo() string {
	path := s.req.URL.Path
	if s.scriptName != "" && strings.HasPrefix(path, s.scriptName) {
		path = strings.TrimPrefix(path, s.scriptName)
	}
	return path
}

func (s *HTTPSource) RequestURI() string {
	if s.req.RequestURI != "" {
		return s.req.RequestURI
	}
	return s.req.URL.RequestURI()
}

func (s *HTTPSource) ScriptName() string {
	return s.scriptName
}

func (s *HTTPSource) QueryString() string {
	return s.req.URL.RawQuery
}

func (s *HTTPSource) RemoteAddr() string {
	host, _, err := net.SplitHostPort(s.req.RemoteAddr)
	if err != nil {
		return s.req.RemoteAddr
	}
	return host
}

func (s *HTTPSource) RemoteHost() string {
	return s.RemoteAddr()
}

func (s *HTTPSource) RemoteUser() string {
	user, _, ok := s.req.BasicAuth()
	if !ok {
		return ""
	}
	return user
}

func (s *HTTPSource) ContentType() string {
	return s.req.Header.Get("Content-Type")
}

func (s *HTTPSource) ContentLength() int64 {
	if s.req.ContentLength == 0 && s.req.Header.Get("Content-Length") == "" {
		return -1
	}
	return s.req.ContentLength
}

func (s *HTTPSource) Scheme() string {
	if s.req.TLS != nil {
		return "https"
	}
	if s.req.URL.Scheme != "" {
		return s.req.URL.Scheme
	}
	return "http"
}

func (s *HTTPSource) ServerName() string {
	host, _, err := net.SplitHostPort(s.req.Host)
	if err != nil {
		return s.req.Host
	}
	return host
}

func (s *HTTPSource) ServerPort() int {
	if _, port, err := net.SplitHostPort(s.req.Host); err == nil {
		if n, err := strconv.Atoi(port); err == nil {
			return n
		}
	}
	if s.Scheme() == "https" {
		return 443
	}
	return 80
}

func (s *HTTPSource) Body() io.Reader {
	if s.req.Body == nil {
		return http.NoBody
	}
	return s.req.Body
}

func (s *HTTPSource) Native() any {
	return s.req
}

// RackContext implements ContextProvider when the request context carries one.
func (s *HTTPSource) RackContext() *rack.Context {
	return rack.FromContext(s.req.Context())
}

var (
	_ RequestSource   = (*HTTPSource)(nil)
	_ ContextProvider = (*HTTPSource)(nil)
)
