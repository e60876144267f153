package jsruntime

import (
	"io"
	"strings"
)

type stubSource struct {
	method string
}

func (s *stubSource) AttributeNames() []string {
	return nil
}

func (s *stubSource) Attribute(string) any {
	return nil
}

func (s *stubSource) HeaderNames() ([]string, bool) {
	return nil, false
}

func (s *stubSource) Header(string) (string, bool) {
	return "", false
}

func (s *stubSource) Method() string {
	return s.method
}

func (s *stubSource) PathInfo() string {
	return "/"
}

func (s *stubSource) RequestURI() string {
	return "/"
}

func (s *stubSource) ScriptName() string {
	return ""
}

func (s *stubSource) QueryString() string {
	return ""
}

func (s *stubSource) RemoteAddr() string {
	return "127.0.0.1"
}

func (s *stubSource) RemoteHost() string {
	return "localhost"
}

func (s *stubSource) RemoteUser() string {
	return ""
}

func (s *stubSource) ContentType() string {
	return ""
}

func (s *stubSource) ContentLength() int64 {
	return -1
}

func (s *stubSource) Scheme() string {
	return "http"
}

func (s *stubSource) ServerName() string {
	return "localhost"
}

func (s *stubSource) ServerPort() int {
	return 80
}

func (s *stubSource) Body() io.Reader {
	return strings.NewReader("")
}

func (s *stubSource) Native() any {
	return nil
}
