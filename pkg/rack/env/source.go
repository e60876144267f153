package env

import (
	"io"

	"github.com/wehubfusion/rackbridge/pkg/rack"
)

// RequestSource is the read-only view of a container request. The adapter
// never mutates it and applies defaults wherever a value is empty.
type RequestSource interface {
	AttributeNames() []string
	Attribute(name string) any

	// HeaderNames enumerates header names. ok is false when the container
	// offers no header access, which is treated as having no headers.
	HeaderNames() (names []string, ok bool)
	Header(name string) (string, bool)

	Method() string
	PathInfo() string
	RequestURI() string
	ScriptName() string
	QueryString() string
	RemoteAddr() string
	RemoteHost() string
	RemoteUser() string
	ContentType() string

	// ContentLength is negative when unknown.
	ContentLength() int64
	Scheme() string
	ServerName() string
	ServerPort() int

	Body() io.Reader

	// Native returns the container's own request object.
	Native() any
}

// ContextProvider is implemented by sources that carry their rack context.
type ContextProvider interface {
	RackContext() *rack.Context
}
