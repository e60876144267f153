package env

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Builtin keys
const (
	KeyVersion          = "rack.version"
	KeyInput            = "rack.input"
	KeyErrors           = "rack.errors"
	KeyURLScheme        = "rack.url_scheme"
	KeyMultithread      = "rack.multithread"
	KeyMultiprocess     = "rack.multiprocess"
	KeyRunOnce          = "rack.run_once"
	KeyContext          = "rack.context"
	KeyException        = "rack.exception"
	KeyRequest          = "container.request"
	KeyResponse         = "container.response"
	KeyContainerContext = "container.context"
	KeyRuntimeVersion   = "runtime.version"
	KeyPlatformVersion  = "platform.version"
)

// Variable keys
const (
	VarContentType    = "CONTENT_TYPE"
	VarContentLength  = "CONTENT_LENGTH"
	VarPathInfo       = "PATH_INFO"
	VarQueryString    = "QUERY_STRING"
	VarRemoteAddr     = "REMOTE_ADDR"
	VarRemoteHost     = "REMOTE_HOST"
	VarRemoteUser     = "REMOTE_USER"
	VarRequestMethod  = "REQUEST_METHOD"
	VarRequestURI     = "REQUEST_URI"
	VarScriptName     = "SCRIPT_NAME"
	VarServerName     = "SERVER_NAME"
	VarServerPort     = "SERVER_PORT"
	VarServerSoftware = "SERVER_SOFTWARE"
	VarHTTPS          = "HTTPS"
)

// Version is the application protocol version reported as rack.version.
const Version = "1.1"

// HeaderPrefix prefixes every header key.
const HeaderPrefix = "HTTP_"

var builtinKeys = []string{
	KeyVersion,
	KeyMultithread,
	KeyMultiprocess,
	KeyRunOnce,
	KeyInput,
	KeyErrors,
	KeyURLScheme,
	KeyRequest,
	KeyResponse,
	KeyContainerContext,
	KeyContext,
	KeyRuntimeVersion,
	KeyPlatformVersion,
}

var variableKeys = []string{
	VarContentType,
	VarContentLength,
	VarPathInfo,
	VarQueryString,
	VarRemoteAddr,
	VarRemoteHost,
	VarRemoteUser,
	VarRequestMethod,
	VarRequestURI,
	VarScriptName,
	VarServerName,
	VarServerPort,
	VarServerSoftware,
}

var builtinPrefixes = []string{"rack.", "container.", "runtime.", "platform."}

type keyKind int

const (
	kindVariable keyKind = iota
	kindBuiltin
	kindHeader
)

func classify(key string) keyKind {
	for _, prefix := range builtinPrefixes {
		if strings.HasPrefix(key, prefix) {
			return kindBuiltin
		}
	}
	if strings.HasPrefix(key, HeaderPrefix) {
		return kindHeader
	}
	return kindVariable
}

// HeaderKey converts a header name to its environment key:
// "Accept-Encoding" becomes "HTTP_ACCEPT_ENCODING".
func HeaderKey(name string) string {
	return HeaderPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// HeaderName converts an environment key back to a canonical header name:
// "HTTP_ACCEPT_ENCODING" becomes "Accept-Encoding".
func HeaderName(key string) string {
	parts := strings.Split(strings.TrimPrefix(key, HeaderPrefix), "_")
	caser := cases.Title(language.Und)
	for i, part := range parts {
		parts[i] = caser.String(part)
	}
	return strings.Join(parts, "-")
}

// bodyHeader reports headers carried only as CONTENT_TYPE / CONTENT_LENGTH.
func bodyHeader(name string) bool {
	return strings.EqualFold(name, "Content-Type") || strings.EqualFold(name, "Content-Length")
}
