package rack

import (
	"net/http"
	"strings"
)

// Response is the result of calling an application: status, headers and
// the concatenated body. A header value holding several lines is sent as
// several header fields.
type Response struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// WriteTo writes the response to w.
func (r *Response) WriteTo(w http.ResponseWriter) error {
	h := w.Header()
	for name, value := range r.Headers {
		for _, line := range strings.Split(value, "\n") {
			h.Add(name, line)
		}
	}
	w.WriteHeader(r.Status)
	_, err := w.Write(r.Body)
	return err
}
