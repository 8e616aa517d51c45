package wsclient

import (
	"bytes"
	"log/slog"

	"github.com/goccy/go-json"
)

// encodeJSON marshals v without HTML escaping. Forward slashes are never escaped,
// so URIs reach the web service verbatim.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// errAttr returns an empty attribute for a nil error so it can be passed unconditionally.
func errAttr(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}
