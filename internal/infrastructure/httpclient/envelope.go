package httpclient

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/servicehub/marketplace-client/internal/core/domain"
)

// envelope is the server's response wrapper:
// { success, message, data, error?, code? }.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
	Code    string          `json:"code"`
}

type errorObject struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

var jsonNull = []byte("null")

// unwrapData returns the envelope's data when present and non-null, the raw
// body otherwise.
func unwrapData(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return trimmed
	}
	data, ok := fields["data"]
	if !ok || bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		return trimmed
	}
	return data
}

// errorFromResponse classifies a non-2xx answer into exactly one taxonomy
// value, carrying the server message and the raw body as details.
func errorFromResponse(status int, body []byte) *domain.AppError {
	ae := &domain.AppError{
		Type:   domain.TypeForStatus(status),
		Status: status,
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		ae.Message = env.Message
		ae.Code = env.Code
		if len(env.Error) > 0 && !bytes.Equal(env.Error, jsonNull) {
			var s string
			var obj errorObject
			switch {
			case json.Unmarshal(env.Error, &s) == nil:
				if ae.Message == "" {
					ae.Message = s
				}
			case json.Unmarshal(env.Error, &obj) == nil:
				if ae.Message == "" {
					ae.Message = obj.Message
				}
				if ae.Code == "" {
					ae.Code = obj.Code
				}
			}
		}
		if len(env.Data) > 0 && !bytes.Equal(env.Data, jsonNull) {
			ae.Details = env.Data
		}
	}
	if ae.Details == nil && len(bytes.TrimSpace(body)) > 0 {
		ae.Details = string(body)
	}

	if t, ok := domain.ParseErrorType(ae.Code); ok {
		ae.Type = t
	}
	if ae.Message == "" {
		ae.Message = http.StatusText(status)
		if ae.Message == "" {
			ae.Message = "unexpected response"
		}
	}
	return ae
}
