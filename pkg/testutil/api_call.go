package testutil

import (
	"net/url"
	"time"

	"github.com/tidwall/gjson"
)

// APICall records a request received by MockAPIServer.
type APICall struct {
	Timestamp time.Time
	Method    string
	Path      string
	Query     url.Values
	Header    map[string][]string
	Body      []byte
}

// Form parses the body as url-encoded form values.
func (c APICall) Form() url.Values {
	v, _ := url.ParseQuery(string(c.Body))
	return v
}

// JSON parses the body.
func (c APICall) JSON() gjson.Result {
	return gjson.ParseBytes(c.Body)
}

// FilterAPICalls filters calls by method and path
func FilterAPICalls(calls []APICall, method, path string) []APICall {
	var filtered []APICall
	for _, call := range calls {
		if call.Method == method && call.Path == path {
			filtered = append(filtered, call)
		}
	}
	return filtered
}

// FindAPICallWithForm finds the latest call whose form value key equals value.
func FindAPICallWithForm(calls []APICall, method, path, key, value string) *APICall {
	for i := len(calls) - 1; i >= 0; i-- {
		call := calls[i]
		if call.Method == method && call.Path == path && call.Form().Get(key) == value {
			return &call
		}
	}
	return nil
}
