package models

import "net/http"

// Query parameter names with special meaning to the dispatcher.
const (
	// ParamKey carries the pool key.
	ParamKey = "key"
	// ParamAccessToken carries a caller-supplied bearer token. Requests that
	// set it never consume a pool key.
	ParamAccessToken = "access_token"
)

// Request describes one logical call against the Steam Web API.
type Request struct {
	// Path is appended to the base URL, e.g. "/ISteamUser/GetPlayerSummaries/v2".
	Path   string `json:"path"`
	Method string `json:"method,omitempty"`
	RequestOptions
}

// RequestOptions is the caller-supplied option bag.
type RequestOptions struct {
	Params map[string]string `json:"params,omitempty"`
	Header map[string]string `json:"header,omitempty"`
	Body   []byte            `json:"body,omitempty"`
	// BaseURL overrides the resolved provider base for this call only.
	BaseURL string `json:"baseURL,omitempty"`
}

// AccessToken returns the caller's bearer token, if any.
func (r Request) AccessToken() string {
	return r.Params[ParamAccessToken]
}

// HTTPMethod returns the method, defaulting to GET.
func (r Request) HTTPMethod() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}
