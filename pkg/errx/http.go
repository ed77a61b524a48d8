package errx

// HTTPErrorResponse is the body rendered for non-OAuth endpoints.
type HTTPErrorResponse struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Type       string         `json:"type"`
	Details    map[string]any `json:"details,omitempty"`
	StatusCode int            `json:"status_code"`
	RequestID  string         `json:"request_id,omitempty"`
}

// OAuthErrorResponse is the RFC 6749 §5.2 error body.
type OAuthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// ToHTTPResponse converts an Error to an HTTPErrorResponse. The cause is
// never included.
func (e *Error) ToHTTPResponse() HTTPErrorResponse {
	return HTTPErrorResponse{
		Code:       e.Code,
		Message:    e.Message,
		Type:       string(e.Type),
		Details:    e.Details,
		StatusCode: e.HTTPStatus,
	}
}

// ToOAuthResponse converts an Error to an RFC 6749 body. Errors without an
// OAuth code render as server_error.
func (e *Error) ToOAuthResponse() OAuthErrorResponse {
	code := e.OAuthCode
	if code == "" {
		code = "server_error"
	}
	return OAuthErrorResponse{
		Error:            code,
		ErrorDescription: e.Message,
	}
}
