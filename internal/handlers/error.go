package handlers

// ErrorResponse is the standard API error body (message only).
type ErrorResponse struct {
	Message string `json:"message"`
}

// InitErrorResponse is the bootstrap failure body the chat widget expects.
type InitErrorResponse struct {
	ErrorMessage string `json:"errorMessage"`
}
