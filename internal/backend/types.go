package backend

// ChatRequest is the body of one POST /chat turn.
type ChatRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
}

// ChatResponse is what the backend answers. Messages carries the raw, unnormalized
// reply; ThreadID, when set, is the authoritative conversation token.
type ChatResponse struct {
	ThreadID         string `json:"thread_id,omitempty"`
	Messages         string `json:"messages,omitempty"`
	RequiresApproval bool   `json:"requires_approval,omitempty"`
	Error            string `json:"error,omitempty"`
}
