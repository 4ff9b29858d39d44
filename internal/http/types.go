// Package http provides the HTTP API for paddockd.
package http

// AskRequest is the request body for POST /api/v1/ask and /api/v1/chat.
type AskRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// Citation describes one retrieved passage an answer draws on.
type Citation struct {
	ID     string  `json:"id"`
	Source string  `json:"source,omitempty"`
	RuleID string  `json:"rule_id,omitempty"`
	Score  float32 `json:"score"`
}

// VerdictBody mirrors the output guardrail's assessment.
type VerdictBody struct {
	Grounded       bool    `json:"grounded"`
	Score          float64 `json:"score"`
	CitationsValid bool    `json:"citations_valid"`
	Flagged        bool    `json:"flagged"`
	Reason         string  `json:"reason,omitempty"`
}

// AskResponse is the response body for POST /api/v1/ask.
type AskResponse struct {
	Answer     string      `json:"answer"`
	Intent     string      `json:"intent"`
	Collection string      `json:"collection,omitempty"`
	Citations  []Citation  `json:"citations,omitempty"`
	Verdict    VerdictBody `json:"verdict"`
}

// ChatResponse is the response body for POST /api/v1/chat.
type ChatResponse struct {
	Answer string `json:"answer"`
}

// UploadPassage is one pre-chunked passage in an upload payload.
type UploadPassage struct {
	ID       string            `json:"id,omitempty"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// UploadRequest is the request body for POST /api/v1/upload.
type UploadRequest struct {
	SessionID string `json:"session_id"`

	// Document is the name of the uploaded document, used to derive the
	// collection identifier.
	Document string          `json:"document,omitempty"`
	Passages []UploadPassage `json:"passages"`
}

// UploadResponse is the response body for POST /api/v1/upload.
type UploadResponse struct {
	CollectionID string `json:"collection_id"`
	Passages     int    `json:"passages"`
}

// ResetRequest is the request body for POST /api/v1/reset.
type ResetRequest struct {
	SessionID string `json:"session_id"`
}

// ResetResponse is the response body for POST /api/v1/reset.
type ResetResponse struct {
	Status string `json:"status"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ErrorResponse is the body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}
