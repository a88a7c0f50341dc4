package http

// QueryRequest is the request body for POST /api/query.
type QueryRequest struct {
	Question   string `json:"question"`
	MaxResults int    `json:"max_results"`
	APIKey     string `json:"api_key,omitempty"`
}

// QueryResponse is the response body for POST /api/query.
type QueryResponse struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	Confidence float32  `json:"confidence"`
}

// UploadResponse is the response body for POST /api/documents/upload.
type UploadResponse struct {
	SessionID string `json:"session_id"`
	Chunks    int    `json:"chunks"`
	Name      string `json:"name"`
	Type      string `json:"type"`
}

// AddURLRequest is the request body for POST /api/documents/add-url.
type AddURLRequest struct {
	URL string `json:"url"`
}

// AddURLResponse is the response body for POST /api/documents/add-url.
type AddURLResponse struct {
	Chunks int `json:"chunks"`
}

// DocumentInfo is one catalog entry in GET /api/documents.
type DocumentInfo struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Chunks int    `json:"chunks"`
}

// DocumentsResponse is the response body for GET /api/documents.
type DocumentsResponse struct {
	Documents []DocumentInfo `json:"documents"`
}

// HealthResponse is the response body for GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
