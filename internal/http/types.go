package http

import (
	"github.com/Gabriell-Belmont/sam--product-management/internal/blobstore"
	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
)

// PromptRequest is the body of the prompt endpoints.
type PromptRequest struct {
	Prompt    string `json:"prompt"`
	Project   string `json:"project,omitempty"`
	User      string `json:"user,omitempty"`
	Type      string `json:"type,omitempty"`
	Hierarchy bool   `json:"hierarchy,omitempty"`
}

// ClassifyResponse is the response body for POST /api/v1/classify.
type ClassifyResponse struct {
	Prompt *item.PromptRecord `json:"prompt"`
	Type   item.Type          `json:"item_type"`
	Fields item.FieldSet      `json:"fields"`
	// Missing lists required fields the extraction did not find.
	Missing []string `json:"missing,omitempty"`
}

// HistoryResponse is the response body for GET /api/v1/history/:type.
type HistoryResponse struct {
	Project string             `json:"project,omitempty"`
	Type    item.Type          `json:"item_type"`
	Items   []blobstore.Record `json:"items"`
}

// ScrubRequest is the request body for POST /api/v1/scrub.
type ScrubRequest struct {
	Content string `json:"content"`
}

// ScrubResponse is the response body for POST /api/v1/scrub.
type ScrubResponse struct {
	Content       string         `json:"content"`
	FindingsCount int            `json:"findings_count"`
	ByRule        map[string]int `json:"by_rule,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version,omitempty"`
	Services map[string]string `json:"services,omitempty"`
}

// ErrorResponse carries handler errors.
type ErrorResponse struct {
	Error string `json:"error"`
}
