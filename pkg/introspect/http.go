package introspect

import (
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"
)

// Request is a GraphQL-over-HTTP request body.
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Response is a GraphQL-over-HTTP response body.
type Response struct {
	Data   any     `json:"data,omitempty"`
	Errors []ResponseError `json:"errors,omitempty"`
}

// ResponseError is one GraphQL execution error.
type ResponseError struct {
	Message string `json:"message"`
}

// Handler serves the introspection schema read-only: every request is
// POST, and since the schema defines no Mutation type, graphql-go
// itself rejects any mutation operation before it reaches a resolver.
type Handler struct {
	schema graphql.Schema
}

// NewHandler wraps schema as an http.Handler.
func NewHandler(schema graphql.Schema) *Handler {
	return &Handler{schema: schema}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var result *graphql.Result
	if len(req.Variables) > 0 {
		result = ExecuteQueryWithVariables(req.Query, h.schema, req.Variables)
	} else {
		result = ExecuteQuery(req.Query, h.schema)
	}

	resp := Response{Data: result.Data}
	if result.HasErrors() {
		resp.Errors = make([]ResponseError, len(result.Errors))
		for i, e := range result.Errors {
			resp.Errors[i] = ResponseError{Message: e.Message}
		}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
