// Package response renders the JSON envelope every endpoint answers with.
// Success and error replies share one shape so clients can always check
// `status` first.
package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Response is the wire envelope. Data carries file records, status maps or
// presigned URL pairs depending on the endpoint.
type Response struct {
	Status  string      `json:"status"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// WriteJSON writes the envelope with the given HTTP status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(data)
}

// GeneralError wraps a single error message in the envelope.
func GeneralError(err error) Response {
	return Response{
		Status: StatusError,
		Error:  err.Error(),
	}
}

// ValidationError flattens validator errors into one readable message,
// one clause per failing field.
func ValidationError(errs validator.ValidationErrors) Response {
	clauses := make([]string, 0, len(errs))
	for _, err := range errs {
		switch err.Tag() {
		case "required":
			clauses = append(clauses, fmt.Sprintf("%s is required", err.Field()))
		case "min":
			clauses = append(clauses, fmt.Sprintf("%s is too short (min %s)", err.Field(), err.Param()))
		case "max":
			clauses = append(clauses, fmt.Sprintf("%s is too long (max %s)", err.Field(), err.Param()))
		default:
			clauses = append(clauses, fmt.Sprintf("%s failed %s validation", err.Field(), err.Tag()))
		}
	}

	return Response{
		Status: StatusError,
		Error:  strings.Join(clauses, "; "),
	}
}

// RequestOK wraps a success message and optional payload in the envelope.
func RequestOK(message string, data interface{}) Response {
	return Response{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	}
}
