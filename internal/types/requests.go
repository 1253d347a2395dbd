package types

// FileUpdateRequest is the payload for the metadata edit endpoint. Only the
// user-editable fields are accepted; status fields belong to the workers.
type FileUpdateRequest struct {
	Description *string  `json:"description,omitempty" validate:"omitempty,max=500"`
	Tags        []string `json:"tags,omitempty" validate:"omitempty,max=20,dive,min=1,max=50"`
}

// SearchRequest is the payload for keyword search over completed analyses.
type SearchRequest struct {
	Query string `json:"query" validate:"required,min=2,max=100"`
}
