package dto

// CreateLocationRequest registers a stock location.
type CreateLocationRequest struct {
	Name string `json:"name" validate:"required,max=200"`
	Type string `json:"type" validate:"required,oneof=warehouse site vehicle lot"`
}
