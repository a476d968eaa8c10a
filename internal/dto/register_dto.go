package dto

type CreateRegisterRequest struct {
	Name string `json:"name" validate:"required,min=2,max=60"`
}

type UpdateRegisterRequest struct {
	Name   *string `json:"name"   validate:"omitempty,min=2,max=60"`
	Active *bool   `json:"active"`
}

type RegisterResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}
