package dto

// CreateVehicleRequest registers a new fleet vehicle.
type CreateVehicleRequest struct {
	Registration string `json:"registration_number" validate:"required,max=20"`
	Model        string `json:"model" validate:"required,max=100"`
	Class        string `json:"vehicle_class" validate:"required"`
}

// UpdateVehicleRequest modifies an existing vehicle. Nil fields stay as-is.
type UpdateVehicleRequest struct {
	Registration *string `json:"registration_number" validate:"omitempty,max=20"`
	Model        *string `json:"model" validate:"omitempty,max=100"`
	Class        *string `json:"vehicle_class" validate:"omitempty"`
}

// SetVehicleAvailabilityRequest flips the operator availability flag.
type SetVehicleAvailabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}
