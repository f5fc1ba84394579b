package dto

// RegisterRequest represents the request to register a new user
type RegisterRequest struct {
	Email    string  `json:"email" binding:"required"`
	Password string  `json:"password" binding:"required"`
	Name     string  `json:"name" binding:"required"`
	Phone    *string `json:"phone"`
	Role     string  `json:"role" binding:"required"`
	Address  *string `json:"address"`
}

// LoginRequest represents the request to log in
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest represents the request to refresh a token pair
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RequestItemInput represents a single waste item in a pickup request
type RequestItemInput struct {
	WasteType string  `json:"waste_type" binding:"required"`
	Quantity  float64 `json:"quantity" binding:"required"`
	Unit      string  `json:"unit" binding:"required"`
	UnitPrice float64 `json:"unit_price" binding:"required"`
}

// CreatePickupRequest represents the request to create a pickup request
type CreatePickupRequest struct {
	Address      string             `json:"address" binding:"required"`
	Latitude     *float64           `json:"latitude"`
	Longitude    *float64           `json:"longitude"`
	PickupOption string             `json:"pickup_option" binding:"required"`
	ScheduledAt  *string            `json:"scheduled_at"`
	Items        []RequestItemInput `json:"items" binding:"required"`
}

// CompletePickupRequest represents the request to complete a pickup
type CompletePickupRequest struct {
	MeasuredWeight float64 `json:"measured_weight" binding:"required"`
}

// CancelPickupRequest represents the request to cancel a pickup
type CancelPickupRequest struct {
	Reason string `json:"reason" binding:"required"`
}
