package dto

import (
	"github.com/ecodvor/scrap-backend/internal/models"
	"github.com/ecodvor/scrap-backend/internal/service"
)

// ErrorResponse represents a standardized error payload
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse represents a standardized success payload
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AuthResponse represents a registered or logged in user with tokens
type AuthResponse struct {
	User   *models.User       `json:"user"`
	Tokens *service.TokenPair `json:"tokens"`
}

// NewAuthResponse creates an AuthResponse from components
func NewAuthResponse(user *models.User, tokens *service.TokenPair) *AuthResponse {
	return &AuthResponse{User: user, Tokens: tokens}
}

// RequestListResponse represents a page of pickup requests
type RequestListResponse struct {
	Requests []models.PickupRequest `json:"requests"`
	Total    int                    `json:"total"`
}

// BalanceResponse represents a wallet balance
type BalanceResponse struct {
	Balance float64 `json:"balance"`
}

// TransactionListResponse represents a page of wallet transactions
type TransactionListResponse struct {
	Transactions []models.Transaction `json:"transactions"`
}

// ReconcileResponse represents the result of a manual reconciliation run
type ReconcileResponse struct {
	Applied int `json:"applied"`
}
