// Package api holds the request and response shapes of the HTTP surface.
package api

import "time"

type ErrorResponse struct {
	Message   string    `json:"message"`
	RequestId string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

type ValidationErrorResponse struct {
	Message          string            `json:"message"`
	RequestId        string            `json:"request_id,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
	ValidationErrors []ValidationError `json:"validation_errors"`
}

type SystemInfo struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type HealthcheckResponse struct {
	Status     string     `json:"status"`
	SystemInfo SystemInfo `json:"system_info"`
}

type Party struct {
	Full    int `json:"full" validate:"gte=0"`
	Student int `json:"student" validate:"gte=0"`
}

type GuestContact struct {
	FullName    string `json:"full_name" validate:"required,min=2,max=100"`
	Email       string `json:"email" validate:"required,email"`
	PhoneNumber string `json:"phone_number" validate:"required,phone"`
}

type CreateBookingRequest struct {
	Party Party         `json:"party" validate:"required"`
	Guest *GuestContact `json:"guest,omitempty" validate:"omitempty"`
}

type Booking struct {
	Id                  string    `json:"id"`
	ShowKey             string    `json:"show_key"`
	Status              string    `json:"status"`
	Seats               []string  `json:"seats,omitempty"`
	Party               Party     `json:"party"`
	TotalPrice          string    `json:"total_price"`
	CreatedAt           time.Time `json:"created_at"`
	LockExpiresInSecs   int       `json:"lock_expires_in_seconds,omitempty"`
}

type BookingResponse struct {
	Booking Booking `json:"booking"`
}

type LockSeatsRequest struct {
	SeatIds []string `json:"seat_ids" validate:"required,min=1,max=10,dive,seat_id"`
}

type LockSeatsResponse struct {
	Locked    bool     `json:"locked"`
	Conflicts []string `json:"conflicts,omitempty"`
	Booking   *Booking `json:"booking,omitempty"`
}

type ConfirmPaymentRequest struct {
	PaymentMethodId string `json:"payment_method_id" validate:"required"`
}

type SeatView struct {
	Id     string `json:"id"`
	Status string `json:"status"`
	Mine   bool   `json:"mine,omitempty"`
}

type SeatMapResponse struct {
	ShowKey string     `json:"show_key"`
	Version int64      `json:"version"`
	Seats   []SeatView `json:"seats"`
}
