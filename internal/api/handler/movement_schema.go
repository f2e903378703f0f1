package handler

import "time"

type assignmentRequest struct {
	VehicleID         string   `json:"vehicle_id"`
	DriverID          string   `json:"driver_id"`
	CheckerID         string   `json:"checker_id"`
	CrewIDs           []string `json:"crew_ids"`
	StartOdometerKm   int64    `json:"start_odometer_km" validate:"gte=0"`
	EstimatedDuration string   `json:"estimated_duration"`
	Reference         string   `json:"reference"`
}

// movementRequest drives a generic batch; preset routes ignore the statuses.
type movementRequest struct {
	MemberIDs    []string          `json:"member_ids"    validate:"required,min=1,dive,required"`
	StartStatus  string            `json:"start_status"`
	TargetStatus string            `json:"target_status"`
	Assignment   assignmentRequest `json:"assignment"`
	Location     string            `json:"location"`
}

type createReturnRequest struct {
	BranchID     string            `json:"branch_id"     validate:"required"`
	MemberIDs    []string          `json:"member_ids"    validate:"required,min=1,dive,required"`
	DispatchDate string            `json:"dispatch_date" validate:"required,date" example:"2026-10-16"`
	Assignment   assignmentRequest `json:"assignment"`
}

type receiveReturnRequest struct {
	ArrivalDate string `json:"arrival_date" validate:"required,date" example:"2026-10-18"`
	ReceiptRef  string `json:"receipt_ref"`
}

type assignmentResponse struct {
	VehicleID         string   `json:"vehicle_id,omitempty"`
	DriverID          string   `json:"driver_id,omitempty"`
	CheckerID         string   `json:"checker_id,omitempty"`
	CrewIDs           []string `json:"crew_ids,omitempty"`
	StartOdometerKm   int64    `json:"start_odometer_km,omitempty"`
	EstimatedDuration string   `json:"estimated_duration,omitempty"`
	Reference         string   `json:"reference,omitempty"`
}

type batchResultResponse struct {
	Kind       string             `json:"kind"`
	Members    []string           `json:"members"`
	From       string             `json:"from"`
	To         string             `json:"to"`
	Assignment assignmentResponse `json:"assignment"`
	AppliedAt  time.Time          `json:"applied_at"`
}

type returnResponse struct {
	ID           string             `json:"id"`
	BranchID     string             `json:"branch_id"`
	MemberIDs    []string           `json:"member_ids"`
	Status       string             `json:"status"`
	DispatchDate string             `json:"dispatch_date"`
	ArrivalDate  string             `json:"arrival_date,omitempty"`
	ReceiptRef   string             `json:"receipt_ref,omitempty"`
	Assignment   assignmentResponse `json:"assignment"`
	CreatedBy    string             `json:"created_by"`
	ReceivedBy   string             `json:"received_by,omitempty"`
}
