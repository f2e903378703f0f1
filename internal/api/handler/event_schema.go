package handler

import "time"

type trackingEventRequest struct {
	EventID        string    `json:"event_id"`
	TrackingNumber string    `json:"tracking_number" validate:"required"`
	Status         string    `json:"status"          validate:"required,oneof=MUAT TRANSIT LANSIR TERKIRIM RETURN"`
	Timestamp      time.Time `json:"timestamp"       validate:"required"`
	Source         string    `json:"source"          validate:"required,oneof=scanner driver_app partner"`
	Location       string    `json:"location"`
	Notes          string    `json:"notes"`
}

type acceptedResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
}
