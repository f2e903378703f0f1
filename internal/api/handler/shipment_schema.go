package handler

import (
	"encoding/json"
	"time"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// --- Request types ---

type registerShipmentRequest struct {
	OriginBranchID      string      `json:"origin_branch_id"      validate:"required"`
	DestinationBranchID string      `json:"destination_branch_id" validate:"required"`
	SenderID            string      `json:"sender_id"             validate:"required"`
	RecipientID         string      `json:"recipient_id"          validate:"required"`
	ItemDescription     string      `json:"item_description"`
	CommodityClass      string      `json:"commodity_class"`
	PackingType         string      `json:"packing_type"`
	ItemCount           int         `json:"item_count"            validate:"required,gt=0"`
	WeightKg            json.Number `json:"weight_kg"             validate:"required,posdecimal" swaggertype:"string" example:"10.5"`
	UnitPricePerKg      int64       `json:"unit_price_per_kg"     validate:"gte=0"`
	Notes               string      `json:"notes"`
	ForwardingCode      string      `json:"forwarding_code"       validate:"omitempty,oneof=NONE PAID_BY_SENDER PAID_BY_RECIPIENT ADVANCED_BY_DESTINATION"`
	ForwardingAgentID   string      `json:"forwarding_agent_id"`
	PaymentMode         string      `json:"payment_mode"          validate:"required,oneof=CASH_UPFRONT CASH_ON_DELIVERY CASH_AFTER_DELIVERY"`
}

type transitionRequest struct {
	Status   string `json:"status"   validate:"required,oneof=PENDING MUAT TRANSIT LANSIR TERKIRIM RETURN"`
	Location string `json:"location"`
	Notes    string `json:"notes"`
}

type assignAgentRequest struct {
	ForwardingAgentID string `json:"forwarding_agent_id" validate:"required"`
}

// --- Response types ---

type shipmentLinks struct {
	Self     string `json:"self"`
	Tracking string `json:"tracking"`
}

type statusHistoryItemResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Location  string    `json:"location,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Actor     string    `json:"actor"`
}

type shipmentResponse struct {
	ID                  string                      `json:"id"`
	TrackingNumber      string                      `json:"tracking_number"`
	Status              string                      `json:"status"`
	OriginBranchID      string                      `json:"origin_branch_id"`
	DestinationBranchID string                      `json:"destination_branch_id"`
	SenderID            string                      `json:"sender_id"`
	RecipientID         string                      `json:"recipient_id"`
	ItemDescription     string                      `json:"item_description"`
	CommodityClass      string                      `json:"commodity_class,omitempty"`
	PackingType         string                      `json:"packing_type,omitempty"`
	ItemCount           int                         `json:"item_count"`
	WeightKg            string                      `json:"weight_kg"`
	UnitPricePerKg      int64                       `json:"unit_price_per_kg"`
	Price               int64                       `json:"price"`
	Notes               string                      `json:"notes,omitempty"`
	ForwardingCode      string                      `json:"forwarding_code"`
	ForwardingAgentID   string                      `json:"forwarding_agent_id,omitempty"`
	PaymentMode         string                      `json:"payment_mode"`
	StatusHistory       []statusHistoryItemResponse `json:"status_history"`
	CreatedAt           time.Time                   `json:"created_at"`
	UpdatedAt           time.Time                   `json:"updated_at"`
	Links               shipmentLinks               `json:"_links"`
}

type timelineEntryResponse struct {
	Status    string    `json:"status"`
	Label     string    `json:"label"`
	Timestamp time.Time `json:"timestamp"`
	Location  string    `json:"location,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

type timelineResponse struct {
	TrackingNumber    string                  `json:"tracking_number"`
	CurrentStatus     string                  `json:"current_status"`
	CurrentLabel      string                  `json:"current_label"`
	CurrentStageIndex int                     `json:"current_stage_index"`
	Diverted          bool                    `json:"diverted"`
	Entries           []timelineEntryResponse `json:"entries"`
}
