package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kargonusa/freight-core/internal/core/domain"
	"github.com/kargonusa/freight-core/internal/core/ports"
)

// --- Request → Service input ---

func toRegisterInput(req registerShipmentRequest, actor string) ports.RegisterShipmentInput {
	// The validator has already proven weight_kg parses.
	weight, _ := decimal.NewFromString(req.WeightKg.String())
	return ports.RegisterShipmentInput{
		OriginBranchID:      req.OriginBranchID,
		DestinationBranchID: req.DestinationBranchID,
		SenderID:            req.SenderID,
		RecipientID:         req.RecipientID,
		ItemDescription:     req.ItemDescription,
		CommodityClass:      req.CommodityClass,
		PackingType:         req.PackingType,
		ItemCount:           req.ItemCount,
		WeightKg:            weight,
		UnitPricePerKg:      req.UnitPricePerKg,
		Notes:               req.Notes,
		ForwardingCode:      req.ForwardingCode,
		ForwardingAgentID:   req.ForwardingAgentID,
		PaymentMode:         req.PaymentMode,
		Actor:               actor,
	}
}

func toAssignment(a assignmentRequest) domain.ResourceAssignment {
	return domain.ResourceAssignment{
		VehicleID:         a.VehicleID,
		DriverID:          a.DriverID,
		CheckerID:         a.CheckerID,
		CrewIDs:           a.CrewIDs,
		StartOdometerKm:   a.StartOdometerKm,
		EstimatedDuration: a.EstimatedDuration,
		Reference:         a.Reference,
	}
}

func toEventInput(r trackingEventRequest, actor string) ports.TrackingEventInput {
	return ports.TrackingEventInput{
		EventID:        r.EventID,
		TrackingNumber: r.TrackingNumber,
		Status:         r.Status,
		Timestamp:      r.Timestamp,
		Source:         r.Source,
		Actor:          actor,
		Location:       r.Location,
		Notes:          r.Notes,
	}
}

// parseDate reads a YYYY-MM-DD calendar date as midnight in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, loc)
}

// --- Service result → HTTP response ---

func toShipmentResponse(s *domain.Shipment) shipmentResponse {
	history := make([]statusHistoryItemResponse, len(s.StatusHistory))
	for i, h := range s.StatusHistory {
		history[i] = statusHistoryItemResponse{
			Status:    string(h.Status),
			Timestamp: h.Timestamp.UTC(),
			Location:  h.Location,
			Notes:     h.Notes,
			Actor:     h.Actor,
		}
	}
	return shipmentResponse{
		ID:                  s.ID,
		TrackingNumber:      s.TrackingNumber,
		Status:              string(s.Status),
		OriginBranchID:      s.OriginBranchID,
		DestinationBranchID: s.DestinationBranch,
		SenderID:            s.SenderID,
		RecipientID:         s.RecipientID,
		ItemDescription:     s.ItemDescription,
		CommodityClass:      s.CommodityClass,
		PackingType:         s.PackingType,
		ItemCount:           s.ItemCount,
		WeightKg:            s.WeightKg.String(),
		UnitPricePerKg:      s.UnitPricePerKg,
		Price:               s.Price,
		Notes:               s.Notes,
		ForwardingCode:      string(s.ForwardingCode),
		ForwardingAgentID:   s.ForwardingAgentID,
		PaymentMode:         string(s.PaymentMode),
		StatusHistory:       history,
		CreatedAt:           s.CreatedAt.UTC(),
		UpdatedAt:           s.UpdatedAt.UTC(),
		Links: shipmentLinks{
			Self:     "/v1/shipments/" + s.ID,
			Tracking: "/v1/tracking/" + s.TrackingNumber,
		},
	}
}

func toTimelineResponse(t *domain.Timeline) timelineResponse {
	entries := make([]timelineEntryResponse, len(t.Entries))
	for i, e := range t.Entries {
		entries[i] = timelineEntryResponse{
			Status:    string(e.Status),
			Label:     e.Label,
			Timestamp: e.Timestamp,
			Location:  e.Location,
			Notes:     e.Notes,
		}
	}
	return timelineResponse{
		TrackingNumber:    t.TrackingNumber,
		CurrentStatus:     string(t.CurrentStatus),
		CurrentLabel:      t.CurrentLabel,
		CurrentStageIndex: t.CurrentStageIndex,
		Diverted:          t.Diverted,
		Entries:           entries,
	}
}

func toAssignmentResponse(a domain.ResourceAssignment) assignmentResponse {
	return assignmentResponse{
		VehicleID:         a.VehicleID,
		DriverID:          a.DriverID,
		CheckerID:         a.CheckerID,
		CrewIDs:           a.CrewIDs,
		StartOdometerKm:   a.StartOdometerKm,
		EstimatedDuration: a.EstimatedDuration,
		Reference:         a.Reference,
	}
}

func toBatchResultResponse(r *domain.BatchResult) batchResultResponse {
	return batchResultResponse{
		Kind:       string(r.Kind),
		Members:    r.Members,
		From:       string(r.From),
		To:         string(r.To),
		Assignment: toAssignmentResponse(r.Assignment),
		AppliedAt:  r.AppliedAt.UTC(),
	}
}

func toReturnResponse(r *domain.ReturnBatch) returnResponse {
	resp := returnResponse{
		ID:           r.ID,
		BranchID:     r.BranchID,
		MemberIDs:    r.MemberIDs,
		Status:       string(r.Status),
		DispatchDate: r.DispatchDate.UTC().Format(time.DateOnly),
		ReceiptRef:   r.ReceiptRef,
		Assignment:   toAssignmentResponse(r.Assignment),
		CreatedBy:    r.CreatedBy,
		ReceivedBy:   r.ReceivedBy,
	}
	if r.ArrivalDate != nil {
		resp.ArrivalDate = r.ArrivalDate.UTC().Format(time.DateOnly)
	}
	return resp
}

// toInvoiceResponse renders payment dates on the billing calendar of loc.
func toInvoiceResponse(inv *domain.Invoice, loc *time.Location) invoiceResponse {
	lines := make([]invoiceLineResponse, len(inv.Lines))
	for i, l := range inv.Lines {
		lines[i] = invoiceLineResponse{ShipmentID: l.ShipmentID, TrackingNumber: l.TrackingNumber, Price: l.Price}
	}
	installments := make([]installmentResponse, len(inv.Installments))
	for i, in := range inv.Installments {
		installments[i] = installmentResponse{
			Sequence:   in.Sequence,
			PaidAt:     in.PaidAt.In(loc).Format(time.DateOnly),
			Amount:     in.Amount,
			Note:       in.Note,
			RecordedBy: in.RecordedBy,
			RecordedAt: in.RecordedAt.UTC(),
		}
	}
	// A corrupt balance is surfaced by RemainingBalance; here it is shown as is.
	remaining, _ := inv.Remaining()
	return invoiceResponse{
		ID:           inv.ID,
		Number:       inv.Number,
		CustomerID:   inv.CustomerID,
		CustomerRole: string(inv.CustomerRole),
		BranchID:     inv.BranchID,
		Lines:        lines,
		Installments: installments,
		Total:        inv.Total,
		PaidTotal:    inv.PaidTotal(),
		Remaining:    remaining,
		Status:       string(inv.Status),
		Overdue:      inv.Overdue,
		DueAt:        inv.DueAt.UTC(),
		SettledAt:    inv.SettledAt,
		VoidedAt:     inv.VoidedAt,
		VoidReason:   inv.VoidReason,
	}
}
