package ports

import (
	"context"
	"time"

	"github.com/kargonusa/freight-core/internal/core/domain"
)

// BatchMovementInput groups shipment notes under one physical run.
type BatchMovementInput struct {
	MemberIDs    []string
	StartStatus  string
	TargetStatus string
	Assignment   domain.ResourceAssignment
	Actor        string
	Location     string
}

// CreateReturnInput opens a return run back to the origin branch.
type CreateReturnInput struct {
	BranchID     string
	MemberIDs    []string
	DispatchDate time.Time
	Assignment   domain.ResourceAssignment
	Actor        string
}

// ReceiveReturnInput confirms a return run arrived at the origin branch.
type ReceiveReturnInput struct {
	ReturnID    string
	ArrivalDate time.Time
	ReceiptRef  string
	Actor       string
}

// MovementService moves groups of shipment notes all-or-nothing.
type MovementService interface {
	RunBatchMovement(ctx context.Context, in BatchMovementInput) (*domain.BatchResult, error)
	// RunPresetMovement fills the start and target status from kind.
	RunPresetMovement(ctx context.Context, kind domain.MovementKind, in BatchMovementInput) (*domain.BatchResult, error)
	CreateReturn(ctx context.Context, in CreateReturnInput) (*domain.ReturnBatch, error)
	ReceiveReturn(ctx context.Context, in ReceiveReturnInput) (*domain.ReturnBatch, error)
	GetReturn(ctx context.Context, id string) (*domain.ReturnBatch, error)
}
