package cron

import (
	"context"
	"fmt"

	"github.com/mateovidal/surtido-backend/pkg/db/models"
	"github.com/mateovidal/surtido-backend/pkg/logger"
)

// negativeStockDetector is the slice of the inventory service this job needs.
type negativeStockDetector interface {
	DetectNegativeStock(ctx context.Context) ([]models.StockLevel, error)
}

// StockAuditJobParams configure the stock invariant audit.
type StockAuditJobParams struct {
	Logger    *logger.Logger
	Inventory negativeStockDetector
}

// NewStockAuditJob builds the job that reports stock rows violating the
// non-negative invariant. It never mutates anything; a finding means a
// write path has a bug that needs a human.
func NewStockAuditJob(params StockAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	return &stockAuditJob{
		logg:      params.Logger,
		inventory: params.Inventory,
	}, nil
}

type stockAuditJob struct {
	logg      *logger.Logger
	inventory negativeStockDetector
}

func (j *stockAuditJob) Name() string { return "stock-audit" }

func (j *stockAuditJob) Run(ctx context.Context) error {
	broken, err := j.inventory.DetectNegativeStock(ctx)
	if err != nil {
		return fmt.Errorf("detect negative stock: %w", err)
	}
	if len(broken) == 0 {
		j.logg.Info(ctx, "stock audit clean")
		return nil
	}
	for _, level := range broken {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"wholesaler_id": level.WholesalerID.String(),
			"product_id":    level.ProductID.String(),
			"physical_qty":  level.PhysicalQty,
			"available_qty": level.AvailableQty,
			"reserved_qty":  level.ReservedQty,
		})
		j.logg.Warn(logCtx, "stock level violates non-negative invariant")
	}
	return fmt.Errorf("stock audit found %d broken rows", len(broken))
}
