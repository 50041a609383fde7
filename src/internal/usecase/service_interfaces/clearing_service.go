package service_interfaces

import (
	"context"

	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/http/models"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/commons"
)

type ClearingService interface {
	ClearObligation(ctx context.Context, req models.ClearObligationRequest) (commons.Response[models.ClearObligationResponse], error)
}
