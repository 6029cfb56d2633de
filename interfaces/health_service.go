package interfaces

import (
	"context"

	"github.com/mezonai/credits/types"
)

type HealthService interface {
	Check(ctx context.Context) (*types.HealthStatus, error)
}
