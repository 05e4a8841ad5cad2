package client

import (
	"context"

	"github.com/menta2k/roi-cropper/pkg/types"
)

// VisionClient talks to a multimodal model server
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	LocateRegions(ctx context.Context, model, prompt, imgB64 string) (*types.RegionResult, error)
}
