package analysis

import (
	"context"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
)

// CropAnalyzer runs crop diagnosis for the workflow controller
type CropAnalyzer struct {
	Gateway *Gateway
}

func (a CropAnalyzer) Analyze(ctx context.Context, req model.AnalysisRequest) (*model.CropResult, error) {
	return a.Gateway.AnalyzeCrop(ctx, req.Image)
}

// SoilAnalyzer runs soil suitability analysis for the workflow controller
type SoilAnalyzer struct {
	Gateway *Gateway
}

func (a SoilAnalyzer) Analyze(ctx context.Context, req model.AnalysisRequest) (*model.SoilResult, error) {
	return a.Gateway.AnalyzeSoil(ctx, req.Image, req.Moisture)
}
