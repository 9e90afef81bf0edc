package cli

import (
	"context"
	"io"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/repository"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/usecase/analysis"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	d := &dependencies{memory: newMemoryBackend()}
	return run(ctx, argv, d, nil, nil)
}

func run(ctx context.Context, argv []string, d *dependencies, stdout, stderr io.Writer) *Error {
	cmd := newApp(d)
	cmd.Writer = stdout
	cmd.ErrWriter = stderr

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

func newApp(d *dependencies) *cli.Command {
	return &cli.Command{
		Name:  "agritech",
		Usage: "Crop disease diagnosis and soil suitability analysis",
		Commands: []*cli.Command{
			loginCommand(d),
			logoutCommand(d),
			whoamiCommand(d),
			taskCommand(d, cropTask()),
			taskCommand(d, soilTask()),
		},
	}
}

func cropTask() *task[model.CropResult] {
	return &task[model.CropResult]{
		kind:  model.KindCrop,
		usage: "Diagnose diseases and pests from crop photos",
		analyzer: func(gw *analysis.Gateway) analyzerFunc[model.CropResult] {
			return analysis.CropAnalyzer{Gateway: gw}.Analyze
		},
		memory: func(m *memoryBackend) repository.History[model.CropResult] {
			return m.crop
		},
		render: renderCropResult,
		title: func(r *model.CropResult) string {
			return r.Title + " (" + string(r.Status) + ")"
		},
	}
}

func soilTask() *task[model.SoilResult] {
	return &task[model.SoilResult]{
		kind:  model.KindSoil,
		usage: "Recommend crops from soil photos and moisture readings",
		analyzer: func(gw *analysis.Gateway) analyzerFunc[model.SoilResult] {
			return analysis.SoilAnalyzer{Gateway: gw}.Analyze
		},
		memory: func(m *memoryBackend) repository.History[model.SoilResult] {
			return m.soil
		},
		render: renderSoilResult,
		title:  soilTitle,
	}
}
