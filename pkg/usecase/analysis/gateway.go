package analysis

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"strings"
	"text/template"
	"time"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/adapter"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

//go:embed prompt/crop.md
var cropPromptRaw string

//go:embed prompt/soil.md
var soilPromptRaw string

var (
	cropPromptTmpl = template.Must(template.New("crop").Parse(cropPromptRaw))
	soilPromptTmpl = template.Must(template.New("soil").Parse(soilPromptRaw))
)

const (
	// DefaultTimeout bounds a single inference call
	DefaultTimeout = 60 * time.Second

	soilCropCount = 3
)

// Gateway is a single-call facade over the inference service
type Gateway struct {
	gemini  adapter.Gemini
	timeout time.Duration

	cropSchema *resultSchema
	soilSchema *resultSchema
}

// Option is a functional option for Gateway
type Option func(*Gateway)

// WithTimeout sets the deadline applied to each inference call. Zero
// disables it.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.timeout = d
	}
}

// New creates a Gateway
func New(gemini adapter.Gemini, opts ...Option) (*Gateway, error) {
	if gemini == nil {
		return nil, goerr.New("gemini client is required")
	}

	cropSchema, err := newResultSchema[model.CropResult]()
	if err != nil {
		return nil, err
	}
	soilSchema, err := newResultSchema[model.SoilResult]()
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		gemini:     gemini,
		timeout:    DefaultTimeout,
		cropSchema: cropSchema,
		soilSchema: soilSchema,
	}
	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// AnalyzeCrop diagnoses the crop in the image
func (g *Gateway) AnalyzeCrop(ctx context.Context, img model.Image) (*model.CropResult, error) {
	var buf bytes.Buffer
	if err := cropPromptTmpl.Execute(&buf, map[string]any{
		"Statuses": model.CropStatuses,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute crop prompt template")
	}

	var result model.CropResult
	if err := g.generate(ctx, model.KindCrop, img, buf.String(), g.cropSchema, &result); err != nil {
		return nil, err
	}

	// The schema enum already restricts this; keep the domain check explicit.
	if err := result.Status.Validate(); err != nil {
		return nil, goerr.Wrap(model.ErrAnalysisFailed, "model returned unexpected status",
			goerr.V("status", result.Status))
	}

	return &result, nil
}

// AnalyzeSoil recommends crops for the soil in the image at the given
// moisture percentage
func (g *Gateway) AnalyzeSoil(ctx context.Context, img model.Image, moisture int) (*model.SoilResult, error) {
	if err := model.ValidateMoisture(moisture); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := soilPromptTmpl.Execute(&buf, map[string]any{
		"Moisture":  moisture,
		"CropCount": soilCropCount,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute soil prompt template")
	}

	var result model.SoilResult
	if err := g.generate(ctx, model.KindSoil, img, buf.String(), g.soilSchema, &result); err != nil {
		return nil, err
	}

	if len(result.BestCrops) != soilCropCount {
		logging.From(ctx).Debug("unexpected number of recommended crops", "count", len(result.BestCrops))
	}

	return &result, nil
}

func (g *Gateway) generate(ctx context.Context, kind model.Kind, img model.Image, prompt string, schema *resultSchema, out any) error {
	if len(img.Data) == 0 {
		return goerr.Wrap(model.ErrInvalidImage, "image is empty", goerr.V("kind", kind))
	}

	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = model.DefaultImageMIMEType
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(img.Data, mimeType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema.genai,
	}

	logging.From(ctx).Debug("requesting analysis", "kind", kind, "mime_type", mimeType, "size", len(img.Data))

	resp, err := g.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return goerr.Wrap(model.ErrAnalysisFailed, "inference call failed",
			goerr.V("kind", kind),
			goerr.V("cause", err.Error()),
		)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return goerr.Wrap(model.ErrAnalysisFailed, "invalid response structure from gemini", goerr.V("kind", kind))
	}

	rawJSON := strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text)
	if rawJSON == "" {
		return goerr.Wrap(model.ErrAnalysisFailed, "empty response from gemini", goerr.V("kind", kind))
	}

	var instance any
	if err := json.Unmarshal([]byte(rawJSON), &instance); err != nil {
		return goerr.Wrap(model.ErrAnalysisFailed, "failed to parse response JSON",
			goerr.V("kind", kind),
			goerr.V("json", rawJSON),
		)
	}

	if err := schema.resolved.Validate(instance); err != nil {
		return goerr.Wrap(model.ErrAnalysisFailed, "response does not match schema",
			goerr.V("kind", kind),
			goerr.V("json", rawJSON),
			goerr.V("reason", err.Error()),
		)
	}

	if err := json.Unmarshal([]byte(rawJSON), out); err != nil {
		return goerr.Wrap(model.ErrAnalysisFailed, "failed to unmarshal response",
			goerr.V("kind", kind),
			goerr.V("json", rawJSON),
		)
	}

	return nil
}
