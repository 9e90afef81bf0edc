package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// Kind selects one of the two analysis tasks.
type Kind string

const (
	KindCrop Kind = "crop"
	KindSoil Kind = "soil"
)

// Validate checks if the kind is known
func (k Kind) Validate() error {
	switch k {
	case KindCrop, KindSoil:
		return nil
	default:
		return goerr.Wrap(ErrUnknownKind, "unsupported kind", goerr.V("kind", k))
	}
}

// HasMoisture reports whether records of this kind carry a moisture reading.
func (k Kind) HasMoisture() bool {
	return k == KindSoil
}

type CropStatus string

const (
	CropStatusHealthy  CropStatus = "healthy"
	CropStatusWarning  CropStatus = "warning"
	CropStatusCritical CropStatus = "critical"
)

// CropStatuses lists the accepted status values in severity order.
var CropStatuses = []CropStatus{CropStatusHealthy, CropStatusWarning, CropStatusCritical}

// Validate checks if the status is valid
func (s CropStatus) Validate() error {
	switch s {
	case CropStatusHealthy, CropStatusWarning, CropStatusCritical:
		return nil
	default:
		return goerr.Wrap(ErrInvalidStatus, "unexpected status", goerr.V("status", s))
	}
}

// CropResult is the diagnostic produced for a crop or plant photo.
type CropResult struct {
	Title           string     `json:"title" yaml:"title" firestore:"title" jsonschema:"Name of the detected condition, or a short summary when the plant looks healthy"`
	Description     string     `json:"description" yaml:"description" firestore:"description" jsonschema:"Simple explanation of the condition for non-experts"`
	Recommendations []string   `json:"recommendations" yaml:"recommendations" firestore:"recommendations" jsonschema:"Specific current treatments, most important first"`
	Status          CropStatus `json:"status" yaml:"status" firestore:"status" jsonschema:"General health status. Must be one of: healthy, warning, critical"`
}

// SoilResult is the crop suitability advice produced for a soil photo.
type SoilResult struct {
	BestCrops   []string `json:"bestCrops" yaml:"best_crops" firestore:"bestCrops" jsonschema:"Top 3 crops to grow in these conditions, best first"`
	Explanation string   `json:"explanation" yaml:"explanation" firestore:"explanation" jsonschema:"Clear explanation for each recommended crop"`
	Tips        []string `json:"tips" yaml:"tips" firestore:"tips" jsonschema:"Practical soil management tips"`
}

type RecordID string

func NewRecordID() RecordID {
	return RecordID(uuid.New().String())
}

// Record is a persisted analysis: the image, task input and the structured
// result exactly as returned by the inference service. Records are never
// modified after insertion.
type Record[R any] struct {
	ID        RecordID  `json:"id" yaml:"id"`
	ScopeKey  ScopeKey  `json:"scope_key" yaml:"scope_key"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Image     Image     `json:"-" yaml:"-"`
	Moisture  *int      `json:"moisture,omitempty" yaml:"moisture,omitempty"`
	Result    R         `json:"result" yaml:"result"`
}

type (
	CropRecord = Record[CropResult]
	SoilRecord = Record[SoilResult]
)

// AnalysisRequest is one upload handed to an analyzer. Moisture is only
// meaningful for soil analysis.
type AnalysisRequest struct {
	Image    Image
	Moisture int
}

// ValidateMoisture checks the reported moisture percentage.
func ValidateMoisture(moisture int) error {
	if moisture < 0 || moisture > 100 {
		return goerr.Wrap(ErrInvalidMoisture, "moisture out of range", goerr.V("moisture", moisture))
	}
	return nil
}
