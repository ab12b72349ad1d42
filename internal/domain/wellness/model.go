package wellness

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoDosha       = errors.New("complete your profile to receive dosha recommendations")
	ErrPlanNotFound  = errors.New("no recommendations for this dosha")
	ErrUnknownMetric = errors.New("metric must be weight, sleep or bp")
	ErrInvalidValue  = errors.New("value must be positive")
	ErrNotPatient    = errors.New("progress can only be recorded for a patient")
)

const (
	MetricWeight = "weight"
	MetricSleep  = "sleep"
	MetricBP     = "bp"
)

// MetricInfo describes how a metric is labelled and drawn.
type MetricInfo struct {
	Label string
	Color string
}

var metricInfo = map[string]MetricInfo{
	MetricWeight: {Label: "Weight (kg)", Color: "#456334"},
	MetricSleep:  {Label: "Sleep Quality (hours)", Color: "#8faa76"},
	MetricBP:     {Label: "Blood Pressure (Systolic)", Color: "#b3c49c"},
}

func LookupMetric(metric string) (MetricInfo, bool) {
	info, ok := metricInfo[metric]
	return info, ok
}

type Entry struct {
	ID         uuid.UUID `db:"id" json:"id"`
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	Metric     string    `db:"metric" json:"metric"`
	Value      float64   `db:"value" json:"value"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
	Note       string    `db:"note" json:"note,omitempty"`
}

type RecordRequest struct {
	Metric     string     `json:"metric"`
	Value      float64    `json:"value"`
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
	Note       string     `json:"note"`
}

type Point struct {
	RecordedAt time.Time `json:"recorded_at"`
	Value      float64   `json:"value"`
}

// Series is one metric over time, oldest first.
type Series struct {
	Metric string  `json:"metric"`
	Label  string  `json:"label"`
	Points []Point `json:"points"`
}
