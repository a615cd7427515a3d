package models

// Frequency buckets used by the chart dataset
const (
	FrequencyLow    = 1
	FrequencyMedium = 5
	FrequencyHigh   = 10
)

// GroundingSource is a web citation returned by the retrieval stage
type GroundingSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// FrequencyPoint is one row of the chart dataset
type FrequencyPoint struct {
	Problem   string `json:"problem" validate:"required"`
	Frequency int    `json:"frequency" validate:"oneof=1 5 10"`
	Segment   string `json:"segment" validate:"required"`
}

// AnalysisResult is the product of a completed run. It is not modified after it is produced.
type AnalysisResult struct {
	ReportText       string            `json:"report_text"`
	GroundingSources []GroundingSource `json:"grounding_sources"`
	ChartData        []FrequencyPoint  `json:"chart_data"`
}
