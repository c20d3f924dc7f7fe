// Package events defines the shared wire types exchanged between the client
// SDK and the ingestion/catalog server.
package events

import "time"

// EventType identifies the kind of interaction an analytics event records.
type EventType string

// Reference event types tracked on the marketing site. The ingestion
// endpoint accepts other values too; this set is what the SDK emits.
const (
	PageView       EventType = "page_view"
	ScrollDepth    EventType = "scroll_depth"
	CTAClick       EventType = "cta_click"
	SectionView    EventType = "section_view"
	FormStart      EventType = "form_start"
	FormSubmit     EventType = "form_submit"
	TimeOnPage     EventType = "time_on_page"
	DemoModalOpen  EventType = "demo_modal_open"
	DemoModalClose EventType = "demo_modal_close"
	ScriptScan     EventType = "script_scan"
	ROICalculate   EventType = "roi_calculate"
	ExperimentView EventType = "experiment_view"
	Conversion     EventType = "experiment_conversion"
	Download       EventType = "blueprint_download"
)

// AnalyticsEvent is a single tracked interaction. Events are immutable once
// created: the SDK queues them and transmits them in batches.
type AnalyticsEvent struct {
	EventType    EventType      `json:"event_type"`
	EventData    map[string]any `json:"event_data,omitempty"`
	SessionID    string         `json:"session_id"`
	VisitorID    string         `json:"visitor_id"`
	PageURL      string         `json:"page_url"`
	Referrer     string         `json:"referrer,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	ExperimentID int            `json:"experiment_id,omitempty"`
	VariantID    string         `json:"variant_id,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Variant is one content alternative within an experiment. Weight is the
// relative probability mass; Content maps content keys to copy values.
type Variant struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Weight  int               `json:"weight"`
	Content map[string]string `json:"content"`
}

// Experiment is a named A/B test configuration with weighted variants.
// Experiments are created and updated by the admin surface; the SDK treats
// them as read-only.
type Experiment struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	IsActive    bool       `json:"is_active"`
	Variants    []Variant  `json:"variants"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}

// TotalWeight returns the sum of the variant weights.
func TotalWeight(variants []Variant) int {
	total := 0
	for _, v := range variants {
		total += v.Weight
	}
	return total
}

// Assigned is the resolved (visitor, experiment) → variant record the UI
// consumes for content lookups.
type Assigned struct {
	ExperimentID   int               `json:"experiment_id"`
	ExperimentName string            `json:"experiment_name"`
	VariantID      string            `json:"variant_id"`
	VariantName    string            `json:"variant_name"`
	Content        map[string]string `json:"content"`
}

// ConversionRequest is the body of the dedicated conversion endpoint.
type ConversionRequest struct {
	ExperimentID   int    `json:"experiment_id"`
	VariantID      string `json:"variant_id"`
	ConversionType string `json:"conversion_type"`
	SessionID      string `json:"session_id"`
	VisitorID      string `json:"visitor_id"`
	PageURL        string `json:"page_url"`
}
