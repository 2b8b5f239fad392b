package pipeline

import (
	"sync"
	"time"
)

// DefaultRecentCapacity bounds the in-memory recent-response buffer.
const DefaultRecentCapacity = 100

// ModelSummary aggregates outcomes for one generator variant.
type ModelSummary struct {
	TotalQueries   int     `json:"total_queries"`
	AvgConfidence  float64 `json:"avg_confidence"`
	AutomationRate float64 `json:"automation_rate"`
}

// Summary is a point-in-time view of pipeline outcomes for reporting.
type Summary struct {
	TotalQueries int `json:"total_queries"`
	// AvgConfidence is the mean over all recorded responses, 0 when empty.
	AvgConfidence float64 `json:"avg_confidence"`
	// AutomationRate is the percentage of responses that needed no human.
	AutomationRate   float64                 `json:"automation_rate"`
	AutomatedQueries int                     `json:"automated_queries"`
	HumanRequired    int                     `json:"human_required"`
	Categories       map[string]int          `json:"categories"`
	ByModel          map[string]ModelSummary `json:"by_model"`
	Since            time.Time               `json:"since,omitzero"`
}

type modelCounters struct {
	total         int
	confidenceSum float64
	automated     int
}

// Stats accumulates pipeline outcomes. Safe for concurrent use.
type Stats struct {
	mu            sync.Mutex
	total         int
	confidenceSum float64
	automated     int
	categories    map[string]int
	byModel       map[string]*modelCounters
	since         time.Time

	recent    []Response
	recentCap int
}

// NewStats creates a counter set keeping at most recentCap recent responses.
func NewStats(recentCap int) *Stats {
	if recentCap <= 0 {
		recentCap = DefaultRecentCapacity
	}
	return &Stats{
		categories: make(map[string]int),
		byModel:    make(map[string]*modelCounters),
		recentCap:  recentCap,
	}
}

// Record folds one response into the counters.
func (s *Stats) Record(resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.total == 0 {
		s.since = resp.Timestamp
	}
	s.total++
	s.confidenceSum += resp.Confidence
	if !resp.RequiresHuman {
		s.automated++
	}
	s.categories[resp.Category]++

	mc := s.byModel[resp.Model]
	if mc == nil {
		mc = &modelCounters{}
		s.byModel[resp.Model] = mc
	}
	mc.total++
	mc.confidenceSum += resp.Confidence
	if !resp.RequiresHuman {
		mc.automated++
	}

	s.recent = append(s.recent, resp)
	if len(s.recent) > s.recentCap {
		s.recent = s.recent[len(s.recent)-s.recentCap:]
	}
}

// Snapshot returns current aggregates.
func (s *Stats) Snapshot() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := Summary{
		TotalQueries:     s.total,
		AutomatedQueries: s.automated,
		HumanRequired:    s.total - s.automated,
		Categories:       make(map[string]int, len(s.categories)),
		ByModel:          make(map[string]ModelSummary, len(s.byModel)),
		Since:            s.since,
	}
	for cat, n := range s.categories {
		summary.Categories[cat] = n
	}
	for model, mc := range s.byModel {
		ms := ModelSummary{TotalQueries: mc.total}
		if mc.total > 0 {
			ms.AvgConfidence = mc.confidenceSum / float64(mc.total)
			ms.AutomationRate = float64(mc.automated) / float64(mc.total) * 100
		}
		summary.ByModel[model] = ms
	}
	if s.total > 0 {
		summary.AvgConfidence = s.confidenceSum / float64(s.total)
		summary.AutomationRate = float64(s.automated) / float64(s.total) * 100
	}
	return summary
}

// Recent returns up to limit of the latest responses, newest last.
func (s *Stats) Recent(limit int) []Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.recent) {
		limit = len(s.recent)
	}
	out := make([]Response, limit)
	copy(out, s.recent[len(s.recent)-limit:])
	return out
}
