/*
 * Copyright 2025 Scholarsys Labs.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// DiscoveryMode selects a preset DiscoveryConfiguration.
type DiscoveryMode string

const (
	ModeQuick         DiscoveryMode = "quick"
	ModeComprehensive DiscoveryMode = "comprehensive"
	ModeTargeted      DiscoveryMode = "targeted"
	ModeExperimental  DiscoveryMode = "experimental"
)

// DiversityLevel governs how aggressively synthesis trades relevance for
// venue/era/topic/author spread.
type DiversityLevel string

const (
	DiversityLow    DiversityLevel = "low"
	DiversityMedium DiversityLevel = "medium"
	DiversityHigh   DiversityLevel = "high"
)

const (
	// MaxPerSourceCeiling is the hard upper bound any worker may return.
	MaxPerSourceCeiling = 200

	defaultDiscoveryTimeout = 60 * time.Second
)

var (
	errNoSourcesEnabled  = fmt.Errorf("at least one discovery source must be enabled")
	errUnknownSource     = fmt.Errorf("unknown discovery source")
	errUnknownMode       = fmt.Errorf("unknown discovery mode")
	errMinRelevanceRange = fmt.Errorf("min_relevance must be within [0,1]")
)

// DiscoveryConfiguration is the caller-supplied knob set for one discovery
// run. Zero values are filled by Normalize.
type DiscoveryConfiguration struct {
	Mode              DiscoveryMode     `json:"mode,omitempty"`
	SourcesEnabled    []DiscoverySource `json:"sources_enabled"`
	MaxPerSource      int               `json:"max_per_source"`
	MaxTotal          int               `json:"max_total"`
	MinRelevance      float64           `json:"min_relevance"`
	DiversityLevel    DiversityLevel    `json:"diversity_level"`
	Timeout           Duration          `json:"timeout"`
	Parallel          bool              `json:"parallel"`
	EnableAISynthesis bool              `json:"enable_ai_synthesis"`
}

// PresetConfiguration returns the configuration preset for a mode.
func PresetConfiguration(mode DiscoveryMode) (DiscoveryConfiguration, error) {
	switch mode {
	case ModeQuick:
		return DiscoveryConfiguration{
			Mode:           ModeQuick,
			SourcesEnabled: []DiscoverySource{DiscoverySourceCrossref, DiscoverySourceSemanticScholar},
			MaxPerSource:   10,
			MaxTotal:       15,
			MinRelevance:   0.4,
			DiversityLevel: DiversityLow,
			Timeout:        Duration(30 * time.Second),
			Parallel:       true,
		}, nil
	case ModeComprehensive:
		return DiscoveryConfiguration{
			Mode: ModeComprehensive,
			SourcesEnabled: []DiscoverySource{
				DiscoverySourceCrossref, DiscoverySourceSemanticScholar, DiscoverySourcePerplexity,
			},
			MaxPerSource:   50,
			MaxTotal:       50,
			MinRelevance:   0.3,
			DiversityLevel: DiversityMedium,
			Timeout:        Duration(120 * time.Second),
			Parallel:       true,
		}, nil
	case ModeTargeted:
		return DiscoveryConfiguration{
			Mode:           ModeTargeted,
			SourcesEnabled: []DiscoverySource{DiscoverySourceSemanticScholar, DiscoverySourceCrossref},
			MaxPerSource:   25,
			MaxTotal:       20,
			MinRelevance:   0.6,
			DiversityLevel: DiversityLow,
			Timeout:        Duration(60 * time.Second),
			Parallel:       true,
		}, nil
	case ModeExperimental:
		return DiscoveryConfiguration{
			Mode: ModeExperimental,
			SourcesEnabled: []DiscoverySource{
				DiscoverySourceCrossref, DiscoverySourceSemanticScholar, DiscoverySourcePerplexity,
			},
			MaxPerSource:      30,
			MaxTotal:          40,
			MinRelevance:      0.2,
			DiversityLevel:    DiversityHigh,
			Timeout:           Duration(90 * time.Second),
			Parallel:          true,
			EnableAISynthesis: true,
		}, nil
	default:
		return DiscoveryConfiguration{}, fmt.Errorf("%w: %q", errUnknownMode, mode)
	}
}

// Validate checks bounds that cannot be repaired by clamping.
func (c *DiscoveryConfiguration) Validate() error {
	if len(c.SourcesEnabled) == 0 {
		return errNoSourcesEnabled
	}

	for _, s := range c.SourcesEnabled {
		switch s {
		case DiscoverySourceCrossref, DiscoverySourceSemanticScholar, DiscoverySourcePerplexity:
		case DiscoverySourceInternalCache:
			return fmt.Errorf("%w: %q is not selectable", errUnknownSource, s)
		default:
			return fmt.Errorf("%w: %q", errUnknownSource, s)
		}
	}

	if c.MinRelevance < 0 || c.MinRelevance > 1 || math.IsNaN(c.MinRelevance) {
		return errMinRelevanceRange
	}

	return nil
}

// Normalize fills defaults and clamps dependent fields so that
// max_total <= max_per_source * len(sources_enabled) always holds.
func (c *DiscoveryConfiguration) Normalize() {
	c.dedupeSources()

	if c.MaxPerSource < 1 {
		c.MaxPerSource = 1
	}

	if c.MaxPerSource > MaxPerSourceCeiling {
		c.MaxPerSource = MaxPerSourceCeiling
	}

	if c.MaxTotal < 0 {
		c.MaxTotal = 0
	}

	if ceiling := c.MaxPerSource * len(c.SourcesEnabled); c.MaxTotal > ceiling {
		c.MaxTotal = ceiling
	}

	if c.DiversityLevel == "" {
		c.DiversityLevel = DiversityMedium
	}

	if c.Timeout <= 0 {
		c.Timeout = Duration(defaultDiscoveryTimeout)
	}
}

func (c *DiscoveryConfiguration) dedupeSources() {
	seen := make(map[DiscoverySource]struct{}, len(c.SourcesEnabled))
	out := c.SourcesEnabled[:0]

	for _, s := range c.SourcesEnabled {
		if _, dup := seen[s]; dup {
			continue
		}

		seen[s] = struct{}{}

		out = append(out, s)
	}

	c.SourcesEnabled = out
}

// SortedSources returns the enabled sources in stable lexicographic order,
// for fingerprinting and deterministic iteration.
func (c *DiscoveryConfiguration) SortedSources() []DiscoverySource {
	out := append([]DiscoverySource(nil), c.SourcesEnabled...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// SourceEnabled reports whether s is in SourcesEnabled.
func (c *DiscoveryConfiguration) SourceEnabled(s DiscoverySource) bool {
	for _, enabled := range c.SourcesEnabled {
		if enabled == s {
			return true
		}
	}

	return false
}

// SourceDiscoveryResult is the outcome of one worker for one run. When
// Success is false, Papers is empty and ErrorMessage explains why.
type SourceDiscoveryResult struct {
	Source       DiscoverySource        `json:"source"`
	Papers       []*DiscoveredPaper     `json:"papers,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Duration     time.Duration          `json:"duration_ns"`
	Success      bool                   `json:"success"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// SynthesisMetadata describes how a unified result was produced.
type SynthesisMetadata struct {
	RawCount          int               `json:"raw_count"`
	ProcessedCount    int               `json:"processed_count"`
	SuccessfulSources []DiscoverySource `json:"successful_sources,omitempty"`
	FailedSources     []DiscoverySource `json:"failed_sources,omitempty"`
	ProcessingTime    time.Duration     `json:"processing_time_ns"`
	OverallConfidence float64           `json:"overall_confidence"`
	PartialResult     bool              `json:"partial_result"`
	CacheHit          bool              `json:"cache_hit"`
	Warnings          []string          `json:"warnings,omitempty"`
	Errors            []string          `json:"errors,omitempty"`
}

// UnifiedDiscoveryResult is the final ranked output of one discovery run.
type UnifiedDiscoveryResult struct {
	SourcePaperID    string                   `json:"source_paper_id"`
	Papers           []*DiscoveredPaper       `json:"papers"`
	PerSourceResults []*SourceDiscoveryResult `json:"per_source_results,omitempty"`
	Metadata         SynthesisMetadata        `json:"synthesis_metadata"`
	Configuration    DiscoveryConfiguration   `json:"configuration"`
}

// Clone returns a deep copy of the configuration.
func (c *DiscoveryConfiguration) Clone() DiscoveryConfiguration {
	out := *c
	out.SourcesEnabled = append([]DiscoverySource(nil), c.SourcesEnabled...)

	return out
}

// Clone returns a deep copy of the per-source result.
func (r *SourceDiscoveryResult) Clone() *SourceDiscoveryResult {
	if r == nil {
		return nil
	}

	out := *r

	if r.Papers != nil {
		out.Papers = make([]*DiscoveredPaper, len(r.Papers))
		for i, p := range r.Papers {
			out.Papers[i] = p.Clone()
		}
	}

	if r.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}

	return &out
}

// Clone returns a deep copy of the metadata.
func (m SynthesisMetadata) Clone() SynthesisMetadata {
	out := m
	out.SuccessfulSources = append([]DiscoverySource(nil), m.SuccessfulSources...)
	out.FailedSources = append([]DiscoverySource(nil), m.FailedSources...)
	out.Warnings = append([]string(nil), m.Warnings...)
	out.Errors = append([]string(nil), m.Errors...)

	return out
}

// Clone returns a deep copy of the unified result. Cached and persisted
// results are cloned before they are handed to callers so that nobody
// mutates shared state.
func (r *UnifiedDiscoveryResult) Clone() *UnifiedDiscoveryResult {
	if r == nil {
		return nil
	}

	out := &UnifiedDiscoveryResult{
		SourcePaperID: r.SourcePaperID,
		Metadata:      r.Metadata.Clone(),
		Configuration: r.Configuration.Clone(),
	}

	if r.Papers != nil {
		out.Papers = make([]*DiscoveredPaper, len(r.Papers))
		for i, p := range r.Papers {
			out.Papers[i] = p.Clone()
		}
	}

	if r.PerSourceResults != nil {
		out.PerSourceResults = make([]*SourceDiscoveryResult, len(r.PerSourceResults))
		for i, sr := range r.PerSourceResults {
			out.PerSourceResults[i] = sr.Clone()
		}
	}

	return out
}

// ErrorSummary is the wire-friendly form of a DiscoveryError.
type ErrorSummary struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// DiscoveryResponse is what the discovery agent hands back to callers. It
// always carries the task id plus either a result (possibly partial) or an
// error summary.
type DiscoveryResponse struct {
	TaskID string                  `json:"task_id"`
	Result *UnifiedDiscoveryResult `json:"unified_result,omitempty"`
	Error  *ErrorSummary           `json:"error,omitempty"`
}

// DiscoveryResultRecord is the audit row persisted once per completed
// discovery run. Counts and durations are denormalized for querying; the
// full synthesis metadata rides along as JSON.
type DiscoveryResultRecord struct {
	TaskID            string          `json:"task_id"`
	SourcePaperID     string          `json:"source_paper_id"`
	Mode              DiscoveryMode   `json:"mode,omitempty"`
	ConfigFingerprint string          `json:"config_fingerprint"`
	RawCount          int             `json:"raw_count"`
	ProcessedCount    int             `json:"processed_count"`
	PartialResult     bool            `json:"partial_result"`
	CacheHit          bool            `json:"cache_hit"`
	ProcessingTime    time.Duration   `json:"processing_time_ns"`
	SynthesisMetadata json.RawMessage `json:"synthesis_metadata,omitempty"`
	CreatedAt         time.Time       `json:"created_at,omitempty"`
}
