package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/contextmemory/workmem/internal/similarity"
)

// MemoryConfig is the working-memory subsystem's configuration surface:
// per-slot thresholds, category weights, the retrieval pipeline's stage
// tunables, divergence detection, and the injection budget. It is a
// standalone struct, not nested in any larger config, and is loaded
// from its own config file for the hook-script surface (cmd/memoryd).
type MemoryConfig struct {
	HighThresholds  [13]float64 `yaml:"high_thresholds" json:"high_thresholds"`
	LowThresholds   [13]float64 `yaml:"low_thresholds" json:"low_thresholds"`
	CategoryWeights [4]float64  `yaml:"category_weights" json:"category_weights"`

	RRFK int `yaml:"rrf_k" json:"rrf_k"`

	MatryoshkaTruncationDim int     `yaml:"matryoshka_truncation_dim" json:"matryoshka_truncation_dim"`
	MatryoshkaAdaptiveDim   bool    `yaml:"matryoshka_adaptive_dim" json:"matryoshka_adaptive_dim"`
	MatryoshkaMinRecall     float64 `yaml:"matryoshka_min_recall_threshold" json:"matryoshka_min_recall_threshold"`

	SparsePrefilterEnabled bool    `yaml:"sparse_prefilter_enabled" json:"sparse_prefilter_enabled"`
	SparseWeight           float64 `yaml:"sparse_prefilter_sparse_weight" json:"sparse_prefilter_sparse_weight"`
	BM25K1                 float64 `yaml:"bm25_k1" json:"bm25_k1"`
	BM25B                  float64 `yaml:"bm25_b" json:"bm25_b"`
	MaxCandidates          int     `yaml:"max_candidates" json:"max_candidates"`

	AlignmentPurposeWeight float64 `yaml:"alignment_purpose_weight" json:"alignment_purpose_weight"`
	AlignmentGoalWeight    float64 `yaml:"alignment_goal_weight" json:"alignment_goal_weight"`
	AlignmentPassThroughK  int     `yaml:"alignment_pass_through_k" json:"alignment_pass_through_k"`

	LateInteractionEnabled bool    `yaml:"late_interaction_enabled" json:"late_interaction_enabled"`
	LateInteractionWeight  float64 `yaml:"late_interaction_weight" json:"late_interaction_weight"`

	MisalignmentThreshold  float64 `yaml:"misalignment_alignment_threshold" json:"misalignment_alignment_threshold"`
	FilterMisaligned       bool    `yaml:"misalignment_filter_misaligned" json:"misalignment_filter_misaligned"`

	DivergenceLookback  time.Duration `yaml:"divergence_lookback" json:"divergence_lookback"`
	DivergenceMaxRecent int           `yaml:"divergence_max_recent" json:"divergence_max_recent"`

	BudgetTotal   int    `yaml:"budget_total" json:"budget_total"`
	BudgetSub     [4]int `yaml:"budget_sub" json:"budget_sub"`
	BriefBudget   int    `yaml:"brief_budget" json:"brief_budget"`

	PerSlotEmbedTimeout time.Duration `yaml:"per_slot_embed_timeout" json:"per_slot_embed_timeout"`
	TotalEmbedTimeout   time.Duration `yaml:"total_embed_timeout" json:"total_embed_timeout"`
}

// DefaultMemoryConfig returns the subsystem's default tuning.
func DefaultMemoryConfig() *MemoryConfig {
	thresholds := similarity.DefaultThresholds()
	return &MemoryConfig{
		HighThresholds:  thresholds.High,
		LowThresholds:   thresholds.Low,
		CategoryWeights: [4]float64{1.0, 0.0, 0.5, 0.5},

		RRFK: 60,

		MatryoshkaTruncationDim: 128,
		MatryoshkaAdaptiveDim:   true,
		MatryoshkaMinRecall:     0.95,

		SparsePrefilterEnabled: true,
		SparseWeight:           0.5,
		BM25K1:                 1.2,
		BM25B:                  0.75,
		MaxCandidates:          10000,

		AlignmentPurposeWeight: 0.2,
		AlignmentGoalWeight:    0.2,
		AlignmentPassThroughK:  50,

		LateInteractionEnabled: true,
		LateInteractionWeight:  0.3,

		MisalignmentThreshold: 0.10,
		FilterMisaligned:      false,

		DivergenceLookback:  2 * time.Hour,
		DivergenceMaxRecent: 50,

		BudgetTotal: 1200,
		BudgetSub:   [4]int{400, 300, 300, 200},
		BriefBudget: 200,

		PerSlotEmbedTimeout: 500 * time.Millisecond,
		TotalEmbedTimeout:   1000 * time.Millisecond,
	}
}

// LoadMemoryConfig reads memory.yaml from dir if present, merging over
// DefaultMemoryConfig(), then applies environment overrides and validates.
// A missing file is not an error; defaults apply.
func LoadMemoryConfig(dir string) (*MemoryConfig, error) {
	cfg := DefaultMemoryConfig()

	path := filepath.Join(dir, "memory.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse memory config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read memory config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid memory configuration: %w", err)
	}
	return cfg, nil
}

func (c *MemoryConfig) applyEnvOverrides() {
	if v := os.Getenv("WORKMEM_RRF_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.RRFK = k
		}
	}
	if v := os.Getenv("WORKMEM_MAX_CANDIDATES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxCandidates = n
		}
	}
	if v := os.Getenv("WORKMEM_LATE_INTERACTION_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.LateInteractionWeight = w
		}
	}
	if v := os.Getenv("WORKMEM_MISALIGNMENT_THRESHOLD"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.MisalignmentThreshold = w
		}
	}
	if v := os.Getenv("WORKMEM_BUDGET_TOTAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.BudgetTotal = n
		}
	}
	if v := os.Getenv("WORKMEM_BRIEF_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.BriefBudget = n
		}
	}
}

// Validate checks the memory configuration's invariants: weights in
// range, positive candidate/budget counts, a sane category-weight
// vector (temporal is conventionally 0, but never validated away here
// since operators may legitimately need to tune it — only range-checked).
func (c *MemoryConfig) Validate() error {
	for i, w := range c.CategoryWeights {
		if w < 0 || w > 1 {
			return fmt.Errorf("category_weights[%d] must be between 0 and 1, got %f", i, w)
		}
	}
	if c.RRFK <= 0 {
		return fmt.Errorf("rrf_k must be positive, got %d", c.RRFK)
	}
	if c.SparseWeight < 0 || c.SparseWeight > 1 {
		return fmt.Errorf("sparse_prefilter_sparse_weight must be between 0 and 1, got %f", c.SparseWeight)
	}
	if c.LateInteractionWeight < 0 || c.LateInteractionWeight > 1 {
		return fmt.Errorf("late_interaction_weight must be between 0 and 1, got %f", c.LateInteractionWeight)
	}
	if c.MisalignmentThreshold < 0 || c.MisalignmentThreshold > 1 {
		return fmt.Errorf("misalignment_alignment_threshold must be between 0 and 1, got %f", c.MisalignmentThreshold)
	}
	if c.MaxCandidates <= 0 {
		return fmt.Errorf("max_candidates must be positive, got %d", c.MaxCandidates)
	}
	if c.BudgetTotal <= 0 {
		return fmt.Errorf("budget_total must be positive, got %d", c.BudgetTotal)
	}
	if c.BriefBudget <= 0 {
		return fmt.Errorf("brief_budget must be positive, got %d", c.BriefBudget)
	}
	var subSum int
	for _, s := range c.BudgetSub {
		subSum += s
	}
	if subSum > c.BudgetTotal {
		return fmt.Errorf("budget_sub sums to %d, exceeds budget_total %d", subSum, c.BudgetTotal)
	}
	return nil
}
