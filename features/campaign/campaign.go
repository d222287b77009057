// Package campaign turns a campaign brief into a concrete media strategy.
// The composer is deliberately thin: it retrieves brand context, fills a
// prompt template, calls the model once and validates the returned JSON.
// All marketing knowledge lives in the corpus and the prompt, not in code.
package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"campaignlab/internal/retrieval"
)

type Brief struct {
	Goal         string  `json:"goal"`
	Platform     string  `json:"platform"`
	Budget       float64 `json:"budget"`
	DurationDays int     `json:"duration_days,omitempty"`
	Industry     string  `json:"industry,omitempty"`
	Audience     string  `json:"audience,omitempty"`
	BrandID      string  `json:"brand_id,omitempty"`
}

type Targeting struct {
	Demographics []string `json:"demographics"`
	Interests    []string `json:"interests"`
	Locations    []string `json:"locations"`
}

type Predictions struct {
	Impressions int     `json:"impressions"`
	CTR         float64 `json:"ctr"`
	CPC         float64 `json:"cpc"`
	Conversions int     `json:"conversions"`
	CPA         float64 `json:"cpa"`
	ROAS        float64 `json:"roas"`
}

type CopySpecs struct {
	HeadlineMaxChars int `json:"headline_max_chars"`
	BodyMaxChars     int `json:"body_max_chars"`
}

type AssetSpecs struct {
	ImageRatio    string `json:"image_ratio"`
	MinResolution string `json:"min_resolution"`
}

type CreativeBrief struct {
	Count      int        `json:"count"`
	Formats    []string   `json:"formats"`
	Tone       string     `json:"tone"`
	Hooks      []string   `json:"hooks"`
	CopySpecs  CopySpecs  `json:"copy_specs"`
	AssetSpecs AssetSpecs `json:"asset_specs"`
}

// BudgetShare is one slice of the budget split, keyed by channel or
// placement in Strategy.BudgetSplit.
type BudgetShare struct {
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

type Strategy struct {
	Targeting     Targeting              `json:"targeting"`
	Placements    []string               `json:"placements"`
	BidStrategy   string                 `json:"bid_strategy"`
	BudgetSplit   map[string]BudgetShare `json:"budget_split,omitempty"`
	Predictions   Predictions            `json:"predictions"`
	CreativeBrief CreativeBrief          `json:"creative_brief"`
	Risks         []string               `json:"risks,omitempty"`
	Timeline      []string               `json:"timeline,omitempty"`
}

// Citation records which corpus passage informed the strategy, so a plan
// can always be traced back to the brand material it was grounded on.
type Citation struct {
	DocumentID string  `json:"document_id"`
	Ordinal    int     `json:"ordinal"`
	Score      float32 `json:"score"`
}

type Plan struct {
	ID        string     `json:"id"`
	BrandID   string     `json:"brand_id,omitempty"`
	Brief     Brief      `json:"brief"`
	Strategy  Strategy   `json:"strategy"`
	Citations []Citation `json:"citations"`
	CreatedAt time.Time  `json:"created_at"`
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, brandID string) ([]retrieval.Result, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Repository interface {
	Save(ctx context.Context, plan *Plan) error
	Get(ctx context.Context, id string) (*Plan, error)
	List(ctx context.Context, brandID string) ([]Plan, error)
}

var (
	ErrNotFound        = errors.New("campaign plan not found")
	ErrInvalidBrief    = errors.New("invalid brief")
	ErrInvalidStrategy = errors.New("model returned an unusable strategy")
)

type Service struct {
	retriever Retriever
	generator Generator
	repo      Repository
	topK      int
	minScore  float32
}

func NewService(retriever Retriever, generator Generator, repo Repository, topK int, minScore float32) *Service {
	return &Service{retriever: retriever, generator: generator, repo: repo, topK: topK, minScore: minScore}
}

// CreateStrategy runs the full compose pipeline: retrieve brand context for
// the goal, prompt the model, parse and persist. Context below the score
// floor is discarded rather than padded into the prompt; a brief with no
// usable context still produces a strategy, just an ungrounded one.
func (s *Service) CreateStrategy(ctx context.Context, brief Brief) (*Plan, error) {
	if err := validateBrief(brief); err != nil {
		return nil, err
	}

	results, err := s.retriever.Retrieve(ctx, brief.Goal, s.topK, brief.BrandID)
	if err != nil {
		return nil, fmt.Errorf("retrieve brand context: %w", err)
	}

	var passages []retrieval.Result
	var citations []Citation
	for _, r := range results {
		if r.Score < s.minScore {
			continue
		}
		passages = append(passages, r)
		citations = append(citations, Citation{DocumentID: r.DocumentID, Ordinal: r.Ordinal, Score: r.Score})
	}
	if citations == nil {
		citations = []Citation{}
	}

	prompt := buildPrompt(brief, passages)
	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate strategy: %w", err)
	}

	strategy, err := parseStrategy(raw)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		ID:        uuid.New().String(),
		BrandID:   brief.BrandID,
		Brief:     brief,
		Strategy:  *strategy,
		Citations: citations,
	}
	if err := s.repo.Save(ctx, plan); err != nil {
		return nil, fmt.Errorf("save campaign plan: %w", err)
	}

	slog.InfoContext(ctx, "campaign strategy created",
		"plan_id", plan.ID, "brand_id", brief.BrandID, "platform", brief.Platform, "citations", len(citations))
	return plan, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Plan, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, brandID string) ([]Plan, error) {
	return s.repo.List(ctx, brandID)
}

func validateBrief(brief Brief) error {
	if brief.Goal == "" {
		return fmt.Errorf("%w: goal is required", ErrInvalidBrief)
	}
	if brief.Platform == "" {
		return fmt.Errorf("%w: platform is required", ErrInvalidBrief)
	}
	if brief.Budget <= 0 {
		return fmt.Errorf("%w: budget must be positive", ErrInvalidBrief)
	}
	return nil
}

func parseStrategy(raw string) (*Strategy, error) {
	cleaned := stripFences(raw)

	var strategy Strategy
	if err := json.Unmarshal([]byte(cleaned), &strategy); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStrategy, err)
	}
	if strategy.BidStrategy == "" || len(strategy.Placements) == 0 {
		return nil, fmt.Errorf("%w: missing placements or bid strategy", ErrInvalidStrategy)
	}
	return &strategy, nil
}
