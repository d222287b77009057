package campaign

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"campaignlab/internal/rag"
	"campaignlab/internal/retrieval"
)

// --- Mocks ---

type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Retrieve(ctx context.Context, query string, k int, brandID string) ([]retrieval.Result, error) {
	args := m.Called(ctx, query, k, brandID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]retrieval.Result), args.Error(1)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type MockPlanRepo struct {
	mock.Mock
}

func (m *MockPlanRepo) Save(ctx context.Context, plan *Plan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockPlanRepo) Get(ctx context.Context, id string) (*Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Plan), args.Error(1)
}

func (m *MockPlanRepo) List(ctx context.Context, brandID string) ([]Plan, error) {
	args := m.Called(ctx, brandID)
	return args.Get(0).([]Plan), args.Error(1)
}

const validStrategyJSON = `{
  "targeting": {
    "demographics": ["marketing managers"],
    "interests": ["b2b saas"],
    "locations": ["united states"]
  },
  "placements": ["Feed", "Stories"],
  "bid_strategy": "cost_cap",
  "budget_split": {"Feed": {"amount": 3500, "percentage": 70}, "Stories": {"amount": 1500, "percentage": 30}},
  "risks": ["narrow audience may exhaust quickly"],
  "predictions": {
    "impressions": 50000,
    "ctr": 1.2,
    "cpc": 5.5,
    "conversions": 250,
    "cpa": 120,
    "roas": 3.5
  },
  "creative_brief": {
    "count": 5,
    "formats": ["carousel"],
    "tone": "professional",
    "hooks": ["problem_solution"],
    "copy_specs": {"headline_max_chars": 70, "body_max_chars": 150},
    "asset_specs": {"image_ratio": "1.91:1", "min_resolution": "1200x627"}
  }
}`

var testBrief = Brief{Goal: "generate B2B leads for a CRM product", Platform: "linkedin", Budget: 5000, BrandID: "acme"}

func TestService_CreateStrategy(t *testing.T) {
	ctx := context.Background()

	t.Run("Success With Brand Context", func(t *testing.T) {
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		repo := new(MockPlanRepo)

		retriever.On("Retrieve", ctx, testBrief.Goal, 3, "acme").Return([]retrieval.Result{
			{Text: "our tone is witty", Score: 0.9, DocumentID: "doc-1", Ordinal: 0},
			{Text: "never discount publicly", Score: 0.72, DocumentID: "doc-2", Ordinal: 4},
		}, nil)
		generator.On("Generate", ctx, mock.MatchedBy(func(prompt string) bool {
			return strings.Contains(prompt, "our tone is witty") &&
				strings.Contains(prompt, "LinkedIn Best Practices") &&
				strings.Contains(prompt, "Budget: $5000.00")
		})).Return(validStrategyJSON, nil)
		repo.On("Save", ctx, mock.Anything).Return(nil)

		svc := NewService(retriever, generator, repo, 3, 0.5)
		plan, err := svc.CreateStrategy(ctx, testBrief)

		require.NoError(t, err)
		assert.Equal(t, "cost_cap", plan.Strategy.BidStrategy)
		assert.Equal(t, 50000, plan.Strategy.Predictions.Impressions)
		assert.Equal(t, 70.0, plan.Strategy.BudgetSplit["Feed"].Percentage)
		assert.Len(t, plan.Strategy.Risks, 1)
		require.Len(t, plan.Citations, 2)
		assert.Equal(t, "doc-1", plan.Citations[0].DocumentID)
		repo.AssertExpectations(t)
	})

	t.Run("Low Score Context Excluded", func(t *testing.T) {
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		repo := new(MockPlanRepo)

		retriever.On("Retrieve", ctx, mock.Anything, 3, "acme").Return([]retrieval.Result{
			{Text: "barely related passage", Score: 0.2, DocumentID: "doc-9", Ordinal: 1},
		}, nil)
		generator.On("Generate", ctx, mock.MatchedBy(func(prompt string) bool {
			return !strings.Contains(prompt, "barely related passage")
		})).Return(validStrategyJSON, nil)
		repo.On("Save", ctx, mock.Anything).Return(nil)

		svc := NewService(retriever, generator, repo, 3, 0.5)
		plan, err := svc.CreateStrategy(ctx, testBrief)

		require.NoError(t, err)
		assert.Empty(t, plan.Citations)
		generator.AssertExpectations(t)
	})

	t.Run("Fenced Model Output Parsed", func(t *testing.T) {
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		repo := new(MockPlanRepo)

		retriever.On("Retrieve", ctx, mock.Anything, 3, "acme").Return([]retrieval.Result{}, nil)
		generator.On("Generate", ctx, mock.Anything).Return("```json\n"+validStrategyJSON+"\n```", nil)
		repo.On("Save", ctx, mock.Anything).Return(nil)

		svc := NewService(retriever, generator, repo, 3, 0.5)
		plan, err := svc.CreateStrategy(ctx, testBrief)

		require.NoError(t, err)
		assert.Equal(t, []string{"Feed", "Stories"}, plan.Strategy.Placements)
	})

	t.Run("Invalid Brief", func(t *testing.T) {
		svc := NewService(new(MockRetriever), new(MockGenerator), new(MockPlanRepo), 3, 0.5)

		for _, brief := range []Brief{
			{Platform: "meta", Budget: 100},
			{Goal: "g", Budget: 100},
			{Goal: "g", Platform: "meta", Budget: 0},
			{Goal: "g", Platform: "meta", Budget: -5},
		} {
			_, err := svc.CreateStrategy(ctx, brief)
			assert.ErrorIs(t, err, ErrInvalidBrief)
		}
	})

	t.Run("Garbage Model Output", func(t *testing.T) {
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		repo := new(MockPlanRepo)

		retriever.On("Retrieve", ctx, mock.Anything, 3, "acme").Return([]retrieval.Result{}, nil)
		generator.On("Generate", ctx, mock.Anything).Return("I'd be happy to help with that campaign!", nil)

		svc := NewService(retriever, generator, repo, 3, 0.5)
		_, err := svc.CreateStrategy(ctx, testBrief)

		assert.ErrorIs(t, err, ErrInvalidStrategy)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("Missing Required Strategy Fields", func(t *testing.T) {
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		repo := new(MockPlanRepo)

		retriever.On("Retrieve", ctx, mock.Anything, 3, "acme").Return([]retrieval.Result{}, nil)
		generator.On("Generate", ctx, mock.Anything).Return(`{"targeting":{},"placements":[]}`, nil)

		svc := NewService(retriever, generator, repo, 3, 0.5)
		_, err := svc.CreateStrategy(ctx, testBrief)

		assert.ErrorIs(t, err, ErrInvalidStrategy)
	})

	t.Run("Retrieval Failure Propagates", func(t *testing.T) {
		retriever := new(MockRetriever)
		generator := new(MockGenerator)

		retriever.On("Retrieve", ctx, mock.Anything, 3, "acme").Return(nil, rag.ErrStoreUnavailable)

		svc := NewService(retriever, generator, new(MockPlanRepo), 3, 0.5)
		_, err := svc.CreateStrategy(ctx, testBrief)

		assert.ErrorIs(t, err, rag.ErrStoreUnavailable)
		generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"Plain JSON", `{"a":1}`, `{"a":1}`},
		{"JSON Fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"Bare Fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"Surrounding Whitespace", "  \n{\"a\":1}\n ", `{"a":1}`},
		{"Trailing Commentary", "```json\n{\"a\":1}\n```\nHope this helps!", `{"a":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stripFences(tc.in))
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Run("Unknown Platform", func(t *testing.T) {
		prompt := buildPrompt(Brief{Goal: "g", Platform: "pinterest", Budget: 100}, nil)
		assert.Contains(t, prompt, "No platform knowledge available")
	})

	t.Run("No Context Omits Brand Section", func(t *testing.T) {
		prompt := buildPrompt(testBrief, nil)
		assert.NotContains(t, prompt, "BRAND CONTEXT")
	})

	t.Run("Platform Lookup Is Case Insensitive", func(t *testing.T) {
		prompt := buildPrompt(Brief{Goal: "g", Platform: "LinkedIn", Budget: 100}, nil)
		assert.Contains(t, prompt, "LinkedIn Best Practices")
	})

	t.Run("Optional Brief Fields Included", func(t *testing.T) {
		prompt := buildPrompt(Brief{Goal: "g", Platform: "meta", Budget: 100, DurationDays: 14, Industry: "Fintech", Audience: "CFOs"}, nil)
		assert.Contains(t, prompt, "Duration: 14 days")
		assert.Contains(t, prompt, "Industry: Fintech")
		assert.Contains(t, prompt, "Audience: CFOs")
	})
}
