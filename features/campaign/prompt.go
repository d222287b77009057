package campaign

import (
	"fmt"
	"strings"

	"campaignlab/internal/retrieval"
)

// platformKnowledge holds per-platform best practices baked into the
// prompt. Unknown platforms get a neutral placeholder instead of an error;
// the model works from the brief and brand context alone in that case.
var platformKnowledge = map[string]string{
	"linkedin": `LinkedIn Best Practices:
- B2B focus, professional tone essential
- Carousel ads: 2x engagement vs single image
- Targeting: Job titles, company size, industry
- Lead gen forms reduce friction
- Optimal times: Tue-Thu, 9-11am
- Image specs: 1200x627px (1.91:1 ratio)
- Character limits: Headline 70, Body 150
- Typical CTR: 0.5-1.0%, CPC: $5-15, CPL: $50-150`,
	"meta": `Meta (Facebook/Instagram) Best Practices:
- Stories and Reels: highest engagement
- Interest-based + lookalike targeting
- Retargeting essential for conversions
- Image ratio: 1:1 or 4:5 for feed, 9:16 for stories
- Character limits: Headline 40, Body 125
- Typical CTR: 0.9-2.5%, CPC: $0.50-3.00
- Test multiple ad variations`,
	"tiktok": `TikTok Best Practices:
- Short vertical video (15-30 sec)
- Authentic, raw content beats polished
- Hook in first 3 seconds critical
- 9:16 aspect ratio required
- Gen Z and Millennial audience
- Typical CTR: 1.5-3.0%, CPC: $0.30-1.50
- Use trending sounds and effects`,
}

const strategySchema = `{
  "targeting": {
    "demographics": ["target1", "target2"],
    "interests": ["interest1", "interest2"],
    "locations": ["location1"]
  },
  "placements": ["Feed", "Stories"],
  "bid_strategy": "cost_cap or lowest_cost",
  "budget_split": {
    "Feed": {"amount": 3500, "percentage": 70},
    "Stories": {"amount": 1500, "percentage": 30}
  },
  "predictions": {
    "impressions": 50000,
    "ctr": 1.2,
    "cpc": 5.50,
    "conversions": 250,
    "cpa": 120,
    "roas": 3.5
  },
  "creative_brief": {
    "count": 5,
    "formats": ["carousel"],
    "tone": "professional",
    "hooks": ["problem_solution", "metric_led"],
    "copy_specs": {
      "headline_max_chars": 70,
      "body_max_chars": 150
    },
    "asset_specs": {
      "image_ratio": "1.91:1",
      "min_resolution": "1200x627"
    }
  },
  "risks": ["risk1", "risk2"],
  "timeline": ["Week 1: launch and learn", "Week 2: scale winners"]
}`

func buildPrompt(brief Brief, passages []retrieval.Result) string {
	var b strings.Builder

	b.WriteString("You are an expert digital marketing strategist. Create a detailed campaign plan.\n\n")
	b.WriteString("CAMPAIGN DETAILS:\n")
	fmt.Fprintf(&b, "- Goal: %s\n", brief.Goal)
	fmt.Fprintf(&b, "- Platform: %s\n", brief.Platform)
	fmt.Fprintf(&b, "- Budget: $%.2f\n", brief.Budget)
	if brief.DurationDays > 0 {
		fmt.Fprintf(&b, "- Duration: %d days\n", brief.DurationDays)
	}
	if brief.Industry != "" {
		fmt.Fprintf(&b, "- Industry: %s\n", brief.Industry)
	}
	if brief.Audience != "" {
		fmt.Fprintf(&b, "- Audience: %s\n", brief.Audience)
	}
	b.WriteString("\n")

	b.WriteString("PLATFORM KNOWLEDGE:\n")
	if knowledge, ok := platformKnowledge[strings.ToLower(brief.Platform)]; ok {
		b.WriteString(knowledge)
	} else {
		b.WriteString("No platform knowledge available")
	}
	b.WriteString("\n\n")

	if len(passages) > 0 {
		b.WriteString("BRAND CONTEXT (from the brand's own documents, follow its voice and constraints):\n")
		for i, p := range passages {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, p.Text)
		}
		b.WriteString("\n")
	}

	b.WriteString("Generate a complete campaign strategy as JSON with this EXACT structure:\n")
	b.WriteString(strategySchema)
	b.WriteString("\n\nReturn ONLY valid JSON, no markdown, no explanations.")
	return b.String()
}

// stripFences removes a surrounding markdown code fence if the model added
// one despite instructions. Anything outside the fence is dropped.
func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```json") {
		if body, _, found := cutFence(text, "```json"); found {
			return body
		}
	}
	if strings.HasPrefix(text, "```") {
		if body, _, found := cutFence(text, "```"); found {
			return body
		}
	}
	return text
}

func cutFence(text, open string) (string, string, bool) {
	rest := strings.TrimPrefix(text, open)
	body, tail, found := strings.Cut(rest, "```")
	if !found {
		return strings.TrimSpace(rest), "", false
	}
	return strings.TrimSpace(body), tail, true
}
