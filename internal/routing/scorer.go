package routing

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/AltairaLabs/agent-router/internal/agents"
	"github.com/AltairaLabs/agent-router/internal/session"
)

// Priority is the scheduling class of a decision
type Priority string

// Priority values
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Confidence scoring constants
const (
	BaseConfidence = 0.7
	MinConfidence  = 0.1
	MaxConfidence  = 0.95

	urgencyBonus    = 0.1
	channelBonus    = 0.05
	campaignBonus   = 0.05
	historyBonus    = 0.05
	tenantBonus     = 0.05
	complexityDrag  = 0.1
	negativeDrag    = 0.05
	highUrgency     = 8
	highComplexity  = 8
	longHistoryTurn = 5
)

// Priority thresholds on urgency
const (
	urgentThreshold           = 8
	highThreshold             = 6
	commercialHighThreshold   = 5
	mediumThreshold           = 4
	complexityDurationDivisor = 20.0
)

// Resource tags
const (
	ResourceSocialMediaAPI = "social-media-api"
	ResourceMediaBackend   = "media-backend"
	ResourceCalendar       = "calendar"
	ResourceAnalyticsStore = "analytics-store"
	ResourceCatalog        = "catalog"
)

// Score is the scorer's contribution to a Decision
type Score struct {
	Confidence        float64
	Priority          Priority
	EstimatedDuration time.Duration
	RequiredResources []string
	Reasoning         []string
}

// Scorer computes confidence, priority, duration and resource tags
type Scorer struct {
	tables *Tables
}

// NewScorer creates a scorer over the given tables
func NewScorer(tables *Tables) *Scorer {
	return &Scorer{tables: tables}
}

// Score rates a selection. historyLen is the size of the history window the analysis saw.
func (s *Scorer) Score(a IntentAnalysis, sel Selection, sctx session.Context, historyLen int) Score {
	commercial := s.commercialIntent(a, sctx)

	return Score{
		Confidence:        s.confidence(a, sctx, historyLen),
		Priority:          priorityFor(a.Urgency, commercial),
		EstimatedDuration: EstimateDuration(sel, a.Complexity),
		RequiredResources: s.resources(a, sel, commercial),
		Reasoning: []string{
			fmt.Sprintf("urgency %d, complexity %d, sentiment %s", a.Urgency, a.Complexity, a.Sentiment),
		},
	}
}

func (s *Scorer) confidence(a IntentAnalysis, sctx session.Context, historyLen int) float64 {
	c := BaseConfidence
	if a.Urgency >= highUrgency {
		c += urgencyBonus
	}
	if a.Entities[EntityChannels] != "" {
		c += channelBonus
	}
	if stringValue(sctx[session.KeyCampaignType]) != "" {
		c += campaignBonus
	}
	if historyLen >= longHistoryTurn {
		c += historyBonus
	}
	if tenantSignals(sctx) {
		c += tenantBonus
	}
	if a.Complexity >= highComplexity {
		c -= complexityDrag
	}
	if a.Sentiment == SentimentNegative {
		c -= negativeDrag
	}

	// round away float noise from the additive terms
	c = math.Round(c*1000) / 1000
	return clamp(c, MinConfidence, MaxConfidence)
}

func priorityFor(urgency int, commercial bool) Priority {
	high := highThreshold
	if commercial {
		high = commercialHighThreshold
	}
	switch {
	case urgency >= urgentThreshold:
		return PriorityUrgent
	case urgency >= high:
		return PriorityHigh
	case urgency >= mediumThreshold:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// EstimateDuration adds the primary's base time to the slowest supporting agent's,
// scaled by complexity, rounded to the second. Supporting agents run in parallel
// with the primary so only the slowest one counts.
func EstimateDuration(sel Selection, complexity int) time.Duration {
	var slowest time.Duration
	for _, name := range sel.Supporting {
		slowest = max(slowest, name.BaseProcessingTime())
	}
	base := sel.Primary.BaseProcessingTime() + slowest
	scaled := base.Seconds() * (1 + float64(complexity)/complexityDurationDivisor)
	return time.Duration(math.Round(scaled)) * time.Second
}

func (s *Scorer) resources(a IntentAnalysis, sel Selection, commercial bool) []string {
	selected := sel.Agents()
	has := func(names ...agents.Name) bool {
		for _, n := range names {
			if slices.Contains(selected, n) {
				return true
			}
		}
		return false
	}

	var tags []string
	if a.Entities[EntityChannels] != "" {
		tags = append(tags, ResourceSocialMediaAPI)
	}
	if a.Intent.IsMedia() || has(agents.ContentCreator) {
		tags = append(tags, ResourceMediaBackend)
	}
	if has(agents.Scheduler, agents.MultichannelScheduler) {
		tags = append(tags, ResourceCalendar)
	}
	if a.Intent == IntentAnalytics || has(agents.DataAnalyst, agents.AnalyticsReporter) {
		tags = append(tags, ResourceAnalyticsStore)
	}
	if commercial {
		tags = append(tags, ResourceCatalog)
	}
	return tags
}

// commercialIntent reports whether the intent is tenant-routable for a commercial site
func (s *Scorer) commercialIntent(a IntentAnalysis, sctx session.Context) bool {
	if !s.tables.isCommercialSite(stringValue(sctx[session.KeySiteType])) {
		return false
	}
	_, ok := s.tables.Commercial[a.Intent]
	return ok
}

func tenantSignals(sctx session.Context) bool {
	return present(sctx[session.KeyProducts]) ||
		present(sctx[session.KeyServices]) ||
		present(sctx[session.KeyWebsiteAnalysis])
}
