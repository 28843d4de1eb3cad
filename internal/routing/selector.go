package routing

import (
	"fmt"
	"slices"

	"github.com/AltairaLabs/agent-router/internal/agents"
	"github.com/AltairaLabs/agent-router/internal/session"
)

// Supporting-agent thresholds
const (
	quickResponseUrgency = 7 // quick responder joins above this urgency
	multiChannelCount    = 1 // multichannel scheduler joins above this channel count
)

// Selection is the agent set chosen for one message
type Selection struct {
	Primary    agents.Name
	Supporting []agents.Name
	Reasoning  []string
}

// Agents returns primary followed by supporting agents
func (s Selection) Agents() []agents.Name {
	return append([]agents.Name{s.Primary}, s.Supporting...)
}

// Selector maps an IntentAnalysis to a primary agent and supporting agents
type Selector struct {
	tables *Tables
}

// NewSelector creates a selector over the given tables
func NewSelector(tables *Tables) *Selector {
	return &Selector{tables: tables}
}

// Select chooses agents for the analysis. history should be in insertion order.
func (s *Selector) Select(a IntentAnalysis, sctx session.Context, history []session.ConversationEntry) Selection {
	primary, why := s.primary(a, sctx, history)
	sel := Selection{Primary: primary, Reasoning: []string{why}}

	add := func(name agents.Name, reason string) {
		if name == sel.Primary || slices.Contains(sel.Supporting, name) {
			return
		}
		sel.Supporting = append(sel.Supporting, name)
		sel.Reasoning = append(sel.Reasoning, reason)
	}

	if a.Intent == IntentPlanning || a.Intent == IntentCampaign {
		add(agents.TrendResearcher, fmt.Sprintf("%s task benefits from trend research", a.Intent))
	}
	if a.Intent == IntentAnalytics {
		add(agents.AnalyticsReporter, "analysis requests get a performance report")
	}
	if a.Urgency > quickResponseUrgency {
		add(agents.QuickResponder, fmt.Sprintf("urgency %d requires a quick acknowledgement", a.Urgency))
	}
	if channels := a.Channels(); len(channels) > multiChannelCount {
		add(agents.MultichannelScheduler, fmt.Sprintf("%d channels need coordinated publishing", len(channels)))
	}

	return sel
}

func (s *Selector) primary(a IntentAnalysis, sctx session.Context, history []session.ConversationEntry) (agents.Name, string) {
	siteType := stringValue(sctx[session.KeySiteType])
	if s.tables.isCommercialSite(siteType) {
		if name, ok := s.tables.Commercial[a.Intent]; ok {
			return name, fmt.Sprintf("%s tenant routes %s to %s", siteType, a.Intent, name)
		}
	}

	if campaign := stringValue(sctx[session.KeyCampaignType]); campaign != "" {
		return agents.Scheduler, fmt.Sprintf("campaign context %q routes to %s", campaign, agents.Scheduler)
	}

	if a.Intent.IsMedia() && len(a.Channels()) > 0 {
		return agents.ContentCreator, fmt.Sprintf("%s for %s routes to %s",
			a.Intent, a.Entities[EntityChannels], agents.ContentCreator)
	}

	if repeated, ok := repeatedAgent(history); ok {
		if alt, ok := s.tables.Alternate[a.Intent]; ok && string(alt) != repeated {
			return alt, fmt.Sprintf("%s answered the last two turns; switching to %s", repeated, alt)
		}
	}

	if name, ok := s.tables.Static[a.Intent]; ok {
		return name, fmt.Sprintf("intent %s maps to %s", a.Intent, name)
	}
	return agents.Responder, fmt.Sprintf("no agent mapped for intent %s; using %s", a.Intent, agents.Responder)
}

// repeatedAgent returns the agent that produced both of the last two agent responses
func repeatedAgent(history []session.ConversationEntry) (string, bool) {
	var last []string
	for i := len(history) - 1; i >= 0 && len(last) < 2; i-- {
		if history[i].Type == session.EntryAgentResponse {
			last = append(last, history[i].Agent)
		}
	}
	if len(last) < 2 || last[0] == "" || last[0] != last[1] {
		return "", false
	}
	return last[0], true
}
