// Package routing decides which agents handle a message: intent classification,
// agent selection with anti-repetition, and decision scoring.
package routing

import (
	"slices"
	"time"

	"github.com/AltairaLabs/agent-router/internal/agents"
	"github.com/AltairaLabs/agent-router/internal/session"
)

// Decision is the immutable routing outcome for one message.
// Callers must treat its slices and maps as read-only.
type Decision struct {
	Primary           agents.Name    `json:"primary_agent"`
	Supporting        []agents.Name  `json:"supporting_agents"`
	Confidence        float64        `json:"confidence"`
	Reasoning         []string       `json:"reasoning"`
	TaskType          Intent         `json:"task_type"`
	Priority          Priority       `json:"priority"`
	EstimatedDuration time.Duration  `json:"-"`
	EstimatedSeconds  int            `json:"estimated_duration"`
	RequiredResources []string       `json:"required_resources"`
	Analysis          IntentAnalysis `json:"analysis"`
}

// Agents returns a fresh slice with the primary followed by the supporting agents
func (d Decision) Agents() []agents.Name {
	out := make([]agents.Name, 0, 1+len(d.Supporting))
	out = append(out, d.Primary)
	return append(out, d.Supporting...)
}

// Decider composes the classifier, selector and scorer
type Decider struct {
	classifier *Classifier
	selector   *Selector
	scorer     *Scorer
}

// NewDecider builds a Decider over tables. window is the history window the
// classifier and selector see; <= 0 uses DefaultHistoryWindow.
func NewDecider(tables *Tables, window int) *Decider {
	if tables == nil {
		tables = DefaultTables()
	}
	return &Decider{
		classifier: NewClassifier(tables, window),
		selector:   NewSelector(tables),
		scorer:     NewScorer(tables),
	}
}

// HistoryWindow returns how many history entries Decide looks at
func (d *Decider) HistoryWindow() int {
	return d.classifier.Window()
}

// Decide produces a Decision for message given the session context and history.
// It never fails: unknown messages fall back to the default intent.
func (d *Decider) Decide(message string, sctx session.Context, history []session.ConversationEntry) Decision {
	history = tail(history, d.classifier.Window())

	analysis := d.classifier.Classify(message, history, sctx)
	sel := d.selector.Select(analysis, sctx, history)
	score := d.scorer.Score(analysis, sel, sctx, len(history))

	return Decision{
		Primary:           sel.Primary,
		Supporting:        append([]agents.Name{}, sel.Supporting...),
		Confidence:        score.Confidence,
		Reasoning:         append(slices.Clone(sel.Reasoning), score.Reasoning...),
		TaskType:          analysis.Intent,
		Priority:          score.Priority,
		EstimatedDuration: score.EstimatedDuration,
		EstimatedSeconds:  int(score.EstimatedDuration / time.Second),
		RequiredResources: append([]string{}, score.RequiredResources...),
		Analysis:          analysis,
	}
}
