package routing

import (
	"strings"

	"github.com/AltairaLabs/agent-router/internal/session"
)

// Sentiment is the coarse tone of a message
type Sentiment string

// Sentiment values
const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// EntityChannels is the entity key holding the comma-joined detected channels
const EntityChannels = "channels"

// Classifier scoring constants
const (
	BaseUrgency    = 5
	BoostedUrgency = 8

	BaseComplexity = 3
	MinComplexity  = 1
	MaxComplexity  = 10

	longMessageChars     = 100
	veryLongMessageChars = 250
	maxChannelComplexity = 3
	campaignComplexity   = 2
	longHistoryEntries   = 5

	// DefaultHistoryWindow is how many prior entries the classifier looks at
	DefaultHistoryWindow = 10
)

// IntentAnalysis is the structured reading of one message
type IntentAnalysis struct {
	Intent     Intent            `json:"intent"`
	Entities   map[string]string `json:"entities"`
	Sentiment  Sentiment         `json:"sentiment"`
	Urgency    int               `json:"urgency"`
	Complexity int               `json:"complexity"`
}

// Channels returns the detected channels in table order
func (a IntentAnalysis) Channels() []string {
	joined := a.Entities[EntityChannels]
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}

// Classifier turns a message into an IntentAnalysis by keyword counting.
// It is deterministic and has no side effects.
type Classifier struct {
	tables *Tables
	window int
}

// NewClassifier creates a classifier over the given tables
func NewClassifier(tables *Tables, window int) *Classifier {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	return &Classifier{tables: tables, window: window}
}

// Window returns the number of history entries considered
func (c *Classifier) Window() int {
	return c.window
}

// Classify analyses message against the most recent history window and the session context
func (c *Classifier) Classify(message string, history []session.ConversationEntry, sctx session.Context) IntentAnalysis {
	text := strings.ToLower(message)
	history = tail(history, c.window)

	channels := c.detectChannels(text)
	entities := make(map[string]string)
	if len(channels) > 0 {
		entities[EntityChannels] = strings.Join(channels, ",")
	}

	return IntentAnalysis{
		Intent:     c.detectIntent(text),
		Entities:   entities,
		Sentiment:  c.detectSentiment(text),
		Urgency:    c.detectUrgency(text),
		Complexity: c.complexity(message, len(channels), history, sctx),
	}
}

func (c *Classifier) detectIntent(text string) Intent {
	best := c.tables.FallbackIntent
	bestCount := 0
	for _, rule := range c.tables.Intents {
		// strict comparison keeps the earliest intent on ties
		if n := countMatches(text, rule.Patterns); n > bestCount {
			best = Intent(rule.Name)
			bestCount = n
		}
	}
	return best
}

func (c *Classifier) detectChannels(text string) []string {
	var found []string
	for _, rule := range c.tables.Channels {
		if countMatches(text, rule.Patterns) > 0 {
			found = append(found, rule.Name)
		}
	}
	return found
}

func (c *Classifier) detectUrgency(text string) int {
	if countMatches(text, c.tables.Urgency) > 0 {
		return BoostedUrgency
	}
	return BaseUrgency
}

func (c *Classifier) detectSentiment(text string) Sentiment {
	pos := countMatches(text, c.tables.Positive)
	neg := countMatches(text, c.tables.Negative)
	switch {
	case neg > pos:
		return SentimentNegative
	case pos > neg:
		return SentimentPositive
	default:
		return SentimentNeutral
	}
}

func (c *Classifier) complexity(message string, channels int, history []session.ConversationEntry, sctx session.Context) int {
	score := BaseComplexity

	length := len([]rune(message))
	if length > longMessageChars {
		score++
	}
	if length > veryLongMessageChars {
		score++
	}

	score += min(channels, maxChannelComplexity)

	if len(listValue(sctx[session.KeyTargetChannels])) > 1 {
		score++
	}
	if stringValue(sctx[session.KeyCampaignType]) != "" {
		score += campaignComplexity
	}
	if len(history) >= longHistoryEntries {
		score++
	}
	if present(sctx[session.KeyWebsiteAnalysis]) {
		score++
	}

	return clamp(score, MinComplexity, MaxComplexity)
}

func countMatches(text string, patterns []string) int {
	n := 0
	for _, p := range patterns {
		if p != "" && strings.Contains(text, p) {
			n++
		}
	}
	return n
}

func tail(history []session.ConversationEntry, n int) []session.ConversationEntry {
	if n > 0 && len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

func clamp[T int | float64](v, lo, hi T) T {
	return max(lo, min(v, hi))
}
