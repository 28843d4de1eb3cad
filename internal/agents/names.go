// Package agents defines the closed set of routable agents and how to reach them.
package agents

import "time"

// Name identifies a routable agent
type Name string

// Routable agents
const (
	Scheduler             Name = "scheduler"
	MultichannelScheduler Name = "multichannel_scheduler"
	Strategist            Name = "strategist"
	TrendResearcher       Name = "trend_researcher"
	ContentCreator        Name = "content_creator"
	ImageDesigner         Name = "image_designer"
	VideoProducer         Name = "video_producer"
	DataAnalyst           Name = "data_analyst"
	AnalyticsReporter     Name = "analytics_reporter"
	QuickResponder        Name = "quick_responder"
	CustomerSupport       Name = "customer_support"
	Copywriter            Name = "copywriter"
	Responder             Name = "responder"
	SalesAgent            Name = "sales_agent"
	ProductCatalog        Name = "product_catalog"
	ServiceBooking        Name = "service_booking"
)

// baseProcessingTimes is the nominal time each agent needs for one request
var baseProcessingTimes = map[Name]time.Duration{
	Scheduler:             20 * time.Second,
	MultichannelScheduler: 25 * time.Second,
	Strategist:            45 * time.Second,
	TrendResearcher:       35 * time.Second,
	ContentCreator:        40 * time.Second,
	ImageDesigner:         60 * time.Second,
	VideoProducer:         120 * time.Second,
	DataAnalyst:           50 * time.Second,
	AnalyticsReporter:     30 * time.Second,
	QuickResponder:        5 * time.Second,
	CustomerSupport:       15 * time.Second,
	Copywriter:            25 * time.Second,
	Responder:             10 * time.Second,
	SalesAgent:            20 * time.Second,
	ProductCatalog:        10 * time.Second,
	ServiceBooking:        15 * time.Second,
}

// All returns every routable agent name in a stable order
func All() []Name {
	return []Name{
		Scheduler,
		MultichannelScheduler,
		Strategist,
		TrendResearcher,
		ContentCreator,
		ImageDesigner,
		VideoProducer,
		DataAnalyst,
		AnalyticsReporter,
		QuickResponder,
		CustomerSupport,
		Copywriter,
		Responder,
		SalesAgent,
		ProductCatalog,
		ServiceBooking,
	}
}

// Valid reports whether n belongs to the closed set
func (n Name) Valid() bool {
	_, ok := baseProcessingTimes[n]
	return ok
}

// BaseProcessingTime returns the nominal processing time of the agent, zero if unknown
func (n Name) BaseProcessingTime() time.Duration {
	return baseProcessingTimes[n]
}

// Parse converts a string to a Name, rejecting names outside the closed set
func Parse(s string) (Name, error) {
	n := Name(s)
	if !n.Valid() {
		return "", &UnknownAgentError{Name: s}
	}
	return n, nil
}
