package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// templates hold the canned reply of each agent served by TemplateServer
var templates = map[Name]string{
	Scheduler:             "Scheduled the requested publications: %s",
	MultichannelScheduler: "Aligned the publishing calendar across channels (%s)",
	Strategist:            "Drafted a content strategy for: %s",
	TrendResearcher:       "Collected current trends relevant to: %s",
	ContentCreator:        "Produced channel-ready content for: %s",
	ImageDesigner:         "Designed an image concept for: %s",
	VideoProducer:         "Outlined a short video script for: %s",
	DataAnalyst:           "Analysed the available metrics for: %s",
	AnalyticsReporter:     "Prepared a performance report for: %s",
	QuickResponder:        "Acknowledged the urgent request: %s",
	CustomerSupport:       "Opened a support case for: %s",
	Copywriter:            "Wrote a post for: %s",
	Responder:             "Here is a general answer to: %s",
	SalesAgent:            "Prepared a sales proposal for: %s",
	ProductCatalog:        "Looked up the catalog for: %s",
	ServiceBooking:        "Checked service availability for: %s",
}

// TemplateServer is a development AgentServiceServer that answers every agent in
// the closed set with a canned, deterministic reply
type TemplateServer struct {
	logger *slog.Logger
}

// NewTemplateServer creates a TemplateServer
func NewTemplateServer(logger *slog.Logger) *TemplateServer {
	return &TemplateServer{logger: logger}
}

// Invoke implements AgentServiceServer
func (s *TemplateServer) Invoke(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := DecodeRequest(in)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}

	tmpl, ok := templates[req.Agent]
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unknown agent: %q", req.Agent)
	}

	if strings.TrimSpace(req.Message) == "" {
		return structpb.NewStruct(map[string]any{
			"agent": string(req.Agent),
			"error": "empty message",
		})
	}

	s.logger.InfoContext(ctx, "Handling agent request",
		"agent", req.Agent,
		"session_id", req.SessionID,
		"task_id", req.TaskID,
		"role", req.Role,
	)

	return structpb.NewStruct(map[string]any{
		"agent":  string(req.Agent),
		"role":   req.Role,
		"status": "ok",
		"text":   fmt.Sprintf(tmpl, req.Message),
	})
}
