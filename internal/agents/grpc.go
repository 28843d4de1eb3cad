package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the gRPC service every agent exposes
	ServiceName = "agentrouter.v1.AgentService"
	// InvokeMethod is the full method name of the unary invocation RPC
	InvokeMethod = "/" + ServiceName + "/Invoke"
)

// GRPCInvoker invokes agents over gRPC. Connections are created lazily, one per address.
type GRPCInvoker struct {
	registry *Registry
	logger   *slog.Logger
	dialOpts []grpc.DialOption

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// NewGRPCInvoker creates an invoker for the agents in registry.
// Without dial options the connections are plaintext.
func NewGRPCInvoker(registry *Registry, logger *slog.Logger, opts ...grpc.DialOption) *GRPCInvoker {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	return &GRPCInvoker{
		registry: registry,
		logger:   logger,
		dialOpts: opts,
		conns:    make(map[string]*grpc.ClientConn),
	}
}

// Invoke sends req to the named agent and decodes its response.
// An error payload in the response is returned as *BusinessError.
func (g *GRPCInvoker) Invoke(ctx context.Context, name Name, req Request) (Response, error) {
	handle, err := g.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	if handle.Address == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoEndpoint, name)
	}

	conn, err := g.conn(handle.Address)
	if err != nil {
		return nil, err
	}

	in, err := encodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("encode request for %s: %w", name, err)
	}

	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, InvokeMethod, in, out); err != nil {
		return nil, err
	}

	resp := Response(out.AsMap())
	if msg, failed := businessFailure(resp); failed {
		return nil, &BusinessError{Agent: name, Message: msg}
	}

	g.logger.DebugContext(ctx, "Agent invocation succeeded",
		"agent", name,
		"address", handle.Address,
		"session_id", req.SessionID,
	)
	return resp, nil
}

// Close releases every open connection
func (g *GRPCInvoker) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var errs []error
	for addr, conn := range g.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", addr, err))
		}
		delete(g.conns, addr)
	}
	return errors.Join(errs...)
}

func (g *GRPCInvoker) conn(addr string) (*grpc.ClientConn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if conn, ok := g.conns[addr]; ok {
		return conn, nil
	}

	conn, err := grpc.NewClient(addr, g.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", addr, err)
	}
	g.conns[addr] = conn
	return conn, nil
}

func encodeRequest(req Request) (*structpb.Struct, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	in := new(structpb.Struct)
	if err := protojson.Unmarshal(data, in); err != nil {
		return nil, err
	}
	return in, nil
}

// DecodeRequest converts the wire message back into a Request
func DecodeRequest(in *structpb.Struct) (Request, error) {
	var req Request
	data, err := protojson.Marshal(in)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, err
	}
	return req, nil
}

func businessFailure(resp Response) (string, bool) {
	if msg, ok := resp["error"].(string); ok && msg != "" {
		return msg, true
	}
	if st, ok := resp["status"].(string); ok && st == "error" {
		return "agent reported an error", true
	}
	return "", false
}

// AgentServiceServer is the server side of the agent RPC
type AgentServiceServer interface {
	Invoke(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// AgentServiceDesc describes the agent RPC for grpc.Server registration
var AgentServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AgentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Invoke",
			Handler:    invokeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agentrouter/v1/agent.proto",
}

// RegisterAgentServiceServer registers srv on s
func RegisterAgentServiceServer(s grpc.ServiceRegistrar, srv AgentServiceServer) {
	s.RegisterService(&AgentServiceDesc, srv)
}

func invokeHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentServiceServer).Invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: InvokeMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AgentServiceServer).Invoke(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
