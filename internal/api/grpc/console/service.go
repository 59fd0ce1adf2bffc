package console

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "secpi.console.v1.Console"
	// CallMethod is the full method name of the unary Call RPC.
	CallMethod = "/" + ServiceName + "/Call"
	// RequestIDHeader is the metadata key carrying the caller's request id.
	RequestIDHeader = "x-request-id"
)

// Request and envelope field names.
const (
	FieldPath    = "path"
	FieldPayload = "payload"
	FieldStatus  = "status"
	// FieldData carries the reply data as JSON text, keeping object key order.
	FieldData    = "data"
	FieldMessage = "message"
)

// Reply is the envelope a Service produces for one call.
type Reply struct {
	Status  string
	Data    any
	Message string
}

// Service abstracts the remote API operations the transport layer depends on.
type Service interface {
	Dispatch(ctx context.Context, path string, payload map[string]any) Reply
}

// callServer is the handler type registered with grpc.
type callServer interface {
	Call(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// Server implements the Console gRPC API on top of a Service.
type Server struct {
	// service provides the remote API behaviour.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// Register attaches the server to a grpc.Server.
func Register(registrar grpc.ServiceRegistrar, srv *Server) {
	registrar.RegisterService(&serviceDesc, srv)
}

// Call dispatches one envelope request.
func (s *Server) Call(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	fields := req.GetFields()

	path := fields[FieldPath].GetStringValue()
	if path == "" {
		return nil, status.Error(codes.InvalidArgument, "path is required")
	}

	var payload map[string]any
	if p := fields[FieldPayload].GetStructValue(); p != nil {
		payload = p.AsMap()
	}

	reply := s.service.Dispatch(ctx, path, payload)

	data, err := json.Marshal(reply.Data)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply data: %v", err)
	}

	resp, err := structpb.NewStruct(map[string]any{
		FieldStatus:  reply.Status,
		FieldData:    string(data),
		FieldMessage: reply.Message,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}

	return resp, nil
}

// serviceDesc describes the Console service to grpc.
//
//nolint:gochecknoglobals // Mirrors what protoc-gen-go-grpc would generate.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*callServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Call",
			Handler:    callHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "secpi/console/v1/console.proto",
}

// callHandler decodes the request and runs it through the interceptor chain.
func callHandler(
	srv any,
	ctx context.Context, //nolint:revive // Signature is dictated by grpc.MethodHandler.
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(callServer).Call(ctx, in) //nolint:forcetypeassert // Guaranteed by HandlerType.
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: CallMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(callServer).Call(ctx, req.(*structpb.Struct)) //nolint:forcetypeassert // Decoded above.
	}

	return interceptor(ctx, in, info, handler)
}
