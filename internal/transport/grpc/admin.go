package grpcx

import (
	"context"

	"github.com/cwrk-planet/session-service/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const adminServiceName = "session.v1.AdminService"

type AdminAPI interface {
	Stats() service.Stats
	Room(roomID string) service.RoomStatus
	CancelTimeout(roomID string) bool
}

// AdminServer exposes the operator view over gRPC using protobuf
// well-known types, so no generated stubs are needed.
type AdminServer struct {
	admin AdminAPI
}

func NewAdminServer(admin AdminAPI) *AdminServer {
	return &AdminServer{admin: admin}
}

func (s *AdminServer) GetStats(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st := s.admin.Stats()
	return structpb.NewStruct(map[string]any{
		"activeSessions":        st.ActiveSessions,
		"activeRooms":           st.ActiveRooms,
		"scheduledTimeouts":     st.ScheduledTimeouts,
		"confirmationListeners": st.ConfirmationListeners,
	})
}

func (s *AdminServer) ActiveSessionCount(_ context.Context, _ *emptypb.Empty) (*wrapperspb.Int32Value, error) {
	return wrapperspb.Int32(int32(s.admin.Stats().ActiveSessions)), nil
}

func (s *AdminServer) ActiveRoomCount(_ context.Context, _ *emptypb.Empty) (*wrapperspb.Int32Value, error) {
	return wrapperspb.Int32(int32(s.admin.Stats().ActiveRooms)), nil
}

func (s *AdminServer) RoomSessionCount(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.Int32Value, error) {
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "room id is required")
	}
	return wrapperspb.Int32(int32(s.admin.Room(in.GetValue()).Sessions)), nil
}

func (s *AdminServer) HasScheduledTimeout(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "room id is required")
	}
	return wrapperspb.Bool(s.admin.Room(in.GetValue()).TimeoutPending), nil
}

func (s *AdminServer) CancelRoomTimeout(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "room id is required")
	}
	return wrapperspb.Bool(s.admin.CancelTimeout(in.GetValue())), nil
}

type adminService interface {
	GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ActiveSessionCount(context.Context, *emptypb.Empty) (*wrapperspb.Int32Value, error)
	ActiveRoomCount(context.Context, *emptypb.Empty) (*wrapperspb.Int32Value, error)
	RoomSessionCount(context.Context, *wrapperspb.StringValue) (*wrapperspb.Int32Value, error)
	HasScheduledTimeout(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	CancelRoomTimeout(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
}

func unary[Req, Resp any](name string, call func(adminService, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(adminService), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + adminServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(adminService), ctx, req.(*Req))
			})
		},
	}
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: adminServiceName,
	HandlerType: (*adminService)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetStats", adminService.GetStats),
		unary("ActiveSessionCount", adminService.ActiveSessionCount),
		unary("ActiveRoomCount", adminService.ActiveRoomCount),
		unary("RoomSessionCount", adminService.RoomSessionCount),
		unary("HasScheduledTimeout", adminService.HasScheduledTimeout),
		unary("CancelRoomTimeout", adminService.CancelRoomTimeout),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "session/v1/admin.proto",
}

// Register installs the admin service and a health service reporting
// SERVING. The returned health server is flipped to NOT_SERVING on shutdown.
func Register(gs *grpc.Server, s *AdminServer) *health.Server {
	gs.RegisterService(&adminServiceDesc, s)

	hs := health.NewServer()
	hs.SetServingStatus(adminServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return hs
}

// NewServer builds a grpc.Server with the logging, recovery and admin auth
// interceptors installed.
func NewServer(v Validator) *grpc.Server {
	return grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(), AdminAuthInterceptor(v)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)
}
