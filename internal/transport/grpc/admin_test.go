package grpcx

import (
	"context"
	"net"
	"testing"

	"github.com/cwrk-planet/session-service/internal/domain"
	"github.com/cwrk-planet/session-service/internal/security"
	"github.com/cwrk-planet/session-service/internal/service"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type fakeAdmin struct {
	cancelled []string
}

func (f *fakeAdmin) Stats() service.Stats {
	return service.Stats{ActiveSessions: 5, ActiveRooms: 2, ScheduledTimeouts: 2, ConfirmationListeners: 1}
}

func (f *fakeAdmin) Room(id string) service.RoomStatus {
	if id == "R1" {
		return service.RoomStatus{RoomID: id, Sessions: 3, TimeoutPending: true}
	}
	return service.RoomStatus{RoomID: id}
}

func (f *fakeAdmin) CancelTimeout(id string) bool {
	f.cancelled = append(f.cancelled, id)
	return id == "R1"
}

type fakeValidator struct{}

func (fakeValidator) Validate(token string) (domain.Principal, error) {
	switch token {
	case "admin":
		return domain.Principal{ParticipantID: 1, Role: domain.RoleAdmin}, nil
	case "client":
		return domain.Principal{ParticipantID: 2, Role: domain.RoleClient}, nil
	case "old":
		return domain.Principal{}, security.ErrTokenExpired
	default:
		return domain.Principal{}, security.ErrInvalidToken
	}
}

func dialAdmin(t *testing.T, admin AdminAPI) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := NewServer(fakeValidator{})
	Register(gs, NewAdminServer(admin))
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func withToken(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func method(name string) string { return "/" + adminServiceName + "/" + name }

func TestAdminService_Queries(t *testing.T) {
	conn := dialAdmin(t, &fakeAdmin{})
	ctx := withToken("admin")

	stats := &structpb.Struct{}
	require.NoError(t, conn.Invoke(ctx, method("GetStats"), &emptypb.Empty{}, stats))
	require.EqualValues(t, 5, stats.Fields["activeSessions"].GetNumberValue())
	require.EqualValues(t, 2, stats.Fields["scheduledTimeouts"].GetNumberValue())

	n := &wrapperspb.Int32Value{}
	require.NoError(t, conn.Invoke(ctx, method("ActiveSessionCount"), &emptypb.Empty{}, n))
	require.EqualValues(t, 5, n.GetValue())
	require.NoError(t, conn.Invoke(ctx, method("ActiveRoomCount"), &emptypb.Empty{}, n))
	require.EqualValues(t, 2, n.GetValue())
	require.NoError(t, conn.Invoke(ctx, method("RoomSessionCount"), wrapperspb.String("R1"), n))
	require.EqualValues(t, 3, n.GetValue())

	b := &wrapperspb.BoolValue{}
	require.NoError(t, conn.Invoke(ctx, method("HasScheduledTimeout"), wrapperspb.String("R1"), b))
	require.True(t, b.GetValue())
	require.NoError(t, conn.Invoke(ctx, method("HasScheduledTimeout"), wrapperspb.String("R2"), b))
	require.False(t, b.GetValue())

	err := conn.Invoke(ctx, method("RoomSessionCount"), wrapperspb.String(""), n)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestAdminService_Cancel(t *testing.T) {
	admin := &fakeAdmin{}
	conn := dialAdmin(t, admin)

	b := &wrapperspb.BoolValue{}
	require.NoError(t, conn.Invoke(withToken("admin"), method("CancelRoomTimeout"), wrapperspb.String("R1"), b))
	require.True(t, b.GetValue())
	require.NoError(t, conn.Invoke(withToken("admin"), method("CancelRoomTimeout"), wrapperspb.String("R9"), b))
	require.False(t, b.GetValue())
	require.Equal(t, []string{"R1", "R9"}, admin.cancelled)
}

func TestAdminService_Auth(t *testing.T) {
	conn := dialAdmin(t, &fakeAdmin{})
	n := &wrapperspb.Int32Value{}

	err := conn.Invoke(context.Background(), method("ActiveSessionCount"), &emptypb.Empty{}, n)
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	err = conn.Invoke(withToken("old"), method("ActiveSessionCount"), &emptypb.Empty{}, n)
	require.Equal(t, codes.Unauthenticated, status.Code(err))
	require.Contains(t, status.Convert(err).Message(), "expired")

	err = conn.Invoke(withToken("client"), method("ActiveSessionCount"), &emptypb.Empty{}, n)
	require.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestHealth_NoAuthRequired(t *testing.T) {
	conn := dialAdmin(t, &fakeAdmin{})

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: adminServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestUnaryServerInterceptor_RecoversPanic(t *testing.T) {
	ic := UnaryServerInterceptor()
	_, err := ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/Boom"},
		func(ctx context.Context, req any) (any, error) { panic("boom") })
	require.Equal(t, codes.Internal, status.Code(err))
}

func TestTokenFromMD(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "bearer abc"))
	require.Equal(t, "abc", tokenFromMD(ctx))

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Basic abc"))
	require.Empty(t, tokenFromMD(ctx))
	require.Empty(t, tokenFromMD(context.Background()))
}
