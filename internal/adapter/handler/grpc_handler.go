package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/rl1809/railway-booking/internal/core/domain"
)

const (
	// JSONCodecName is the gRPC content-subtype clients must request.
	JSONCodecName = "json"

	reservationServiceName = "railway.v1.ReservationService"
	reserveSeatMethod      = "/" + reservationServiceName + "/ReserveSeat"
	listBookingsMethod     = "/" + reservationServiceName + "/ListBookings"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return JSONCodecName }

type ReserveSeatRequest struct {
	UserID  int64 `json:"user_id"`
	TrainID int64 `json:"train_id"`
}

type ReserveSeatResponse struct {
	Status    string `json:"status"`
	SeatNo    int    `json:"seat_no,omitempty"`
	BookingID int64  `json:"booking_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

type ListBookingsRequest struct {
	UserID int64 `json:"user_id"`
}

type BookingMessage struct {
	ID            int64  `json:"id"`
	TrainID       int64  `json:"train_id"`
	SeatNo        int    `json:"seat_no"`
	Status        string `json:"status"`
	CreatedAtUnix int64  `json:"created_at_unix"`
}

type ListBookingsResponse struct {
	Bookings []BookingMessage `json:"bookings"`
}

type ReservationServer interface {
	ReserveSeat(context.Context, *ReserveSeatRequest) (*ReserveSeatResponse, error)
	ListBookings(context.Context, *ListBookingsRequest) (*ListBookingsResponse, error)
}

var ReservationServiceDesc = grpc.ServiceDesc{
	ServiceName: reservationServiceName,
	HandlerType: (*ReservationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ReserveSeat", Handler: reserveSeatHandler},
		{MethodName: "ListBookings", Handler: listBookingsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "railway/v1/reservation.proto",
}

func RegisterReservationServer(s grpc.ServiceRegistrar, srv ReservationServer) {
	s.RegisterService(&ReservationServiceDesc, srv)
}

func reserveSeatHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ReserveSeatRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReservationServer).ReserveSeat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: reserveSeatMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReservationServer).ReserveSeat(ctx, req.(*ReserveSeatRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listBookingsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListBookingsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReservationServer).ListBookings(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listBookingsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReservationServer).ListBookings(ctx, req.(*ListBookingsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

type GRPCHandler struct {
	reservations Reserver
	bookings     BookingLister
}

func NewGRPCHandler(reservations Reserver, bookings BookingLister) *GRPCHandler {
	return &GRPCHandler{reservations: reservations, bookings: bookings}
}

// ReserveSeat reports business outcomes in the response; only malformed
// requests become gRPC errors.
func (h *GRPCHandler) ReserveSeat(ctx context.Context, req *ReserveSeatRequest) (*ReserveSeatResponse, error) {
	if req.UserID <= 0 || req.TrainID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "user_id and train_id are required")
	}

	outcome := h.reservations.ReserveSeat(ctx, req.UserID, req.TrainID)
	return &ReserveSeatResponse{
		Status:    string(outcome.Status),
		SeatNo:    outcome.SeatNo,
		BookingID: outcome.BookingID,
		Detail:    outcome.Detail(),
	}, nil
}

func (h *GRPCHandler) ListBookings(ctx context.Context, req *ListBookingsRequest) (*ListBookingsResponse, error) {
	if req.UserID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}

	bookings, err := h.bookings.ListBookings(ctx, req.UserID)
	if err != nil {
		if domain.IsValidation(err) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Unavailable, "list bookings failed")
	}

	out := &ListBookingsResponse{Bookings: make([]BookingMessage, 0, len(bookings))}
	for _, b := range bookings {
		out.Bookings = append(out.Bookings, BookingMessage{
			ID:            b.ID,
			TrainID:       b.TrainID,
			SeatNo:        b.SeatNo,
			Status:        string(b.Status),
			CreatedAtUnix: b.CreatedAt.Unix(),
		})
	}
	return out, nil
}

// UnaryLogger logs every unary call with its status code and latency.
func UnaryLogger(logger log.Logger) grpc.UnaryServerInterceptor {
	helper := log.NewHelper(log.With(logger, "module", "grpc"))
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		helper.Infow(
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"latency_ms", float64(time.Since(start).Microseconds())/1000.0,
		)
		return resp, err
	}
}

// ReservationClient calls ReservationService over a connection using the
// JSON codec.
type ReservationClient struct {
	cc grpc.ClientConnInterface
}

func NewReservationClient(cc grpc.ClientConnInterface) *ReservationClient {
	return &ReservationClient{cc: cc}
}

func (c *ReservationClient) ReserveSeat(ctx context.Context, in *ReserveSeatRequest, opts ...grpc.CallOption) (*ReserveSeatResponse, error) {
	out := new(ReserveSeatResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	if err := c.cc.Invoke(ctx, reserveSeatMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ReservationClient) ListBookings(ctx context.Context, in *ListBookingsRequest, opts ...grpc.CallOption) (*ListBookingsResponse, error) {
	out := new(ListBookingsResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	if err := c.cc.Invoke(ctx, listBookingsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
