// Package chat declares the muzz.chat.v1.ChatService contract: matches,
// conversations and the notification inbox.
package chat

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/muzz-match/internal/proto/wire"
)

const ServiceName = "muzz.chat.v1.ChatService"

type Match struct {
	MatchID           string `json:"match_id"`
	OtherUserID       string `json:"other_user_id"`
	OtherOnline       bool   `json:"other_online"`
	LastSeq           int64  `json:"last_seq"`
	LastMessageAtUnix int64  `json:"last_message_at_unix"`
	CreatedAtUnix     int64  `json:"created_at_unix"`
}

type ListMatchesRequest struct {
	UserID string `json:"user_id" validate:"required,id"`
}

type ListMatchesResponse struct {
	Matches []Match `json:"matches"`
}

type UnmatchRequest struct {
	MatchID string `json:"match_id" validate:"required"`
	UserID  string `json:"user_id" validate:"required,id"`
}

type UnmatchResponse struct{}

type Message struct {
	ID            string `json:"id"`
	MatchID       string `json:"match_id"`
	Seq           int64  `json:"seq"`
	SenderID      string `json:"sender_id"`
	Content       string `json:"content"`
	CreatedAtUnix int64  `json:"created_at_unix"`
	ReadAtUnix    int64  `json:"read_at_unix,omitempty"`
}

type SendMessageRequest struct {
	MatchID  string `json:"match_id" validate:"required"`
	SenderID string `json:"sender_id" validate:"required,id"`
	Content  string `json:"content" validate:"required,max=4096"`
}

type SendMessageResponse struct {
	Message Message `json:"message"`
}

type HistoryRequest struct {
	MatchID  string `json:"match_id" validate:"required"`
	ViewerID string `json:"viewer_id" validate:"required,id"`
	AfterSeq int64  `json:"after_seq" validate:"min=0"`
	Limit    int    `json:"limit" validate:"min=0,max=500"`
}

type HistoryResponse struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

// MarkReadRequest marks explicit ids, or, with MatchID set and no ids, the
// whole conversation up to UpToSeq (0 for everything).
type MarkReadRequest struct {
	ReaderID   string   `json:"reader_id" validate:"required,id"`
	MessageIDs []string `json:"message_ids" validate:"required_without=MatchID,max=500"`
	MatchID    string   `json:"match_id,omitempty"`
	UpToSeq    int64    `json:"up_to_seq,omitempty" validate:"min=0"`
}

type MarkReadResponse struct {
	Read []Message `json:"read"`
}

type SubscribeMessagesRequest struct {
	MatchID  string `json:"match_id" validate:"required"`
	ViewerID string `json:"viewer_id" validate:"required,id"`
	AfterSeq int64  `json:"after_seq" validate:"min=0"`
}

// ChatEvent is one item of the live conversation stream.
type ChatEvent struct {
	Type    string  `json:"type"` // message | read
	Message Message `json:"message"`
}

type Notification struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	PayloadRef    string `json:"payload_ref"`
	Read          bool   `json:"read"`
	CreatedAtUnix int64  `json:"created_at_unix"`
}

type ListNotificationsRequest struct {
	RecipientID     string  `json:"recipient_id" validate:"required,id"`
	PaginationToken *string `json:"pagination_token,omitempty"`
	Limit           int     `json:"limit" validate:"min=0,max=100"`
}

type ListNotificationsResponse struct {
	Notifications       []Notification `json:"notifications"`
	Unread              int64          `json:"unread"`
	NextPaginationToken *string        `json:"next_pagination_token,omitempty"`
}

type MarkNotificationReadRequest struct {
	RecipientID    string `json:"recipient_id" validate:"required,id"`
	NotificationID string `json:"notification_id" validate:"required"`
}

type MarkNotificationReadResponse struct{}

type MarkAllNotificationsReadRequest struct {
	RecipientID string `json:"recipient_id" validate:"required,id"`
}

type MarkAllNotificationsReadResponse struct {
	Changed int64 `json:"changed"`
}

type SubscribeNotificationsRequest struct {
	RecipientID string `json:"recipient_id" validate:"required,id"`
}

// ChatServiceServer is the server API for ChatService.
type ChatServiceServer interface {
	ListMatches(context.Context, *ListMatchesRequest) (*ListMatchesResponse, error)
	Unmatch(context.Context, *UnmatchRequest) (*UnmatchResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
	History(context.Context, *HistoryRequest) (*HistoryResponse, error)
	MarkRead(context.Context, *MarkReadRequest) (*MarkReadResponse, error)
	SubscribeMessages(*SubscribeMessagesRequest, *wire.ServerStream[ChatEvent]) error
	ListNotifications(context.Context, *ListNotificationsRequest) (*ListNotificationsResponse, error)
	MarkNotificationRead(context.Context, *MarkNotificationReadRequest) (*MarkNotificationReadResponse, error)
	MarkAllNotificationsRead(context.Context, *MarkAllNotificationsReadRequest) (*MarkAllNotificationsReadResponse, error)
	SubscribeNotifications(*SubscribeNotificationsRequest, *wire.ServerStream[Notification]) error
}

// UnimplementedChatServiceServer can be embedded for forward compatibility.
type UnimplementedChatServiceServer struct{}

func (UnimplementedChatServiceServer) ListMatches(context.Context, *ListMatchesRequest) (*ListMatchesResponse, error) {
	return nil, wire.Unimplemented("ListMatches")
}
func (UnimplementedChatServiceServer) Unmatch(context.Context, *UnmatchRequest) (*UnmatchResponse, error) {
	return nil, wire.Unimplemented("Unmatch")
}
func (UnimplementedChatServiceServer) SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error) {
	return nil, wire.Unimplemented("SendMessage")
}
func (UnimplementedChatServiceServer) History(context.Context, *HistoryRequest) (*HistoryResponse, error) {
	return nil, wire.Unimplemented("History")
}
func (UnimplementedChatServiceServer) MarkRead(context.Context, *MarkReadRequest) (*MarkReadResponse, error) {
	return nil, wire.Unimplemented("MarkRead")
}
func (UnimplementedChatServiceServer) SubscribeMessages(*SubscribeMessagesRequest, *wire.ServerStream[ChatEvent]) error {
	return wire.Unimplemented("SubscribeMessages")
}
func (UnimplementedChatServiceServer) ListNotifications(context.Context, *ListNotificationsRequest) (*ListNotificationsResponse, error) {
	return nil, wire.Unimplemented("ListNotifications")
}
func (UnimplementedChatServiceServer) MarkNotificationRead(context.Context, *MarkNotificationReadRequest) (*MarkNotificationReadResponse, error) {
	return nil, wire.Unimplemented("MarkNotificationRead")
}
func (UnimplementedChatServiceServer) MarkAllNotificationsRead(context.Context, *MarkAllNotificationsReadRequest) (*MarkAllNotificationsReadResponse, error) {
	return nil, wire.Unimplemented("MarkAllNotificationsRead")
}
func (UnimplementedChatServiceServer) SubscribeNotifications(*SubscribeNotificationsRequest, *wire.ServerStream[Notification]) error {
	return wire.Unimplemented("SubscribeNotifications")
}

func srv(s any) ChatServiceServer { return s.(ChatServiceServer) }

var (
	subscribeMessagesDesc = wire.ServerStreaming("SubscribeMessages", func(s any, r *SubscribeMessagesRequest, stream *wire.ServerStream[ChatEvent]) error {
		return srv(s).SubscribeMessages(r, stream)
	})
	subscribeNotificationsDesc = wire.ServerStreaming("SubscribeNotifications", func(s any, r *SubscribeNotificationsRequest, stream *wire.ServerStream[Notification]) error {
		return srv(s).SubscribeNotifications(r, stream)
	})
)

// ChatService_ServiceDesc is the grpc.ServiceDesc for ChatService.
var ChatService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		wire.Unary(ServiceName, "ListMatches", func(s any, ctx context.Context, r *ListMatchesRequest) (*ListMatchesResponse, error) {
			return srv(s).ListMatches(ctx, r)
		}),
		wire.Unary(ServiceName, "Unmatch", func(s any, ctx context.Context, r *UnmatchRequest) (*UnmatchResponse, error) {
			return srv(s).Unmatch(ctx, r)
		}),
		wire.Unary(ServiceName, "SendMessage", func(s any, ctx context.Context, r *SendMessageRequest) (*SendMessageResponse, error) {
			return srv(s).SendMessage(ctx, r)
		}),
		wire.Unary(ServiceName, "History", func(s any, ctx context.Context, r *HistoryRequest) (*HistoryResponse, error) {
			return srv(s).History(ctx, r)
		}),
		wire.Unary(ServiceName, "MarkRead", func(s any, ctx context.Context, r *MarkReadRequest) (*MarkReadResponse, error) {
			return srv(s).MarkRead(ctx, r)
		}),
		wire.Unary(ServiceName, "ListNotifications", func(s any, ctx context.Context, r *ListNotificationsRequest) (*ListNotificationsResponse, error) {
			return srv(s).ListNotifications(ctx, r)
		}),
		wire.Unary(ServiceName, "MarkNotificationRead", func(s any, ctx context.Context, r *MarkNotificationReadRequest) (*MarkNotificationReadResponse, error) {
			return srv(s).MarkNotificationRead(ctx, r)
		}),
		wire.Unary(ServiceName, "MarkAllNotificationsRead", func(s any, ctx context.Context, r *MarkAllNotificationsReadRequest) (*MarkAllNotificationsReadResponse, error) {
			return srv(s).MarkAllNotificationsRead(ctx, r)
		}),
	},
	Streams:  []grpc.StreamDesc{subscribeMessagesDesc, subscribeNotificationsDesc},
	Metadata: "chat.proto",
}

// RegisterChatServiceServer attaches srv to s.
func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatService_ServiceDesc, srv)
}

// ChatServiceClient is the client API for ChatService.
type ChatServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewChatServiceClient(cc grpc.ClientConnInterface) *ChatServiceClient {
	return &ChatServiceClient{cc: cc}
}

func method(name string) string { return "/" + ServiceName + "/" + name }

func (c *ChatServiceClient) ListMatches(ctx context.Context, in *ListMatchesRequest, opts ...grpc.CallOption) (*ListMatchesResponse, error) {
	return wire.Invoke[ListMatchesRequest, ListMatchesResponse](ctx, c.cc, method("ListMatches"), in, opts...)
}

func (c *ChatServiceClient) Unmatch(ctx context.Context, in *UnmatchRequest, opts ...grpc.CallOption) (*UnmatchResponse, error) {
	return wire.Invoke[UnmatchRequest, UnmatchResponse](ctx, c.cc, method("Unmatch"), in, opts...)
}

func (c *ChatServiceClient) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error) {
	return wire.Invoke[SendMessageRequest, SendMessageResponse](ctx, c.cc, method("SendMessage"), in, opts...)
}

func (c *ChatServiceClient) History(ctx context.Context, in *HistoryRequest, opts ...grpc.CallOption) (*HistoryResponse, error) {
	return wire.Invoke[HistoryRequest, HistoryResponse](ctx, c.cc, method("History"), in, opts...)
}

func (c *ChatServiceClient) MarkRead(ctx context.Context, in *MarkReadRequest, opts ...grpc.CallOption) (*MarkReadResponse, error) {
	return wire.Invoke[MarkReadRequest, MarkReadResponse](ctx, c.cc, method("MarkRead"), in, opts...)
}

func (c *ChatServiceClient) SubscribeMessages(ctx context.Context, in *SubscribeMessagesRequest, opts ...grpc.CallOption) (*wire.ClientStream[ChatEvent], error) {
	return wire.OpenStream[SubscribeMessagesRequest, ChatEvent](ctx, c.cc, &subscribeMessagesDesc, method("SubscribeMessages"), in, opts...)
}

func (c *ChatServiceClient) ListNotifications(ctx context.Context, in *ListNotificationsRequest, opts ...grpc.CallOption) (*ListNotificationsResponse, error) {
	return wire.Invoke[ListNotificationsRequest, ListNotificationsResponse](ctx, c.cc, method("ListNotifications"), in, opts...)
}

func (c *ChatServiceClient) MarkNotificationRead(ctx context.Context, in *MarkNotificationReadRequest, opts ...grpc.CallOption) (*MarkNotificationReadResponse, error) {
	return wire.Invoke[MarkNotificationReadRequest, MarkNotificationReadResponse](ctx, c.cc, method("MarkNotificationRead"), in, opts...)
}

func (c *ChatServiceClient) MarkAllNotificationsRead(ctx context.Context, in *MarkAllNotificationsReadRequest, opts ...grpc.CallOption) (*MarkAllNotificationsReadResponse, error) {
	return wire.Invoke[MarkAllNotificationsReadRequest, MarkAllNotificationsReadResponse](ctx, c.cc, method("MarkAllNotificationsRead"), in, opts...)
}

func (c *ChatServiceClient) SubscribeNotifications(ctx context.Context, in *SubscribeNotificationsRequest, opts ...grpc.CallOption) (*wire.ClientStream[Notification], error) {
	return wire.OpenStream[SubscribeNotificationsRequest, Notification](ctx, c.cc, &subscribeNotificationsDesc, method("SubscribeNotifications"), in, opts...)
}
