// Package explore declares the muzz.explore.v1.ExploreService contract:
// swiping, rewinding, liked-you lists and presence.
package explore

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/muzz-match/internal/proto/wire"
)

const ServiceName = "muzz.explore.v1.ExploreService"

type OpenSessionRequest struct {
	UserID  string `json:"user_id" validate:"required,id"`
	Premium bool   `json:"premium"`
}

type OpenSessionResponse struct {
	SessionID        string `json:"session_id"`
	RewindsRemaining int    `json:"rewinds_remaining"`
}

type PutDecisionRequest struct {
	SessionID       string `json:"session_id" validate:"required"`
	RecipientUserID string `json:"recipient_user_id" validate:"required,id"`
	Kind            string `json:"kind" validate:"required,oneof=pass like super_like"`
}

type PutDecisionResponse struct {
	DecisionID       string `json:"decision_id"`
	MutualLikes      bool   `json:"mutual_likes"`
	MatchID          string `json:"match_id,omitempty"`
	MatchCreated     bool   `json:"match_created"`
	RewindsRemaining int    `json:"rewinds_remaining"`
}

type RewindRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

type RewindResponse struct {
	RestoredUserID   string `json:"restored_user_id"`
	Kind             string `json:"kind"`
	DeactivatedMatch string `json:"deactivated_match_id,omitempty"`
	RewindsRemaining int    `json:"rewinds_remaining"`
}

type ListLikedYouRequest struct {
	RecipientUserID string  `json:"recipient_user_id" validate:"required,id"`
	PaginationToken *string `json:"pagination_token,omitempty"`
	Limit           int     `json:"limit" validate:"min=0,max=100"`
}

type Liker struct {
	ActorID       string `json:"actor_id"`
	Kind          string `json:"kind"`
	UnixTimestamp uint64 `json:"unix_timestamp"`
}

type ListLikedYouResponse struct {
	Likers              []Liker `json:"likers"`
	NextPaginationToken *string `json:"next_pagination_token,omitempty"`
}

type CountLikedYouRequest struct {
	RecipientUserID string `json:"recipient_user_id" validate:"required,id"`
}

type CountLikedYouResponse struct {
	Count uint64 `json:"count"`
}

type TouchRequest struct {
	UserID string `json:"user_id" validate:"required,id"`
}

type TouchResponse struct{}

type IsOnlineRequest struct {
	UserID string `json:"user_id" validate:"required,id"`
}

type IsOnlineResponse struct {
	Online         bool  `json:"online"`
	LastActiveUnix int64 `json:"last_active_unix,omitempty"`
}

// ExploreServiceServer is the server API for ExploreService.
type ExploreServiceServer interface {
	OpenSession(context.Context, *OpenSessionRequest) (*OpenSessionResponse, error)
	PutDecision(context.Context, *PutDecisionRequest) (*PutDecisionResponse, error)
	Rewind(context.Context, *RewindRequest) (*RewindResponse, error)
	ListLikedYou(context.Context, *ListLikedYouRequest) (*ListLikedYouResponse, error)
	ListNewLikedYou(context.Context, *ListLikedYouRequest) (*ListLikedYouResponse, error)
	CountLikedYou(context.Context, *CountLikedYouRequest) (*CountLikedYouResponse, error)
	Touch(context.Context, *TouchRequest) (*TouchResponse, error)
	IsOnline(context.Context, *IsOnlineRequest) (*IsOnlineResponse, error)
}

// UnimplementedExploreServiceServer can be embedded for forward compatibility.
type UnimplementedExploreServiceServer struct{}

func (UnimplementedExploreServiceServer) OpenSession(context.Context, *OpenSessionRequest) (*OpenSessionResponse, error) {
	return nil, wire.Unimplemented("OpenSession")
}
func (UnimplementedExploreServiceServer) PutDecision(context.Context, *PutDecisionRequest) (*PutDecisionResponse, error) {
	return nil, wire.Unimplemented("PutDecision")
}
func (UnimplementedExploreServiceServer) Rewind(context.Context, *RewindRequest) (*RewindResponse, error) {
	return nil, wire.Unimplemented("Rewind")
}
func (UnimplementedExploreServiceServer) ListLikedYou(context.Context, *ListLikedYouRequest) (*ListLikedYouResponse, error) {
	return nil, wire.Unimplemented("ListLikedYou")
}
func (UnimplementedExploreServiceServer) ListNewLikedYou(context.Context, *ListLikedYouRequest) (*ListLikedYouResponse, error) {
	return nil, wire.Unimplemented("ListNewLikedYou")
}
func (UnimplementedExploreServiceServer) CountLikedYou(context.Context, *CountLikedYouRequest) (*CountLikedYouResponse, error) {
	return nil, wire.Unimplemented("CountLikedYou")
}
func (UnimplementedExploreServiceServer) Touch(context.Context, *TouchRequest) (*TouchResponse, error) {
	return nil, wire.Unimplemented("Touch")
}
func (UnimplementedExploreServiceServer) IsOnline(context.Context, *IsOnlineRequest) (*IsOnlineResponse, error) {
	return nil, wire.Unimplemented("IsOnline")
}

func srv(s any) ExploreServiceServer { return s.(ExploreServiceServer) }

// ExploreService_ServiceDesc is the grpc.ServiceDesc for ExploreService.
var ExploreService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExploreServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		wire.Unary(ServiceName, "OpenSession", func(s any, ctx context.Context, r *OpenSessionRequest) (*OpenSessionResponse, error) {
			return srv(s).OpenSession(ctx, r)
		}),
		wire.Unary(ServiceName, "PutDecision", func(s any, ctx context.Context, r *PutDecisionRequest) (*PutDecisionResponse, error) {
			return srv(s).PutDecision(ctx, r)
		}),
		wire.Unary(ServiceName, "Rewind", func(s any, ctx context.Context, r *RewindRequest) (*RewindResponse, error) {
			return srv(s).Rewind(ctx, r)
		}),
		wire.Unary(ServiceName, "ListLikedYou", func(s any, ctx context.Context, r *ListLikedYouRequest) (*ListLikedYouResponse, error) {
			return srv(s).ListLikedYou(ctx, r)
		}),
		wire.Unary(ServiceName, "ListNewLikedYou", func(s any, ctx context.Context, r *ListLikedYouRequest) (*ListLikedYouResponse, error) {
			return srv(s).ListNewLikedYou(ctx, r)
		}),
		wire.Unary(ServiceName, "CountLikedYou", func(s any, ctx context.Context, r *CountLikedYouRequest) (*CountLikedYouResponse, error) {
			return srv(s).CountLikedYou(ctx, r)
		}),
		wire.Unary(ServiceName, "Touch", func(s any, ctx context.Context, r *TouchRequest) (*TouchResponse, error) {
			return srv(s).Touch(ctx, r)
		}),
		wire.Unary(ServiceName, "IsOnline", func(s any, ctx context.Context, r *IsOnlineRequest) (*IsOnlineResponse, error) {
			return srv(s).IsOnline(ctx, r)
		}),
	},
	Metadata: "explore.proto",
}

// RegisterExploreServiceServer attaches srv to s.
func RegisterExploreServiceServer(s grpc.ServiceRegistrar, srv ExploreServiceServer) {
	s.RegisterService(&ExploreService_ServiceDesc, srv)
}

// ExploreServiceClient is the client API for ExploreService.
type ExploreServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewExploreServiceClient(cc grpc.ClientConnInterface) *ExploreServiceClient {
	return &ExploreServiceClient{cc: cc}
}

func method(name string) string { return "/" + ServiceName + "/" + name }

func (c *ExploreServiceClient) OpenSession(ctx context.Context, in *OpenSessionRequest, opts ...grpc.CallOption) (*OpenSessionResponse, error) {
	return wire.Invoke[OpenSessionRequest, OpenSessionResponse](ctx, c.cc, method("OpenSession"), in, opts...)
}

func (c *ExploreServiceClient) PutDecision(ctx context.Context, in *PutDecisionRequest, opts ...grpc.CallOption) (*PutDecisionResponse, error) {
	return wire.Invoke[PutDecisionRequest, PutDecisionResponse](ctx, c.cc, method("PutDecision"), in, opts...)
}

func (c *ExploreServiceClient) Rewind(ctx context.Context, in *RewindRequest, opts ...grpc.CallOption) (*RewindResponse, error) {
	return wire.Invoke[RewindRequest, RewindResponse](ctx, c.cc, method("Rewind"), in, opts...)
}

func (c *ExploreServiceClient) ListLikedYou(ctx context.Context, in *ListLikedYouRequest, opts ...grpc.CallOption) (*ListLikedYouResponse, error) {
	return wire.Invoke[ListLikedYouRequest, ListLikedYouResponse](ctx, c.cc, method("ListLikedYou"), in, opts...)
}

func (c *ExploreServiceClient) ListNewLikedYou(ctx context.Context, in *ListLikedYouRequest, opts ...grpc.CallOption) (*ListLikedYouResponse, error) {
	return wire.Invoke[ListLikedYouRequest, ListLikedYouResponse](ctx, c.cc, method("ListNewLikedYou"), in, opts...)
}

func (c *ExploreServiceClient) CountLikedYou(ctx context.Context, in *CountLikedYouRequest, opts ...grpc.CallOption) (*CountLikedYouResponse, error) {
	return wire.Invoke[CountLikedYouRequest, CountLikedYouResponse](ctx, c.cc, method("CountLikedYou"), in, opts...)
}

func (c *ExploreServiceClient) Touch(ctx context.Context, in *TouchRequest, opts ...grpc.CallOption) (*TouchResponse, error) {
	return wire.Invoke[TouchRequest, TouchResponse](ctx, c.cc, method("Touch"), in, opts...)
}

func (c *ExploreServiceClient) IsOnline(ctx context.Context, in *IsOnlineRequest, opts ...grpc.CallOption) (*IsOnlineResponse, error) {
	return wire.Invoke[IsOnlineRequest, IsOnlineResponse](ctx, c.cc, method("IsOnline"), in, opts...)
}
