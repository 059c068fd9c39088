package explore

import (
	"context"
	"strconv"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oggyb/muzz-match/internal/app"
	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
	pb "github.com/oggyb/muzz-match/internal/proto/explore"
	"github.com/oggyb/muzz-match/internal/rewind"
	"github.com/oggyb/muzz-match/internal/utils/validation"
)

// defaultPageSize applies when a list request leaves limit at zero.
const defaultPageSize = 5

// Service implements the Explore gRPC API on top of the swipe engine.
// Each method corresponds to an ExploreService endpoint.
type Service struct {
	appCtx *app.AppContext

	pb.UnimplementedExploreServiceServer
}

// NewExploreService creates a new Explore service with dependencies from AppContext.
func NewExploreService(appCtx *app.AppContext) *Service {
	return &Service{appCtx: appCtx}
}

// OpenSession starts a swipe session and its rewind budget.
//
// Example:
//
//	svc.OpenSession(ctx, &pb.OpenSessionRequest{UserID: "42"})
func (s *Service) OpenSession(ctx context.Context, req *pb.OpenSessionRequest) (*pb.OpenSessionResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, svcErr.InvalidArgument(err.Error())
	}
	userID, _ := strconv.ParseUint(req.UserID, 10, 64)

	id, session := s.appCtx.Rewinds.Open(userID, req.Premium)
	s.appCtx.Logger.Debug("OpenSession", "user", userID, "premium", req.Premium, "session", id)

	return &pb.OpenSessionResponse{SessionID: id, RewindsRemaining: session.Remaining()}, nil
}

// PutDecision records a pass, like or super_like for the session's user.
//
// Behavior:
//   - AlreadyExists when the pair is already decided (advance to the next
//     candidate).
//   - On a reciprocal like the response carries the match id; MatchCreated is
//     true only for the swipe that formed it.
//
// Example:
//
//	svc.PutDecision(ctx, &pb.PutDecisionRequest{SessionID: sid, RecipientUserID: "2", Kind: "like"})
func (s *Service) PutDecision(ctx context.Context, req *pb.PutDecisionRequest) (*pb.PutDecisionResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, svcErr.InvalidArgument(err.Error())
	}
	session, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}
	recipientID, _ := strconv.ParseUint(req.RecipientUserID, 10, 64)

	s.appCtx.Logger.Debug("PutDecision called",
		"actor", session.UserID(),
		"recipient", recipientID,
		"kind", req.Kind,
	)

	res, err := s.appCtx.Swipes.Swipe(ctx, session, recipientID, db.DecisionKind(req.Kind))
	if err != nil {
		if !svcErr.IsDomain(err) {
			s.appCtx.Logger.Error("PutDecision failed", "actor", session.UserID(), "recipient", recipientID, "err", err)
		}
		return nil, svcErr.Map(err)
	}

	resp := &pb.PutDecisionResponse{
		DecisionID:       res.Decision.ID,
		MutualLikes:      res.Match != nil,
		MatchCreated:     res.MatchCreated,
		RewindsRemaining: session.Remaining(),
	}
	if res.Match != nil {
		resp.MatchID = res.Match.ID
	}
	return resp, nil
}

// Rewind undoes the session's last decision.
// ResourceExhausted when there is nothing left to undo.
func (s *Service) Rewind(ctx context.Context, req *pb.RewindRequest) (*pb.RewindResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, svcErr.InvalidArgument(err.Error())
	}
	session, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}

	res, err := s.appCtx.Swipes.Rewind(ctx, session)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	resp := &pb.RewindResponse{
		RestoredUserID:   strconv.FormatUint(res.RestoredSubjectID, 10),
		Kind:             string(res.Decision.Kind),
		RewindsRemaining: res.Remaining,
	}
	if res.Match != nil {
		resp.DeactivatedMatch = res.Match.ID
	}
	return resp, nil
}

// ListLikedYou returns all users who liked the given recipient.
//
// Behavior:
//   - Excludes users that the recipient explicitly passed.
//   - Supports cursor-based pagination with PaginationToken.
//   - Returns actor_id + kind + timestamp.
//
// Example:
//
//	svc.ListLikedYou(ctx, &pb.ListLikedYouRequest{RecipientUserID: "42"})
func (s *Service) ListLikedYou(ctx context.Context, req *pb.ListLikedYouRequest) (*pb.ListLikedYouResponse, error) {
	return s.listLikers(ctx, req, false)
}

// ListNewLikedYou is ListLikedYou without the users the recipient already
// liked back.
func (s *Service) ListNewLikedYou(ctx context.Context, req *pb.ListLikedYouRequest) (*pb.ListLikedYouResponse, error) {
	return s.listLikers(ctx, req, true)
}

func (s *Service) listLikers(ctx context.Context, req *pb.ListLikedYouRequest, onlyNew bool) (*pb.ListLikedYouResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, svcErr.InvalidArgument(err.Error())
	}
	recipientID, _ := strconv.ParseUint(req.RecipientUserID, 10, 64)
	limit := req.Limit
	if limit == 0 {
		limit = defaultPageSize
	}

	s.appCtx.Logger.Debug("ListLikedYou called", "recipient", recipientID, "only_new", onlyNew, "token", req.PaginationToken != nil)

	list := s.appCtx.Ledger.LikedYou
	if onlyNew {
		list = s.appCtx.Ledger.NewLikedYou
	}
	decisions, next, err := list(ctx, recipientID, req.PaginationToken, limit)
	if err != nil {
		s.appCtx.Logger.Error("ListLikedYou failed", "recipient", recipientID, "err", err)
		return nil, svcErr.Map(err)
	}

	resp := &pb.ListLikedYouResponse{Likers: make([]pb.Liker, 0, len(decisions)), NextPaginationToken: next}
	for _, d := range decisions {
		resp.Likers = append(resp.Likers, pb.Liker{
			ActorID:       strconv.FormatUint(d.ActorID, 10),
			Kind:          string(d.Kind),
			UnixTimestamp: uint64(d.CreatedAt.UnixMilli()),
		})
	}
	return resp, nil
}

// CountLikedYou returns how many users liked the recipient.
// Cache-first: Redis likes:count:<id>, DB fallback, 1h TTL.
func (s *Service) CountLikedYou(ctx context.Context, req *pb.CountLikedYouRequest) (*pb.CountLikedYouResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, svcErr.InvalidArgument(err.Error())
	}
	recipientID, _ := strconv.ParseUint(req.RecipientUserID, 10, 64)

	count, err := s.appCtx.Ledger.CountLikedYou(ctx, recipientID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &pb.CountLikedYouResponse{Count: uint64(count)}, nil
}

// Touch marks the user active now.
func (s *Service) Touch(ctx context.Context, req *pb.TouchRequest) (*pb.TouchResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, svcErr.InvalidArgument(err.Error())
	}
	userID, _ := strconv.ParseUint(req.UserID, 10, 64)

	if err := s.appCtx.Presence.Touch(ctx, userID); err != nil {
		return nil, svcErr.Map(err)
	}
	return &pb.TouchResponse{}, nil
}

// IsOnline reports whether the user was active within the online window.
func (s *Service) IsOnline(ctx context.Context, req *pb.IsOnlineRequest) (*pb.IsOnlineResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, svcErr.InvalidArgument(err.Error())
	}
	userID, _ := strconv.ParseUint(req.UserID, 10, 64)

	last, err := s.appCtx.Presence.LastActive(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	online, err := s.appCtx.Presence.IsOnline(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	resp := &pb.IsOnlineResponse{Online: online}
	if !last.IsZero() {
		resp.LastActiveUnix = last.UnixMilli()
	}
	return resp, nil
}

func (s *Service) session(id string) (*rewind.Controller, error) {
	session, ok := s.appCtx.Rewinds.Get(id)
	if !ok {
		return nil, status.Error(codes.NotFound, "unknown session; open a new one")
	}
	return session, nil
}
