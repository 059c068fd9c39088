package chat

import (
	"context"
	"errors"
	"strconv"

	"github.com/oggyb/muzz-match/internal/app"
	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
	pb "github.com/oggyb/muzz-match/internal/proto/chat"
	"github.com/oggyb/muzz-match/internal/proto/wire"
	"github.com/oggyb/muzz-match/internal/utils/validation"
)

const defaultPageSize = 20

// Service implements the Chat gRPC API: matches, conversations and the
// notification inbox.
type Service struct {
	appCtx *app.AppContext

	pb.UnimplementedChatServiceServer
}

// NewChatService creates a new Chat service with dependencies from AppContext.
func NewChatService(appCtx *app.AppContext) *Service {
	return &Service{appCtx: appCtx}
}

// ListMatches returns the user's active matches with the other side's
// online flag.
func (s *Service) ListMatches(ctx context.Context, req *pb.ListMatchesRequest) (*pb.ListMatchesResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, svcErr.InvalidArgument(err.Error())
	}
	userID := parseID(req.UserID)

	matches, err := s.appCtx.Matches.ListActive(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	others := make([]uint64, 0, len(matches))
	for i := range matches {
		other, _ := matches[i].Other(userID)
		others = append(others, other)
	}
	online, err := s.appCtx.Presence.OnlineAmong(ctx, others)
	if err != nil {
		// presence is decoration; the list is still correct without it
		s.appCtx.Logger.Warn("ListMatches presence lookup failed", "user", userID, "err", err)
		online = map[uint64]bool{}
	}

	resp := &pb.ListMatchesResponse{Matches: make([]pb.Match, 0, len(matches))}
	for i, m := range matches {
		resp.Matches = append(resp.Matches, pb.Match{
			MatchID:           m.ID,
			OtherUserID:       strconv.FormatUint(others[i], 10),
			OtherOnline:       online[others[i]],
			LastSeq:           m.LastSeq,
			LastMessageAtUnix: m.LastMessageAt.UnixMilli(),
			CreatedAtUnix:     m.CreatedAt.UnixMilli(),
		})
	}
	return resp, nil
}

// Unmatch deactivates an active match for one of its participants.
// FailedPrecondition if it is already inactive.
func (s *Service) Unmatch(ctx context.Context, req *pb.UnmatchRequest) (*pb.UnmatchResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, svcErr.InvalidArgument(err.Error())
	}
	if err := s.appCtx.Matches.Unmatch(ctx, req.MatchID, parseID(req.UserID)); err != nil {
		return nil, svcErr.Map(err)
	}
	return &pb.UnmatchResponse{}, nil
}

// SendMessage appends to an active match.
//
// Behavior:
//   - FailedPrecondition once the match was unmatched or rewound.
//   - PermissionDenied for a sender outside the match.
//   - The returned message carries the server-assigned seq and timestamp.
func (s *Service) SendMessage(ctx context.Context, req *pb.SendMessageRequest) (*pb.SendMessageResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, svcErr.InvalidArgument(err.Error())
	}
	senderID := parseID(req.SenderID)

	msg, err := s.appCtx.Channel.Send(ctx, req.MatchID, senderID, req.Content)
	if err != nil {
		if !svcErr.IsDomain(err) {
			s.appCtx.Logger.Error("SendMessage failed", "match_id", req.MatchID, "sender", senderID, "err", err)
		}
		return nil, svcErr.Map(err)
	}
	return &pb.SendMessageResponse{Message: toMessage(msg)}, nil
}

// History pages through a conversation by seq.
func (s *Service) History(ctx context.Context, req *pb.HistoryRequest) (*pb.HistoryResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, svcErr.InvalidArgument(err.Error())
	}
	limit := req.Limit
	if limit == 0 {
		limit = defaultPageSize
	}

	msgs, more, err := s.appCtx.Channel.History(ctx, req.MatchID, parseID(req.ViewerID), req.AfterSeq, limit)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &pb.HistoryResponse{Messages: toMessages(msgs), HasMore: more}, nil
}

// MarkRead marks messages read for the reader. Re-marking is a no-op; the
// response lists only what this call changed.
func (s *Service) MarkRead(ctx context.Context, req *pb.MarkReadRequest) (*pb.MarkReadResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, svcErr.InvalidArgument(err.Error())
	}
	readerID := parseID(req.ReaderID)

	var (
		changed []db.Message
		err     error
	)
	if len(req.MessageIDs) == 0 {
		changed, err = s.appCtx.Channel.MarkConversationRead(ctx, req.MatchID, readerID, req.UpToSeq)
	} else {
		changed, err = s.appCtx.Channel.MarkRead(ctx, req.MessageIDs, readerID)
	}
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &pb.MarkReadResponse{Read: toMessages(changed)}, nil
}

// SubscribeMessages streams a conversation live, starting after AfterSeq.
// A dropped change feed is repaired server side; if the client stream itself
// drops, the client resubscribes with the last seq it saw.
func (s *Service) SubscribeMessages(req *pb.SubscribeMessagesRequest, stream *wire.ServerStream[pb.ChatEvent]) error {
	if err := validation.Struct(req); err != nil {
		return svcErr.InvalidArgument(err.Error())
	}
	ctx := stream.Context()
	viewerID := parseID(req.ViewerID)

	sub, err := s.appCtx.Channel.Subscribe(ctx, req.MatchID, viewerID, req.AfterSeq)
	if err != nil {
		return svcErr.Map(err)
	}
	defer sub.Close()

	s.appCtx.Logger.Debug("SubscribeMessages open", "match_id", req.MatchID, "viewer", viewerID, "after_seq", req.AfterSeq)

	for ev := range sub.Events() {
		msg := ev.Message
		if err := stream.Send(&pb.ChatEvent{Type: string(ev.Type), Message: toMessage(&msg)}); err != nil {
			return err
		}
	}

	<-sub.Done()
	if err := sub.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return svcErr.Map(err)
	}
	return nil
}

// ListNotifications returns the inbox newest first plus the unread badge.
func (s *Service) ListNotifications(ctx context.Context, req *pb.ListNotificationsRequest) (*pb.ListNotificationsResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, svcErr.InvalidArgument(err.Error())
	}
	recipientID := parseID(req.RecipientID)
	limit := req.Limit
	if limit == 0 {
		limit = defaultPageSize
	}

	rows, next, err := s.appCtx.Notifier.List(ctx, recipientID, req.PaginationToken, limit)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	unread, err := s.appCtx.Notifier.UnreadCount(ctx, recipientID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	resp := &pb.ListNotificationsResponse{
		Notifications:       make([]pb.Notification, 0, len(rows)),
		Unread:              unread,
		NextPaginationToken: next,
	}
	for i := range rows {
		resp.Notifications = append(resp.Notifications, toNotification(&rows[i]))
	}
	return resp, nil
}

// MarkNotificationRead is idempotent; NotFound for someone else's id.
func (s *Service) MarkNotificationRead(ctx context.Context, req *pb.MarkNotificationReadRequest) (*pb.MarkNotificationReadResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, svcErr.InvalidArgument(err.Error())
	}
	if err := s.appCtx.Notifier.MarkRead(ctx, parseID(req.RecipientID), req.NotificationID); err != nil {
		return nil, svcErr.Map(err)
	}
	return &pb.MarkNotificationReadResponse{}, nil
}

// MarkAllNotificationsRead clears the unread badge.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, req *pb.MarkAllNotificationsReadRequest) (*pb.MarkAllNotificationsReadResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, svcErr.InvalidArgument(err.Error())
	}
	n, err := s.appCtx.Notifier.MarkAllRead(ctx, parseID(req.RecipientID))
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &pb.MarkAllNotificationsReadResponse{Changed: n}, nil
}

// SubscribeNotifications streams new inbox items. The stream ends if the
// change feed drops; clients resubscribe and call ListNotifications.
func (s *Service) SubscribeNotifications(req *pb.SubscribeNotificationsRequest, stream *wire.ServerStream[pb.Notification]) error {
	if err := validation.Struct(req); err != nil {
		return svcErr.InvalidArgument(err.Error())
	}
	feed, err := s.appCtx.Notifier.Subscribe(stream.Context(), parseID(req.RecipientID))
	if err != nil {
		return svcErr.Map(err)
	}
	defer feed.Close()

	for n := range feed.C() {
		out := toNotification(&n)
		if err := stream.Send(&out); err != nil {
			return err
		}
	}
	if err := stream.Context().Err(); err != nil {
		return nil
	}
	return svcErr.Map(svcErr.Backend("notifications.feed", errors.New("feed closed")))
}

func parseID(s string) uint64 {
	// validated as an id before this point
	id, _ := strconv.ParseUint(s, 10, 64)
	return id
}

func toMessage(m *db.Message) pb.Message {
	out := pb.Message{
		ID:            m.ID,
		MatchID:       m.MatchID,
		Seq:           m.Seq,
		SenderID:      strconv.FormatUint(m.SenderID, 10),
		Content:       m.Content,
		CreatedAtUnix: m.CreatedAt.UnixMilli(),
	}
	if m.ReadAt != nil {
		out.ReadAtUnix = m.ReadAt.UnixMilli()
	}
	return out
}

func toMessages(msgs []db.Message) []pb.Message {
	out := make([]pb.Message, 0, len(msgs))
	for i := range msgs {
		out = append(out, toMessage(&msgs[i]))
	}
	return out
}

func toNotification(n *db.Notification) pb.Notification {
	return pb.Notification{
		ID:            n.ID,
		Kind:          string(n.Kind),
		PayloadRef:    n.PayloadRef,
		Read:          n.Read,
		CreatedAtUnix: n.CreatedAt.UnixMilli(),
	}
}
