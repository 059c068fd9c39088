package chat_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/oggyb/muzz-match/internal/app"
	"github.com/oggyb/muzz-match/internal/db"
	"github.com/oggyb/muzz-match/internal/db/dbtest"
	"github.com/oggyb/muzz-match/internal/events"
	"github.com/oggyb/muzz-match/internal/logger"
	pb "github.com/oggyb/muzz-match/internal/proto/chat"
	"github.com/oggyb/muzz-match/internal/server"
	"github.com/oggyb/muzz-match/internal/service/chat"
)

type fixture struct {
	client  *pb.ChatServiceClient
	appCtx  *app.AppContext
	bus     *events.MemoryBus
	matchID string
}

// setupService serves ChatService over bufconn with users 1 and 2 already
// matched. User 3 has no matches.
func setupService(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	gdb := dbtest.Open(t)
	bus := events.NewMemoryBus(16)
	log := logger.Discard()
	appCtx := app.New(nil, gdb, nil, bus, log, nil)

	d12, err := appCtx.Ledger.Record(ctx, 1, 2, db.KindLike)
	require.NoError(t, err)
	_, err = appCtx.Matches.OnDecision(ctx, d12)
	require.NoError(t, err)
	d21, err := appCtx.Ledger.Record(ctx, 2, 1, db.KindLike)
	require.NoError(t, err)
	out, err := appCtx.Matches.OnDecision(ctx, d21)
	require.NoError(t, err)
	require.True(t, out.Created)

	lis := bufconn.Listen(1 << 20)
	srv := server.NewGRPCServer(log, chat.NewRegistrar(appCtx))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &fixture{client: pb.NewChatServiceClient(conn), appCtx: appCtx, bus: bus, matchID: out.Match.ID}
}

func (f *fixture) send(t *testing.T, sender, content string) pb.Message {
	t.Helper()
	resp, err := f.client.SendMessage(context.Background(), &pb.SendMessageRequest{MatchID: f.matchID, SenderID: sender, Content: content})
	require.NoError(t, err)
	return resp.Message
}

func TestListMatches(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)
	require.NoError(t, f.appCtx.Presence.Touch(ctx, 2))

	resp, err := f.client.ListMatches(ctx, &pb.ListMatchesRequest{UserID: "1"})
	require.NoError(t, err)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, f.matchID, resp.Matches[0].MatchID)
	assert.Equal(t, "2", resp.Matches[0].OtherUserID)
	assert.True(t, resp.Matches[0].OtherOnline)

	resp, err = f.client.ListMatches(ctx, &pb.ListMatchesRequest{UserID: "3"})
	require.NoError(t, err)
	assert.Empty(t, resp.Matches)
}

func TestSendHistoryMarkRead(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	m1 := f.send(t, "1", "hi")
	m2 := f.send(t, "2", "hey")
	m3 := f.send(t, "1", "how are you?")
	assert.Equal(t, []int64{1, 2, 3}, []int64{m1.Seq, m2.Seq, m3.Seq})
	assert.Less(t, m1.CreatedAtUnix, m2.CreatedAtUnix)
	assert.Less(t, m2.CreatedAtUnix, m3.CreatedAtUnix)

	hist, err := f.client.History(ctx, &pb.HistoryRequest{MatchID: f.matchID, ViewerID: "2", Limit: 2})
	require.NoError(t, err)
	require.Len(t, hist.Messages, 2)
	assert.True(t, hist.HasMore)
	assert.Equal(t, "hi", hist.Messages[0].Content)

	hist, err = f.client.History(ctx, &pb.HistoryRequest{MatchID: f.matchID, ViewerID: "2", AfterSeq: 2})
	require.NoError(t, err)
	require.Len(t, hist.Messages, 1)
	assert.False(t, hist.HasMore)

	read, err := f.client.MarkRead(ctx, &pb.MarkReadRequest{ReaderID: "2", MessageIDs: []string{m1.ID, m2.ID}})
	require.NoError(t, err)
	require.Len(t, read.Read, 1, "own message is skipped")
	assert.Equal(t, m1.ID, read.Read[0].ID)
	assert.GreaterOrEqual(t, read.Read[0].ReadAtUnix, m1.CreatedAtUnix)

	read, err = f.client.MarkRead(ctx, &pb.MarkReadRequest{ReaderID: "2", MatchID: f.matchID})
	require.NoError(t, err)
	require.Len(t, read.Read, 1)
	assert.Equal(t, m3.ID, read.Read[0].ID)

	read, err = f.client.MarkRead(ctx, &pb.MarkReadRequest{ReaderID: "2", MatchID: f.matchID})
	require.NoError(t, err)
	assert.Empty(t, read.Read)
}

func TestSendRejections(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	_, err := f.client.SendMessage(ctx, &pb.SendMessageRequest{MatchID: f.matchID, SenderID: "3", Content: "hello"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = f.client.SendMessage(ctx, &pb.SendMessageRequest{MatchID: f.matchID, SenderID: "1", Content: "   "})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.client.SendMessage(ctx, &pb.SendMessageRequest{MatchID: "missing", SenderID: "1", Content: "hello"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = f.client.SendMessage(ctx, &pb.SendMessageRequest{MatchID: f.matchID, SenderID: "x", Content: "hello"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = f.client.MarkRead(ctx, &pb.MarkReadRequest{ReaderID: "2"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err), "needs ids or a match")

	_, err = f.client.History(ctx, &pb.HistoryRequest{MatchID: f.matchID, ViewerID: "3"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestUnmatchClosesConversation(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	_, err := f.client.Unmatch(ctx, &pb.UnmatchRequest{MatchID: f.matchID, UserID: "3"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = f.client.Unmatch(ctx, &pb.UnmatchRequest{MatchID: f.matchID, UserID: "2"})
	require.NoError(t, err)

	_, err = f.client.SendMessage(ctx, &pb.SendMessageRequest{MatchID: f.matchID, SenderID: "1", Content: "still there?"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = f.client.Unmatch(ctx, &pb.UnmatchRequest{MatchID: f.matchID, UserID: "1"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	resp, err := f.client.ListMatches(ctx, &pb.ListMatchesRequest{UserID: "1"})
	require.NoError(t, err)
	assert.Empty(t, resp.Matches)
}

func TestSubscribeMessages(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f := setupService(t)

	first := f.send(t, "1", "before subscribe")

	stream, err := f.client.SubscribeMessages(ctx, &pb.SubscribeMessagesRequest{MatchID: f.matchID, ViewerID: "2"})
	require.NoError(t, err)

	ev, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "message", ev.Type)
	assert.Equal(t, first.ID, ev.Message.ID)

	second := f.send(t, "1", "after subscribe")
	ev, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, second.ID, ev.Message.ID)
	assert.Equal(t, int64(2), ev.Message.Seq)

	_, err = f.client.MarkRead(ctx, &pb.MarkReadRequest{ReaderID: "2", MatchID: f.matchID})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		ev, err = stream.Recv()
		require.NoError(t, err)
		assert.Equal(t, "read", ev.Type)
		assert.NotZero(t, ev.Message.ReadAtUnix)
	}

	_, err = f.client.Unmatch(ctx, &pb.UnmatchRequest{MatchID: f.matchID, UserID: "1"})
	require.NoError(t, err)

	_, err = stream.Recv()
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestSubscribeMessagesResume(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f := setupService(t)

	f.send(t, "1", "one")
	f.send(t, "2", "two")
	third := f.send(t, "1", "three")

	stream, err := f.client.SubscribeMessages(ctx, &pb.SubscribeMessagesRequest{MatchID: f.matchID, ViewerID: "2", AfterSeq: 2})
	require.NoError(t, err)

	ev, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, third.ID, ev.Message.ID)
}

func TestSubscribeMessagesRejectsOutsider(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f := setupService(t)

	stream, err := f.client.SubscribeMessages(ctx, &pb.SubscribeMessagesRequest{MatchID: f.matchID, ViewerID: "3"})
	require.NoError(t, err)
	_, err = stream.Recv()
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestNotifications(t *testing.T) {
	ctx := context.Background()
	f := setupService(t)

	// like + match_formed for user 2
	list, err := f.client.ListNotifications(ctx, &pb.ListNotificationsRequest{RecipientID: "2"})
	require.NoError(t, err)
	require.Len(t, list.Notifications, 2)
	assert.Equal(t, int64(2), list.Unread)

	var formed pb.Notification
	for _, n := range list.Notifications {
		if n.Kind == string(db.NotifyMatchFormed) {
			formed = n
		}
	}
	require.NotEmpty(t, formed.ID)
	assert.Equal(t, f.matchID, formed.PayloadRef)

	_, err = f.client.MarkNotificationRead(ctx, &pb.MarkNotificationReadRequest{RecipientID: "2", NotificationID: formed.ID})
	require.NoError(t, err)
	_, err = f.client.MarkNotificationRead(ctx, &pb.MarkNotificationReadRequest{RecipientID: "2", NotificationID: formed.ID})
	require.NoError(t, err)
	_, err = f.client.MarkNotificationRead(ctx, &pb.MarkNotificationReadRequest{RecipientID: "1", NotificationID: formed.ID})
	assert.Equal(t, codes.NotFound, status.Code(err))

	all, err := f.client.MarkAllNotificationsRead(ctx, &pb.MarkAllNotificationsReadRequest{RecipientID: "2"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), all.Changed)

	// page through one at a time
	var kinds []string
	var token *string
	for {
		page, err := f.client.ListNotifications(ctx, &pb.ListNotificationsRequest{RecipientID: "2", Limit: 1, PaginationToken: token})
		require.NoError(t, err)
		assert.Zero(t, page.Unread)
		for _, n := range page.Notifications {
			kinds = append(kinds, n.Kind)
		}
		if page.NextPaginationToken == nil {
			break
		}
		token = page.NextPaginationToken
	}
	assert.ElementsMatch(t, []string{string(db.NotifyMatchFormed), string(db.NotifyDecisionReceived)}, kinds)
}

func TestSubscribeNotifications(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f := setupService(t)

	stream, err := f.client.SubscribeNotifications(ctx, &pb.SubscribeNotificationsRequest{RecipientID: "1"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return f.bus.Subscribers(events.InboxTopic(1)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	f.send(t, "2", "ping")

	n, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, string(db.NotifyMessageReceived), n.Kind)
	assert.False(t, n.Read)
}
