package social

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidnajera/mentiondesk-backend/pkg/breaker"
	"github.com/davidnajera/mentiondesk-backend/pkg/clock"
	"github.com/davidnajera/mentiondesk-backend/pkg/config"
	"github.com/davidnajera/mentiondesk-backend/pkg/gateway"
	"github.com/davidnajera/mentiondesk-backend/pkg/types"
)

type fakeUpstream struct {
	handler func(req gateway.Request) (any, error)
	calls   []gateway.Request
}

func (f *fakeUpstream) DoJSON(_ context.Context, req gateway.Request, dest any) error {
	f.calls = append(f.calls, req)
	payload, err := f.handler(req)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func newTestGateway(t *testing.T, platforms []string, upstream *fakeUpstream, store breaker.Store) *Gateway {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	breakers := breaker.NewRegistry(breaker.Options{MaxFailures: 3, ResetTimeout: time.Minute}, clk, store, nil, nil)
	gw, err := New(Params{
		Config: config.SocialConfig{
			Platforms:       platforms,
			HistoryLastDays: 7,
		},
		Retry: config.RetryConfig{
			MaxRetries:   1,
			InitialDelay: time.Millisecond,
			MaxDelay:     2 * time.Millisecond,
		},
		Client:   upstream,
		Breakers: breakers,
		Store:    store,
	})
	require.NoError(t, err)
	return gw
}

func upstreamError() error {
	return &gateway.Error{Kind: gateway.ErrKindClient, Status: 400}
}

func TestListRecentPostsToleratesPlatformFailure(t *testing.T) {
	upstream := &fakeUpstream{handler: func(req gateway.Request) (any, error) {
		if req.Query.Get("platform") == "twitter" {
			return nil, upstreamError()
		}
		return map[string]any{"history": []map[string]any{
			{"id": "p1", "postIds": []string{"bluesky:1"}},
		}}, nil
	}}

	gw := newTestGateway(t, []string{"twitter", "bluesky"}, upstream, nil)
	posts, err := gw.ListRecentPosts(context.Background(), types.Actor{ID: 1, Email: "op@example.com"})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "p1", posts[0].ID)
	assert.Equal(t, "bluesky", posts[0].Platform)
}

func TestListRecentPostsFailsWhenNoPlatformResponds(t *testing.T) {
	upstream := &fakeUpstream{handler: func(gateway.Request) (any, error) {
		return nil, upstreamError()
	}}

	gw := newTestGateway(t, []string{"twitter", "bluesky"}, upstream, nil)
	_, err := gw.ListRecentPosts(context.Background(), types.Actor{ID: 1, Email: "op@example.com"})
	require.Error(t, err)
}

func TestListCommentsTagsAndFilters(t *testing.T) {
	upstream := &fakeUpstream{handler: func(req gateway.Request) (any, error) {
		return map[string]any{
			"twitter": []map[string]any{
				{"commentId": "c1", "comment": "hello"},
				{"commentId": "c2", "comment": "threaded", "referencedTweets": []map[string]any{{"id": "other"}}},
			},
			"count": 2,
		}, nil
	}}

	gw := newTestGateway(t, []string{"twitter"}, upstream, nil)
	post := Post{ID: "p9", PostIDs: []string{"twitter:555"}, Platform: "twitter"}
	comments, err := gw.ListComments(context.Background(), post, types.Actor{ID: 1, Email: "op@example.com"})
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "c1", comments[0].CommentID)
	assert.Equal(t, "p9", comments[0].APIPostID)
	assert.Equal(t, "twitter", comments[0].Platform)
}

func TestReplyToCommentNormalizesSuccess(t *testing.T) {
	upstream := &fakeUpstream{handler: func(req gateway.Request) (any, error) {
		body, ok := req.Body.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "hi there", body["comment"])
		assert.Equal(t, []string{"bluesky"}, body["platforms"])
		assert.Equal(t, true, body["searchPlatformId"])
		return map[string]any{
			"success": true,
			"bluesky": map[string]any{"comment": "hi there", "commentId": "reply-1"},
		}, nil
	}}

	gw := newTestGateway(t, []string{"bluesky"}, upstream, nil)
	result, err := gw.ReplyToComment(context.Background(), ReplyTarget{Platform: "bluesky", CommentRef: "c42"}, "hi there", types.Actor{ID: 1, Email: "op@example.com"})
	require.NoError(t, err)
	assert.Equal(t, ReplyStatusSuccess, result.Status)

	echo, ok := result.Echo("bluesky")
	require.True(t, ok)
	assert.Equal(t, "reply-1", echo.CommentID)
}

func TestReplyToCommentNormalizesFailure(t *testing.T) {
	upstream := &fakeUpstream{handler: func(gateway.Request) (any, error) {
		return map[string]any{"success": false}, nil
	}}

	gw := newTestGateway(t, []string{"bluesky"}, upstream, nil)
	result, err := gw.ReplyToComment(context.Background(), ReplyTarget{Platform: "bluesky", CommentRef: "c42"}, "hi", types.Actor{ID: 1, Email: "op@example.com"})
	require.NoError(t, err)
	assert.NotEqual(t, ReplyStatusSuccess, result.Status)
}

type staticStore struct {
	rows map[string]breaker.Snapshot
}

func (s *staticStore) Load(context.Context, string) (*breaker.Snapshot, error) { return nil, nil }
func (s *staticStore) Save(context.Context, string, breaker.Snapshot) error   { return nil }
func (s *staticStore) List(context.Context) (map[string]breaker.Snapshot, error) {
	return s.rows, nil
}

func TestHealthSnapshotAggregatesCircuits(t *testing.T) {
	store := &staticStore{rows: map[string]breaker.Snapshot{
		"twitter":  {State: breaker.StateOpen},
		"facebook": {State: breaker.StateClosed},
	}}

	gw := newTestGateway(t, []string{"twitter", "facebook"}, &fakeUpstream{handler: func(gateway.Request) (any, error) {
		return nil, nil
	}}, store)

	snapshot, err := gw.HealthSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, HealthStatusDegraded, snapshot.Status)
	assert.False(t, snapshot.Healthy())
	require.Len(t, snapshot.Circuits, 2)
	assert.Equal(t, CircuitHealth{Platform: "facebook", Healthy: true, State: "CLOSED"}, snapshot.Circuits[0])
	assert.Equal(t, CircuitHealth{Platform: "twitter", Healthy: false, State: "OPEN"}, snapshot.Circuits[1])
}
