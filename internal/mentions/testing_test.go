package mentions

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/davidnajera/mentiondesk-backend/internal/social"
	"github.com/davidnajera/mentiondesk-backend/pkg/audit"
	"github.com/davidnajera/mentiondesk-backend/pkg/clock"
	dbpkg "github.com/davidnajera/mentiondesk-backend/pkg/db"
	"github.com/davidnajera/mentiondesk-backend/pkg/outbox"
	"github.com/davidnajera/mentiondesk-backend/pkg/types"
)

var testDBSeq int

var testSchema = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE mentions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		social_media_platform_ref TEXT NOT NULL,
		social_media_api_post_ref TEXT,
		platform TEXT NOT NULL,
		type TEXT NOT NULL,
		state TEXT,
		disposition TEXT,
		user_id INTEGER,
		mention_id INTEGER,
		data TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_mentions_platform_ref ON mentions (social_media_platform_ref)`,
	`CREATE TABLE tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL,
		data TEXT NOT NULL,
		started_at DATETIME,
		finished_at DATETIME,
		created_by TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE INDEX ix_tasks_code ON tasks (code)`,
	`CREATE UNIQUE INDEX ux_tasks_reply_mention
		ON tasks (code, data->>'mentionId')
		WHERE code = 'REPLY_MENTION'`,
	`CREATE UNIQUE INDEX ux_tasks_reply_mention_content
		ON tasks (code, data->>'mentionId', data->>'content')
		WHERE code = 'REPLY_MENTION'`,
	`CREATE TABLE audits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event TEXT NOT NULL,
		data TEXT,
		created_by TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE circuit_breaker_states (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		circuit_name TEXT NOT NULL UNIQUE,
		state_data TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDBSeq++
	dsn := fmt.Sprintf("file:mentions_test_%d_%d?mode=memory&cache=shared&_busy_timeout=5000", time.Now().UnixNano(), testDBSeq)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	for _, stmt := range testSchema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// fakeSocial scripts the upstream surface for engine tests.
type fakeSocial struct {
	mtx sync.Mutex

	posts    []social.Post
	postsErr error
	listWait time.Duration

	comments    map[string][]social.Comment
	commentsErr error

	replyStatus string
	replyErr    error
	replyCalls  int
}

func (f *fakeSocial) ListRecentPosts(ctx context.Context, _ types.Actor) ([]social.Post, error) {
	if f.listWait > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.listWait):
		}
	}
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.posts, f.postsErr
}

func (f *fakeSocial) ListComments(_ context.Context, post social.Post, _ types.Actor) ([]social.Comment, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if f.commentsErr != nil {
		return nil, f.commentsErr
	}
	return f.comments[post.ID], nil
}

func (f *fakeSocial) ReplyToComment(_ context.Context, target social.ReplyTarget, content string, _ types.Actor) (*social.ReplyResult, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.replyCalls++
	if f.replyErr != nil {
		return nil, f.replyErr
	}
	status := f.replyStatus
	if status == "" {
		status = social.ReplyStatusSuccess
	}
	return &social.ReplyResult{
		Status: status,
		Echoes: map[string]social.ReplyEcho{
			target.Platform: {Comment: content, CommentID: fmt.Sprintf("echo-%d", f.replyCalls)},
		},
		Raw: []byte(fmt.Sprintf(`{"success":%t}`, status == social.ReplyStatusSuccess)),
	}, nil
}

func (f *fakeSocial) replies() int {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.replyCalls
}

func newTestService(t *testing.T, conn *gorm.DB, gw SocialGateway) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		DB:       dbpkg.FromGorm(conn),
		Mentions: NewRepository(conn),
		Tasks:    outbox.NewRepository(conn),
		Audits:   audit.NewWriter(conn),
		Social:   gw,
		Clock:    clock.New(),
	})
	require.NoError(t, err)
	return svc
}
