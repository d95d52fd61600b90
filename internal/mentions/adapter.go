package mentions

import (
	"context"
	"time"

	"github.com/davidnajera/mentiondesk-backend/pkg/db/models"
	"github.com/davidnajera/mentiondesk-backend/pkg/enums"
	pkgerrors "github.com/davidnajera/mentiondesk-backend/pkg/errors"
	"github.com/davidnajera/mentiondesk-backend/pkg/types"
)

// AdapterConfig describes one mention type's task wiring.
type AdapterConfig struct {
	MentionType enums.MentionType
	FetchCode   enums.TaskCode
	ReplyWindow time.Duration
	FetchWindow time.Duration
}

// Adapter routes one mention type through the fetch and reply pipelines.
type Adapter interface {
	Config() AdapterConfig
	FetchAndSync(ctx context.Context, actor types.Actor) error
	ProcessFetchTask(ctx context.Context, task *models.Task) error
	ProcessReplyTask(ctx context.Context, task *models.Task) error
	Reply(ctx context.Context, mention *models.Mention, content string, actor types.Actor) (*models.Task, bool, error)
}

type commentAdapter struct {
	pipe *pipeline
}

func (a *commentAdapter) Config() AdapterConfig {
	return AdapterConfig{
		MentionType: enums.MentionTypeComment,
		FetchCode:   enums.TaskFetchComments,
		ReplyWindow: replyWindow,
		FetchWindow: fetchWindow,
	}
}

func (a *commentAdapter) FetchAndSync(ctx context.Context, actor types.Actor) error {
	return a.pipe.fetchAndReconcile(ctx, enums.TaskFetchComments, enums.MentionTypeComment, actor)
}

func (a *commentAdapter) ProcessFetchTask(ctx context.Context, task *models.Task) error {
	return a.pipe.processFetchTask(ctx, task, enums.MentionTypeComment)
}

func (a *commentAdapter) ProcessReplyTask(ctx context.Context, task *models.Task) error {
	return a.pipe.processReplyTask(ctx, task)
}

func (a *commentAdapter) Reply(ctx context.Context, mention *models.Mention, content string, actor types.Actor) (*models.Task, bool, error) {
	return a.pipe.enqueueReply(ctx, mention, content, actor)
}

type messageAdapter struct {
	pipe *pipeline
}

func (a *messageAdapter) Config() AdapterConfig {
	return AdapterConfig{
		MentionType: enums.MentionTypeMessage,
		FetchCode:   enums.TaskFetchMessages,
		ReplyWindow: replyWindow,
		FetchWindow: fetchWindow,
	}
}

// FetchAndSync is a no-op: the aggregator exposes no message history
// surface, so message fetch tasks only arrive from the recovery loop.
func (a *messageAdapter) FetchAndSync(ctx context.Context, actor types.Actor) error {
	return nil
}

func (a *messageAdapter) ProcessFetchTask(ctx context.Context, task *models.Task) error {
	return a.pipe.processFetchTask(ctx, task, enums.MentionTypeMessage)
}

func (a *messageAdapter) ProcessReplyTask(ctx context.Context, task *models.Task) error {
	return a.pipe.processReplyTask(ctx, task)
}

func (a *messageAdapter) Reply(ctx context.Context, mention *models.Mention, content string, actor types.Actor) (*models.Task, bool, error) {
	return a.pipe.enqueueReply(ctx, mention, content, actor)
}

// AdapterRegistry resolves the adapter for a mention type. Replies to a
// REPLY mention route through the comment adapter, matching how the
// thread was created.
type AdapterRegistry struct {
	adapters map[enums.MentionType]Adapter
}

func newAdapterRegistry(pipe *pipeline) *AdapterRegistry {
	comment := &commentAdapter{pipe: pipe}
	message := &messageAdapter{pipe: pipe}
	return &AdapterRegistry{
		adapters: map[enums.MentionType]Adapter{
			enums.MentionTypeComment: comment,
			enums.MentionTypeMessage: message,
			enums.MentionTypeReply:   comment,
		},
	}
}

// For returns the adapter for the mention type.
func (r *AdapterRegistry) For(mentionType enums.MentionType) (Adapter, error) {
	adapter, ok := r.adapters[mentionType]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported mention type")
	}
	return adapter, nil
}

// All returns each distinct adapter once (comment, message); REPLY
// mentions share the comment adapter and are not listed again.
func (r *AdapterRegistry) All() []Adapter {
	return []Adapter{
		r.adapters[enums.MentionTypeComment],
		r.adapters[enums.MentionTypeMessage],
	}
}
