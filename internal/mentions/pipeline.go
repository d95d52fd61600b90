package mentions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/davidnajera/mentiondesk-backend/internal/social"
	"github.com/davidnajera/mentiondesk-backend/pkg/audit"
	"github.com/davidnajera/mentiondesk-backend/pkg/batch"
	"github.com/davidnajera/mentiondesk-backend/pkg/clock"
	dbpkg "github.com/davidnajera/mentiondesk-backend/pkg/db"
	"github.com/davidnajera/mentiondesk-backend/pkg/db/models"
	"github.com/davidnajera/mentiondesk-backend/pkg/enums"
	"github.com/davidnajera/mentiondesk-backend/pkg/logger"
	"github.com/davidnajera/mentiondesk-backend/pkg/outbox"
	"github.com/davidnajera/mentiondesk-backend/pkg/types"
)

const (
	// replyWindow bounds how long an unfinished reply task stays claimed
	// before a fresh attempt may replace it.
	replyWindow = 5 * time.Minute
	// fetchWindow bounds redundant fetches across callers and processes.
	fetchWindow = 10 * time.Minute

	fanOutLimit = 10
)

// SocialGateway is the platform surface the engine drives.
type SocialGateway interface {
	ListRecentPosts(ctx context.Context, actor types.Actor) ([]social.Post, error)
	ListComments(ctx context.Context, post social.Post, actor types.Actor) ([]social.Comment, error)
	ReplyToComment(ctx context.Context, target social.ReplyTarget, content string, actor types.Actor) (*social.ReplyResult, error)
}

// txRunner is the transactional surface of the db client.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// pipeline carries the fetch and reply machinery shared by the adapters.
type pipeline struct {
	db       txRunner
	mentions *Repository
	tasks    *outbox.Repository
	audits   *audit.Writer
	social   SocialGateway
	clk      clock.Clock
	logg     *logger.Logger
}

// enqueueReply claims the one reply slot for a mention. In one
// transaction it clears stale unfinished attempts, inserts the task,
// writes the attempt audit, and advances the mention state. A unique
// index rejection means another attempt holds the slot: the claim is
// recorded as REPLY_MENTION_IGNORED instead and ignored=true is
// returned.
func (p *pipeline) enqueueReply(ctx context.Context, mention *models.Mention, content string, actor types.Actor) (*models.Task, bool, error) {
	now := p.clk.Now()
	data := newReplyTaskData(mention.ID, content, actor)
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, false, err
	}

	task := &models.Task{
		Code:      enums.TaskReplyMention,
		Data:      payload,
		StartedAt: &now,
		CreatedBy: actor.Ref(),
	}

	err = p.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := p.tasks.DeleteStaleRepliesTx(tx, mention.ID, now.Add(-replyWindow)); err != nil {
			return err
		}
		if err := p.tasks.InsertTx(tx, task); err != nil {
			return err
		}
		if err := p.audits.WriteTx(tx, enums.AuditReplyAttempt, map[string]any{
			"mentionId": mention.ID,
			"taskId":    task.ID,
			"content":   content,
		}, actor.Ref()); err != nil {
			return err
		}
		state := enums.MentionStateReplyAttempt
		mention.State = &state
		return p.mentions.UpdateTx(tx, mention)
	})
	if err == nil {
		return task, false, nil
	}
	if !dbpkg.IsUniqueViolation(err, outbox.ReplyUniqueIndex) {
		return nil, false, err
	}

	// the reply slot is taken; record the ignored attempt and stop
	data.IsIgnored = true
	payload, marshalErr := json.Marshal(data)
	if marshalErr != nil {
		return nil, false, marshalErr
	}
	ignored := &models.Task{
		Code:       enums.TaskReplyMentionIgnore,
		Data:       payload,
		StartedAt:  &now,
		FinishedAt: &now,
		CreatedBy:  actor.Ref(),
	}
	err = p.db.WithTx(ctx, func(tx *gorm.DB) error {
		return p.tasks.InsertTx(tx, ignored)
	})
	if err != nil {
		return nil, false, err
	}
	return ignored, true, nil
}

// processReplyTask sends the reply upstream and settles the task. The
// upstream call deliberately runs inside the store transaction so the
// mention update and the child insert commit atomically with the
// provider acknowledgement; a crash between commit and acknowledgement
// can surface as a duplicate reply on recovery.
func (p *pipeline) processReplyTask(ctx context.Context, task *models.Task) error {
	var data replyTaskData
	if err := json.Unmarshal(task.Data, &data); err != nil {
		return fmt.Errorf("decode reply task %d: %w", task.ID, err)
	}
	if data.IsIgnored {
		return nil
	}

	mention, err := p.mentions.FindByID(ctx, data.mentionID())
	if err != nil {
		return err
	}
	if mention == nil {
		if p.logg != nil {
			logCtx := p.logg.WithField(ctx, "task_id", task.ID)
			p.logg.Warn(logCtx, "reply task references a vanished mention")
		}
		return nil
	}

	return p.db.WithTx(ctx, func(tx *gorm.DB) error {
		target := social.ReplyTarget{
			Platform:   mention.Platform,
			CommentRef: mention.SocialMediaPlatformRef,
		}

		result, callErr := p.social.ReplyToComment(ctx, target, data.Content, data.Actor)
		if callErr != nil {
			return p.settleReplyFailure(tx, task, mention, data, []byte(fmt.Sprintf("%q", callErr.Error())))
		}

		data.Result = result.Raw
		if result.Status != social.ReplyStatusSuccess {
			return p.settleReplyFailure(tx, task, mention, data, result.Raw)
		}

		child := &models.Mention{
			Content:                data.Content,
			SocialMediaPlatformRef: fmt.Sprintf("reply:%d:%d", mention.ID, task.ID),
			SocialMediaAPIPostRef:  mention.SocialMediaAPIPostRef,
			Platform:               mention.Platform,
			Type:                   enums.MentionTypeReply,
			MentionID:              &mention.ID,
		}
		if echo, ok := result.Echo(mention.Platform); ok {
			if echo.Comment != "" {
				child.Content = echo.Comment
			}
			if echo.CommentID != "" {
				child.SocialMediaPlatformRef = echo.CommentID
			}
		}
		childData, err := json.Marshal(models.MentionData{
			SocialMediaPayload: result.Raw,
			TaskID:             task.ID,
		})
		if err != nil {
			return err
		}
		child.Data = childData
		if err := p.mentions.CreateTx(tx, child); err != nil {
			return err
		}

		state := enums.MentionStateReplied
		mention.State = &state
		if err := p.mentions.UpdateTx(tx, mention); err != nil {
			return err
		}

		now := p.clk.Now()
		task.FinishedAt = &now
		payload, err := json.Marshal(data)
		if err != nil {
			return err
		}
		task.Data = payload
		return p.tasks.UpdateTx(tx, task)
	})
}

// settleReplyFailure records the provider outcome and leaves the task
// open so the recovery loop retries it until the window expires.
func (p *pipeline) settleReplyFailure(tx *gorm.DB, task *models.Task, mention *models.Mention, data replyTaskData, raw json.RawMessage) error {
	state := enums.MentionStateProviderError
	mention.State = &state
	if err := p.mentions.UpdateTx(tx, mention); err != nil {
		return err
	}

	data.Result = raw
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	task.Data = payload
	task.FinishedAt = nil
	return p.tasks.UpdateTx(tx, task)
}

// processFetchTask reconciles every post on the task, upserting each
// comment batch as it lands. Per-post failures are logged and the task
// still finishes so the recovery loop does not spin on it.
func (p *pipeline) processFetchTask(ctx context.Context, task *models.Task, mentionType enums.MentionType) error {
	var data fetchTaskData
	if err := json.Unmarshal(task.Data, &data); err != nil {
		return fmt.Errorf("decode fetch task %d: %w", task.ID, err)
	}
	posts, err := data.posts()
	if err != nil {
		return fmt.Errorf("decode fetch task %d posts: %w", task.ID, err)
	}

	actor := types.Actor{Email: task.CreatedBy}
	var fetchErrs []string

	batches, err := batch.Process(ctx, posts, batch.Options{
		Limit: fanOutLimit,
		Clock: p.clk,
		OnError: func(index int, err error) {
			fetchErrs = append(fetchErrs, err.Error())
			if p.logg != nil {
				logCtx := p.logg.WithFields(ctx, map[string]any{
					"task_id": task.ID,
					"post":    posts[index].ID,
				})
				p.logg.Error(logCtx, "comment fetch failed for post", err)
			}
		},
	}, func(ctx context.Context, post social.Post) ([]social.Comment, error) {
		comments, err := p.social.ListComments(ctx, post, actor)
		if err != nil {
			return nil, fmt.Errorf("post %s: %w", post.ID, err)
		}
		if len(comments) == 0 {
			return comments, nil
		}
		if err := p.ingestComments(ctx, task.ID, mentionType, comments); err != nil {
			return nil, fmt.Errorf("post %s: %w", post.ID, err)
		}
		return comments, nil
	})
	if err != nil {
		return err
	}

	var comments []social.Comment
	for _, chunk := range batches {
		comments = append(comments, chunk...)
	}

	postIDs := make([]string, 0, len(posts))
	for _, post := range posts {
		postIDs = append(postIDs, post.ID)
	}
	payload, err := finishedFetchTaskData(postIDs, comments, fetchErrs)
	if err != nil {
		return err
	}

	now := p.clk.Now()
	task.Data = payload
	task.FinishedAt = &now
	return p.db.WithTx(ctx, func(tx *gorm.DB) error {
		return p.tasks.UpdateTx(tx, task)
	})
}

// ingestComments upserts a comment batch, keyed on the platform ref.
func (p *pipeline) ingestComments(ctx context.Context, taskID int64, mentionType enums.MentionType, comments []social.Comment) error {
	seeds := make([]mentionSeed, 0, len(comments))
	for _, comment := range comments {
		payload, err := json.Marshal(comment)
		if err != nil {
			return err
		}
		data, err := json.Marshal(models.MentionData{
			SocialMediaPayload: payload,
			TaskID:             taskID,
		})
		if err != nil {
			return err
		}
		seeds = append(seeds, mentionSeed{
			Content:     comment.Comment,
			PlatformRef: comment.CommentID,
			APIPostRef:  comment.APIPostID,
			Platform:    comment.Platform,
			Type:        string(mentionType),
			Data:        data,
		})
	}
	return p.db.WithTx(ctx, func(tx *gorm.DB) error {
		return p.mentions.UpsertSeedsTx(tx, seeds)
	})
}

// fetchAndReconcile lists recent posts, drops the ones already covered
// by a recent fetch task, and runs a fresh task over the remainder.
func (p *pipeline) fetchAndReconcile(ctx context.Context, code enums.TaskCode, mentionType enums.MentionType, actor types.Actor) error {
	posts, err := p.social.ListRecentPosts(ctx, actor)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		return nil
	}

	recent, err := p.tasks.FindRecent(ctx, code, p.clk.Now().Add(-fetchWindow))
	if err != nil {
		return err
	}
	covered := make(map[string]struct{})
	for _, task := range recent {
		var data fetchTaskData
		if err := json.Unmarshal(task.Data, &data); err != nil {
			continue
		}
		for _, id := range data.postIDs() {
			covered[id] = struct{}{}
		}
	}

	fresh := make([]social.Post, 0, len(posts))
	for _, post := range posts {
		if _, ok := covered[post.ID]; ok {
			continue
		}
		fresh = append(fresh, post)
	}
	if len(fresh) == 0 {
		return nil
	}

	payload, err := newFetchTaskData(fresh)
	if err != nil {
		return err
	}
	now := p.clk.Now()
	task := &models.Task{
		Code:      code,
		Data:      payload,
		StartedAt: &now,
		CreatedBy: actor.Ref(),
	}
	if err := p.db.WithTx(ctx, func(tx *gorm.DB) error {
		return p.tasks.InsertTx(tx, task)
	}); err != nil {
		return err
	}

	return p.processFetchTask(ctx, task, mentionType)
}
