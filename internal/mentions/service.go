package mentions

import (
	"context"
	"time"
	"unicode/utf8"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/davidnajera/mentiondesk-backend/pkg/audit"
	"github.com/davidnajera/mentiondesk-backend/pkg/batch"
	"github.com/davidnajera/mentiondesk-backend/pkg/clock"
	"github.com/davidnajera/mentiondesk-backend/pkg/db/models"
	"github.com/davidnajera/mentiondesk-backend/pkg/enums"
	pkgerrors "github.com/davidnajera/mentiondesk-backend/pkg/errors"
	"github.com/davidnajera/mentiondesk-backend/pkg/logger"
	"github.com/davidnajera/mentiondesk-backend/pkg/metrics"
	"github.com/davidnajera/mentiondesk-backend/pkg/outbox"
	"github.com/davidnajera/mentiondesk-backend/pkg/types"
)

const (
	defaultWaitMS     = 2000
	maxReplyContent   = 10000
	loopReplyMention  = "reply_mention"
	loopFetchComments = "fetch_comments"
)

// ServiceParams wire the mention engine.
type ServiceParams struct {
	DB       txRunner
	Mentions *Repository
	Tasks    *outbox.Repository
	Audits   *audit.Writer
	Social   SocialGateway
	Clock    clock.Clock
	Logger   *logger.Logger
	Metrics  *metrics.LoopMetrics
}

// Service is the operator-facing mention engine.
type Service struct {
	pipe     *pipeline
	registry *AdapterRegistry
	logg     *logger.Logger
	metrics  *metrics.LoopMetrics
}

// NewService builds the engine and its adapter registry.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db client required")
	}
	if params.Mentions == nil || params.Tasks == nil || params.Audits == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "repositories required")
	}
	if params.Social == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "social gateway required")
	}
	clk := params.Clock
	if clk == nil {
		clk = clock.New()
	}
	pipe := &pipeline{
		db:       params.DB,
		mentions: params.Mentions,
		tasks:    params.Tasks,
		audits:   params.Audits,
		social:   params.Social,
		clk:      clk,
		logg:     params.Logger,
	}
	return &Service{
		pipe:     pipe,
		registry: newAdapterRegistry(pipe),
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// ListParams configure a mention listing.
type ListParams struct {
	WaitMS int
	Actor  types.Actor
}

// ListMeta reports sync progress alongside the listing.
type ListMeta struct {
	IsSyncing bool     `json:"isSyncing"`
	Errors    []string `json:"errors,omitempty"`
}

// ListResult wraps the mentions and the sync meta.
type ListResult struct {
	Items []models.Mention `json:"items"`
	Meta  ListMeta         `json:"meta"`
}

// ListMentions races a background fetch-and-reconcile against the wait
// budget, then returns the newest-first snapshot. When the upstream is
// slower than the budget the caller sees the last known snapshot with
// isSyncing=true; the background sync runs to completion regardless.
func (s *Service) ListMentions(ctx context.Context, params ListParams) (*ListResult, error) {
	waitMS := params.WaitMS
	if waitMS <= 0 {
		waitMS = defaultWaitMS
	}

	syncCtx := context.Background()
	if s.logg != nil {
		syncCtx = s.logg.WithField(syncCtx, "actor", params.Actor.Ref())
	}
	done := make(chan error, 1)
	go func() {
		done <- s.syncOnce(syncCtx, params.Actor)
	}()

	timeout := make(chan struct{})
	go func() {
		_ = s.pipe.clk.Sleep(ctx, time.Duration(waitMS)*time.Millisecond)
		close(timeout)
	}()

	meta := ListMeta{}
	select {
	case err := <-done:
		if err != nil {
			meta.Errors = []string{err.Error()}
		}
	case <-timeout:
		meta.IsSyncing = true
	}

	items, err := s.pipe.mentions.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list mentions")
	}
	return &ListResult{Items: items, Meta: meta}, nil
}

// syncOnce sweeps the recovery windows and reconciles fresh posts.
func (s *Service) syncOnce(ctx context.Context, actor types.Actor) error {
	var errs error
	if err := s.RecoverReplyTasks(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := s.RecoverFetchTasks(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	for _, adapter := range s.registry.All() {
		if err := adapter.FetchAndSync(ctx, actor); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// RecoverReplyTasks re-processes unfinished reply tasks still inside the
// recovery window, ten at a time.
func (s *Service) RecoverReplyTasks(ctx context.Context) error {
	start := s.pipe.clk.Now()
	tasks, err := s.pipe.tasks.FindUnfinished(ctx, enums.TaskReplyMention, start.Add(-replyWindow))
	if err != nil {
		s.observeLoop(loopReplyMention, start, err)
		return err
	}

	_, err = batch.Process(ctx, tasks, batch.Options{
		Limit: fanOutLimit,
		Clock: s.pipe.clk,
		OnError: func(index int, err error) {
			if s.logg != nil {
				logCtx := s.logg.WithField(ctx, "task_id", tasks[index].ID)
				s.logg.Error(logCtx, "reply task recovery failed", err)
			}
		},
	}, func(ctx context.Context, task models.Task) (struct{}, error) {
		return struct{}{}, s.pipe.processReplyTask(ctx, &task)
	})
	s.observeLoop(loopReplyMention, start, err)
	return err
}

// RecoverFetchTasks re-processes unfinished fetch tasks per adapter.
func (s *Service) RecoverFetchTasks(ctx context.Context) error {
	start := s.pipe.clk.Now()
	var errs error
	for _, adapter := range s.registry.All() {
		cfg := adapter.Config()
		tasks, err := s.pipe.tasks.FindUnfinished(ctx, cfg.FetchCode, start.Add(-cfg.FetchWindow))
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		_, err = batch.Process(ctx, tasks, batch.Options{
			Limit: fanOutLimit,
			Clock: s.pipe.clk,
			OnError: func(index int, err error) {
				if s.logg != nil {
					logCtx := s.logg.WithField(ctx, "task_id", tasks[index].ID)
					s.logg.Error(logCtx, "fetch task recovery failed", err)
				}
			},
		}, func(ctx context.Context, task models.Task) (struct{}, error) {
			return struct{}{}, adapter.ProcessFetchTask(ctx, &task)
		})
		if err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	s.observeLoop(loopFetchComments, start, errs)
	return errs
}

func (s *Service) observeLoop(loop string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDuration(loop, s.pipe.clk.Now().Sub(start))
	if err != nil {
		s.metrics.IncFailure(loop)
		return
	}
	s.metrics.IncSuccess(loop)
}

// UpdatePatch carries the operator-editable mention fields. UserIDSet
// distinguishes an absent userId from an explicit null.
type UpdatePatch struct {
	UserIDSet   bool
	UserID      *int64
	Disposition *string
}

// UpdateMention applies the patch atomically. A non-null userId marks
// the mention ASSIGNMENT and writes the assignment audit; an explicit
// null on a previously assigned mention clears the state.
func (s *Service) UpdateMention(ctx context.Context, id int64, patch UpdatePatch, actor types.Actor) (*models.Mention, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mention id must be a positive integer")
	}

	var updated *models.Mention
	err := s.pipe.db.WithTx(ctx, func(tx *gorm.DB) error {
		mention, err := s.pipe.mentions.FindByIDTx(tx, id)
		if err != nil {
			return err
		}
		if mention == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "mention not found")
		}

		if patch.UserIDSet {
			if patch.UserID != nil {
				state := enums.MentionStateAssignment
				mention.State = &state
				if err := s.pipe.audits.WriteTx(tx, enums.AuditAssignment, map[string]any{
					"mentionId": mention.ID,
					"userId":    *patch.UserID,
				}, actor.Ref()); err != nil {
					return err
				}
			} else if mention.UserID != nil {
				mention.State = nil
			}
			mention.UserID = patch.UserID
		}
		if patch.Disposition != nil {
			mention.Disposition = *patch.Disposition
		}

		if err := s.pipe.mentions.UpdateTx(tx, mention); err != nil {
			return err
		}
		updated = mention
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update mention")
	}
	return updated, nil
}

// ReplyParams describe one operator reply.
type ReplyParams struct {
	MentionID int64
	Content   string
	Actor     types.Actor
}

// ReplyOutcome reports what the reply attempt did.
type ReplyOutcome struct {
	Task    *models.Task    `json:"task"`
	Ignored bool            `json:"ignored"`
	Mention *models.Mention `json:"mention"`
}

// ReplyToMention validates, claims the reply slot through the adapter for
// the mention's type, and processes the task synchronously so the
// operator sees a best-effort immediate result.
func (s *Service) ReplyToMention(ctx context.Context, params ReplyParams) (*ReplyOutcome, error) {
	if params.MentionID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mentionId must be a positive integer")
	}
	if params.Content == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content is required")
	}
	if utf8.RuneCountInString(params.Content) > maxReplyContent {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content exceeds 10000 characters")
	}
	if params.Actor.ID == 0 || params.Actor.Email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id and email are required")
	}

	mention, err := s.pipe.mentions.FindByID(ctx, params.MentionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load mention")
	}
	if mention == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "mention not found")
	}

	adapter, err := s.registry.For(mention.Type)
	if err != nil {
		return nil, err
	}

	task, ignored, err := adapter.Reply(ctx, mention, params.Content, params.Actor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue reply")
	}

	if !ignored {
		if err := adapter.ProcessReplyTask(ctx, task); err != nil && s.logg != nil {
			logCtx := s.logg.WithField(ctx, "task_id", task.ID)
			s.logg.Error(logCtx, "immediate reply processing failed", err)
		}
	}

	fresh, err := s.pipe.mentions.FindByID(ctx, params.MentionID)
	if err == nil && fresh != nil {
		mention = fresh
	}
	return &ReplyOutcome{Task: task, Ignored: ignored, Mention: mention}, nil
}
