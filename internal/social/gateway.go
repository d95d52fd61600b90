package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/multierr"

	"github.com/davidnajera/mentiondesk-backend/pkg/breaker"
	"github.com/davidnajera/mentiondesk-backend/pkg/config"
	pkgerrors "github.com/davidnajera/mentiondesk-backend/pkg/errors"
	"github.com/davidnajera/mentiondesk-backend/pkg/gateway"
	"github.com/davidnajera/mentiondesk-backend/pkg/logger"
	"github.com/davidnajera/mentiondesk-backend/pkg/retry"
	"github.com/davidnajera/mentiondesk-backend/pkg/types"
)

// Upstream is the single-request surface of the HTTP gateway client.
type Upstream interface {
	DoJSON(ctx context.Context, req gateway.Request, dest any) error
}

// ReplyTarget names the upstream comment a reply is addressed to.
type ReplyTarget struct {
	Platform   string
	CommentRef string
}

// Gateway composes retry(breaker(http)) per platform. The ordering
// matters: the breaker counts one failure per underlying attempt, and
// the retry layer gives up as soon as the breaker opens.
type Gateway struct {
	cfg      config.SocialConfig
	retryCfg config.RetryConfig
	client   Upstream
	breakers *breaker.Registry
	store    breaker.Store
	logg     *logger.Logger

	mtx     sync.Mutex
	engines map[string]*retry.Engine
}

// Params wire the gateway.
type Params struct {
	Config   config.SocialConfig
	Retry    config.RetryConfig
	Client   Upstream
	Breakers *breaker.Registry
	Store    breaker.Store
	Logger   *logger.Logger
}

// New builds the social gateway.
func New(params Params) (*Gateway, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("upstream client is required")
	}
	if params.Breakers == nil {
		return nil, fmt.Errorf("breaker registry is required")
	}
	return &Gateway{
		cfg:      params.Config,
		retryCfg: params.Retry,
		client:   params.Client,
		breakers: params.Breakers,
		store:    params.Store,
		logg:     params.Logger,
		engines:  make(map[string]*retry.Engine),
	}, nil
}

// Platforms returns the configured platform list.
func (g *Gateway) Platforms() []string {
	return g.cfg.Platforms
}

func (g *Gateway) engineFor(platform string, br *breaker.Breaker) *retry.Engine {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	if eng, ok := g.engines[platform]; ok {
		return eng
	}
	eng := retry.New(retry.Options{
		MaxRetries:   g.retryCfg.MaxRetries,
		InitialDelay: g.retryCfg.InitialDelay,
		MaxDelay:     g.retryCfg.MaxDelay,
		ShouldRetry: func(err error) bool {
			if br.State() != breaker.StateClosed {
				return false
			}
			return gateway.IsRetryable(err)
		},
	})
	g.engines[platform] = eng
	return eng
}

func (g *Gateway) execute(ctx context.Context, platform string, fn func(ctx context.Context) error) error {
	br := g.breakers.Get(platform)
	eng := g.engineFor(br.Name(), br)
	return eng.Do(ctx, func(ctx context.Context) error {
		return br.Execute(ctx, func() error {
			return fn(ctx)
		})
	})
}

// ListRecentPosts pulls history for every configured platform. Platform
// failures are logged and skipped; the call only fails when no platform
// responded.
func (g *Gateway) ListRecentPosts(ctx context.Context, actor types.Actor) ([]Post, error) {
	var (
		posts []Post
		errs  []error
	)
	responded := false

	for _, platform := range g.cfg.Platforms {
		query := url.Values{}
		query.Set("lastDays", strconv.Itoa(g.cfg.HistoryLastDays))
		query.Set("platform", platform)

		var resp historyResponse
		err := g.execute(ctx, platform, func(ctx context.Context) error {
			return g.client.DoJSON(ctx, gateway.Request{
				Method: "GET",
				Path:   "/history",
				Query:  query,
			}, &resp)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", platform, err))
			if g.logg != nil {
				logCtx := g.logg.WithFields(ctx, map[string]any{
					"platform": platform,
					"actor":    actor.Ref(),
				})
				g.logg.Warn(logCtx, "history fetch failed, skipping platform")
			}
			continue
		}

		responded = true
		for _, post := range resp.History {
			if post.Platform == "" {
				post.Platform = platform
			}
			posts = append(posts, post)
		}
	}

	if !responded && len(errs) > 0 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, multierr.Combine(errs...), "list recent posts")
	}
	return posts, nil
}

// ListComments fetches a post's comments and passes each platform batch
// through its comment filter. Each comment is tagged with the aggregator
// post id it came from.
func (g *Gateway) ListComments(ctx context.Context, post Post, actor types.Actor) ([]Comment, error) {
	var raw map[string]json.RawMessage
	err := g.execute(ctx, post.Platform, func(ctx context.Context) error {
		return g.client.DoJSON(ctx, gateway.Request{
			Method: "GET",
			Path:   "/comments/" + url.PathEscape(post.ID),
		}, &raw)
	})
	if err != nil {
		return nil, err
	}

	var comments []Comment
	for platform, payload := range raw {
		var batch []Comment
		if err := json.Unmarshal(payload, &batch); err != nil {
			// non-list keys (counts, cursors) are not comment batches
			continue
		}
		batch = filterFor(platform)(post, batch)
		for _, comment := range batch {
			if comment.Platform == "" {
				comment.Platform = platform
			}
			comment.APIPostID = post.ID
			comments = append(comments, comment)
		}
	}
	return comments, nil
}

// ReplyToComment posts a reply to the upstream comment. The caller owns
// any store mutation that should commit with the acknowledgement.
func (g *Gateway) ReplyToComment(ctx context.Context, target ReplyTarget, content string, actor types.Actor) (*ReplyResult, error) {
	var raw map[string]json.RawMessage
	err := g.execute(ctx, target.Platform, func(ctx context.Context) error {
		return g.client.DoJSON(ctx, gateway.Request{
			Method: "POST",
			Path:   "/comments/" + url.PathEscape(target.CommentRef) + "/reply",
			Body: map[string]any{
				"comment":          content,
				"platforms":        []string{target.Platform},
				"searchPlatformId": true,
			},
		}, &raw)
	})
	if err != nil {
		return nil, err
	}
	return normalizeReply(raw), nil
}

func normalizeReply(raw map[string]json.RawMessage) *ReplyResult {
	result := &ReplyResult{
		Status: "error",
		Echoes: make(map[string]ReplyEcho),
	}
	if payload, err := json.Marshal(raw); err == nil {
		result.Raw = payload
	}

	if successRaw, ok := raw["success"]; ok {
		var success bool
		if err := json.Unmarshal(successRaw, &success); err == nil && success {
			result.Status = ReplyStatusSuccess
		}
	}

	for key, payload := range raw {
		if key == "success" {
			continue
		}
		var echo ReplyEcho
		if err := json.Unmarshal(payload, &echo); err != nil {
			continue
		}
		if echo.CommentID == "" && echo.Comment == "" {
			continue
		}
		result.Echoes[key] = echo
	}
	return result
}

// HealthSnapshot aggregates persisted circuit state. Healthy means every
// circuit is CLOSED.
func (g *Gateway) HealthSnapshot(ctx context.Context) (HealthSnapshot, error) {
	snapshot := HealthSnapshot{Status: HealthStatusHealthy}
	if g.store == nil {
		return snapshot, nil
	}

	rows, err := g.store.List(ctx)
	if err != nil {
		return HealthSnapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read circuit state")
	}
	names := make([]string, 0, len(rows))
	for name := range rows {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		snap := rows[name]
		healthy := snap.State == breaker.StateClosed
		if !healthy {
			snapshot.Status = HealthStatusDegraded
		}
		snapshot.Circuits = append(snapshot.Circuits, CircuitHealth{
			Platform: name,
			Healthy:  healthy,
			State:    string(snap.State),
		})
	}
	return snapshot, nil
}
