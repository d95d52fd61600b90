package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/davidnajera/mentiondesk-backend/api/middleware"
	"github.com/davidnajera/mentiondesk-backend/api/responses"
	"github.com/davidnajera/mentiondesk-backend/api/validators"
	"github.com/davidnajera/mentiondesk-backend/internal/mentions"
	pkgerrors "github.com/davidnajera/mentiondesk-backend/pkg/errors"
	"github.com/davidnajera/mentiondesk-backend/pkg/logger"
)

// ListMentions triggers a bounded sync and returns the snapshot.
func ListMentions(svc *mentions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor"))
			return
		}

		waitMS := 0
		if raw := r.URL.Query().Get("waitMs"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "waitMs must be a non-negative integer"))
				return
			}
			waitMS = parsed
		}

		result, err := svc.ListMentions(r.Context(), mentions.ListParams{WaitMS: waitMS, Actor: actor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMeta(w, result.Items, result.Meta)
	}
}

type updateMentionRequest struct {
	UserID      json.RawMessage `json:"userId,omitempty"`
	Disposition *string         `json:"disposition,omitempty"`
}

// UpdateMention patches assignment and disposition.
func UpdateMention(svc *mentions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor"))
			return
		}

		id, err := mentionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateMentionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		patch := mentions.UpdatePatch{Disposition: req.Disposition}
		if len(req.UserID) > 0 {
			patch.UserIDSet = true
			if string(req.UserID) != "null" {
				var userID int64
				if err := json.Unmarshal(req.UserID, &userID); err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "userId must be a number or null"))
					return
				}
				patch.UserID = &userID
			}
		}

		mention, err := svc.UpdateMention(r.Context(), id, patch, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mention)
	}
}

type replyMentionRequest struct {
	Content string `json:"content" validate:"required"`
}

// ReplyToMention claims the reply slot and processes it inline.
func ReplyToMention(svc *mentions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor"))
			return
		}

		id, err := mentionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req replyMentionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := svc.ReplyToMention(r.Context(), mentions.ReplyParams{
			MentionID: id,
			Content:   req.Content,
			Actor:     actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}

func mentionIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "mention id must be a positive integer")
	}
	return id, nil
}
