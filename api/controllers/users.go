package controllers

import (
	"net/http"

	"github.com/davidnajera/mentiondesk-backend/api/responses"
	"github.com/davidnajera/mentiondesk-backend/api/validators"
	"github.com/davidnajera/mentiondesk-backend/internal/users"
	"github.com/davidnajera/mentiondesk-backend/pkg/logger"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserLogin issues a bearer token for valid credentials.
func UserLogin(svc *users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
