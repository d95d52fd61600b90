package middleware

import (
	"fmt"
	"net/http"

	"github.com/davidnajera/mentiondesk-backend/api/responses"
	pkgerrors "github.com/davidnajera/mentiondesk-backend/pkg/errors"
	"github.com/davidnajera/mentiondesk-backend/pkg/logger"
)

// Recoverer converts panics into 500 responses.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					err := fmt.Errorf("panic: %v", rec)
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "request panicked"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
