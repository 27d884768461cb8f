package middleware

import (
	"net/http"
	"strings"

	"github.com/ledgerscan/ledgerscan-backend/internal/workspace/store"
	"github.com/ledgerscan/ledgerscan-backend/internal/workspace/token"
	"github.com/ledgerscan/ledgerscan-backend/pkg/errors"
	"github.com/ledgerscan/ledgerscan-backend/pkg/httputil"
)

// RequireWorkspace validates the Bearer session token, checks the workspace
// still exists, and injects the workspace ID into the request context
func RequireWorkspace(tokens *token.Manager, records *store.RecordStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.ErrorLocalized(w, r, errors.Unauthorized("missing authorization header"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				httputil.ErrorLocalized(w, r, errors.Unauthorized("invalid authorization header format"))
				return
			}

			claims, err := tokens.Validate(parts[1])
			if err != nil {
				httputil.ErrorLocalized(w, r, err)
				return
			}

			// A valid token can outlive its workspace; the TTL cleanup
			// may have dropped it already
			if _, err := records.Get(claims.WorkspaceID); err != nil {
				httputil.ErrorLocalized(w, r, err)
				return
			}

			ctx := httputil.WithWorkspaceID(r.Context(), claims.WorkspaceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
