package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/signcast/notify/internal/domain"
)

const screenKey contextKey = "screen"

// ScreenHeader carries the screen identifier on device endpoints.
const ScreenHeader = "X-Screen-ID"

// ScreenAuthenticator is the minimal device-auth surface the middleware needs.
type ScreenAuthenticator interface {
	Authenticate(ctx context.Context, screenID, deviceToken string) (*domain.Screen, error)
}

// DeviceAuth returns middleware that authenticates a device by its
// bearer token plus X-Screen-ID header and injects the resolved screen
// into context.
func DeviceAuth(screens ScreenAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			screenID := r.Header.Get(ScreenHeader)
			if screenID == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing screen identifier")
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")
			scr, err := screens.Authenticate(r.Context(), screenID, token)
			if err != nil {
				if errors.Is(err, domain.ErrForbidden) {
					writeJSONError(w, http.StatusForbidden, "screen disabled")
					return
				}
				writeJSONError(w, http.StatusUnauthorized, "invalid device credentials")
				return
			}
			ctx := context.WithValue(r.Context(), screenKey, scr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ScreenFromContext extracts the authenticated screen from the request context.
func ScreenFromContext(ctx context.Context) (*domain.Screen, bool) {
	s, ok := ctx.Value(screenKey).(*domain.Screen)
	return s, ok
}
