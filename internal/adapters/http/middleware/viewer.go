package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/securecookie"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const viewerContextKey contextKey = "viewer"

const viewerCookieName = "helphub_viewer"

// Viewer holds one browser's source toggles. The zero value shows bundled
// data everywhere.
type Viewer struct {
	NoticesRemote bool `json:"n,omitempty"`
	LinksRemote   bool `json:"l,omitempty"`
}

// ViewerCookies signs and reads the viewer cookie. The cookie carries no
// Expires or Max-Age, so it ends with the browser session.
type ViewerCookies struct {
	codec  *securecookie.SecureCookie
	secure bool
}

// NewViewerCookies creates a cookie codec.
// PRE: hashKey is at least 32 bytes
// POST: Cookies are HMAC-signed, not encrypted; they hold no secrets
func NewViewerCookies(hashKey []byte, secure bool) *ViewerCookies {
	codec := securecookie.New(hashKey, nil).SetSerializer(securecookie.JSONEncoder{})
	return &ViewerCookies{codec: codec, secure: secure}
}

// Read decodes the viewer from the request. A missing, expired or tampered
// cookie yields the zero Viewer.
func (vc *ViewerCookies) Read(r *http.Request) Viewer {
	cookie, err := r.Cookie(viewerCookieName)
	if err != nil || cookie.Value == "" {
		return Viewer{}
	}
	var v Viewer
	if err := vc.codec.Decode(viewerCookieName, cookie.Value, &v); err != nil {
		slog.Debug("viewer_cookie_rejected", "error", err)
		return Viewer{}
	}
	return v
}

// Write stores v in the response cookie.
// POST: Set-Cookie header added, or the encode error returned
func (vc *ViewerCookies) Write(w http.ResponseWriter, v Viewer) error {
	encoded, err := vc.codec.Encode(viewerCookieName, v)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     viewerCookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   vc.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Middleware puts the request's Viewer in its context. It never blocks.
func (vc *ViewerCookies) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := ContextWithViewer(r.Context(), vc.Read(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ViewerFrom extracts the Viewer from the context, or the zero Viewer.
func ViewerFrom(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerContextKey).(Viewer)
	return v
}

// ContextWithViewer returns a context with the given Viewer set.
func ContextWithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerContextKey, v)
}
