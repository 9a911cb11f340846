package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/google/uuid"
)

// GuestCartCookie holds the anonymous cart id for shoppers who are not signed in.
const GuestCartCookie = "sf_cart"

// GuestCart resolves the cart owner for requests that OptionalAuth left
// anonymous, issuing a fresh guest cookie when none is present.
func GuestCart(cfg config.CartConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if CartOwnerFromContext(r.Context()) != "" {
				next.ServeHTTP(w, r)
				return
			}

			owner := GuestOwnerFromRequest(r)
			if owner == "" {
				id := uuid.NewString()
				owner = cart.GuestOwner(id)
				http.SetCookie(w, guestCookie(cfg, id, cfg.TTL))
			}

			ctx := WithCartOwner(r.Context(), owner)
			if logg != nil {
				ctx = logg.WithCartOwner(ctx, owner.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GuestOwnerFromRequest returns the guest cart named by the cookie, or "" when
// the cookie is missing or malformed.
func GuestOwnerFromRequest(r *http.Request) cart.Owner {
	c, err := r.Cookie(GuestCartCookie)
	if err != nil {
		return ""
	}
	id, err := uuid.Parse(strings.TrimSpace(c.Value))
	if err != nil {
		return ""
	}
	return cart.GuestOwner(id.String())
}

// ClearGuestCart expires the guest cookie once its cart has been merged.
func ClearGuestCart(w http.ResponseWriter, cfg config.CartConfig) {
	c := guestCookie(cfg, "", 0)
	c.MaxAge = -1
	http.SetCookie(w, c)
}

func guestCookie(cfg config.CartConfig, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     GuestCartCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
