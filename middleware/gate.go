package middleware

import (
	"net/http"

	"github.com/jefoffice/walletgate"
)

// Gate runs gw.Evaluate on every request. Passed requests reach next with the
// session claims in the context; everything else is answered here.
func Gate(gw *walletgate.Gateway) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gw == nil {
				WriteError(w, http.StatusUnauthorized, walletgate.MessageUnauthorized)
				return
			}

			d := gw.Evaluate(r)
			if d.Outcome != walletgate.OutcomePass {
				WriteDecision(w, r, d)
				return
			}

			if d.Claims != nil {
				r = r.WithContext(walletgate.WithClaims(r.Context(), d.Claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}
