package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/jefoffice/walletgate"
	"github.com/jefoffice/walletgate/middleware"
)

// Identity headers set on proxied requests. Inbound values are always
// replaced so clients cannot assert an identity.
const (
	headerEntityNumber   = "X-Entity-Number"
	headerEmployeeNumber = "X-Employee-Number"
)

// newUpstream forwards gated requests to target. An empty target answers 404,
// which lets the gateway run alone in front of the shared endpoints.
func newUpstream(target string, logger *slog.Logger) (http.Handler, error) {
	if target == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
		}), nil
	}

	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid --upstream %q", target)
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(u)
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host
			forwardIdentity(pr.Out.Header, pr.In)
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn("upstream request failed",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			middleware.WriteError(w, http.StatusBadGateway, "Upstream unavailable")
		},
	}
	return proxy, nil
}

func forwardIdentity(h http.Header, in *http.Request) {
	h.Del(headerEntityNumber)
	h.Del(headerEmployeeNumber)
	if id := walletgate.RequestIDFromContext(in.Context()); id != "" {
		h.Set(middleware.RequestIDHeader, id)
	}
	claims, ok := walletgate.ClaimsFromContext(in.Context())
	if !ok {
		return
	}
	h.Set(headerEntityNumber, claims.EntityNumber)
	h.Set(headerEmployeeNumber, claims.EmployeeNumber)
}
