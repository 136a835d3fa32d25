package handlers

import (
	"html/template"
	"net/http"
	"net/url"
)

var accessDeniedTmpl = template.Must(template.New("access-denied").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Access denied</title>
</head>
<body>
<main>
<h1>Access denied</h1>
<p>Your account does not have access to this module.</p>
<p><a href="{{.LoginURL}}">Sign in with a different account</a></p>
</main>
</body>
</html>
`))

type accessDeniedPage struct {
	LoginURL string
}

// AccessDenied renders the page module-denied visitors are redirected to.
// The sign-in link carries the return_to of the denied request when it is an
// absolute http(s) URL.
func (h *SessionHandler) AccessDenied(w http.ResponseWriter, r *http.Request) {
	login, err := url.Parse(h.gw.RawLoginURL())
	if err != nil {
		http.Error(w, "login unavailable", http.StatusInternalServerError)
		return
	}
	if back := safeReturnTo(r.URL.Query().Get("return_to")); back != "" {
		q := login.Query()
		q.Set("return_to", back)
		login.RawQuery = q.Encode()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusForbidden)
	_ = accessDeniedTmpl.Execute(w, accessDeniedPage{LoginURL: login.String()})
}

func safeReturnTo(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return u.String()
}
