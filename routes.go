package walletgate

import (
	"fmt"
	"strings"
)

// PathClass is the gate treatment of a request path.
type PathClass string

const (
	// PathAlwaysAllowed skips rate limiting, session and module checks.
	PathAlwaysAllowed PathClass = "allow"
	// PathRequiresSession needs a valid session only.
	PathRequiresSession PathClass = "session"
	// PathRequiresModule needs a valid session and module entitlement.
	PathRequiresModule PathClass = "module"
)

type patternKind uint8

const (
	patternExact patternKind = iota
	patternPrefix
	patternSuffix
)

type pattern struct {
	kind  patternKind
	value string
}

func (p pattern) match(path string) bool {
	switch p.kind {
	case patternPrefix:
		return strings.HasPrefix(path, p.value)
	case patternSuffix:
		return strings.HasSuffix(path, p.value)
	default:
		return path == p.value
	}
}

// parsePattern accepts "/exact", "/prefix/*" and "*.ext". Suffix patterns
// only ever match files at the root, such as "/apple-touch-icon.png".
func parsePattern(raw string) (pattern, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return pattern{}, fmt.Errorf("route pattern must not be empty")
	case strings.HasPrefix(raw, "*"):
		suffix := raw[1:]
		if suffix == "" || strings.Contains(suffix, "*") {
			return pattern{}, fmt.Errorf("route pattern %q is invalid", raw)
		}
		return pattern{kind: patternSuffix, value: suffix}, nil
	case !strings.HasPrefix(raw, "/"):
		return pattern{}, fmt.Errorf("route pattern %q must start with '/' or '*'", raw)
	case strings.HasSuffix(raw, "*"):
		prefix := raw[:len(raw)-1]
		if strings.Contains(prefix, "*") {
			return pattern{}, fmt.Errorf("route pattern %q is invalid", raw)
		}
		return pattern{kind: patternPrefix, value: prefix}, nil
	case strings.Contains(raw, "*"):
		return pattern{}, fmt.Errorf("route pattern %q is invalid", raw)
	default:
		return pattern{kind: patternExact, value: raw}, nil
	}
}

func validatePattern(raw string) error {
	_, err := parsePattern(raw)
	return err
}

// routeTable classifies paths. It is built once and read concurrently.
type routeTable struct {
	allow        []pattern
	sessionOnly  []pattern
	accessDenied string
	apiPrefix    string
}

func newRouteTable(cfg RouteConfig) (routeTable, error) {
	t := routeTable{
		accessDenied: strings.TrimSuffix(cfg.AccessDeniedPath, "/"),
		apiPrefix:    cfg.APIPrefix,
	}
	for _, raw := range cfg.AlwaysAllowed {
		p, err := parsePattern(raw)
		if err != nil {
			return routeTable{}, err
		}
		t.allow = append(t.allow, p)
	}
	for _, raw := range cfg.SessionOnly {
		p, err := parsePattern(raw)
		if err != nil {
			return routeTable{}, err
		}
		t.sessionOnly = append(t.sessionOnly, p)
	}
	return t, nil
}

func (t routeTable) classify(path string) PathClass {
	if path == "" {
		path = "/"
	}
	// Gating the access-denied page would loop.
	if t.accessDenied != "" && (path == t.accessDenied || strings.HasPrefix(path, t.accessDenied+"/")) {
		return PathAlwaysAllowed
	}
	api := t.isAPI(path)
	for _, p := range t.allow {
		// Suffix patterns cover root-level asset files only.
		if p.kind == patternSuffix && (api || strings.LastIndexByte(path, '/') != 0) {
			continue
		}
		if p.match(path) {
			return PathAlwaysAllowed
		}
	}
	for _, p := range t.sessionOnly {
		if p.match(path) {
			return PathRequiresSession
		}
	}
	return PathRequiresModule
}

func (t routeTable) isAPI(path string) bool {
	if t.apiPrefix == "" {
		return false
	}
	return strings.HasPrefix(path, t.apiPrefix) || path+"/" == t.apiPrefix
}
