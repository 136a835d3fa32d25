package walletgate

import "errors"

var (
	// ErrNoSession means the request carried no usable session token.
	ErrNoSession = errors.New("no session")
	// ErrSessionKey means the session key could not be obtained; the request fails closed.
	ErrSessionKey = errors.New("session key unavailable")
	// ErrRateLimited means the client exhausted its request budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrAccessDenied means the policy service refused the module.
	ErrAccessDenied = errors.New("module access denied")
	// ErrPolicyService means the policy service failed or timed out.
	ErrPolicyService = errors.New("authorization service unavailable")
	// ErrModuleNotConfigured means the gateway has no module id to check.
	ErrModuleNotConfigured = errors.New("module number not configured")
	// ErrGatePanic marks a decision produced by panic recovery.
	ErrGatePanic = errors.New("gate panic recovered")
	// ErrInvalidConfig wraps every Config.Validate failure.
	ErrInvalidConfig = errors.New("invalid walletgate configuration")
)
