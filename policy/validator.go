package policy

import (
	"context"
	"fmt"
	"strings"
)

// Result is the policy verdict for one (entity, module) pair.
type Result struct {
	Valid   bool
	Message string
}

// Validator checks module access for an entity.
type Validator interface {
	Validate(ctx context.Context, entityNumber, moduleNumber string) (Result, error)
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, entityNumber, moduleNumber string) (Result, error)

// Validate implements Validator.
func (f ValidatorFunc) Validate(ctx context.Context, entityNumber, moduleNumber string) (Result, error) {
	return f(ctx, entityNumber, moduleNumber)
}

// StaticValidator grants the listed modules per entity. It stands in for the
// remote service in local development and tests.
type StaticValidator struct {
	// Grants maps entity_number to allowed module numbers. The entity "*"
	// applies to everyone.
	Grants map[string][]string
}

// Validate implements Validator.
func (s StaticValidator) Validate(ctx context.Context, entityNumber, moduleNumber string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	entityNumber = strings.TrimSpace(entityNumber)
	moduleNumber = strings.TrimSpace(moduleNumber)
	for _, entity := range []string{entityNumber, "*"} {
		for _, m := range s.Grants[entity] {
			if m == moduleNumber {
				return Result{Valid: true, Message: "Module access granted"}, nil
			}
		}
	}
	return Result{Valid: false, Message: "Module access denied"}, nil
}
