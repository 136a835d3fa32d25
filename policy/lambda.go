package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

// Invoker is the subset of *lambda.Client used by LambdaValidator.
type Invoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

type invokePayload struct {
	EntityNumber string `json:"entity_number"`
	ModuleNumber string `json:"module_number"`
}

// LambdaValidator invokes the entitlement function synchronously.
type LambdaValidator struct {
	client   Invoker
	function string
}

// NewLambdaValidator returns a Validator calling function (name or ARN).
func NewLambdaValidator(client Invoker, function string) *LambdaValidator {
	return &LambdaValidator{client: client, function: strings.TrimSpace(function)}
}

// Validate implements Validator. The call is bounded by ctx.
func (v *LambdaValidator) Validate(ctx context.Context, entityNumber, moduleNumber string) (Result, error) {
	if v == nil || v.client == nil || v.function == "" {
		return Result{}, fmt.Errorf("%w: lambda validator not configured", ErrUnavailable)
	}

	payload, err := json.Marshal(invokePayload{
		EntityNumber: strings.TrimSpace(entityNumber),
		ModuleNumber: strings.TrimSpace(moduleNumber),
	})
	if err != nil {
		return Result{}, err
	}

	out, err := v.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(v.function),
		InvocationType: lambdatypes.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if out == nil {
		return Result{}, fmt.Errorf("%w: empty invoke output", ErrUnavailable)
	}
	if fe := aws.ToString(out.FunctionError); fe != "" {
		return Result{}, fmt.Errorf("%w: %s", ErrFunctionError, fe)
	}
	if out.StatusCode < 200 || out.StatusCode >= 300 {
		return Result{}, fmt.Errorf("%w: invoke status %d", ErrUnavailable, out.StatusCode)
	}
	return parseResult(out.Payload), nil
}
