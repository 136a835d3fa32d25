package keys

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// ParameterGetter is the subset of *ssm.Client used by SSMStore.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMStore reads SecureString parameters from AWS Systems Manager.
type SSMStore struct {
	client ParameterGetter
}

// NewSSMStore wraps an SSM client.
func NewSSMStore(client ParameterGetter) *SSMStore {
	return &SSMStore{client: client}
}

// GetSecret implements SecretStore. Values are always requested decrypted.
func (s *SSMStore) GetSecret(ctx context.Context, name string) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("%w: ssm client not configured", ErrSecretUnavailable)
	}

	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
		}
		return "", fmt.Errorf("%w: %v", ErrSecretUnavailable, err)
	}
	if out == nil || out.Parameter == nil {
		return "", nil
	}
	return aws.ToString(out.Parameter.Value), nil
}
