package secrets

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// AwsSecretsManagerProvider resolves keys as secret IDs in AWS Secrets
// Manager, one GetSecretValue call per key.
type AwsSecretsManagerProvider struct {
	client *secretsmanager.Client
}

// NewAwsSecretsManagerProvider builds a provider for the given region,
// optionally with static credentials (empty accessKey falls back to the
// default credential chain: env vars, shared config, instance role).
func NewAwsSecretsManagerProvider(ctx context.Context, region, accessKey, secretKey string) (*AwsSecretsManagerProvider, error) {
	optFns := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(region)}
	if accessKey != "" {
		optFns = append(optFns, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &AwsSecretsManagerProvider{client: secretsmanager.NewFromConfig(cfg)}, nil
}

// Get fetches the secret string for key (used as the AWS secret ID/ARN).
func (p *AwsSecretsManagerProvider) Get(key string) (string, error) {
	out, err := p.client.GetSecretValue(context.Background(), &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", key, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", key)
	}
	return *out.SecretString, nil
}
