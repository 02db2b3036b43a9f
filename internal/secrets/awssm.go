package secrets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// ManagerProvider reads the blob from AWS Secrets Manager, where the
// deployment stores it as one JSON secret.
type ManagerProvider struct {
	client   *secretsmanager.Client
	secretID string
}

func NewManagerProvider(ctx context.Context, secretID string) (*ManagerProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &ManagerProvider{
		client:   secretsmanager.NewFromConfig(cfg),
		secretID: secretID,
	}, nil
}

func (p *ManagerProvider) Fetch(ctx context.Context) (Blob, error) {
	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(p.secretID),
	})
	if err != nil {
		return Blob{}, fmt.Errorf("get secret %s: %w", p.secretID, err)
	}
	if out.SecretString == nil {
		return Blob{}, fmt.Errorf("secret %s has no string payload", p.secretID)
	}

	var blob Blob
	if err := json.Unmarshal([]byte(*out.SecretString), &blob); err != nil {
		return Blob{}, fmt.Errorf("decode secret %s: %w", p.secretID, err)
	}
	return blob, nil
}
