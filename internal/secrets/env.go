package secrets

import (
	"context"

	"github.com/caarlos0/env/v11"
)

// EnvProvider reads the blob from environment variables. Used for
// local development where Secrets Manager is not available.
type EnvProvider struct{}

func (EnvProvider) Fetch(ctx context.Context) (Blob, error) {
	var blob Blob
	if err := env.Parse(&blob); err != nil {
		return Blob{}, err
	}
	return blob, nil
}
