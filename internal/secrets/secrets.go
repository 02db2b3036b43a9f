package secrets

import "context"

// Blob is the single secret the chain bootstrap consumes. Missing any
// field degrades the chain integration at bootstrap.
type Blob struct {
	InfuraAPIKey    string `json:"INFURA_API_KEY" env:"INFURA_API_KEY"`
	PrivateKey      string `json:"PRIVATE_KEY" env:"PRIVATE_KEY"`
	ContractAddress string `json:"CONTRACT_ADDRESS" env:"CONTRACT_ADDRESS"`
}

// Provider fetches the blob once at bootstrap.
type Provider interface {
	Fetch(ctx context.Context) (Blob, error)
}
