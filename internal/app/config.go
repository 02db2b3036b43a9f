package app

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR"`
	PostgresURL string `env:"POSTGRES_URL,required"`

	// Where the blockchain secret blob comes from: "aws" fetches it
	// from Secrets Manager under SecretsName, "env" reads plain
	// environment variables.
	SecretsProvider string `env:"SECRETS_PROVIDER"`
	SecretsName     string `env:"BLOCKCHAIN_SECRETS_NAME"`
}

func LoadConfig() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		fmt.Println("Warning: .env file not found, relying on environment variables")
	}

	config := Config{
		HTTPAddr:        ":8080",
		SecretsProvider: "env",
		SecretsName:     "devsecops/blockchain",
	}

	if err := env.Parse(&config); err != nil {
		return Config{}, err
	}

	return config, nil
}
