package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsManagerClient defines the interface for AWS Secrets Manager operations.
type SecretsManagerClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecrets returns a FetchSecrets function that retrieves Elasticsearch settings
// from AWS Secrets Manager. The secret is expected to be stored at the path
// "{environment}/elasticsearch" and contain JSON with addresses, username,
// password and api_key fields.
func AWSSecrets(ctx context.Context, client SecretsManagerClient, env string) FetchSecrets {
	return func() (Secrets, error) {
		secretPath := fmt.Sprintf("%s/elasticsearch", env)

		input := &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(secretPath),
		}

		result, err := client.GetSecretValue(ctx, input)
		if err != nil {
			return Secrets{}, fmt.Errorf("failed to get secret from AWS Secrets Manager at path %s: %w", secretPath, err)
		}

		if result.SecretString == nil {
			return Secrets{}, fmt.Errorf("secret at path %s has no string value", secretPath)
		}

		secrets, err := decodeSecrets(result.SecretString)
		if err != nil {
			return Secrets{}, fmt.Errorf("failed to unmarshal secret JSON from path %s: %w", secretPath, err)
		}

		return secrets, nil
	}
}

// AWSSecretsFromARN returns a FetchSecrets function that retrieves Elasticsearch
// settings from AWS Secrets Manager using the provided secret ARN.
func AWSSecretsFromARN(ctx context.Context, client SecretsManagerClient, secretArn string) FetchSecrets {
	return func() (Secrets, error) {
		input := &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(secretArn),
		}

		result, err := client.GetSecretValue(ctx, input)
		if err != nil {
			return Secrets{}, fmt.Errorf("failed to get secret from AWS Secrets Manager with ARN %s: %w", secretArn, err)
		}

		if result.SecretString == nil {
			return Secrets{}, fmt.Errorf("secret with ARN %s has no string value", secretArn)
		}

		secrets, err := decodeSecrets(result.SecretString)
		if err != nil {
			return Secrets{}, fmt.Errorf("failed to unmarshal secret JSON from ARN %s: %w", secretArn, err)
		}

		return secrets, nil
	}
}

// decodeSecrets accepts "addresses" as a list or as a comma separated string.
func decodeSecrets(raw *string) (Secrets, error) {
	var payload struct {
		Secrets
		Addresses json.RawMessage `json:"addresses"`
	}
	if err := json.Unmarshal([]byte(aws.ToString(raw)), &payload); err != nil {
		return Secrets{}, err
	}

	secrets := payload.Secrets
	secrets.Addresses = nil
	if len(payload.Addresses) == 0 {
		return secrets, nil
	}

	if err := json.Unmarshal(payload.Addresses, &secrets.Addresses); err == nil {
		return secrets, nil
	}
	var joined string
	if err := json.Unmarshal(payload.Addresses, &joined); err != nil {
		return Secrets{}, fmt.Errorf("addresses must be a list or a string: %w", err)
	}
	for _, addr := range strings.Split(joined, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			secrets.Addresses = append(secrets.Addresses, addr)
		}
	}
	return secrets, nil
}
