package ports

import "context"

// SecretManager retrieves adapter credentials (webhook HMAC secrets, vendor
// API keys) from a secrets backend
type SecretManager interface {
	// GetSecret retrieves a secret value by name
	GetSecret(ctx context.Context, name string) (string, error)
}
