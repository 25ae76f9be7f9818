package linking

import (
	"context"
	"fmt"

	"github.com/moguls753/kontor/internal/models"
	"github.com/moguls753/kontor/internal/providers"
	"github.com/moguls753/kontor/internal/providers/enablebanking"
	"github.com/moguls753/kontor/internal/providers/gocardless"
	"github.com/moguls753/kontor/internal/repository"
	"github.com/moguls753/kontor/internal/secrets"
	"github.com/moguls753/kontor/internal/services/tokens"
)

// AdapterFactory resolves a user's provider credential into a ready adapter.
type AdapterFactory interface {
	ForProvider(ctx context.Context, userID uint, provider string) (providers.Adapter, error)
}

// Factory is the production AdapterFactory. Base URLs are overridable for
// sandbox environments.
type Factory struct {
	Creds  *repository.CredentialRepository
	Cipher *secrets.Cipher
	Tokens *tokens.Service

	EnableBankingBaseURL string
	GoCardlessBaseURL    string
}

func (f *Factory) ForProvider(ctx context.Context, userID uint, provider string) (providers.Adapter, error) {
	switch provider {
	case models.ProviderEnableBanking:
		return f.EnableBankingClient(ctx, userID)

	case models.ProviderGoCardless:
		return f.GoCardlessClient(ctx, userID)

	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

// EnableBankingClient is exposed separately so credential checks can reach
// the concrete client's Ping, which sits outside the adapter contract.
func (f *Factory) EnableBankingClient(ctx context.Context, userID uint) (*enablebanking.Client, error) {
	cred, err := f.Creds.EnableBanking(userID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, fmt.Errorf("%s: %w", models.ProviderEnableBanking, ErrNotConfigured)
	}
	pem, err := f.Cipher.Reveal(cred.PrivateKeyPEM)
	if err != nil {
		return nil, err
	}
	return enablebanking.NewClient(cred.AppID, pem, f.EnableBankingBaseURL)
}

// GoCardlessClient is exposed separately because the institutions directory
// lives on the concrete client, outside the adapter contract.
func (f *Factory) GoCardlessClient(ctx context.Context, userID uint) (*gocardless.Client, error) {
	cred, err := f.Creds.GoCardless(userID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, fmt.Errorf("%s: %w", models.ProviderGoCardless, ErrNotConfigured)
	}
	// Token endpoints are unauthenticated, so a bare client serves the
	// refresh protocol while the returned client rides on it.
	tokenClient := gocardless.NewClient(f.GoCardlessBaseURL, nil)
	source := func(ctx context.Context) (string, error) {
		return f.Tokens.EnsureValid(ctx, cred, tokenClient)
	}
	return gocardless.NewClient(f.GoCardlessBaseURL, source), nil
}
