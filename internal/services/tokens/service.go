package tokens

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/moguls753/kontor/internal/models"
	"github.com/moguls753/kontor/internal/providers/gocardless"
	"github.com/moguls753/kontor/internal/repository"
	"github.com/moguls753/kontor/internal/secrets"
)

// Client is the slice of the GoCardless API the refresh protocol needs.
type Client interface {
	ObtainToken(ctx context.Context, secretID, secretKey string) (*gocardless.TokenResponse, error)
	RefreshToken(ctx context.Context, refresh string) (*gocardless.TokenResponse, error)
}

// Service keeps provider access tokens valid. Refreshes are serialized per
// credential so two concurrent calls cannot both spend the same refresh
// token.
type Service struct {
	creds  *repository.CredentialRepository
	cipher *secrets.Cipher

	mu    sync.Mutex
	locks map[uint]*sync.Mutex

	now func() time.Time
}

func NewService(creds *repository.CredentialRepository, cipher *secrets.Cipher) *Service {
	return &Service{
		creds:  creds,
		cipher: cipher,
		locks:  make(map[uint]*sync.Mutex),
		now:    time.Now,
	}
}

func (s *Service) lockFor(credID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[credID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[credID] = lock
	}
	return lock
}

// EnsureValid returns a non-expired plaintext access token, refreshing or
// obtaining one as a side effect. An absent expiry counts as expired.
func (s *Service) EnsureValid(ctx context.Context, cred *models.GoCardlessCredential, client Client) (string, error) {
	lock := s.lockFor(cred.ID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()

	if !cred.AccessExpired(now) {
		return s.cipher.Reveal(cred.AccessToken)
	}

	if cred.RefreshValid(now) {
		refresh, err := s.cipher.Reveal(cred.RefreshToken)
		if err != nil {
			return "", err
		}
		data, err := client.RefreshToken(ctx, refresh)
		if err != nil {
			return "", err
		}
		if err := s.storeAccess(cred, data, now); err != nil {
			return "", err
		}
		return data.Access, nil
	}

	secretID, err := s.cipher.Reveal(cred.SecretID)
	if err != nil {
		return "", err
	}
	secretKey, err := s.cipher.Reveal(cred.SecretKey)
	if err != nil {
		return "", err
	}
	data, err := client.ObtainToken(ctx, secretID, secretKey)
	if err != nil {
		return "", err
	}
	if err := s.storeTokenPair(cred, data, now); err != nil {
		return "", err
	}
	return data.Access, nil
}

func (s *Service) storeAccess(cred *models.GoCardlessCredential, data *gocardless.TokenResponse, now time.Time) error {
	encrypted, err := s.cipher.Encrypt(data.Access)
	if err != nil {
		return err
	}
	cred.AccessToken = encrypted
	expires := now.Add(time.Duration(data.AccessExpires) * time.Second)
	cred.AccessExpiresAt = &expires

	// The refresh token lifetime is provider-side and only moves when the
	// provider rotates it.
	if data.Refresh != "" {
		refreshEnc, err := s.cipher.Encrypt(data.Refresh)
		if err != nil {
			return err
		}
		cred.RefreshToken = refreshEnc
		refreshExpires := now.Add(time.Duration(data.RefreshExpires) * time.Second)
		cred.RefreshExpiresAt = &refreshExpires
	}
	return s.creds.SaveGoCardless(cred)
}

func (s *Service) storeTokenPair(cred *models.GoCardlessCredential, data *gocardless.TokenResponse, now time.Time) error {
	if data.Refresh == "" {
		return fmt.Errorf("tokens: provider returned no refresh token")
	}
	return s.storeAccess(cred, data, now)
}
