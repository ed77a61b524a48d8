package clientsrv

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/Abraxas-365/identity/pkg/errx"
	"github.com/Abraxas-365/identity/pkg/iam/auth"
	"github.com/Abraxas-365/identity/pkg/iam/client"
	"github.com/Abraxas-365/identity/pkg/iam/directory"
	"github.com/Abraxas-365/identity/pkg/iam/signature"
	"github.com/Abraxas-365/identity/pkg/kernel"
	"github.com/Abraxas-365/identity/pkg/logx"
	"github.com/google/uuid"
)

const secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_.~"

// maxIDAttempts bounds retries when a generated client id is already taken.
const maxIDAttempts = 3

// Notifier tells the operator connection that issued a registration token
// about the resulting client.
type Notifier interface {
	NotifyRegistered(ctx context.Context, connID kernel.ConnectionID, clientID kernel.ClientID) error
}

type ClientService struct {
	clients  directory.ClientDirectory
	manager  directory.ClientManager
	hasher   directory.PasswordHasher
	notifier Notifier
	audit    auth.AuditService
	now      func() time.Time
}

func NewClientService(
	clients directory.ClientDirectory,
	manager directory.ClientManager,
	hasher directory.PasswordHasher,
	notifier Notifier,
	audit auth.AuditService,
) *ClientService {
	return &ClientService{
		clients:  clients,
		manager:  manager,
		hasher:   hasher,
		notifier: notifier,
		audit:    audit,
		now:      time.Now,
	}
}

// Register creates a client for the device behind connID's registration
// token. The plain secret is returned once and only its hash is stored.
func (s *ClientService) Register(
	ctx context.Context,
	connID kernel.ConnectionID,
	req client.RegisterRequest,
	ip string,
) (*directory.RegistrationResult, error) {
	publicKey := strings.TrimSpace(req.PublicKey)
	if publicKey == "" {
		return nil, client.ErrInvalidPublicKey()
	}
	if _, err := signature.ParsePublicKey(publicKey); err != nil {
		return nil, client.ErrInvalidPublicKey()
	}

	secret, err := generateSecret(client.SecretLength)
	if err != nil {
		return nil, client.ErrRegistrationFailed(err)
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, client.ErrRegistrationFailed(err)
	}

	now := s.now().UTC()
	displayName := strings.TrimSpace(req.DisplayName)

	var clientID kernel.ClientID
	for attempt := 0; ; attempt++ {
		if attempt == maxIDAttempts {
			return nil, client.ErrRegistrationFailed(errors.New("no free client id"))
		}
		clientID = kernel.NewClientID(uuid.NewString())
		name := displayName
		if name == "" {
			name = "device-" + clientID.String()[:8]
		}

		err := s.clients.CreateClient(ctx, directory.Client{
			ID:           clientID,
			SecretHash:   hash,
			PublicKey:    publicKey,
			DisplayName:  name,
			DeviceName:   strings.TrimSpace(req.Device),
			RegisteredAt: now,
		})
		if err == nil {
			break
		}
		if !errors.Is(err, directory.ErrClientExists()) {
			return nil, client.ErrRegistrationFailed(err)
		}
	}

	if err := s.notifier.NotifyRegistered(ctx, connID, clientID); err != nil {
		logx.WithContext(ctx).WithError(err).Warn("Failed to notify operator about registration")
	}
	s.audit.LogClientRegistered(ctx, clientID, connID, ip)

	return &directory.RegistrationResult{
		ClientID:     clientID,
		ClientSecret: secret,
	}, nil
}

func (s *ClientService) List(ctx context.Context, filter string) ([]directory.Client, error) {
	return s.manager.ListClients(ctx, strings.TrimSpace(filter))
}

func (s *ClientService) Rename(ctx context.Context, req client.UpdateRequest) error {
	name := strings.TrimSpace(req.DisplayName)
	if req.ClientID.IsEmpty() || name == "" {
		return client.ErrInvalidRequest()
	}
	return s.manager.UpdateDisplayName(ctx, req.ClientID, name)
}

func (s *ClientService) Delete(ctx context.Context, id kernel.ClientID) error {
	if id.IsEmpty() {
		return client.ErrInvalidRequest()
	}
	if err := s.manager.DeleteClient(ctx, id); err != nil {
		return errx.Wrap(err, "failed to delete client", errx.TypeInternal)
	}
	return nil
}

func generateSecret(length int) (string, error) {
	max := big.NewInt(int64(len(secretAlphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = secretAlphabet[n.Int64()]
	}
	return string(b), nil
}
