package clientsrv_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/Abraxas-365/identity/pkg/iam/auth/authinfra"
	"github.com/Abraxas-365/identity/pkg/iam/client"
	"github.com/Abraxas-365/identity/pkg/iam/client/clientsrv"
	"github.com/Abraxas-365/identity/pkg/iam/directory"
	"github.com/Abraxas-365/identity/pkg/kernel"
	"golang.org/x/crypto/bcrypt"
)

type fakeClients struct {
	created   []directory.Client
	createErr []error
	renamed   map[kernel.ClientID]string
	deleted   []kernel.ClientID
}

func (f *fakeClients) GetPublicKey(context.Context, kernel.ClientID) (string, bool, error) {
	return "", false, nil
}
func (f *fakeClients) ValidateClientSecret(context.Context, kernel.ClientID, string) (bool, error) {
	return false, nil
}
func (f *fakeClients) GetAssignedGroupIDs(context.Context, kernel.ClientID) ([]kernel.GroupID, error) {
	return nil, nil
}
func (f *fakeClients) RecordTokenRequest(context.Context, kernel.ClientID, time.Time) error {
	return nil
}
func (f *fakeClients) ClientExists(context.Context, kernel.ClientID) (bool, error) { return false, nil }

func (f *fakeClients) CreateClient(_ context.Context, c directory.Client) error {
	if len(f.createErr) > 0 {
		err := f.createErr[0]
		f.createErr = f.createErr[1:]
		if err != nil {
			return err
		}
	}
	f.created = append(f.created, c)
	return nil
}

func (f *fakeClients) ListClients(context.Context, string) ([]directory.Client, error) {
	return f.created, nil
}

func (f *fakeClients) UpdateDisplayName(_ context.Context, id kernel.ClientID, name string) error {
	if f.renamed == nil {
		f.renamed = make(map[kernel.ClientID]string)
	}
	f.renamed[id] = name
	return nil
}

func (f *fakeClients) DeleteClient(_ context.Context, id kernel.ClientID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type notification struct {
	conn   kernel.ConnectionID
	client kernel.ClientID
}

type recordingNotifier struct {
	sent []notification
	err  error
}

func (n *recordingNotifier) NotifyRegistered(_ context.Context, conn kernel.ConnectionID, id kernel.ClientID) error {
	n.sent = append(n.sent, notification{conn, id})
	return n.err
}

type nopAudit struct{}

func (nopAudit) LogGrantAttempt(context.Context, string, string, bool, string) {}
func (nopAudit) LogPairingTokenIssued(context.Context, kernel.ConnectionID) {}
func (nopAudit) LogClientRegistered(context.Context, kernel.ClientID, kernel.ConnectionID, string) {}

func publicKey(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return base64.StdEncoding.EncodeToString(x509.MarshalPKCS1PublicKey(&key.PublicKey))
}

func newService(clients *fakeClients, notifier *recordingNotifier) (*clientsrv.ClientService, *authinfra.BcryptPasswordService) {
	hasher := authinfra.NewBcryptPasswordService(bcrypt.MinCost)
	return clientsrv.NewClientService(clients, clients, hasher, notifier, nopAudit{}), hasher
}

func TestRegister_CreatesClientAndNotifies(t *testing.T) {
	clients := &fakeClients{}
	notifier := &recordingNotifier{}
	svc, hasher := newService(clients, notifier)
	key := publicKey(t)

	res, err := svc.Register(context.Background(), "conn-1", client.RegisterRequest{
		PublicKey:   key,
		DisplayName: "Front desk",
		Device:      "tablet-7",
	}, "10.0.0.1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(res.ClientSecret) != client.SecretLength {
		t.Fatalf("expected %d character secret, got %d", client.SecretLength, len(res.ClientSecret))
	}
	if len(clients.created) != 1 {
		t.Fatalf("expected one stored client, got %d", len(clients.created))
	}
	stored := clients.created[0]
	if stored.ID != res.ClientID || stored.PublicKey != key || stored.DeviceName != "tablet-7" {
		t.Fatalf("unexpected stored client %+v", stored)
	}
	if stored.SecretHash == res.ClientSecret || !hasher.Compare(stored.SecretHash, res.ClientSecret) {
		t.Fatal("stored hash must verify the returned secret")
	}
	if len(notifier.sent) != 1 || notifier.sent[0] != (notification{"conn-1", res.ClientID}) {
		t.Fatalf("unexpected notifications %+v", notifier.sent)
	}
}

func TestRegister_InvalidPublicKey(t *testing.T) {
	clients := &fakeClients{}
	svc, _ := newService(clients, &recordingNotifier{})

	for _, key := range []string{"", "   ", "bm90IGEga2V5", "%%%"} {
		_, err := svc.Register(context.Background(), "conn-1", client.RegisterRequest{PublicKey: key}, "")
		if !errors.Is(err, client.ErrInvalidPublicKey()) {
			t.Fatalf("key %q: expected INVALID_PUBLIC_KEY, got %v", key, err)
		}
	}
	if len(clients.created) != 0 {
		t.Fatal("nothing should be stored for an invalid key")
	}
}

func TestRegister_RetriesOnIDCollision(t *testing.T) {
	clients := &fakeClients{createErr: []error{directory.ErrClientExists(), nil}}
	svc, _ := newService(clients, &recordingNotifier{})

	res, err := svc.Register(context.Background(), "conn-1", client.RegisterRequest{PublicKey: publicKey(t)}, "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if clients.created[0].ID != res.ClientID {
		t.Fatal("returned id must be the one that was stored")
	}
	if clients.created[0].DisplayName == "" {
		t.Fatal("expected a default display name")
	}
}

func TestRegister_StoreFailure(t *testing.T) {
	clients := &fakeClients{createErr: []error{errors.New("db down")}}
	notifier := &recordingNotifier{}
	svc, _ := newService(clients, notifier)

	_, err := svc.Register(context.Background(), "conn-1", client.RegisterRequest{PublicKey: publicKey(t)}, "")
	if !errors.Is(err, client.ErrRegistrationFailed(nil)) {
		t.Fatalf("expected REGISTRATION_FAILED, got %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Fatal("operator must not be notified of a failed registration")
	}
}

func TestRegister_NotifyFailureStillSucceeds(t *testing.T) {
	svc, _ := newService(&fakeClients{}, &recordingNotifier{err: errors.New("gone")})

	if _, err := svc.Register(context.Background(), "conn-1", client.RegisterRequest{PublicKey: publicKey(t)}, ""); err != nil {
		t.Fatalf("notification failure must not fail registration: %v", err)
	}
}

func TestRename_Validation(t *testing.T) {
	clients := &fakeClients{}
	svc, _ := newService(clients, &recordingNotifier{})

	if err := svc.Rename(context.Background(), client.UpdateRequest{ClientID: "c1", DisplayName: "  "}); !errors.Is(err, client.ErrInvalidRequest()) {
		t.Fatalf("expected INVALID_REQUEST, got %v", err)
	}
	if err := svc.Rename(context.Background(), client.UpdateRequest{ClientID: "c1", DisplayName: " Lobby "}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if clients.renamed["c1"] != "Lobby" {
		t.Fatalf("expected trimmed name, got %q", clients.renamed["c1"])
	}
}
