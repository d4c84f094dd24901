package application

import (
	"context"
	"testing"

	"github.com/mobilauth/activation-service/internal/domain"
)

func TestApplicationProvisioning(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	app, err := f.service.CreateApplication(ctx, CreateApplicationRequest{Name: "  mobile-bank  "})
	if err != nil {
		t.Fatalf("create application: %v", err)
	}
	if app.Name != "mobile-bank" {
		t.Fatalf("application name = %q", app.Name)
	}
	// A master key pair must exist from the moment the application does.
	if _, err := f.applications.LatestMasterKeyPair(ctx, app.ApplicationID); err != nil {
		t.Fatalf("no master key pair after create: %v", err)
	}

	ver, err := f.service.CreateApplicationVersion(ctx, CreateApplicationVersionRequest{
		ApplicationID: app.ApplicationID,
		Name:          "ios-prod",
	})
	if err != nil {
		t.Fatalf("create version: %v", err)
	}
	if !ver.Supported || ver.ApplicationKey == "" || ver.ApplicationSecret == "" {
		t.Fatalf("version view %+v", ver)
	}

	detail, err := f.service.GetApplicationDetail(ctx, app.ApplicationID)
	if err != nil {
		t.Fatalf("application detail: %v", err)
	}
	if detail.MasterPublicKey == "" {
		t.Fatalf("detail missing master public key")
	}
	if len(detail.Versions) != 1 || detail.Versions[0].VersionID != ver.VersionID {
		t.Fatalf("detail versions %+v", detail.Versions)
	}

	if _, err := f.service.CreateApplication(ctx, CreateApplicationRequest{Name: "   "}); !domain.IsKind(err, domain.ErrInvalidRequest) {
		t.Fatalf("blank name: got %v, want invalid request", err)
	}
}

func TestUnsupportedVersionCannotOpenActivations(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	appID, ver := f.newTenant(t)

	init, err := f.service.InitActivation(ctx, InitActivationRequest{UserID: "user-1", ApplicationID: appID})
	if err != nil {
		t.Fatalf("init activation: %v", err)
	}
	if err := f.service.SetVersionSupported(ctx, ver.VersionID, false); err != nil {
		t.Fatalf("retire version: %v", err)
	}

	// A retired key answers exactly like an unknown one.
	_, err = f.service.PrepareActivation(ctx, PrepareActivationRequest{
		ApplicationKey:       ver.ApplicationKey,
		ActivationCode:       init.ActivationCode,
		ApplicationSignature: "c2ln",
		Envelope: Envelope{
			EphemeralPublicKey: "AA==",
			EncryptedData:      "AA==",
			Mac:                "AA==",
			Nonce:              "AA==",
		},
	})
	if !domain.IsKind(err, domain.ErrActivationExpired) {
		t.Fatalf("retired version: got %v, want expired kind", err)
	}
}

func TestCallbackManagement(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	appID, _ := f.newTenant(t)

	cb, err := f.service.CreateCallback(ctx, CreateCallbackRequest{
		ApplicationID: appID,
		Name:          "core-banking",
		URL:           "https://callbacks.example.com/activations",
	})
	if err != nil {
		t.Fatalf("create callback: %v", err)
	}

	if _, err := f.service.CreateCallback(ctx, CreateCallbackRequest{
		ApplicationID: appID,
		Name:          "bad",
		URL:           "ftp://callbacks.example.com",
	}); !domain.IsKind(err, domain.ErrInvalidRequest) {
		t.Fatalf("non-http url: got %v, want invalid request", err)
	}

	list, err := f.service.ListCallbacks(ctx, appID)
	if err != nil {
		t.Fatalf("list callbacks: %v", err)
	}
	if len(list) != 1 || list[0].CallbackID != cb.CallbackID {
		t.Fatalf("callback list %+v", list)
	}

	if err := f.service.DeleteCallback(ctx, cb.CallbackID); err != nil {
		t.Fatalf("delete callback: %v", err)
	}
	if err := f.service.DeleteCallback(ctx, cb.CallbackID); !domain.IsKind(err, domain.ErrInvalidRequest) {
		t.Fatalf("double delete: got %v, want invalid request", err)
	}
}
