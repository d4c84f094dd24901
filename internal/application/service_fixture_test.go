package application

import (
	"context"
	"crypto/ecdh"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mobilauth/activation-service/internal/crypto"
	"github.com/mobilauth/activation-service/internal/domain"
	"github.com/mobilauth/activation-service/internal/ports"
)

type fakeActivations struct {
	items map[string]domain.Activation
}

func newFakeActivations() *fakeActivations {
	return &fakeActivations{items: make(map[string]domain.Activation)}
}

func (r *fakeActivations) Create(_ context.Context, act *domain.Activation) error {
	if _, ok := r.items[act.ActivationID]; ok {
		return ports.ErrDuplicate
	}
	r.items[act.ActivationID] = *act
	return nil
}

func (r *fakeActivations) FindByID(_ context.Context, activationID string) (domain.Activation, error) {
	act, ok := r.items[activationID]
	if !ok {
		return domain.Activation{}, domain.Errf(domain.ErrActivationNotFound, "activation not found")
	}
	return act, nil
}

func (r *fakeActivations) FindCreatedByCode(_ context.Context, applicationID uuid.UUID, code string) (domain.Activation, error) {
	for _, act := range r.items {
		if act.ApplicationID == applicationID && act.ActivationCode == code && act.Status == domain.ActivationCreated {
			return act, nil
		}
	}
	return domain.Activation{}, domain.Errf(domain.ErrActivationNotFound, "activation not found")
}

func (r *fakeActivations) ListByUser(_ context.Context, userID string, applicationID *uuid.UUID) ([]domain.Activation, error) {
	out := make([]domain.Activation, 0)
	for _, act := range r.items {
		if act.UserID != userID {
			continue
		}
		if applicationID != nil && act.ApplicationID != *applicationID {
			continue
		}
		out = append(out, act)
	}
	return out, nil
}

func (r *fakeActivations) Update(_ context.Context, act *domain.Activation) error {
	if _, ok := r.items[act.ActivationID]; !ok {
		return domain.Errf(domain.ErrActivationNotFound, "activation not found")
	}
	r.items[act.ActivationID] = *act
	return nil
}

func (r *fakeActivations) WithLocked(_ context.Context, activationID string, fn ports.ActivationTxFunc) error {
	act, ok := r.items[activationID]
	if !ok {
		return domain.Errf(domain.ErrActivationNotFound, "activation not found")
	}
	snapshot := act
	work := act
	save := func() error {
		r.items[activationID] = work
		return nil
	}
	if err := fn(&work, save); err != nil {
		if domain.RollbackRequired(err) {
			r.items[activationID] = snapshot
		}
		return err
	}
	return nil
}

type fakeApplications struct {
	apps     map[uuid.UUID]domain.Application
	versions map[uuid.UUID]domain.ApplicationVersion
	byKey    map[string]uuid.UUID
	masters  map[uuid.UUID][]domain.MasterKeyPair
}

func newFakeApplications() *fakeApplications {
	return &fakeApplications{
		apps:     make(map[uuid.UUID]domain.Application),
		versions: make(map[uuid.UUID]domain.ApplicationVersion),
		byKey:    make(map[string]uuid.UUID),
		masters:  make(map[uuid.UUID][]domain.MasterKeyPair),
	}
}

func (r *fakeApplications) CreateApplication(_ context.Context, app *domain.Application) error {
	r.apps[app.ApplicationID] = *app
	return nil
}

func (r *fakeApplications) GetApplication(_ context.Context, applicationID uuid.UUID) (domain.Application, error) {
	app, ok := r.apps[applicationID]
	if !ok {
		return domain.Application{}, fmt.Errorf("application not found")
	}
	return app, nil
}

func (r *fakeApplications) ListApplications(_ context.Context) ([]domain.Application, error) {
	out := make([]domain.Application, 0, len(r.apps))
	for _, app := range r.apps {
		out = append(out, app)
	}
	return out, nil
}

func (r *fakeApplications) CreateVersion(_ context.Context, version *domain.ApplicationVersion) error {
	if _, ok := r.byKey[version.ApplicationKey]; ok {
		return ports.ErrDuplicate
	}
	r.versions[version.VersionID] = *version
	r.byKey[version.ApplicationKey] = version.VersionID
	return nil
}

func (r *fakeApplications) ListVersions(_ context.Context, applicationID uuid.UUID) ([]domain.ApplicationVersion, error) {
	out := make([]domain.ApplicationVersion, 0)
	for _, v := range r.versions {
		if v.ApplicationID == applicationID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *fakeApplications) SetVersionSupported(_ context.Context, versionID uuid.UUID, supported bool) error {
	v, ok := r.versions[versionID]
	if !ok {
		return domain.Errf(domain.ErrInvalidRequest, "version not found")
	}
	v.Supported = supported
	r.versions[versionID] = v
	return nil
}

func (r *fakeApplications) FindVersionByAppKey(_ context.Context, applicationKey string) (domain.ApplicationVersion, error) {
	id, ok := r.byKey[applicationKey]
	if !ok {
		return domain.ApplicationVersion{}, fmt.Errorf("version not found")
	}
	return r.versions[id], nil
}

func (r *fakeApplications) CreateMasterKeyPair(_ context.Context, pair *domain.MasterKeyPair) error {
	r.masters[pair.ApplicationID] = append(r.masters[pair.ApplicationID], *pair)
	return nil
}

func (r *fakeApplications) LatestMasterKeyPair(_ context.Context, applicationID uuid.UUID) (domain.MasterKeyPair, error) {
	pairs := r.masters[applicationID]
	if len(pairs) == 0 {
		return domain.MasterKeyPair{}, fmt.Errorf("no master key pair")
	}
	return pairs[len(pairs)-1], nil
}

type fakeRecovery struct {
	items       map[uuid.UUID]domain.RecoveryCode
	activations *fakeActivations
}

func newFakeRecovery(activations *fakeActivations) *fakeRecovery {
	return &fakeRecovery{items: make(map[uuid.UUID]domain.RecoveryCode), activations: activations}
}

func copyRecoveryCode(code domain.RecoveryCode) domain.RecoveryCode {
	out := code
	out.Puks = append([]domain.RecoveryPuk(nil), code.Puks...)
	return out
}

func (r *fakeRecovery) Create(_ context.Context, code *domain.RecoveryCode) error {
	r.items[code.RecoveryCodeID] = copyRecoveryCode(*code)
	return nil
}

type fakeRecoveryTx struct {
	repo    *fakeRecovery
	work    *domain.RecoveryCode
	created []string
}

func (tx *fakeRecoveryTx) Save() error {
	tx.repo.items[tx.work.RecoveryCodeID] = copyRecoveryCode(*tx.work)
	return nil
}

func (tx *fakeRecoveryTx) CreateActivation(act *domain.Activation) error {
	if err := tx.repo.activations.Create(context.Background(), act); err != nil {
		return err
	}
	tx.created = append(tx.created, act.ActivationID)
	return nil
}

func (r *fakeRecovery) withLocked(code domain.RecoveryCode, fn ports.RecoveryTxFunc) error {
	snapshot := copyRecoveryCode(code)
	work := copyRecoveryCode(code)
	tx := &fakeRecoveryTx{repo: r, work: &work}
	if err := fn(&work, tx); err != nil {
		if domain.RollbackRequired(err) {
			r.items[code.RecoveryCodeID] = snapshot
			for _, id := range tx.created {
				delete(r.activations.items, id)
			}
		}
		return err
	}
	return nil
}

func (r *fakeRecovery) WithLockedByID(_ context.Context, recoveryCodeID uuid.UUID, fn ports.RecoveryTxFunc) error {
	code, ok := r.items[recoveryCodeID]
	if !ok {
		return domain.Errf(domain.ErrRecoveryCodeInvalid, "recovery code cannot be used")
	}
	return r.withLocked(code, fn)
}

func (r *fakeRecovery) WithLockedByCode(_ context.Context, applicationID uuid.UUID, codeValue string, fn ports.RecoveryTxFunc) error {
	for _, code := range r.items {
		if code.ApplicationID == applicationID && code.Code == codeValue {
			return r.withLocked(code, fn)
		}
	}
	return domain.Errf(domain.ErrRecoveryCodeInvalid, "recovery code cannot be used")
}

func (r *fakeRecovery) Lookup(_ context.Context, filter ports.RecoveryLookupFilter) ([]domain.RecoveryCode, error) {
	out := make([]domain.RecoveryCode, 0)
	for _, code := range r.items {
		if filter.UserID != "" && code.UserID != filter.UserID {
			continue
		}
		if filter.ActivationID != "" && code.ActivationID != filter.ActivationID {
			continue
		}
		if filter.ApplicationID != nil && code.ApplicationID != *filter.ApplicationID {
			continue
		}
		if filter.CodeStatus != nil && code.Status != *filter.CodeStatus {
			continue
		}
		if filter.PukStatus != nil {
			match := false
			for _, puk := range code.Puks {
				if puk.Status == *filter.PukStatus {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, copyRecoveryCode(code))
	}
	return out, nil
}

func (r *fakeRecovery) ListByActivation(_ context.Context, activationID string) ([]domain.RecoveryCode, error) {
	out := make([]domain.RecoveryCode, 0)
	for _, code := range r.items {
		if code.ActivationID == activationID {
			out = append(out, copyRecoveryCode(code))
		}
	}
	return out, nil
}

type fakeTokens struct {
	items map[string]domain.Token
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{items: make(map[string]domain.Token)}
}

func (r *fakeTokens) Create(_ context.Context, token *domain.Token) error {
	if _, ok := r.items[token.TokenID]; ok {
		return ports.ErrDuplicate
	}
	r.items[token.TokenID] = *token
	return nil
}

func (r *fakeTokens) FindByID(_ context.Context, tokenID string) (domain.Token, error) {
	token, ok := r.items[tokenID]
	if !ok {
		return domain.Token{}, domain.Errf(domain.ErrInvalidRequest, "token not found")
	}
	return token, nil
}

func (r *fakeTokens) Remove(_ context.Context, tokenID, activationID string) error {
	token, ok := r.items[tokenID]
	if !ok || token.ActivationID != activationID {
		return domain.Errf(domain.ErrInvalidRequest, "token not found")
	}
	delete(r.items, tokenID)
	return nil
}

type fakeCallbacks struct {
	items []domain.CallbackConfig
}

func (r *fakeCallbacks) Create(_ context.Context, cb *domain.CallbackConfig) error {
	r.items = append(r.items, *cb)
	return nil
}

func (r *fakeCallbacks) ListByApplication(_ context.Context, applicationID uuid.UUID) ([]domain.CallbackConfig, error) {
	out := make([]domain.CallbackConfig, 0)
	for _, cb := range r.items {
		if cb.ApplicationID == applicationID {
			out = append(out, cb)
		}
	}
	return out, nil
}

func (r *fakeCallbacks) Delete(_ context.Context, callbackID uuid.UUID) (bool, error) {
	for i, cb := range r.items {
		if cb.CallbackID == callbackID {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type fakeOutbox struct {
	events []ports.CallbackEvent
}

func (r *fakeOutbox) Enqueue(_ context.Context, event ports.CallbackEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *fakeOutbox) ClaimUnpublished(context.Context, int, string, time.Time) ([]ports.CallbackRecord, error) {
	return nil, nil
}

func (r *fakeOutbox) MarkPublished(context.Context, uuid.UUID, string, time.Time) error { return nil }

func (r *fakeOutbox) MarkFailed(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}

func (r *fakeOutbox) MarkDeadLettered(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}

func (r *fakeOutbox) statuses(activationID string) []string {
	out := make([]string, 0)
	for _, e := range r.events {
		if e.ActivationID == activationID {
			out = append(out, e.Status)
		}
	}
	return out
}

type fakeNonces struct {
	seen map[string]bool
}

func (r *fakeNonces) Remember(_ context.Context, tokenID, nonce string, _ time.Duration) (bool, error) {
	if r.seen == nil {
		r.seen = make(map[string]bool)
	}
	key := tokenID + ":" + nonce
	if r.seen[key] {
		return false, nil
	}
	r.seen[key] = true
	return true, nil
}

type fakeHasher struct{}

func (fakeHasher) Hash(otp string) (string, error) { return "otp:" + otp, nil }

func (fakeHasher) Compare(hash, otp string) error {
	if hash != "otp:"+otp {
		return errors.New("otp mismatch")
	}
	return nil
}

type fixture struct {
	service      *Service
	provider     *crypto.Provider
	activations  *fakeActivations
	applications *fakeApplications
	recovery     *fakeRecovery
	tokens       *fakeTokens
	callbacks    *fakeCallbacks
	outbox       *fakeOutbox
	nonces       *fakeNonces
	clock        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	keyVault, err := crypto.NewKeyEncryptor("")
	if err != nil {
		t.Fatalf("new key encryptor: %v", err)
	}
	f := &fixture{
		provider:  crypto.NewProvider(),
		tokens:    newFakeTokens(),
		callbacks: &fakeCallbacks{},
		outbox:    &fakeOutbox{},
		nonces:    &fakeNonces{},
		clock:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	f.activations = newFakeActivations()
	f.applications = newFakeApplications()
	f.recovery = newFakeRecovery(f.activations)
	f.service = NewService(Dependencies{
		Config: Config{
			ActivationValidity:        5 * time.Minute,
			DefaultMaxFailedAttempts:  5,
			RecoveryMaxFailedAttempts: 3,
			MaxPukCount:               5,
			TokenFreshnessWindow:      5 * time.Minute,
			TokenGenerateRetries:      2,
		},
		Activations:  f.activations,
		Applications: f.applications,
		Recovery:     f.recovery,
		Tokens:       f.tokens,
		Callbacks:    f.callbacks,
		Outbox:       f.outbox,
		Nonces:       f.nonces,
		OTPHasher:    fakeHasher{},
		Provider:     f.provider,
		KeyVault:     keyVault,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	f.service.nowFn = func() time.Time { return f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

// newTenant provisions an application with one supported version.
func (f *fixture) newTenant(t *testing.T) (uuid.UUID, ApplicationVersionView) {
	t.Helper()
	ctx := context.Background()
	app, err := f.service.CreateApplication(ctx, CreateApplicationRequest{Name: "mobile-bank"})
	if err != nil {
		t.Fatalf("create application: %v", err)
	}
	ver, err := f.service.CreateApplicationVersion(ctx, CreateApplicationVersionRequest{
		ApplicationID: app.ApplicationID,
		Name:          "v1",
	})
	if err != nil {
		t.Fatalf("create application version: %v", err)
	}
	return app.ApplicationID, ver
}

// testDevice models the client half of the protocol: its key pair and its
// local replica of the signature counter.
type testDevice struct {
	key          *ecdh.PrivateKey
	serverPublic []byte
	ctrData      []byte
	shared       []byte
	baseKey      []byte
	activationID string
}

// buildPrepareRequest assembles the device half of the key exchange: a fresh
// device key pair and a correctly signed envelope carrying the given OTP.
func (f *fixture) buildPrepareRequest(t *testing.T, ver ApplicationVersionView, init InitActivationResponse, otp string) (PrepareActivationRequest, *ecdh.PrivateKey) {
	t.Helper()
	ctx := context.Background()

	pair, err := f.applications.LatestMasterKeyPair(ctx, ver.ApplicationID)
	if err != nil {
		t.Fatalf("load master key pair: %v", err)
	}
	masterPublic, err := crypto.MasterPublicECDHBytes(pair.PublicKey)
	if err != nil {
		t.Fatalf("master public to ecdh: %v", err)
	}

	deviceKey, err := f.provider.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate device key: %v", err)
	}
	payload, err := json.Marshal(devicePayload{
		DevicePublicKey: base64.StdEncoding.EncodeToString(deviceKey.PublicKey().Bytes()),
		OTP:             otp,
	})
	if err != nil {
		t.Fatalf("encode device payload: %v", err)
	}
	cryptogram, err := f.provider.EncryptEnvelope(masterPublic, payload, envelopeInfoActivation)
	if err != nil {
		t.Fatalf("encrypt device payload: %v", err)
	}
	env := envelopeFrom(cryptogram)

	return PrepareActivationRequest{
		ApplicationKey: ver.ApplicationKey,
		ActivationCode: init.ActivationCode,
		ApplicationSignature: crypto.ApplicationSignature(ver.ApplicationSecret,
			ver.ApplicationKey,
			init.ActivationCode,
			env.EphemeralPublicKey,
			env.EncryptedData,
			env.Mac,
			env.Nonce,
		),
		Envelope: env,
	}, deviceKey
}

// keyExchange runs the device side of PrepareActivation against an
// initialized activation.
func (f *fixture) keyExchange(t *testing.T, ver ApplicationVersionView, init InitActivationResponse, otp string) (*testDevice, PrepareActivationResponse) {
	t.Helper()
	ctx := context.Background()

	req, deviceKey := f.buildPrepareRequest(t, ver, init, otp)
	resp, err := f.service.PrepareActivation(ctx, req)
	if err != nil {
		t.Fatalf("prepare activation: %v", err)
	}

	replyCryptogram, err := resp.Envelope.cryptogram()
	if err != nil {
		t.Fatalf("decode reply envelope: %v", err)
	}
	plaintext, err := f.provider.DecryptEnvelope(deviceKey, replyCryptogram, envelopeInfoActivation)
	if err != nil {
		t.Fatalf("decrypt reply envelope: %v", err)
	}
	var reply serverPayload
	if err := json.Unmarshal(plaintext, &reply); err != nil {
		t.Fatalf("decode reply payload: %v", err)
	}
	serverPublic, err := base64.StdEncoding.DecodeString(reply.ServerPublicKey)
	if err != nil {
		t.Fatalf("decode server public key: %v", err)
	}
	ctrData, err := base64.StdEncoding.DecodeString(reply.CtrData)
	if err != nil {
		t.Fatalf("decode counter data: %v", err)
	}
	shared, err := f.provider.SharedSecret(deviceKey, serverPublic)
	if err != nil {
		t.Fatalf("device shared secret: %v", err)
	}

	return &testDevice{
		key:          deviceKey,
		serverPublic: serverPublic,
		ctrData:      ctrData,
		shared:       shared,
		baseKey:      crypto.DeriveSignatureBaseKey(shared),
		activationID: resp.ActivationID,
	}, resp
}

// sign advances the device counter replica and signs data, mirroring what a
// client does before each request.
func (d *testDevice) sign(t *testing.T, sigType domain.SignatureType, data []byte) string {
	t.Helper()
	d.ctrData = crypto.AdvanceCtrData(d.ctrData)
	sig, err := crypto.ComputeSignature(d.baseKey, sigType.Factors(), data, d.ctrData)
	if err != nil {
		t.Fatalf("compute signature: %v", err)
	}
	return sig
}

// activeActivation runs init + key exchange + commit with no OTP, returning a
// device holding an ACTIVE activation.
func (f *fixture) activeActivation(t *testing.T, appID uuid.UUID, ver ApplicationVersionView, userID string) *testDevice {
	t.Helper()
	ctx := context.Background()
	init, err := f.service.InitActivation(ctx, InitActivationRequest{UserID: userID, ApplicationID: appID})
	if err != nil {
		t.Fatalf("init activation: %v", err)
	}
	device, _ := f.keyExchange(t, ver, init, "")
	if _, err := f.service.CommitActivation(ctx, CommitActivationRequest{ActivationID: device.activationID}); err != nil {
		t.Fatalf("commit activation: %v", err)
	}
	return device
}
