package application

import (
	"context"
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/mobilauth/activation-service/internal/crypto"
	"github.com/mobilauth/activation-service/internal/domain"
)

// CreateApplication registers an integrator tenant together with its first
// master key pair; nothing in the protocol works for an application without
// one.
func (s *Service) CreateApplication(ctx context.Context, req CreateApplicationRequest) (ApplicationView, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return ApplicationView{}, domain.Errf(domain.ErrInvalidRequest, "missing application name")
	}
	app := domain.Application{
		ApplicationID: uuid.New(),
		Name:          name,
		CreatedAt:     s.nowFn(),
	}
	if err := s.applications.CreateApplication(ctx, &app); err != nil {
		return ApplicationView{}, err
	}
	if _, err := s.createMasterKeyPair(ctx, app.ApplicationID); err != nil {
		return ApplicationView{}, err
	}
	return applicationView(app), nil
}

func (s *Service) createMasterKeyPair(ctx context.Context, applicationID uuid.UUID) (domain.MasterKeyPair, error) {
	privateDER, publicDER, err := s.provider.GenerateSigningKeyPair()
	if err != nil {
		return domain.MasterKeyPair{}, err
	}
	keyPairID := uuid.New()
	wrapped, mode, err := s.keyVault.ToDBValue(privateDER, crypto.MasterKeyContext(applicationID.String(), keyPairID.String()))
	if err != nil {
		return domain.MasterKeyPair{}, err
	}
	pair := domain.MasterKeyPair{
		KeyPairID:            keyPairID,
		ApplicationID:        applicationID,
		PublicKey:            publicDER,
		PrivateKey:           wrapped,
		PrivateKeyEncryption: mode,
		CreatedAt:            s.nowFn(),
	}
	if err := s.applications.CreateMasterKeyPair(ctx, &pair); err != nil {
		return domain.MasterKeyPair{}, err
	}
	return pair, nil
}

// GetApplicationDetail returns the application, its versions and the master
// public key clients embed.
func (s *Service) GetApplicationDetail(ctx context.Context, applicationID uuid.UUID) (ApplicationDetailResponse, error) {
	app, err := s.applications.GetApplication(ctx, applicationID)
	if err != nil {
		return ApplicationDetailResponse{}, domain.WrapErr(domain.ErrInvalidApplication, "unknown application", err)
	}
	pair, err := s.applications.LatestMasterKeyPair(ctx, applicationID)
	if err != nil {
		return ApplicationDetailResponse{}, domain.WrapErr(domain.ErrInvalidApplication, "no master key pair", err)
	}
	versions, err := s.applications.ListVersions(ctx, applicationID)
	if err != nil {
		return ApplicationDetailResponse{}, err
	}
	views := make([]ApplicationVersionView, 0, len(versions))
	for _, v := range versions {
		views = append(views, versionView(v))
	}
	return ApplicationDetailResponse{
		Application:     applicationView(app),
		MasterPublicKey: base64.StdEncoding.EncodeToString(pair.PublicKey),
		Versions:        views,
	}, nil
}

func (s *Service) ListApplications(ctx context.Context) ([]ApplicationView, error) {
	apps, err := s.applications.ListApplications(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ApplicationView, 0, len(apps))
	for _, app := range apps {
		out = append(out, applicationView(app))
	}
	return out, nil
}

// CreateApplicationVersion mints a key/secret pair for one client build
// channel. New versions are supported until explicitly retired.
func (s *Service) CreateApplicationVersion(ctx context.Context, req CreateApplicationVersionRequest) (ApplicationVersionView, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return ApplicationVersionView{}, domain.Errf(domain.ErrInvalidRequest, "missing version name")
	}
	app, err := s.applications.GetApplication(ctx, req.ApplicationID)
	if err != nil {
		return ApplicationVersionView{}, domain.WrapErr(domain.ErrInvalidApplication, "unknown application", err)
	}
	key, err := s.provider.RandomBytes(crypto.KeyIndexLength)
	if err != nil {
		return ApplicationVersionView{}, err
	}
	secret, err := s.provider.RandomBytes(crypto.KeyIndexLength)
	if err != nil {
		return ApplicationVersionView{}, err
	}
	version := domain.ApplicationVersion{
		VersionID:         uuid.New(),
		ApplicationID:     app.ApplicationID,
		Name:              name,
		ApplicationKey:    base64.StdEncoding.EncodeToString(key),
		ApplicationSecret: base64.StdEncoding.EncodeToString(secret),
		Supported:         true,
		CreatedAt:         s.nowFn(),
	}
	if err := s.applications.CreateVersion(ctx, &version); err != nil {
		return ApplicationVersionView{}, err
	}
	return versionView(version), nil
}

// SetVersionSupported toggles whether a version may open new cryptographic
// exchanges. Established activations keep working either way.
func (s *Service) SetVersionSupported(ctx context.Context, versionID uuid.UUID, supported bool) error {
	return s.applications.SetVersionSupported(ctx, versionID, supported)
}

// CreateCallback registers a webhook destination for activation status
// changes.
func (s *Service) CreateCallback(ctx context.Context, req CreateCallbackRequest) (CallbackView, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return CallbackView{}, domain.Errf(domain.ErrInvalidRequest, "missing callback name")
	}
	parsed, err := url.Parse(req.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return CallbackView{}, domain.Errf(domain.ErrInvalidRequest, "callback url must be absolute http(s)")
	}
	if _, err := s.applications.GetApplication(ctx, req.ApplicationID); err != nil {
		return CallbackView{}, domain.WrapErr(domain.ErrInvalidApplication, "unknown application", err)
	}
	cb := domain.CallbackConfig{
		CallbackID:    uuid.New(),
		ApplicationID: req.ApplicationID,
		Name:          name,
		URL:           req.URL,
		CreatedAt:     s.nowFn(),
	}
	if err := s.callbacks.Create(ctx, &cb); err != nil {
		return CallbackView{}, err
	}
	return callbackView(cb), nil
}

func (s *Service) ListCallbacks(ctx context.Context, applicationID uuid.UUID) ([]CallbackView, error) {
	cbs, err := s.callbacks.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	out := make([]CallbackView, 0, len(cbs))
	for _, cb := range cbs {
		out = append(out, callbackView(cb))
	}
	return out, nil
}

func (s *Service) DeleteCallback(ctx context.Context, callbackID uuid.UUID) error {
	deleted, err := s.callbacks.Delete(ctx, callbackID)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.Errf(domain.ErrInvalidRequest, "callback not found")
	}
	return nil
}

func applicationView(app domain.Application) ApplicationView {
	return ApplicationView{
		ApplicationID: app.ApplicationID,
		Name:          app.Name,
		CreatedAt:     app.CreatedAt,
	}
}

func versionView(v domain.ApplicationVersion) ApplicationVersionView {
	return ApplicationVersionView{
		VersionID:         v.VersionID,
		ApplicationID:     v.ApplicationID,
		Name:              v.Name,
		ApplicationKey:    v.ApplicationKey,
		ApplicationSecret: v.ApplicationSecret,
		Supported:         v.Supported,
		CreatedAt:         v.CreatedAt,
	}
}

func callbackView(cb domain.CallbackConfig) CallbackView {
	return CallbackView{
		CallbackID:    cb.CallbackID,
		ApplicationID: cb.ApplicationID,
		Name:          cb.Name,
		URL:           cb.URL,
		CreatedAt:     cb.CreatedAt,
	}
}
