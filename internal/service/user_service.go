// Package service orchestrates credential authentication, registration and
// the access-grant resolution handed to authorization-ticket issuance.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/juanmaabanto/ms-identity/internal/domain"
	"github.com/juanmaabanto/ms-identity/internal/lockout"
	"github.com/juanmaabanto/ms-identity/internal/password"
	"github.com/juanmaabanto/ms-identity/internal/repository"
)

// UserService implements authentication, registration and grant resolution
// over the user and client-app stores.
type UserService struct {
	users      repository.UserRepository
	clientApps repository.ClientAppRepository
	hasher     *password.Hasher
	lockout    lockout.Policy
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewUserService wires the service. The clock is taken as a dependency so
// lockout windows are testable.
func NewUserService(
	users repository.UserRepository,
	clientApps repository.ClientAppRepository,
	hasher *password.Hasher,
	policy lockout.Policy,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		users:      users,
		clientApps: clientApps,
		hasher:     hasher,
		lockout:    policy,
		logger:     logger,
		tracer:     otel.Tracer("ms-identity/service"),
		now:        time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *UserService) WithClock(now func() time.Time) *UserService {
	s.now = now
	return s
}

// ProfileSummary is the projection disclosed for recognized accounts.
type ProfileSummary struct {
	UserName string `json:"userName"`
	Alias    string `json:"alias,omitempty"`
	ImageURI string `json:"imageUri,omitempty"`
}

// GrantSummary reports a user's standing with one client application.
type GrantSummary struct {
	UserName      string `json:"userName"`
	ClientAppName string `json:"clientAppName"`
	HasAccess     bool   `json:"hasAccess"`
	Permitted     bool   `json:"permitted"`
}

// CompanyContext is the company selection result used for claim assembly.
type CompanyContext struct {
	UserID   string             `json:"userId"`
	UserName string             `json:"userName"`
	Alias    string             `json:"alias"`
	ImageURI string             `json:"imageUri,omitempty"`
	Company  domain.UserCompany `json:"company"`
}

// RegisterInput carries a registration candidate.
type RegisterInput struct {
	UserName               string `json:"userName"`
	Alias                  string `json:"alias"`
	Password               string `json:"password"`
	LockoutEnabled         bool   `json:"lockoutEnabled"`
	PasswordExpiresEnabled bool   `json:"passwordExpiresEnabled"`
}

// Authenticate verifies a username/password pair, advancing the lockout
// counters. Every failing branch past the user lookup persists its counter
// mutation before the failure is reported.
//
// Counter persistence is read-then-write without optimistic concurrency:
// two simultaneous wrong-password attempts can undercount. Known weakness,
// kept as-is.
func (s *UserService) Authenticate(ctx context.Context, username, passwd string) (domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Authenticate")
	defer span.End()

	now := s.now().UTC()
	normalized := domain.NormalizeUserName(username)

	user, err := s.users.FindByNormalizedUserName(ctx, normalized)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, domain.ErrInvalidCredentials
		}
		span.RecordError(err)
		return domain.User{}, s.internalError(err, username)
	}

	if !user.Active {
		return domain.User{}, domain.ErrAccountInactive
	}

	if s.lockout.IsLockedOut(&user, now) {
		return domain.User{}, domain.NewLockedOut(user.LockoutEnd.Sub(now))
	}

	if s.hasher.Verify(user.PasswordHash, passwd) {
		user.AccessFailedCount = s.lockout.OnSuccess(&user)
		user.LockoutEnd = nil
		if err := s.users.UpdateLoginState(ctx, user.ID, user.AccessFailedCount, nil); err != nil {
			span.RecordError(err)
			return domain.User{}, s.internalError(err, username)
		}
		s.audit("login.success", zap.String("user_id", user.ID))
		return user, nil
	}

	outcome := s.lockout.OnFailure(&user, now)
	if err := s.users.UpdateLoginState(ctx, user.ID, outcome.NextCount, outcome.NextLockoutEnd); err != nil {
		span.RecordError(err)
		return domain.User{}, s.internalError(err, username)
	}

	if outcome.JustLocked {
		s.audit("login.locked_out", zap.String("user_id", user.ID))
		return domain.User{}, domain.NewLockedOut(outcome.NextLockoutEnd.Sub(now))
	}

	s.audit("login.wrong_password",
		zap.String("user_id", user.ID),
		zap.Int("attempts_remaining", outcome.AttemptsRemaining),
	)
	return domain.User{}, domain.NewWrongPassword(outcome.AttemptsRemaining)
}

// Register creates a new account. The username must be unique under the
// normalized lookup convention used by Authenticate.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Register")
	defer span.End()

	if err := validateRegistration(in); err != nil {
		return domain.User{}, err
	}

	normalized := domain.NormalizeUserName(in.UserName)
	if _, err := s.users.FindByNormalizedUserName(ctx, normalized); err == nil {
		return domain.User{}, domain.ErrConflict
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		span.RecordError(err)
		return domain.User{}, s.internalError(err, in.UserName)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, s.internalError(err, in.UserName)
	}

	now := s.now().UTC()
	user := domain.User{
		UserName:               in.UserName,
		NormalizedUserName:     normalized,
		Alias:                  in.Alias,
		PasswordHash:           hash,
		AccessFailedCount:      0,
		LockoutEnabled:         in.LockoutEnabled,
		PasswordExpiresEnabled: in.PasswordExpiresEnabled,
		RequestPasswordChange:  true,
		SecurityStamp:          NewSecurityStamp(),
		Active:                 true,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if in.PasswordExpiresEnabled {
		expires := now.AddDate(0, 3, 0)
		user.PasswordExpires = &expires
	}

	created, err := s.users.InsertOne(ctx, user)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, s.internalError(err, in.UserName)
	}

	s.audit("user.registered", zap.String("user_id", created.ID))
	return created, nil
}

// FindByName returns the profile projection for a username. The privacy
// gate for unrecognized browsers is applied by the caller, which holds the
// known-accounts list.
func (s *UserService) FindByName(ctx context.Context, userName string) (ProfileSummary, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.FindByName")
	defer span.End()

	user, err := s.users.FindByNormalizedUserName(ctx, domain.NormalizeUserName(userName))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ProfileSummary{}, domain.ErrNotFound
		}
		span.RecordError(err)
		return ProfileSummary{}, s.internalError(err, userName)
	}

	return ProfileSummary{UserName: user.UserName, Alias: user.Alias, ImageURI: user.ImageURI}, nil
}

// ClientAppGrant resolves what userName may present to the given client
// application. First-party clients are permitted by default; third-party
// clients require an explicit grant.
func (s *UserService) ClientAppGrant(ctx context.Context, userName, clientAppID string) (GrantSummary, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.ClientAppGrant")
	defer span.End()

	app, err := s.clientApps.FindByID(ctx, clientAppID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return GrantSummary{}, domain.ErrInvalidClient
		}
		span.RecordError(err)
		return GrantSummary{}, s.internalError(err, userName)
	}
	if !app.Active {
		return GrantSummary{}, domain.ErrInvalidClient
	}

	user, err := s.users.FindByNormalizedUserName(ctx, domain.NormalizeUserName(userName))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return GrantSummary{}, domain.ErrNotFound
		}
		span.RecordError(err)
		return GrantSummary{}, s.internalError(err, userName)
	}

	grant := user.ClientAppGrant(clientAppID)
	return GrantSummary{
		UserName:      user.UserName,
		ClientAppName: app.Name,
		HasAccess:     grant != nil && grant.HasAccess,
		Permitted:     (grant != nil && grant.Permitted) || !app.ThirdParty,
	}, nil
}

// CompanyContext selects the company a ticket will be issued for. An empty
// companyID selects the principal company; a user with no resolvable
// company cannot be granted claims.
func (s *UserService) CompanyContext(ctx context.Context, userID, companyID string) (CompanyContext, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.CompanyContext")
	defer span.End()

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return CompanyContext{}, domain.ErrNotFound
		}
		span.RecordError(err)
		return CompanyContext{}, s.internalError(err, userID)
	}

	var company *domain.UserCompany
	if companyID == "" {
		company = user.PrincipalCompany()
	} else {
		company = user.CompanyByID(companyID)
	}
	if company == nil {
		return CompanyContext{}, domain.ErrNoCompanyAccess
	}

	return CompanyContext{
		UserID:   user.ID,
		UserName: user.UserName,
		Alias:    user.Alias,
		ImageURI: user.ImageURI,
		Company:  *company,
	}, nil
}

// NewSecurityStamp generates the opaque token rotated whenever credentials
// change.
func NewSecurityStamp() string {
	u := uuid.New()
	stamp := make([]byte, 0, 32)
	const hexUpper = "0123456789ABCDEF"
	for _, b := range u[:] {
		stamp = append(stamp, hexUpper[b>>4], hexUpper[b&0x0f])
	}
	return string(stamp)
}

func validateRegistration(in RegisterInput) error {
	if l := len(in.UserName); l < 3 || l > 30 {
		return domain.NewValidation("userName must be between 3 and 30 characters")
	}
	if l := len(in.Alias); l < 3 || l > 30 {
		return domain.NewValidation("alias must be between 3 and 30 characters")
	}
	if err := password.Validate(in.Password); err != nil {
		return domain.NewValidation(err.Error())
	}
	return nil
}

func (s *UserService) audit(event string, fields ...zap.Field) {
	s.logger.Info(event, fields...)
}

func (s *UserService) internalError(err error, userName string) error {
	correlationID := uuid.NewString()
	s.logger.Error("identity service failure",
		zap.String("correlation_id", correlationID),
		zap.String("user_name", userName),
		zap.Error(err),
	)
	return domain.NewInternal(correlationID)
}
