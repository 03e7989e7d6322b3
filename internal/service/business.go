package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/mail"
	"strings"

	"github.com/DukeRupert/rateflow/internal/auth"
	"github.com/DukeRupert/rateflow/internal/clock"
	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/email"
	"github.com/DukeRupert/rateflow/internal/repository"
	"github.com/DukeRupert/rateflow/internal/storage"
	"github.com/DukeRupert/rateflow/internal/taxid"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// MaxBusinessNameLength bounds the display name.
	MaxBusinessNameLength = 120

	// maxUsernameAttempts bounds suffix retries when a slug is taken.
	maxUsernameAttempts = 5

	// verificationCodeCost is the bcrypt cost for emailed codes. Codes live
	// for minutes, so the default cost is enough.
	verificationCodeCost = bcrypt.DefaultCost
)

// =============================================================================
// Interface Definition
// =============================================================================

// BusinessService manages the business account behind a session.
type BusinessService interface {
	// EnsureBusiness returns the business of the session subject, creating it
	// on first sight.
	EnsureBusiness(ctx context.Context, sess *auth.Session) (*domain.Business, error)

	Get(ctx context.Context, businessID uuid.UUID) (*domain.Business, error)

	UpdateProfile(ctx context.Context, sess *auth.Session, params domain.UpdateProfileParams) (*domain.Business, error)

	// UploadLogo fits the image into 256x256 and stores it as PNG.
	UploadLogo(ctx context.Context, sess *auth.Session, data io.Reader, contentType string) (*domain.Business, error)

	// LogoURL returns a link to the stored logo, or "" when there is none.
	LogoURL(ctx context.Context, b *domain.Business) string

	// VerifyTaxID checks the ID with the registry and stores the outcome.
	VerifyTaxID(ctx context.Context, sess *auth.Session, taxID string) (*domain.Business, error)

	// RequestEmailVerification emails a fresh one-time code.
	RequestEmailVerification(ctx context.Context, sess *auth.Session) error

	// VerifyEmail consumes the code and marks the contact email verified.
	VerifyEmail(ctx context.Context, sess *auth.Session, code string) (*domain.Business, error)

	// DeleteAccount removes the business and everything it owns.
	DeleteAccount(ctx context.Context, sess *auth.Session) error
}

// BusinessServiceConfig holds the collaborators of BusinessService.
type BusinessServiceConfig struct {
	Store   repository.Store
	Storage storage.Storage
	Logos   LogoProcessor
	TaxIDs  taxid.Verifier
	Email   email.EmailService
	Clock   clock.Clock
	Logger  *slog.Logger
}

// =============================================================================
// Implementation
// =============================================================================

type businessService struct {
	store   repository.Store
	storage storage.Storage
	logos   LogoProcessor
	taxIDs  taxid.Verifier
	email   email.EmailService
	clock   clock.Clock
	logger  *slog.Logger
}

// NewBusinessService creates a new BusinessService.
func NewBusinessService(cfg BusinessServiceConfig) BusinessService {
	logos := cfg.Logos
	if logos == nil {
		logos = NewLogoProcessor()
	}
	return &businessService{
		store:   cfg.Store,
		storage: cfg.Storage,
		logos:   logos,
		taxIDs:  cfg.TaxIDs,
		email:   cfg.Email,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
	}
}

// =============================================================================
// Account
// =============================================================================

func (s *businessService) EnsureBusiness(ctx context.Context, sess *auth.Session) (*domain.Business, error) {
	const op = "business.ensure"

	if sess == nil || sess.Subject == "" {
		return nil, domain.Unauthorized(op, "A verified session is required")
	}

	b, err := s.store.GetBusinessBySubject(ctx, sess.Subject)
	if err == nil {
		return repoBusinessToDomain(b), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Internal(err, op, "failed to load business")
	}

	base := UsernameFromIdentity(sess.Username, sess.Name, sess.Email)
	name := s.normalizeName(sess.Name)
	if name == "" {
		name = base
	}

	username := base
	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		b, err = s.store.CreateBusiness(ctx, repository.CreateBusinessParams{
			Subject:   sess.Subject,
			Username:  username,
			Name:      name,
			Email:     strings.TrimSpace(sess.Email),
			CreatedAt: s.clock.Now(),
		})
		if err == nil {
			s.logger.Info("Business created", "business_id", b.ID, "username", b.Username)
			return repoBusinessToDomain(b), nil
		}
		if !repository.IsUniqueViolation(err) {
			return nil, domain.Internal(err, op, "failed to create business")
		}

		switch repository.ConstraintName(err) {
		case "businesses_subject_key":
			// A concurrent request created it first.
			b, err = s.store.GetBusinessBySubject(ctx, sess.Subject)
			if err != nil {
				return nil, domain.Internal(err, op, "failed to load business")
			}
			return repoBusinessToDomain(b), nil
		default:
			username = fmt.Sprintf("%s-%s", base, randomDigits(4))
		}
	}
	return nil, domain.Conflict(op, "Could not allocate a unique username")
}

// UsernameFromIdentity derives the public handle from the first non-empty
// identity field.
func UsernameFromIdentity(username, name, emailAddr string) string {
	for _, candidate := range []string{username, name, localPart(emailAddr)} {
		if s := slug.Make(candidate); s != "" {
			return s
		}
	}
	return "business"
}

func localPart(addr string) string {
	if i := strings.IndexByte(addr, '@'); i > 0 {
		return addr[:i]
	}
	return ""
}

func (s *businessService) normalizeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	// Casers are stateful and cannot be shared between goroutines.
	return cases.Title(language.Und, cases.NoLower).String(name)
}

func (s *businessService) Get(ctx context.Context, businessID uuid.UUID) (*domain.Business, error) {
	const op = "business.get"

	b, err := s.store.GetBusinessByID(ctx, businessID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.BusinessNotFound(op)
		}
		return nil, domain.Internal(err, op, "failed to load business")
	}
	return repoBusinessToDomain(b), nil
}

// UpdateProfile clears email verification when the address changes.
func (s *businessService) UpdateProfile(ctx context.Context, sess *auth.Session, params domain.UpdateProfileParams) (*domain.Business, error) {
	const op = "business.update_profile"

	current, err := requireOwnedBusiness(ctx, s.store, op, sess)
	if err != nil {
		return nil, err
	}

	name := s.normalizeName(params.Name)
	if name == "" {
		return nil, domain.NewValidationError(op, "name", "Business name is required")
	}
	if len(name) > MaxBusinessNameLength {
		return nil, domain.NewValidationError(op, "name", fmt.Sprintf("Business name must be at most %d characters", MaxBusinessNameLength))
	}

	addr := strings.TrimSpace(params.Email)
	if addr == "" {
		addr = current.Email
	}
	if _, err := mail.ParseAddress(addr); err != nil {
		return nil, domain.NewValidationError(op, "email", "Email address is invalid")
	}

	b, err := s.store.UpdateBusinessProfile(ctx, repository.UpdateBusinessProfileParams{
		ID:    current.ID,
		Name:  name,
		Email: addr,
		Now:   s.clock.Now(),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.BusinessNotFound(op)
		}
		return nil, domain.Internal(err, op, "failed to update profile")
	}
	return repoBusinessToDomain(b), nil
}

func (s *businessService) UploadLogo(ctx context.Context, sess *auth.Session, data io.Reader, contentType string) (*domain.Business, error) {
	const op = "business.upload_logo"

	current, err := requireOwnedBusiness(ctx, s.store, op, sess)
	if err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, domain.Errorf(domain.ENOTIMPL, op, "File storage is not configured")
	}
	if !storage.IsAllowedLogoType(contentType) {
		return nil, domain.Invalid(op, "Logo must be a JPEG, PNG or GIF image")
	}

	png, err := s.logos.Process(data)
	if err != nil {
		return nil, domain.Invalid(op, "Logo could not be read as an image")
	}

	key := storage.LogoKey(current.ID)
	if err := s.storage.Put(ctx, key, bytes.NewReader(png), storage.PutOptions{
		ContentType: "image/png",
		MaxSize:     MaxLogoUploadSize,
		Overwrite:   true,
		Public:      true,
	}); err != nil {
		s.logger.Error("failed to store logo", "business_id", current.ID, "error", err)
		return nil, domain.ExternalServiceFailure(err, op, "File storage")
	}

	if err := s.store.UpdateBusinessLogo(ctx, repository.UpdateBusinessLogoParams{
		ID:      current.ID,
		LogoKey: key,
		Now:     s.clock.Now(),
	}); err != nil {
		return nil, domain.Internal(err, op, "failed to save logo")
	}

	current.LogoKey = key
	return repoBusinessToDomain(current), nil
}

func (s *businessService) LogoURL(ctx context.Context, b *domain.Business) string {
	if b == nil || !b.HasLogo() || s.storage == nil {
		return ""
	}
	url, err := s.storage.URL(ctx, b.LogoKey, logoURLExpiry)
	if err != nil {
		s.logger.Warn("logo URL unavailable", "business_id", b.ID, "error", err)
		return ""
	}
	return url
}

// VerifyTaxID leaves the stored state untouched when the registry fails.
func (s *businessService) VerifyTaxID(ctx context.Context, sess *auth.Session, taxID string) (*domain.Business, error) {
	const op = "business.verify_tax_id"

	current, err := requireOwnedBusiness(ctx, s.store, op, sess)
	if err != nil {
		return nil, err
	}
	if s.taxIDs == nil {
		return nil, domain.Errorf(domain.ENOTIMPL, op, "Tax ID verification is not configured")
	}

	res, err := s.taxIDs.Verify(ctx, taxID)
	if err != nil {
		if errors.Is(err, taxid.ErrMalformed) {
			return nil, domain.NewValidationError(op, "taxId", "Tax ID format is invalid")
		}
		s.logger.Error("tax ID registry failed", "business_id", current.ID, "error", err)
		return nil, domain.ExternalServiceFailure(err, op, "Tax ID registry")
	}

	if err := s.store.SetBusinessTaxID(ctx, repository.SetBusinessTaxIDParams{
		ID:            current.ID,
		TaxID:         res.TaxID,
		TaxIDVerified: res.Valid,
		Now:           s.clock.Now(),
	}); err != nil {
		return nil, domain.Internal(err, op, "failed to save tax ID")
	}

	s.logger.Info("Tax ID checked", "business_id", current.ID, "valid", res.Valid)
	current.TaxID = res.TaxID
	current.TaxIDVerified = res.Valid
	return repoBusinessToDomain(current), nil
}

// =============================================================================
// Email verification
// =============================================================================

// RequestEmailVerification replaces any pending code. Only the bcrypt hash is
// stored.
func (s *businessService) RequestEmailVerification(ctx context.Context, sess *auth.Session) error {
	const op = "business.request_email_verification"

	current, err := requireOwnedBusiness(ctx, s.store, op, sess)
	if err != nil {
		return err
	}
	if current.Email == "" {
		return domain.NewValidationError(op, "email", "Set a contact email first")
	}
	if current.EmailVerified {
		return domain.Conflict(op, "Email is already verified")
	}

	code, err := GenerateVerificationCode()
	if err != nil {
		return domain.Internal(err, op, "failed to generate code")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), verificationCodeCost)
	if err != nil {
		return domain.Internal(err, op, "failed to hash code")
	}

	now := s.clock.Now()
	if err := s.store.UpsertVerificationCode(ctx, repository.UpsertVerificationCodeParams{
		BusinessID: current.ID,
		CodeHash:   string(hash),
		ExpiresAt:  now.Add(domain.VerificationCodeDuration),
		CreatedAt:  now,
	}); err != nil {
		return domain.Internal(err, op, "failed to store code")
	}

	if s.email == nil {
		return domain.Errorf(domain.ENOTIMPL, op, "Email delivery is not configured")
	}
	if err := s.email.SendVerificationCode(ctx, current.Email, current.Name, code); err != nil {
		s.logger.Error("failed to send verification code", "business_id", current.ID, "error", err)
		return domain.ExternalServiceFailure(err, op, "Email delivery")
	}
	return nil
}

// VerifyEmail deletes the code conditionally on its hash, so of two
// concurrent attempts with the right code only one succeeds.
func (s *businessService) VerifyEmail(ctx context.Context, sess *auth.Session, code string) (*domain.Business, error) {
	const op = "business.verify_email"

	current, err := requireOwnedBusiness(ctx, s.store, op, sess)
	if err != nil {
		return nil, err
	}

	code = strings.TrimSpace(code)
	if len(code) != domain.VerificationCodeDigits {
		return nil, domain.InvalidCode(op)
	}

	pending, err := s.store.GetVerificationCode(ctx, current.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.InvalidCode(op)
		}
		return nil, domain.Internal(err, op, "failed to load code")
	}

	now := s.clock.Now()
	vc := domain.VerificationCode{CodeHash: pending.CodeHash, ExpiresAt: pending.ExpiresAt}
	if vc.IsExpired(now) {
		return nil, domain.CodeExpired(op)
	}
	if bcrypt.CompareHashAndPassword([]byte(pending.CodeHash), []byte(code)) != nil {
		return nil, domain.InvalidCode(op)
	}

	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		n, err := q.ConsumeVerificationCode(ctx, repository.ConsumeVerificationCodeParams{
			BusinessID: current.ID,
			CodeHash:   pending.CodeHash,
		})
		if err != nil {
			return domain.Internal(err, op, "failed to consume code")
		}
		if n == 0 {
			return domain.InvalidCode(op)
		}
		if err := q.MarkBusinessEmailVerified(ctx, repository.MarkBusinessEmailVerifiedParams{
			ID:  current.ID,
			Now: now,
		}); err != nil {
			return domain.Internal(err, op, "failed to mark email verified")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Contact email verified", "business_id", current.ID)
	current.EmailVerified = true
	return repoBusinessToDomain(current), nil
}

// GenerateVerificationCode returns a zero-padded numeric code.
func GenerateVerificationCode() (string, error) {
	return randomDigitString(domain.VerificationCodeDigits)
}

func randomDigitString(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

func randomDigits(n int) string {
	s, err := randomDigitString(n)
	if err != nil {
		return uuid.NewString()[:n]
	}
	return s
}

// =============================================================================
// Deletion
// =============================================================================

// DeleteAccount deletes rows first, then stored files best-effort.
func (s *businessService) DeleteAccount(ctx context.Context, sess *auth.Session) error {
	const op = "business.delete_account"

	current, err := requireOwnedBusiness(ctx, s.store, op, sess)
	if err != nil {
		return err
	}

	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		if _, err := q.DeleteInvoicesByBusinessID(ctx, current.ID); err != nil {
			return err
		}
		n, err := q.DeleteBusiness(ctx, current.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BusinessNotFound(op)
		}
		return domain.Internal(err, op, "failed to delete account")
	}

	if s.storage != nil {
		for _, prefix := range storage.BusinessPrefixes(current.ID) {
			objects, err := s.storage.List(ctx, prefix)
			if err != nil {
				s.logger.Warn("failed to list files of deleted business", "business_id", current.ID, "prefix", prefix, "error", err)
				continue
			}
			for _, obj := range objects {
				if err := s.storage.Delete(ctx, obj.Key); err != nil && !storage.IsNotFound(err) {
					s.logger.Warn("failed to delete file", "key", obj.Key, "error", err)
				}
			}
		}
	}

	s.logger.Info("Business deleted", "business_id", current.ID, "username", current.Username)
	return nil
}
