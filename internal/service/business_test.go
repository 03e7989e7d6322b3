package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/DukeRupert/rateflow/internal/auth"
	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/email"
	"github.com/DukeRupert/rateflow/internal/storage"
	"github.com/DukeRupert/rateflow/internal/taxid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMailer records verification codes instead of sending them.
type fakeMailer struct {
	mu    sync.Mutex
	codes []string
	err   error
}

func (m *fakeMailer) SendInvoiceEmail(ctx context.Context, msg email.InvoiceEmail) error {
	return m.err
}

func (m *fakeMailer) SendVerificationCode(ctx context.Context, to, name, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.codes = append(m.codes, code)
	return nil
}

func (m *fakeMailer) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.codes) == 0 {
		return ""
	}
	return m.codes[len(m.codes)-1]
}

type fakeVerifier struct {
	result *taxid.Result
	err    error
}

func (v *fakeVerifier) Verify(ctx context.Context, id string) (*taxid.Result, error) {
	if v.err != nil {
		return nil, v.err
	}
	res := *v.result
	res.TaxID = taxid.Normalize(id)
	return &res, nil
}

type businessEnv struct {
	*testEnv
	objects  *storage.LocalStorage
	mailer   *fakeMailer
	verifier *fakeVerifier
	svc      BusinessService
}

func newBusinessEnv(t *testing.T) *businessEnv {
	t.Helper()
	env := newTestEnv(t)
	objects, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files",
	}, env.logger)
	require.NoError(t, err)

	mailer := &fakeMailer{}
	verifier := &fakeVerifier{result: &taxid.Result{Valid: true, LegalName: "Acme Ltd"}}
	return &businessEnv{
		testEnv:  env,
		objects:  objects,
		mailer:   mailer,
		verifier: verifier,
		svc: NewBusinessService(BusinessServiceConfig{
			Store:   env.store,
			Storage: objects,
			TaxIDs:  verifier,
			Email:   mailer,
			Clock:   env.clock,
			Logger:  env.logger,
		}),
	}
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUsernameFromIdentity(t *testing.T) {
	tests := []struct {
		username, name, email string
		want                  string
	}{
		{"Acme Plumbing", "", "", "acme-plumbing"},
		{"", "Café Élan", "", "cafe-elan"},
		{"", "", "jo.smith@example.com", "jo-smith"},
		{"", "", "", "business"},
		{"!!!", "", "x@example.com", "x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UsernameFromIdentity(tt.username, tt.name, tt.email))
	}
}

func TestBusiness_EnsureBusiness(t *testing.T) {
	env := newBusinessEnv(t)
	ctx := context.Background()
	sess := &auth.Session{Subject: "oidc|1", Name: "acme plumbing", Email: "owner@acme.test"}

	b, err := env.svc.EnsureBusiness(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "acme-plumbing", b.Username)
	assert.Equal(t, "Acme Plumbing", b.Name)
	assert.Equal(t, domain.PlanTierFree, b.Plan.Tier)

	again, err := env.svc.EnsureBusiness(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, b.ID, again.ID)

	_, err = env.svc.EnsureBusiness(ctx, &auth.Session{})
	requireCode(t, err, domain.EUNAUTHORIZED)
}

func TestBusiness_EnsureBusinessUsernameCollision(t *testing.T) {
	env := newBusinessEnv(t)
	ctx := context.Background()

	first, err := env.svc.EnsureBusiness(ctx, &auth.Session{Subject: "oidc|1", Name: "Acme"})
	require.NoError(t, err)
	second, err := env.svc.EnsureBusiness(ctx, &auth.Session{Subject: "oidc|2", Name: "ACME"})
	require.NoError(t, err)

	assert.Equal(t, "acme", first.Username)
	assert.NotEqual(t, first.Username, second.Username)
	assert.True(t, strings.HasPrefix(second.Username, "acme-"))
	assert.Len(t, second.Username, len("acme-0000"))
}

func TestBusiness_EnsureBusinessConcurrentFirstLogin(t *testing.T) {
	env := newBusinessEnv(t)
	sess := &auth.Session{Subject: "oidc|1", Name: "Acme"}

	ids := make(chan string, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := env.svc.EnsureBusiness(context.Background(), sess)
			if err == nil {
				ids <- b.ID.String()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1)
	env.store.with(func(st *fakeState) { assert.Len(t, st.businesses, 1) })
}

func TestBusiness_UpdateProfile(t *testing.T) {
	env := newBusinessEnv(t)
	sess := env.seedBusiness(t, "acme")
	ctx := context.Background()
	env.store.with(func(st *fakeState) {
		b := st.businesses[sess.BusinessID]
		b.EmailVerified = true
		st.businesses[b.ID] = b
	})

	b, err := env.svc.UpdateProfile(ctx, sess, domain.UpdateProfileParams{Name: "  acme   widgets "})
	require.NoError(t, err)
	assert.Equal(t, "Acme Widgets", b.Name)
	assert.True(t, b.EmailVerified, "unchanged email keeps its verification")

	b, err = env.svc.UpdateProfile(ctx, sess, domain.UpdateProfileParams{Name: "Acme", Email: "new@acme.test"})
	require.NoError(t, err)
	assert.Equal(t, "new@acme.test", b.Email)
	assert.False(t, b.EmailVerified)

	_, err = env.svc.UpdateProfile(ctx, sess, domain.UpdateProfileParams{Name: ""})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = env.svc.UpdateProfile(ctx, sess, domain.UpdateProfileParams{Name: "Acme", Email: "broken"})
	require.ErrorAs(t, err, &ve)
}

func TestBusiness_UploadLogo(t *testing.T) {
	env := newBusinessEnv(t)
	sess := env.seedBusiness(t, "acme")
	ctx := context.Background()

	b, err := env.svc.UploadLogo(ctx, sess, bytes.NewReader(pngImage(t, 800, 400)), "image/png")
	require.NoError(t, err)
	require.True(t, b.HasLogo())
	assert.Equal(t, b.LogoKey, env.business(sess.BusinessID).LogoKey)
	assert.Equal(t, "http://localhost:8080/files/"+b.LogoKey, env.svc.LogoURL(ctx, b))

	rc, _, err := env.objects.Get(ctx, b.LogoKey)
	require.NoError(t, err)
	defer rc.Close()
	img, err := png.Decode(rc)
	require.NoError(t, err)
	assert.Equal(t, LogoSize, img.Bounds().Dx())
	assert.Equal(t, LogoSize/2, img.Bounds().Dy())

	_, err = env.svc.UploadLogo(ctx, sess, strings.NewReader("%PDF-1.4"), "application/pdf")
	requireCode(t, err, domain.EINVALID)

	_, err = env.svc.UploadLogo(ctx, sess, strings.NewReader("not an image"), "image/png")
	requireCode(t, err, domain.EINVALID)
}

func TestBusiness_VerifyTaxID(t *testing.T) {
	env := newBusinessEnv(t)
	sess := env.seedBusiness(t, "acme")
	ctx := context.Background()

	b, err := env.svc.VerifyTaxID(ctx, sess, "gb 123-456-789")
	require.NoError(t, err)
	assert.Equal(t, "GB123456789", b.TaxID)
	assert.True(t, b.TaxIDVerified)

	// A registry outage leaves the stored result untouched.
	env.verifier.err = errors.New("registry timeout")
	_, err = env.svc.VerifyTaxID(ctx, sess, "GB999999999")
	requireReason(t, err, domain.ReasonExternalService)
	stored := env.business(sess.BusinessID)
	assert.Equal(t, "GB123456789", stored.TaxID)
	assert.True(t, stored.TaxIDVerified)

	env.verifier.err = taxid.ErrMalformed
	_, err = env.svc.VerifyTaxID(ctx, sess, "??")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestBusiness_EmailVerification(t *testing.T) {
	env := newBusinessEnv(t)
	sess := env.seedBusiness(t, "acme")
	ctx := context.Background()

	_, err := env.svc.VerifyEmail(ctx, sess, "123456")
	requireReason(t, err, domain.ReasonInvalidCode)

	require.NoError(t, env.svc.RequestEmailVerification(ctx, sess))
	code := env.mailer.lastCode()
	require.Len(t, code, domain.VerificationCodeDigits)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err = env.svc.VerifyEmail(ctx, sess, wrong)
	requireReason(t, err, domain.ReasonInvalidCode)
	_, err = env.svc.VerifyEmail(ctx, sess, "12")
	requireReason(t, err, domain.ReasonInvalidCode)

	b, err := env.svc.VerifyEmail(ctx, sess, " "+code+" ")
	require.NoError(t, err)
	assert.True(t, b.EmailVerified)

	// Codes are single use.
	_, err = env.svc.VerifyEmail(ctx, sess, code)
	requireReason(t, err, domain.ReasonInvalidCode)

	err = env.svc.RequestEmailVerification(ctx, sess)
	requireCode(t, err, domain.ECONFLICT)
}

func TestBusiness_EmailVerificationExpired(t *testing.T) {
	env := newBusinessEnv(t)
	sess := env.seedBusiness(t, "acme")
	ctx := context.Background()

	require.NoError(t, env.svc.RequestEmailVerification(ctx, sess))
	code := env.mailer.lastCode()

	env.clock.Advance(domain.VerificationCodeDuration)
	_, err := env.svc.VerifyEmail(ctx, sess, code)
	requireReason(t, err, domain.ReasonCodeExpired)
	assert.Equal(t, domain.EGONE, domain.ErrorCode(err))

	// A new request replaces the expired code.
	require.NoError(t, env.svc.RequestEmailVerification(ctx, sess))
	_, err = env.svc.VerifyEmail(ctx, sess, env.mailer.lastCode())
	require.NoError(t, err)
}

func TestBusiness_EmailDeliveryFailure(t *testing.T) {
	env := newBusinessEnv(t)
	sess := env.seedBusiness(t, "acme")
	env.mailer.err = errors.New("smtp down")

	err := env.svc.RequestEmailVerification(context.Background(), sess)
	requireReason(t, err, domain.ReasonExternalService)
}

func TestBusiness_DeleteAccount(t *testing.T) {
	env := newBusinessEnv(t)
	sess := env.seedBusiness(t, "acme")
	other := env.seedBusiness(t, "rival")
	ctx := context.Background()

	b, err := env.svc.UploadLogo(ctx, sess, bytes.NewReader(pngImage(t, 64, 64)), "image/png")
	require.NoError(t, err)
	inv := env.seedInvoice(t, sess.BusinessID, "INV-1")
	pdfKey := storage.InvoicePDFKey(sess.BusinessID, inv.ID)
	require.NoError(t, env.objects.Put(ctx, pdfKey, strings.NewReader("%PDF-1.4"), storage.PutOptions{}))
	env.seedInvoice(t, other.BusinessID, "INV-1")

	require.NoError(t, env.svc.DeleteAccount(ctx, sess))

	_, err = env.svc.Get(ctx, sess.BusinessID)
	requireReason(t, err, domain.ReasonBusinessNotFound)
	for _, key := range []string{b.LogoKey, pdfKey} {
		exists, err := env.objects.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists, key)
	}
	env.store.with(func(st *fakeState) {
		assert.Len(t, st.invoices, 1)
		assert.Len(t, st.businesses, 1)
	})

	err = env.svc.DeleteAccount(ctx, sess)
	requireReason(t, err, domain.ReasonBusinessNotFound)
}
