package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ximoveis/internal/auth"
	"ximoveis/internal/config"
	"ximoveis/internal/db"
	"ximoveis/internal/models"
	"ximoveis/internal/notify"
	"ximoveis/internal/search"
	"ximoveis/internal/storage"
	"ximoveis/internal/store"
)

var testKey = bytes.Repeat([]byte{0x42}, 32)

type captureSender struct {
	notices []notify.ReviewNotice
	err     error
}

func (c *captureSender) SendReviewResult(_ context.Context, n notify.ReviewNotice) error {
	c.notices = append(c.notices, n)
	return c.err
}

type fixture struct {
	svc    *Service
	sender *captureSender
	dir    string
}

func newFixture(t *testing.T, encryptCerts bool) fixture {
	t.Helper()
	root := t.TempDir()
	sqdb, err := db.OpenSQLite(filepath.Join(root, "app.db"), 1, 1, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqdb.Close() })
	_, err = db.ApplyMigrations(sqdb, db.SQLite{}, filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	dir := filepath.Join(root, "uploads")
	files, err := storage.New(dir, testKey, encryptCerts, logger)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService("test-secret", time.Hour)
	require.NoError(t, err)
	sender := &captureSender{}
	svc := New(config.Config{MaxPhotos: 50}, store.New(sqdb, db.SQLite{}), files, tokens, sender, logger)
	return fixture{svc: svc, sender: sender, dir: dir}
}

func (f fixture) broker(t *testing.T, email string) auth.Identity {
	t.Helper()
	res, err := f.svc.Register(context.Background(), RegisterRequest{
		Name: "Corretor", Email: email, Password: "secret1", Phone: "61 99999-0000", CPF: "123.456.789-00", Creci: "DF-1234",
	})
	require.NoError(t, err)
	return auth.Identity{UserID: res.User.ID, Role: res.User.Role}
}

func (f fixture) admin(t *testing.T) auth.Identity {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.svc.BootstrapAdmin(ctx, "Admin", "admin@example.com", "adminpass"))
	u, err := f.svc.Store().GetUserByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	return auth.Identity{UserID: u.ID, Role: u.Role}
}

func (f fixture) save(t *testing.T, body, name, ct string, kind storage.Kind) *storage.SavedFile {
	t.Helper()
	sf, err := f.svc.Files().Save(strings.NewReader(body), "field", name, ct, kind)
	require.NoError(t, err)
	return &sf
}

func listingFormValues() url.Values {
	return url.Values{
		"title":    {"Casa com piscina"},
		"price":    {"450000"},
		"city":     {"Brasília"},
		"state":    {"DF"},
		"purpose":  {"sale"},
		"type":     {"HOUSE"},
		"lat":      {"-15.78"},
		"lng":      {"-47.93"},
		"bedrooms": {"3"},
	}
}

const pdfBody = "%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n"

func (f fixture) upload(t *testing.T, photos int) Upload {
	t.Helper()
	up := Upload{Form: listingFormValues(), Certificate: f.save(t, pdfBody, "matricula.pdf", "application/pdf", storage.KindCertificate)}
	for i := 0; i < photos; i++ {
		up.Photos = append(up.Photos, *f.save(t, "\x89PNG\r\n\x1a\nphoto", "foto.png", "image/png", storage.KindPhoto))
	}
	return up
}

func (f fixture) create(t *testing.T, id auth.Identity, photos int) (int64, Upload) {
	t.Helper()
	up := f.upload(t, photos)
	res, err := f.svc.CreateProperty(context.Background(), id, up)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, res.Status)
	return res.ID, up
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (f fixture) abs(ref string) string {
	return filepath.Join(f.dir, strings.TrimPrefix(ref, storage.RefPrefix))
}

func TestRegisterRules(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterRequest{Name: "x", Email: "x@example.com", Password: "secret1"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Register(ctx, RegisterRequest{Name: "x", Email: "not-an-email", Password: "secret1"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Register(ctx, RegisterRequest{Name: "Imob", Email: "imob@example.com", Password: "secret1", Role: "AGENCY", Phone: "1"})
	require.ErrorIs(t, err, ErrValidation)

	res, err := f.svc.Register(ctx, RegisterRequest{
		Name: "Imob", Email: "imob@example.com", Password: "secret1", Role: "AGENCY", Phone: "1", CNPJ: "00.000.000/0001-00", CreciJuridico: "J-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAgency, res.User.Role)
	assert.NotEmpty(t, res.Token)
	u, err := f.svc.Store().GetUserByID(ctx, res.User.ID)
	require.NoError(t, err)
	require.NotNil(t, u.AgencyID)
	assert.Nil(t, u.CPF)

	_, err = f.svc.Register(ctx, RegisterRequest{
		Name: "Imob", Email: "IMOB@example.com", Password: "secret1", Role: "AGENCY", Phone: "1", CNPJ: "1", CreciJuridico: "1",
	})
	require.ErrorIs(t, err, ErrConflict)
}

func TestRegisterDefaultsToBroker(t *testing.T) {
	f := newFixture(t, false)
	id := f.broker(t, "b@example.com")
	assert.Equal(t, models.RoleBroker, id.Role)
}

func TestLogin(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	id := f.broker(t, "b@example.com")

	res, err := f.svc.Login(ctx, LoginRequest{Email: "B@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, id.UserID, res.User.ID)
	got, err := f.svc.Authenticate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = f.svc.Login(ctx, LoginRequest{Email: "b@example.com", Password: "wrong"})
	require.ErrorIs(t, err, ErrUnauthenticated)
	_, err = f.svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	require.ErrorIs(t, err, ErrUnauthenticated)
	_, err = f.svc.Login(ctx, LoginRequest{Email: "b@example.com"})
	require.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.Authenticate("garbage")
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestCreatePropertyStoresEverything(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	id := f.broker(t, "b@example.com")
	pid, up := f.create(t, id, 2)

	d, err := f.svc.Detail(ctx, &id, pid)
	require.NoError(t, err)
	assert.Equal(t, models.PurposeSale, d.Property.Purpose)
	assert.Equal(t, 3, d.Property.Bedrooms)
	require.Len(t, d.Photos, 2)
	assert.Equal(t, storage.PublicURL(up.Photos[0].Ref), d.Photos[0])
	require.NotNil(t, d.CoverURL)
	require.Len(t, d.History, 1)
	assert.Equal(t, "Criado como PENDING", *d.History[0].Notes)
	assert.Equal(t, "Corretor", d.Contact.UserName)
}

func TestCreatePropertyFailureRemovesFiles(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	id := f.broker(t, "b@example.com")

	up := f.upload(t, 1)
	up.Form.Del("lat")
	_, err := f.svc.CreateProperty(ctx, id, up)
	require.ErrorIs(t, err, ErrValidation)
	for _, ref := range up.Refs() {
		assert.False(t, exists(f.abs(ref)), ref)
	}

	up = f.upload(t, 1)
	up.Form.Set("price", "abc")
	_, err = f.svc.CreateProperty(ctx, id, up)
	require.ErrorIs(t, err, ErrValidation)

	up = f.upload(t, 0)
	up.Certificate = nil
	_, err = f.svc.CreateProperty(ctx, id, up)
	require.ErrorIs(t, err, ErrValidation)

	up = f.upload(t, 1)
	_, err = f.svc.CreateProperty(ctx, f.admin(t), up)
	require.ErrorIs(t, err, ErrForbidden)
	assert.False(t, exists(f.abs(up.Certificate.Ref)))
}

func TestApproveRejectAndNotify(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	owner := f.broker(t, "b@example.com")
	admin := f.admin(t)
	pid, _ := f.create(t, owner, 0)

	_, err := f.svc.Approve(ctx, owner, pid, "")
	require.ErrorIs(t, err, ErrForbidden)

	res, err := f.svc.Approve(ctx, admin, pid, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, res.Status)
	c, err := f.svc.Store().LatestCertificate(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationApproved, c.VerificationStatus)
	assert.Equal(t, "Aprovado", *c.Notes)

	res, err = f.svc.Reject(ctx, admin, pid, "  ")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, res.Status)
	c, _ = f.svc.Store().LatestCertificate(ctx, pid)
	assert.Equal(t, "Rejeitado", *c.Notes)

	require.Len(t, f.sender.notices, 2)
	assert.True(t, f.sender.notices[0].Approved)
	assert.False(t, f.sender.notices[1].Approved)
	assert.Equal(t, "b@example.com", f.sender.notices[1].To)

	_, err = f.svc.Approve(ctx, admin, 9999, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReviewSucceedsWhenNotificationFails(t *testing.T) {
	f := newFixture(t, false)
	f.sender.err = errors.New("smtp down")
	owner := f.broker(t, "b@example.com")
	pid, _ := f.create(t, owner, 0)
	res, err := f.svc.Approve(context.Background(), f.admin(t), pid, "ok")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, res.Status)
}

func TestEditByOwnerPermissionsAndReset(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	owner := f.broker(t, "b@example.com")
	stranger := f.broker(t, "s@example.com")
	admin := f.admin(t)
	pid, _ := f.create(t, owner, 0)
	_, err := f.svc.Approve(ctx, admin, pid, "")
	require.NoError(t, err)

	price := 500000.0
	_, err = f.svc.EditByOwner(ctx, stranger, pid, PatchRequest{Price: &price})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.EditByOwner(ctx, owner, 9999, PatchRequest{Price: &price})
	require.ErrorIs(t, err, ErrNotFound)

	lat := -15.8
	_, err = f.svc.EditByOwner(ctx, owner, pid, PatchRequest{Lat: &lat})
	require.ErrorIs(t, err, ErrValidation)

	active := "ACTIVE"
	res, err := f.svc.EditByOwner(ctx, owner, pid, PatchRequest{Price: &price, Status: &active})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, res.Status)

	p, err := f.svc.Store().GetProperty(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, p.Status)
	assert.False(t, p.CertificateVerified)
	assert.Equal(t, price, *p.Price)
}

func TestEditBySameAgency(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	res, err := f.svc.Register(ctx, RegisterRequest{
		Name: "Imob", Email: "imob@example.com", Password: "secret1", Role: "AGENCY", Phone: "1", CNPJ: "1", CreciJuridico: "1",
	})
	require.NoError(t, err)
	agency := auth.Identity{UserID: res.User.ID, Role: models.RoleAgency}
	pid, _ := f.create(t, agency, 0)

	owner, err := f.svc.Store().GetUserByID(ctx, agency.UserID)
	require.NoError(t, err)
	require.NotNil(t, owner.AgencyID)
	colleague, err := f.svc.Store().CreateUser(ctx, store.NewUser{Name: "c", Email: "c@example.com", PasswordHash: "h", Role: models.RoleBroker, AgencyID: owner.AgencyID})
	require.NoError(t, err)
	outsider, err := f.svc.Store().CreateUser(ctx, store.NewUser{Name: "d", Email: "d@example.com", PasswordHash: "h", Role: models.RoleBroker})
	require.NoError(t, err)

	title := "Novo título"
	_, err = f.svc.EditByOwner(ctx, auth.Identity{UserID: outsider.ID, Role: models.RoleBroker}, pid, PatchRequest{Title: &title})
	require.ErrorIs(t, err, ErrForbidden)

	res2, err := f.svc.EditByOwner(ctx, auth.Identity{UserID: colleague.ID, Role: models.RoleBroker}, pid, PatchRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, res2.Status)
	p, err := f.svc.Store().GetProperty(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, title, p.Title)
}

func TestEditByAdminGuardsActive(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	owner := f.broker(t, "b@example.com")
	admin := f.admin(t)
	pid, _ := f.create(t, owner, 0)

	active := "active"
	_, err := f.svc.EditByAdmin(ctx, admin, pid, PatchRequest{Status: &active})
	require.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.EditByAdmin(ctx, owner, pid, PatchRequest{Status: &active})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Approve(ctx, admin, pid, "")
	require.NoError(t, err)
	rejected := "REJECTED"
	res, err := f.svc.EditByAdmin(ctx, admin, pid, PatchRequest{Status: &rejected})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, res.Status)
	c, err := f.svc.Store().LatestCertificate(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationRejected, c.VerificationStatus)

	_, err = f.svc.EditByAdmin(ctx, admin, pid, PatchRequest{Status: &active})
	require.ErrorIs(t, err, ErrConflict)
	_, err = f.svc.Approve(ctx, admin, pid, "")
	require.NoError(t, err)
	res, err = f.svc.EditByAdmin(ctx, admin, pid, PatchRequest{Status: &active})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, res.Status)

	bad := "ARCHIVED"
	_, err = f.svc.EditByAdmin(ctx, admin, pid, PatchRequest{Status: &bad})
	require.ErrorIs(t, err, ErrValidation)
}

func TestDetailVisibility(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	owner := f.broker(t, "b@example.com")
	stranger := f.broker(t, "s@example.com")
	admin := f.admin(t)
	pid, _ := f.create(t, owner, 1)

	_, err := f.svc.Detail(ctx, nil, pid)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Detail(ctx, &stranger, pid)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Detail(ctx, &admin, pid)
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, admin, pid, "")
	require.NoError(t, err)
	d, err := f.svc.Detail(ctx, nil, pid)
	require.NoError(t, err)
	assert.Len(t, d.History, 2)
}

func TestSetCoverAcceptsPublicURL(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	owner := f.broker(t, "b@example.com")
	pid, up := f.create(t, owner, 3)

	target := "https://cdn.example.com" + storage.PublicURL(up.Photos[2].Ref)
	got, err := f.svc.SetCover(ctx, owner, pid, target)
	require.NoError(t, err)
	assert.Equal(t, storage.PublicURL(up.Photos[2].Ref), got)

	photos, err := f.svc.AdminPhotos(ctx, f.admin(t), pid)
	require.NoError(t, err)
	assert.True(t, photos[0].IsCover)
	assert.Equal(t, up.Photos[2].Ref, photos[0].ImagePath)
	assert.Equal(t, got, photos[0].URL)

	_, err = f.svc.SetCover(ctx, owner, pid, "uploads/unknown.png")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.SetCover(ctx, owner, pid, "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestDeleteRemovesRowsAndFiles(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	owner := f.broker(t, "b@example.com")
	stranger := f.broker(t, "s@example.com")
	pid, up := f.create(t, owner, 2)

	require.ErrorIs(t, f.svc.Delete(ctx, stranger, pid), ErrForbidden)
	require.NoError(t, f.svc.Delete(ctx, owner, pid))
	for _, ref := range up.Refs() {
		assert.False(t, exists(f.abs(ref)), ref)
	}
	_, err := f.svc.Store().GetProperty(ctx, pid)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, f.svc.Delete(ctx, owner, pid), ErrNotFound)
}

func TestAddAnnotation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	owner := f.broker(t, "b@example.com")
	admin := f.admin(t)
	pid, _ := f.create(t, owner, 0)

	require.ErrorIs(t, f.svc.AddAnnotation(ctx, admin, pid, "   "), ErrValidation)
	require.ErrorIs(t, f.svc.AddAnnotation(ctx, owner, pid, "note"), ErrForbidden)
	require.ErrorIs(t, f.svc.AddAnnotation(ctx, admin, 9999, "note"), ErrNotFound)
	require.NoError(t, f.svc.AddAnnotation(ctx, admin, pid, "ligar para o corretor"))

	hist, err := f.svc.Store().ListHistory(ctx, pid, 10)
	require.NoError(t, err)
	assert.Equal(t, models.EventNote, hist[0].EventType)
	assert.Equal(t, models.SourceAdmin, hist[0].Source)
}

func TestEncryptedCertificateDelivery(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	owner := f.broker(t, "b@example.com")
	stranger := f.broker(t, "s@example.com")
	admin := f.admin(t)
	pid, up := f.create(t, owner, 0)

	onDisk, err := os.ReadFile(f.abs(up.Certificate.Ref))
	require.NoError(t, err)
	assert.NotContains(t, string(onDisk), "%PDF")

	cf, err := f.svc.OwnerCertificate(ctx, owner, pid)
	require.NoError(t, err)
	body, err := io.ReadAll(cf.Body)
	require.NoError(t, err)
	require.NoError(t, cf.Body.Close())
	assert.Equal(t, pdfBody, string(body))
	assert.Equal(t, "application/pdf", cf.ContentType)

	_, err = f.svc.OwnerCertificate(ctx, stranger, pid)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.OwnerCertificate(ctx, owner, 9999)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.AdminCertificate(ctx, admin, 9999)
	require.ErrorIs(t, err, ErrNotFound)

	cf, err = f.svc.AdminCertificate(ctx, admin, pid)
	require.NoError(t, err)
	_ = cf.Body.Close()
}

func TestTamperedCertificateIsNotDelivered(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	owner := f.broker(t, "b@example.com")
	pid, up := f.create(t, owner, 0)

	path := f.abs(up.Certificate.Ref)
	ct, err := os.ReadFile(path)
	require.NoError(t, err)
	ct[0] ^= 0xff
	require.NoError(t, os.WriteFile(path, ct, 0o640))

	_, err = f.svc.AdminCertificate(ctx, f.admin(t), pid)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrDecrypt)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestListingViews(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	owner := f.broker(t, "b@example.com")
	admin := f.admin(t)
	first, _ := f.create(t, owner, 1)
	second, _ := f.create(t, owner, 0)
	_, err := f.svc.Approve(ctx, admin, first, "")
	require.NoError(t, err)

	c, err := search.Parse(url.Values{})
	require.NoError(t, err)
	public, err := f.svc.Search(ctx, c)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, first, public[0].ID)
	require.NotNil(t, public[0].CoverImage)
	assert.True(t, strings.HasPrefix(*public[0].CoverImage, storage.PublicPrefix))

	pending, err := f.svc.ListPending(ctx, admin)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second, pending[0].ID)
	_, err = f.svc.ListPending(ctx, owner)
	require.ErrorIs(t, err, ErrForbidden)

	mine, err := f.svc.ListMine(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	all, err := f.svc.ListAdmin(ctx, admin, c)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	ad, err := f.svc.AdminDetail(ctx, admin, first)
	require.NoError(t, err)
	require.NotNil(t, ad.Certificate)
	assert.Equal(t, models.VerificationApproved, ad.Certificate.VerificationStatus)
	assert.Len(t, ad.Photos, 1)

	users, err := f.svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestServablePhoto(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	owner := f.broker(t, "b@example.com")
	_, up := f.create(t, owner, 1)

	name := strings.TrimPrefix(up.Photos[0].Ref, storage.RefPrefix)
	abs, err := f.svc.ServablePhoto(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, f.abs(up.Photos[0].Ref), abs)

	_, err = f.svc.ServablePhoto(ctx, strings.TrimPrefix(up.Certificate.Ref, storage.RefPrefix))
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.ServablePhoto(ctx, "../app.db")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSweepOrphans(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	owner := f.broker(t, "b@example.com")
	_, up := f.create(t, owner, 1)
	orphan := f.save(t, "\x89PNG\r\n\x1a\nstray", "stray.png", "image/png", storage.KindPhoto)

	rep, err := f.svc.SweepOrphans(ctx, 0, true)
	require.NoError(t, err)
	assert.Equal(t, []string{orphan.Ref}, rep.Orphans)
	assert.Zero(t, rep.Removed)
	assert.True(t, exists(f.abs(orphan.Ref)))

	rep, err = f.svc.SweepOrphans(ctx, time.Hour, false)
	require.NoError(t, err)
	assert.Empty(t, rep.Orphans)

	rep, err = f.svc.SweepOrphans(ctx, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Removed)
	assert.False(t, exists(f.abs(orphan.Ref)))
	assert.True(t, exists(f.abs(up.Photos[0].Ref)))
}
