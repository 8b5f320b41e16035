package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"ximoveis/internal/auth"
	"ximoveis/internal/models"
	"ximoveis/internal/notify"
	"ximoveis/internal/search"
	"ximoveis/internal/storage"
	"ximoveis/internal/store"
)

const (
	mineListCap  = 200
	historyLimit = 100

	noteCreated     = "Criado como PENDING"
	noteOwnerEdited = "Editado pelo anunciante; enviado para revisão"
	noteApproved    = "Aprovado"
	noteRejected    = "Rejeitado"
)

// Upload is a create request after its files were streamed to storage.
// The service owns the files: they are removed when the create fails.
type Upload struct {
	Form        url.Values
	Certificate *storage.SavedFile
	Cover       *storage.SavedFile
	Photos      []storage.SavedFile
}

func (u Upload) Refs() []string {
	var refs []string
	if u.Certificate != nil {
		refs = append(refs, u.Certificate.Ref)
	}
	if u.Cover != nil {
		refs = append(refs, u.Cover.Ref)
	}
	for _, p := range u.Photos {
		refs = append(refs, p.Ref)
	}
	return refs
}

type CreateResult struct {
	ID     int64                 `json:"id"`
	Status models.PropertyStatus `json:"status"`
}

func (s *Service) CreateProperty(ctx context.Context, id auth.Identity, up Upload) (res CreateResult, err error) {
	defer func() {
		if err != nil {
			s.files.RemoveAll(up.Refs())
		}
	}()
	if id.Role != models.RoleBroker && id.Role != models.RoleAgency {
		return CreateResult{}, fmt.Errorf("%w: only brokers and agencies can list properties", ErrForbidden)
	}
	p, err := s.parseListing(up.Form)
	if err != nil {
		return CreateResult{}, err
	}
	if up.Certificate == nil {
		return CreateResult{}, fmt.Errorf("%w: certificate (PDF) is required", ErrValidation)
	}
	if len(up.Photos) > s.cfg.MaxPhotos {
		return CreateResult{}, fmt.Errorf("%w: at most %d photos", ErrValidation, s.cfg.MaxPhotos)
	}
	u, err := s.st.GetUserByID(ctx, id.UserID)
	if err != nil {
		return CreateResult{}, storeErr(err, "user not found")
	}
	p.UserID = u.ID
	p.AgencyID = u.AgencyID

	cert := up.Certificate
	nc := store.NewCertificate{
		Filename:  cert.OriginalName,
		Ref:       cert.Ref,
		Mimetype:  cert.Mimetype,
		SizeBytes: cert.Size,
		SHA256:    cert.SHA256,
	}
	if cert.Envelope != nil {
		nc.Encrypted = true
		nc.EncAlgo, nc.EncIV, nc.EncAuthTag = cert.Envelope.Algo, cert.Envelope.IV, cert.Envelope.Tag
	}
	np := store.NewProperty{Property: p, Certificate: nc, Note: noteCreated}
	if up.Cover != nil {
		np.Cover = up.Cover.Ref
	}
	for _, ph := range up.Photos {
		np.Photos = append(np.Photos, ph.Ref)
	}

	pid, err := s.st.CreateProperty(ctx, np)
	if err != nil {
		return CreateResult{}, fmt.Errorf("create property: %w", err)
	}
	s.log.WithFields(logrus.Fields{"property_id": pid, "user_id": u.ID, "photos": len(np.Photos)}).Info("property created")
	return CreateResult{ID: pid, Status: models.StatusPending}, nil
}

// authorizeOwner admits the creator, users of the owning agency and admins.
func (s *Service) authorizeOwner(ctx context.Context, id auth.Identity, propertyID int64) error {
	o, err := s.st.GetOwner(ctx, propertyID)
	if err != nil {
		return storeErr(err, "property not found")
	}
	if id.IsAdmin() || o.UserID == id.UserID {
		return nil
	}
	if o.AgencyID != nil {
		u, err := s.st.GetUserByID(ctx, id.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err == nil && u.AgencyID != nil && *u.AgencyID == *o.AgencyID {
			return nil
		}
	}
	return fmt.Errorf("%w: not the owner of this property", ErrForbidden)
}

func requireAdmin(id auth.Identity) error {
	if !id.IsAdmin() {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return nil
}

type ReviewResult struct {
	ID     int64                 `json:"id"`
	Status models.PropertyStatus `json:"status"`
}

func (s *Service) Approve(ctx context.Context, id auth.Identity, propertyID int64, notes string) (ReviewResult, error) {
	return s.review(ctx, id, propertyID, true, notes)
}

func (s *Service) Reject(ctx context.Context, id auth.Identity, propertyID int64, reason string) (ReviewResult, error) {
	return s.review(ctx, id, propertyID, false, reason)
}

func (s *Service) review(ctx context.Context, id auth.Identity, propertyID int64, approve bool, notes string) (ReviewResult, error) {
	if err := requireAdmin(id); err != nil {
		return ReviewResult{}, err
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		notes = noteRejected
		if approve {
			notes = noteApproved
		}
	}
	status, err := s.st.ReviewProperty(ctx, store.Review{PropertyID: propertyID, ReviewerID: id.UserID, Approve: approve, Notes: notes})
	if errors.Is(err, store.ErrConflict) {
		return ReviewResult{}, fmt.Errorf("%w: property has no certificate", ErrConflict)
	}
	if err != nil {
		return ReviewResult{}, storeErr(err, "property not found")
	}
	s.log.WithFields(logrus.Fields{"property_id": propertyID, "admin_id": id.UserID, "status": status}).Info("property reviewed")
	s.notifyOwner(ctx, propertyID, approve, notes)
	return ReviewResult{ID: propertyID, Status: status}, nil
}

// notifyOwner tells the creator about a review. Failures are logged only.
func (s *Service) notifyOwner(ctx context.Context, propertyID int64, approved bool, notes string) {
	p, err := s.st.GetProperty(ctx, propertyID)
	if err == nil {
		var u models.User
		u, err = s.st.GetUserByID(ctx, p.UserID)
		if err == nil {
			err = s.sender.SendReviewResult(ctx, notify.ReviewNotice{
				To: u.Email, Name: u.Name, PropertyID: p.ID, Title: p.Title, Approved: approved, Notes: notes,
			})
		}
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"property_id": propertyID, "error": err.Error()}).Warn("review notification failed")
	}
}

type EditResult struct {
	ID     int64                 `json:"id"`
	Status models.PropertyStatus `json:"status"`
}

// EditByOwner applies the patch and sends the listing back to review.
func (s *Service) EditByOwner(ctx context.Context, id auth.Identity, propertyID int64, req PatchRequest) (EditResult, error) {
	if err := s.authorizeOwner(ctx, id, propertyID); err != nil {
		return EditResult{}, err
	}
	patch, err := s.toPatch(req, false)
	if err != nil {
		return EditResult{}, err
	}
	status, err := s.st.UpdateProperty(ctx, store.Update{
		PropertyID:  propertyID,
		Patch:       patch,
		ResetReview: true,
		Source:      models.SourceUser,
		Note:        noteOwnerEdited,
	})
	if err != nil {
		return EditResult{}, storeErr(err, "property not found")
	}
	return EditResult{ID: propertyID, Status: status}, nil
}

// EditByAdmin applies the patch as given, status included. ACTIVE requires an
// approved latest certificate and REJECTED rejects it.
func (s *Service) EditByAdmin(ctx context.Context, id auth.Identity, propertyID int64, req PatchRequest) (EditResult, error) {
	if err := requireAdmin(id); err != nil {
		return EditResult{}, err
	}
	patch, err := s.toPatch(req, true)
	if err != nil {
		return EditResult{}, err
	}
	status, err := s.st.UpdateProperty(ctx, store.Update{PropertyID: propertyID, Patch: patch, Source: models.SourceAdmin, ReviewerID: id.UserID})
	if errors.Is(err, store.ErrConflict) {
		return EditResult{}, fmt.Errorf("%w: ACTIVE requires an approved certificate", ErrConflict)
	}
	if err != nil {
		return EditResult{}, storeErr(err, "property not found")
	}
	return EditResult{ID: propertyID, Status: status}, nil
}

// Delete removes the rows in one transaction, then the files best-effort.
func (s *Service) Delete(ctx context.Context, id auth.Identity, propertyID int64) error {
	if err := s.authorizeOwner(ctx, id, propertyID); err != nil {
		return err
	}
	refs, err := s.st.DeleteProperty(ctx, propertyID)
	if err != nil {
		return storeErr(err, "property not found")
	}
	removed := s.files.RemoveAll(refs)
	s.log.WithFields(logrus.Fields{"property_id": propertyID, "files": len(refs), "removed": removed}).Info("property deleted")
	return nil
}

func (s *Service) AddAnnotation(ctx context.Context, id auth.Identity, propertyID int64, note string) error {
	if err := requireAdmin(id); err != nil {
		return err
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return fmt.Errorf("%w: note is empty", ErrValidation)
	}
	return storeErr(s.st.AddNote(ctx, propertyID, models.SourceAdmin, note), "property not found")
}

// SetCover flags the image matching ref as the only cover and returns its
// public URL.
func (s *Service) SetCover(ctx context.Context, id auth.Identity, propertyID int64, ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", fmt.Errorf("%w: image_path or filename is required", ErrValidation)
	}
	if err := s.authorizeOwner(ctx, id, propertyID); err != nil {
		return "", err
	}
	norm := storage.NormalizeRef(ref)
	if err := s.st.SetCover(ctx, propertyID, norm); err != nil {
		return "", storeErr(err, "image not found for this property")
	}
	return storage.PublicURL(norm), nil
}

func publicCover(ref *string) *string {
	if ref == nil || *ref == "" {
		return ref
	}
	u := storage.PublicURL(*ref)
	return &u
}

func publicCovers(rows []models.PropertySummary) []models.PropertySummary {
	for i := range rows {
		rows[i].CoverImage = publicCover(rows[i].CoverImage)
	}
	return rows
}

func (s *Service) ListMine(ctx context.Context, id auth.Identity) ([]models.OwnedProperty, error) {
	u, err := s.st.GetUserByID(ctx, id.UserID)
	if err != nil {
		return nil, storeErr(err, "user not found")
	}
	rows, err := s.st.ListMine(ctx, u.ID, u.AgencyID, mineListCap)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].CoverImage = publicCover(rows[i].CoverImage)
	}
	return rows, nil
}

func (s *Service) Search(ctx context.Context, c search.Criteria) ([]models.PropertySummary, error) {
	rows, err := s.st.Search(ctx, c)
	if err != nil {
		return nil, err
	}
	return publicCovers(rows), nil
}

func (s *Service) Map(ctx context.Context, c search.Criteria) ([]models.MapMarker, error) {
	return s.st.MapMarkers(ctx, c)
}

type Detail struct {
	Property models.Property       `json:"property"`
	Contact  models.Contact        `json:"contact"`
	CoverURL *string               `json:"cover_path"`
	History  []models.HistoryEvent `json:"history"`
	Photos   []string              `json:"photos"`
}

// Detail returns a listing with its history and photo URLs. Listings that are
// not ACTIVE are reported missing to anyone but the owner, the owning agency
// and admins.
func (s *Service) Detail(ctx context.Context, viewer *auth.Identity, propertyID int64) (Detail, error) {
	p, err := s.st.GetProperty(ctx, propertyID)
	if err != nil {
		return Detail{}, storeErr(err, "property not found")
	}
	if p.Status != models.StatusActive {
		if viewer == nil {
			return Detail{}, fmt.Errorf("%w: property not found", ErrNotFound)
		}
		if err := s.authorizeOwner(ctx, *viewer, propertyID); err != nil {
			if errors.Is(err, ErrForbidden) {
				return Detail{}, fmt.Errorf("%w: property not found", ErrNotFound)
			}
			return Detail{}, err
		}
	}
	contact, err := s.st.GetContact(ctx, propertyID)
	if err != nil {
		return Detail{}, storeErr(err, "property not found")
	}
	history, err := s.st.ListHistory(ctx, propertyID, historyLimit)
	if err != nil {
		return Detail{}, err
	}
	images, err := s.st.ListImages(ctx, propertyID)
	if err != nil {
		return Detail{}, err
	}
	d := Detail{Property: p, Contact: contact, History: history, Photos: make([]string, 0, len(images))}
	for _, img := range images {
		d.Photos = append(d.Photos, storage.PublicURL(img.ImagePath))
	}
	if len(d.Photos) > 0 {
		d.CoverURL = &d.Photos[0]
	}
	return d, nil
}

func (s *Service) ListPending(ctx context.Context, id auth.Identity) ([]models.PropertySummary, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	rows, err := s.st.ListPending(ctx, search.AdminCap)
	if err != nil {
		return nil, err
	}
	return publicCovers(rows), nil
}

func (s *Service) ListAdmin(ctx context.Context, id auth.Identity, c search.Criteria) ([]models.PropertySummary, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	rows, err := s.st.ListAdmin(ctx, c)
	if err != nil {
		return nil, err
	}
	return publicCovers(rows), nil
}

type AdminDetail struct {
	Property    models.Property        `json:"property"`
	Certificate *models.Certificate    `json:"certificate"`
	Photos      []models.PropertyImage `json:"photos"`
}

func (s *Service) AdminDetail(ctx context.Context, id auth.Identity, propertyID int64) (AdminDetail, error) {
	if err := requireAdmin(id); err != nil {
		return AdminDetail{}, err
	}
	p, err := s.st.GetProperty(ctx, propertyID)
	if err != nil {
		return AdminDetail{}, storeErr(err, "property not found")
	}
	out := AdminDetail{Property: p}
	c, err := s.st.LatestCertificate(ctx, propertyID)
	switch {
	case err == nil:
		out.Certificate = &c
	case !errors.Is(err, store.ErrNotFound):
		return AdminDetail{}, err
	}
	if out.Photos, err = s.photos(ctx, propertyID); err != nil {
		return AdminDetail{}, err
	}
	return out, nil
}

func (s *Service) AdminPhotos(ctx context.Context, id auth.Identity, propertyID int64) ([]models.PropertyImage, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	if _, err := s.st.GetOwner(ctx, propertyID); err != nil {
		return nil, storeErr(err, "property not found")
	}
	return s.photos(ctx, propertyID)
}

func (s *Service) photos(ctx context.Context, propertyID int64) ([]models.PropertyImage, error) {
	images, err := s.st.ListImages(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	for i := range images {
		images[i].URL = storage.PublicURL(images[i].ImagePath)
	}
	return images, nil
}

// ServablePhoto resolves a public file name to a stored photo. Anything that
// is not a registered property image, certificates included, is not found.
func (s *Service) ServablePhoto(ctx context.Context, name string) (string, error) {
	ref := storage.NormalizeRef(name)
	abs, err := s.files.Resolve(ref)
	if err != nil {
		return "", fmt.Errorf("%w: file not found", ErrNotFound)
	}
	ok, err := s.st.IsImageRef(ctx, ref)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: file not found", ErrNotFound)
	}
	return abs, nil
}
