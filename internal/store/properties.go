package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ximoveis/internal/db"
	"ximoveis/internal/models"
)

const propertyCols = `p.id,p.agency_id,p.user_id,p.title,p.description,p.price,p.bedrooms,p.bathrooms,p.suites,p.parking_spaces,` +
	`p.area_m2,p.lot_size_m2,p.year_built,p.floor,p.maintenance_fee,p.iptu,p.address,p.address_number,p.postal_code,` +
	`p.neighborhood,p.city,p.state,p.purpose,p.type,p.lat,p.lng,p.status,p.certificate_required,p.certificate_verified,` +
	`p.created_at,p.updated_at`

func scanProperty(row interface{ Scan(...any) error }, p *models.Property) error {
	return row.Scan(&p.ID, &p.AgencyID, &p.UserID, &p.Title, &p.Description, &p.Price, &p.Bedrooms, &p.Bathrooms, &p.Suites, &p.ParkingSpaces,
		&p.AreaM2, &p.LotSizeM2, &p.YearBuilt, &p.Floor, &p.MaintenanceFee, &p.IPTU, &p.Address, &p.AddressNumber, &p.PostalCode,
		&p.Neighborhood, &p.City, &p.State, &p.Purpose, &p.Type, &p.Lat, &p.Lng, &p.Status, &p.CertificateRequired, &p.CertificateVerified,
		&p.CreatedAt, &p.UpdatedAt)
}

// NewCertificate describes a certificate file already written to storage.
type NewCertificate struct {
	Filename   string
	Ref        string
	Mimetype   string
	SizeBytes  int64
	SHA256     string
	Encrypted  bool
	EncAlgo    string
	EncIV      string
	EncAuthTag string
}

type NewProperty struct {
	Property    models.Property
	Certificate NewCertificate
	// Cover, when set, is inserted first and flagged as cover.
	Cover  string
	Photos []string
	Note   string
}

// CreateProperty writes the listing, its creation event, its certificate and
// its images in one transaction. The listing always starts PENDING.
func (s *Store) CreateProperty(ctx context.Context, in NewProperty) (int64, error) {
	now := s.now()
	p := in.Property
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = s.d.InsertID(ctx, tx, s.q(`INSERT INTO properties(
  agency_id,user_id,title,description,price,bedrooms,bathrooms,suites,parking_spaces,area_m2,lot_size_m2,year_built,floor,
  maintenance_fee,iptu,address,address_number,postal_code,neighborhood,city,state,purpose,type,lat,lng,location,
  status,certificate_required,certificate_verified,created_at,updated_at)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,`+s.d.PointExpr()+`,?,?,?,?,?)`),
			p.AgencyID, p.UserID, strings.TrimSpace(p.Title), nullString(p.Description), p.Price, p.Bedrooms, p.Bathrooms, p.Suites, p.ParkingSpaces,
			p.AreaM2, p.LotSizeM2, p.YearBuilt, p.Floor, p.MaintenanceFee, p.IPTU, nullString(p.Address), nullString(p.AddressNumber),
			nullString(p.PostalCode), nullString(p.Neighborhood), strings.TrimSpace(p.City), strings.ToUpper(strings.TrimSpace(p.State)),
			string(p.Purpose), string(p.Type), p.Lat, p.Lng, db.PointWKT(p.Lat, p.Lng),
			string(models.StatusPending), true, false, now, now)
		if err != nil {
			return fmt.Errorf("insert property: %w", err)
		}
		if err := s.addHistory(ctx, tx, id, models.EventStatusChange, p.Price, models.SourceSystem, in.Note, now); err != nil {
			return err
		}
		c := in.Certificate
		var algo, iv, tag any
		if c.Encrypted {
			algo, iv, tag = c.EncAlgo, c.EncIV, c.EncAuthTag
		}
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO property_certificates(
  property_id,filename,path,mimetype,size_bytes,sha256_hash,verification_status,encrypted,enc_algo,enc_iv,enc_auth_tag,uploaded_at)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`),
			id, c.Filename, c.Ref, c.Mimetype, c.SizeBytes, c.SHA256, string(models.VerificationPending), c.Encrypted, algo, iv, tag, now); err != nil {
			return fmt.Errorf("insert certificate: %w", err)
		}
		for i, img := range coverFirst(in.Cover, in.Photos) {
			if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO property_images(property_id,image_path,is_cover,created_at) VALUES(?,?,?,?)`),
				id, img, i == 0, now); err != nil {
				return fmt.Errorf("insert image: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// coverFirst orders images so the cover comes first: the explicit cover if
// given, otherwise the first photo.
func coverFirst(cover string, photos []string) []string {
	out := make([]string, 0, len(photos)+1)
	if cover != "" {
		out = append(out, cover)
	}
	for _, p := range photos {
		if p != "" && p != cover {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) GetProperty(ctx context.Context, id int64) (models.Property, error) {
	var p models.Property
	err := scanProperty(s.db.QueryRowContext(ctx, s.q(`SELECT `+propertyCols+` FROM properties p WHERE p.id=?`), id), &p)
	if err == sql.ErrNoRows {
		return models.Property{}, ErrNotFound
	}
	return p, err
}

// Owner is the ownership slice of a property used for permission checks.
type Owner struct {
	UserID   int64
	AgencyID *int64
}

func (s *Store) GetOwner(ctx context.Context, propertyID int64) (Owner, error) {
	var o Owner
	var agencyID sql.NullInt64
	err := s.db.QueryRowContext(ctx, s.q(`SELECT user_id, agency_id FROM properties WHERE id=?`), propertyID).Scan(&o.UserID, &agencyID)
	if err == sql.ErrNoRows {
		return Owner{}, ErrNotFound
	}
	if err != nil {
		return Owner{}, err
	}
	o.AgencyID = ptrInt64(agencyID)
	return o, nil
}

// lockProperty reads status and price under a row lock where the engine supports one.
func (s *Store) lockProperty(ctx context.Context, tx *sql.Tx, id int64) (models.PropertyStatus, *float64, error) {
	var st models.PropertyStatus
	var price *float64
	err := tx.QueryRowContext(ctx, s.q(`SELECT status, price FROM properties WHERE id=?`+s.d.ForUpdate()), id).Scan(&st, &price)
	if err == sql.ErrNoRows {
		return "", nil, ErrNotFound
	}
	return st, price, err
}

func (s *Store) latestCertificateID(ctx context.Context, tx *sql.Tx, propertyID int64) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, s.q(`SELECT id FROM property_certificates WHERE property_id=? ORDER BY uploaded_at DESC, id DESC LIMIT 1`), propertyID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrConflict
	}
	return id, err
}

// Review is an admin decision on a property and its latest certificate.
type Review struct {
	PropertyID int64
	ReviewerID int64
	Approve    bool
	Notes      string
}

// ReviewProperty moves the property and its latest certificate together:
// ACTIVE/APPROVED on approval, REJECTED/REJECTED otherwise. A property with no
// certificate yields ErrConflict.
func (s *Store) ReviewProperty(ctx context.Context, r Review) (models.PropertyStatus, error) {
	status, verdict := models.StatusRejected, models.VerificationRejected
	if r.Approve {
		status, verdict = models.StatusActive, models.VerificationApproved
	}
	now := s.now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, price, err := s.lockProperty(ctx, tx, r.PropertyID)
		if err != nil {
			return err
		}
		certID, err := s.latestCertificateID(ctx, tx, r.PropertyID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE properties SET status=?, certificate_verified=?, updated_at=? WHERE id=?`),
			string(status), r.Approve, now, r.PropertyID); err != nil {
			return fmt.Errorf("update property: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE property_certificates SET verification_status=?, verified_by=?, verified_at=?, notes=? WHERE id=?`),
			string(verdict), r.ReviewerID, now, r.Notes, certID); err != nil {
			return fmt.Errorf("update certificate: %w", err)
		}
		return s.addHistory(ctx, tx, r.PropertyID, models.EventStatusChange, price, models.SourceAdmin, r.Notes, now)
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

// Update is a field patch. ResetReview forces PENDING and an unverified
// certificate flag. A Patch.Status of ACTIVE is refused with ErrConflict
// unless the latest certificate is APPROVED; REJECTED also rejects the latest
// certificate, recording ReviewerID as its verifier.
type Update struct {
	PropertyID  int64
	Patch       models.PropertyPatch
	ResetReview bool
	Source      models.Source
	Note        string
	ReviewerID  int64
}

// UpdateProperty applies the patch and appends a history event in one
// transaction. It returns the resulting status.
func (s *Store) UpdateProperty(ctx context.Context, u Update) (models.PropertyStatus, error) {
	now := s.now()
	var final models.PropertyStatus
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, _, err := s.lockProperty(ctx, tx, u.PropertyID)
		if err != nil {
			return err
		}
		sets, args := patchSets(u.Patch, s.d)
		final = current
		switch {
		case u.ResetReview:
			sets = append(sets, "status=?", "certificate_verified=?")
			args = append(args, string(models.StatusPending), false)
			final = models.StatusPending
		case u.Patch.Status != nil:
			next := *u.Patch.Status
			if next == models.StatusActive {
				ok, err := s.latestCertificateApproved(ctx, tx, u.PropertyID)
				if err != nil {
					return err
				}
				if !ok {
					return ErrConflict
				}
			}
			if next == models.StatusRejected {
				if err := s.rejectLatestCertificate(ctx, tx, u, now); err != nil {
					return err
				}
			}
			sets = append(sets, "status=?", "certificate_verified=?")
			args = append(args, string(next), next == models.StatusActive)
			final = next
		}
		sets = append(sets, "updated_at=?")
		args = append(args, now, u.PropertyID)
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE properties SET `+strings.Join(sets, ", ")+` WHERE id=?`), args...); err != nil {
			return fmt.Errorf("update property: %w", err)
		}
		if !u.ResetReview && final == current && u.Note == "" {
			return nil
		}
		var price *float64
		if err := tx.QueryRowContext(ctx, s.q(`SELECT price FROM properties WHERE id=?`), u.PropertyID).Scan(&price); err != nil {
			return err
		}
		return s.addHistory(ctx, tx, u.PropertyID, models.EventStatusChange, price, u.Source, u.Note, now)
	})
	if err != nil {
		return "", err
	}
	return final, nil
}

// rejectLatestCertificate is a no-op for a property without certificates.
func (s *Store) rejectLatestCertificate(ctx context.Context, tx *sql.Tx, u Update, now time.Time) error {
	certID, err := s.latestCertificateID(ctx, tx, u.PropertyID)
	if errors.Is(err, ErrConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	var verifier any
	if u.ReviewerID > 0 {
		verifier = u.ReviewerID
	}
	if _, err := tx.ExecContext(ctx, s.q(`UPDATE property_certificates SET verification_status=?, verified_by=?, verified_at=?, notes=? WHERE id=?`),
		string(models.VerificationRejected), verifier, now, nullString(&u.Note), certID); err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	return nil
}

func (s *Store) latestCertificateApproved(ctx context.Context, tx *sql.Tx, propertyID int64) (bool, error) {
	var v models.VerificationStatus
	err := tx.QueryRowContext(ctx, s.q(`SELECT verification_status FROM property_certificates WHERE property_id=? ORDER BY uploaded_at DESC, id DESC LIMIT 1`), propertyID).Scan(&v)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == models.VerificationApproved, nil
}

// patchSets turns the non-nil fields of p into "col=?" fragments. Status is
// handled by the caller.
func patchSets(p models.PropertyPatch, d db.Dialect) ([]string, []any) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+"=?")
		args = append(args, v)
	}
	if p.Title != nil {
		add("title", strings.TrimSpace(*p.Title))
	}
	if p.Description != nil {
		add("description", nullString(p.Description))
	}
	if p.Price != nil {
		add("price", *p.Price)
	}
	if p.Bedrooms != nil {
		add("bedrooms", *p.Bedrooms)
	}
	if p.Bathrooms != nil {
		add("bathrooms", *p.Bathrooms)
	}
	if p.Suites != nil {
		add("suites", *p.Suites)
	}
	if p.ParkingSpaces != nil {
		add("parking_spaces", *p.ParkingSpaces)
	}
	if p.AreaM2 != nil {
		add("area_m2", *p.AreaM2)
	}
	if p.LotSizeM2 != nil {
		add("lot_size_m2", *p.LotSizeM2)
	}
	if p.YearBuilt != nil {
		add("year_built", *p.YearBuilt)
	}
	if p.Floor != nil {
		add("floor", *p.Floor)
	}
	if p.MaintenanceFee != nil {
		add("maintenance_fee", *p.MaintenanceFee)
	}
	if p.IPTU != nil {
		add("iptu", *p.IPTU)
	}
	if p.Address != nil {
		add("address", nullString(p.Address))
	}
	if p.AddressNumber != nil {
		add("address_number", nullString(p.AddressNumber))
	}
	if p.PostalCode != nil {
		add("postal_code", nullString(p.PostalCode))
	}
	if p.Neighborhood != nil {
		add("neighborhood", nullString(p.Neighborhood))
	}
	if p.City != nil {
		add("city", strings.TrimSpace(*p.City))
	}
	if p.State != nil {
		add("state", strings.ToUpper(strings.TrimSpace(*p.State)))
	}
	if p.Purpose != nil {
		add("purpose", string(*p.Purpose))
	}
	if p.Type != nil {
		add("type", string(*p.Type))
	}
	if p.HasLocation() {
		add("lat", *p.Lat)
		add("lng", *p.Lng)
		sets = append(sets, "location="+d.PointExpr())
		args = append(args, db.PointWKT(*p.Lat, *p.Lng))
	}
	return sets, args
}

// DeleteProperty removes the property and its dependent rows in one
// transaction and returns every file reference they held. Files are left on
// disk for the caller.
func (s *Store) DeleteProperty(ctx context.Context, id int64) ([]string, error) {
	var refs []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, _, err := s.lockProperty(ctx, tx, id); err != nil {
			return err
		}
		for _, q := range []string{
			`SELECT image_path FROM property_images WHERE property_id=?`,
			`SELECT path FROM property_certificates WHERE property_id=?`,
		} {
			paths, err := queryStrings(ctx, tx, s.q(q), id)
			if err != nil {
				return err
			}
			refs = append(refs, paths...)
		}
		for _, q := range []string{
			`DELETE FROM property_images WHERE property_id=?`,
			`DELETE FROM property_certificates WHERE property_id=?`,
			`DELETE FROM property_history WHERE property_id=?`,
			`DELETE FROM properties WHERE id=?`,
		} {
			if _, err := tx.ExecContext(ctx, s.q(q), id); err != nil {
				return fmt.Errorf("delete property: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func queryStrings(ctx context.Context, ex db.Execer, query string, args ...any) ([]string, error) {
	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v.Valid && v.String != "" {
			out = append(out, v.String)
		}
	}
	return out, rows.Err()
}

func (s *Store) addHistory(ctx context.Context, ex db.Execer, propertyID int64, et models.EventType, price *float64, src models.Source, notes string, at time.Time) error {
	var n any
	if notes = strings.TrimSpace(notes); notes != "" {
		n = notes
	}
	if _, err := ex.ExecContext(ctx, s.q(`INSERT INTO property_history(property_id,event_date,event_type,price,source,notes) VALUES(?,?,?,?,?,?)`),
		propertyID, at, string(et), price, string(src), n); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// AddNote appends a NOTE event. The property must exist.
func (s *Store) AddNote(ctx context.Context, propertyID int64, src models.Source, note string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, price, err := s.lockProperty(ctx, tx, propertyID)
		if err != nil {
			return err
		}
		return s.addHistory(ctx, tx, propertyID, models.EventNote, price, src, note, s.now())
	})
}

func (s *Store) ListHistory(ctx context.Context, propertyID int64, limit int) ([]models.HistoryEvent, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id,property_id,event_date,event_type,price,source,notes FROM property_history
WHERE property_id=? ORDER BY event_date DESC, id DESC LIMIT ?`), propertyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.HistoryEvent, 0)
	for rows.Next() {
		var e models.HistoryEvent
		if err := rows.Scan(&e.ID, &e.PropertyID, &e.EventDate, &e.EventType, &e.Price, &e.Source, &e.Notes); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListImages returns the images with the cover first.
func (s *Store) ListImages(ctx context.Context, propertyID int64) ([]models.PropertyImage, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id,property_id,image_path,is_cover,created_at FROM property_images
WHERE property_id=? ORDER BY is_cover DESC, id ASC`), propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.PropertyImage, 0)
	for rows.Next() {
		var img models.PropertyImage
		if err := rows.Scan(&img.ID, &img.PropertyID, &img.ImagePath, &img.IsCover, &img.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// SetCover flags the image whose path equals ref as cover and clears the
// others. Nothing changes when no image matches.
func (s *Store) SetCover(ctx context.Context, propertyID int64, ref string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, _, err := s.lockProperty(ctx, tx, propertyID); err != nil {
			return err
		}
		var imageID int64
		err := tx.QueryRowContext(ctx, s.q(`SELECT id FROM property_images WHERE property_id=? AND image_path=? ORDER BY id ASC LIMIT 1`), propertyID, ref).Scan(&imageID)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE property_images SET is_cover=(id=?) WHERE property_id=?`), imageID, propertyID); err != nil {
			return fmt.Errorf("update cover: %w", err)
		}
		return nil
	})
}

const certificateCols = `id,property_id,filename,path,mimetype,size_bytes,sha256_hash,verification_status,verified_by,verified_at,notes,` +
	`encrypted,enc_algo,enc_iv,enc_auth_tag,uploaded_at`

// LatestCertificate returns the most recently uploaded certificate.
func (s *Store) LatestCertificate(ctx context.Context, propertyID int64) (models.Certificate, error) {
	var c models.Certificate
	err := s.db.QueryRowContext(ctx, s.q(`SELECT `+certificateCols+` FROM property_certificates
WHERE property_id=? ORDER BY uploaded_at DESC, id DESC LIMIT 1`), propertyID).Scan(
		&c.ID, &c.PropertyID, &c.Filename, &c.Path, &c.Mimetype, &c.SizeBytes, &c.SHA256, &c.VerificationStatus, &c.VerifiedBy,
		&c.VerifiedAt, &c.Notes, &c.Encrypted, &c.EncAlgo, &c.EncIV, &c.EncAuthTag, &c.UploadedAt)
	if err == sql.ErrNoRows {
		return models.Certificate{}, ErrNotFound
	}
	return c, err
}
