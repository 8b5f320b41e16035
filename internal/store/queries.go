package store

import (
	"context"
	"database/sql"
	"fmt"

	"ximoveis/internal/models"
	"ximoveis/internal/search"
)

const summaryCols = `p.id,p.title,p.price,p.city,p.state,p.neighborhood,p.type,p.purpose,p.bedrooms,p.bathrooms,p.area_m2,` +
	`p.lat,p.lng,p.status,p.certificate_verified,` +
	`(SELECT i.image_path FROM property_images i WHERE i.property_id = p.id ORDER BY i.is_cover DESC, i.id ASC LIMIT 1),` +
	`p.created_at`

func scanSummary(row interface{ Scan(...any) error }, ps *models.PropertySummary, extra ...any) error {
	dest := []any{&ps.ID, &ps.Title, &ps.Price, &ps.City, &ps.State, &ps.Neighborhood, &ps.Type, &ps.Purpose, &ps.Bedrooms,
		&ps.Bathrooms, &ps.AreaM2, &ps.Lat, &ps.Lng, &ps.Status, &ps.CertificateVerified, &ps.CoverImage, &ps.CreatedAt}
	return row.Scan(append(dest, extra...)...)
}

func (s *Store) listSummaries(ctx context.Context, f search.Filter, order string, limit int) ([]models.PropertySummary, error) {
	where, args := f.Where(s.d)
	query := fmt.Sprintf(`SELECT %s FROM properties p %s %s LIMIT %d`, summaryCols, where, order, limit)
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.PropertySummary, 0)
	for rows.Next() {
		var ps models.PropertySummary
		if err := scanSummary(rows, &ps); err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

// Search runs the public listing query: ACTIVE only, sorted, capped.
func (s *Store) Search(ctx context.Context, c search.Criteria) ([]models.PropertySummary, error) {
	return s.listSummaries(ctx, c.Filter(search.ScopePublic), search.OrderBy(c.Sort), search.EffectiveLimit(c.Limit, search.ListCap))
}

// ListAdmin is the admin listing. Status is optional.
func (s *Store) ListAdmin(ctx context.Context, c search.Criteria) ([]models.PropertySummary, error) {
	return s.listSummaries(ctx, c.Filter(search.ScopeAdmin), search.OrderBy(c.Sort), search.EffectiveLimit(c.Limit, search.AdminCap))
}

// ListPending is the review queue, oldest first.
func (s *Store) ListPending(ctx context.Context, limit int) ([]models.PropertySummary, error) {
	st := models.StatusPending
	c := search.Criteria{Status: &st}
	return s.listSummaries(ctx, c.Filter(search.ScopeAdmin), "ORDER BY p.created_at ASC, p.id ASC", search.EffectiveLimit(limit, search.AdminCap))
}

func (s *Store) MapMarkers(ctx context.Context, c search.Criteria) ([]models.MapMarker, error) {
	where, args := c.Filter(search.ScopePublic).Where(s.d)
	query := fmt.Sprintf(`SELECT p.id,p.title,p.price,p.lat,p.lng FROM properties p %s %s LIMIT %d`,
		where, search.OrderBy(c.Sort), search.EffectiveLimit(c.Limit, search.MapCap))
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.MapMarker, 0)
	for rows.Next() {
		var m models.MapMarker
		if err := rows.Scan(&m.ID, &m.Title, &m.Price, &m.Lat, &m.Lng); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListMine returns listings created by the user or owned by their agency,
// with the latest certificate status and notes.
func (s *Store) ListMine(ctx context.Context, userID int64, agencyID *int64, limit int) ([]models.OwnedProperty, error) {
	latest := `FROM property_certificates c WHERE c.property_id = p.id ORDER BY c.uploaded_at DESC, c.id DESC LIMIT 1`
	query := `SELECT ` + summaryCols + `,
  (SELECT c.verification_status ` + latest + `),
  (SELECT c.notes ` + latest + `)
FROM properties p
WHERE p.user_id = ? OR (p.agency_id IS NOT NULL AND p.agency_id = ?)
ORDER BY p.created_at DESC, p.id DESC
LIMIT ?`
	rows, err := s.db.QueryContext(ctx, s.q(query), userID, agencyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.OwnedProperty, 0)
	for rows.Next() {
		var op models.OwnedProperty
		var notes sql.NullString
		if err := scanSummary(rows, &op.PropertySummary, &op.CertStatus, &notes); err != nil {
			return nil, err
		}
		op.CertNotes = ptrString(notes)
		out = append(out, op)
	}
	return out, rows.Err()
}

// IsImageRef reports whether ref belongs to a registered property image.
func (s *Store) IsImageRef(ctx context.Context, ref string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM property_images WHERE image_path=?`), ref).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReferencedRefs returns every file reference held by image and certificate rows.
func (s *Store) ReferencedRefs(ctx context.Context) (map[string]bool, error) {
	out := map[string]bool{}
	for _, q := range []string{
		`SELECT image_path FROM property_images`,
		`SELECT path FROM property_certificates`,
	} {
		refs, err := queryStrings(ctx, s.db, q)
		if err != nil {
			return nil, err
		}
		for _, r := range refs {
			out[r] = true
		}
	}
	return out, nil
}
