package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"ximoveis/internal/models"
)

const userCols = `u.id,u.agency_id,u.name,u.email,u.phone,u.password_hash,u.role,u.cpf,u.creci,u.created_at`

func scanUser(row interface{ Scan(...any) error }, u *models.User, extra ...any) error {
	var agencyID sql.NullInt64
	var phone, cpf, creci sql.NullString
	dest := []any{&u.ID, &agencyID, &u.Name, &u.Email, &phone, &u.PasswordHash, &u.Role, &cpf, &creci, &u.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	u.AgencyID = ptrInt64(agencyID)
	u.Phone = ptrString(phone)
	u.CPF = ptrString(cpf)
	u.Creci = ptrString(creci)
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := scanUser(s.db.QueryRowContext(ctx, s.q(`SELECT `+userCols+` FROM users u WHERE u.email=?`), strings.ToLower(strings.TrimSpace(email))), &u)
	if err == sql.ErrNoRows {
		return models.User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := scanUser(s.db.QueryRowContext(ctx, s.q(`SELECT `+userCols+` FROM users u WHERE u.id=?`), id), &u)
	if err == sql.ErrNoRows {
		return models.User{}, ErrNotFound
	}
	return u, err
}

// NewUser is a registration. When Agency is set the agency row is created in
// the same transaction and the user is linked to it; otherwise AgencyID, if
// set, links the user to an existing agency.
type NewUser struct {
	Name         string
	Email        string
	Phone        *string
	PasswordHash string
	Role         models.Role
	CPF          *string
	Creci        *string
	AgencyID     *int64
	Agency       *models.Agency
}

func (s *Store) CreateUser(ctx context.Context, in NewUser) (models.User, error) {
	now := s.now()
	u := models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:        in.Phone,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		CPF:          in.CPF,
		Creci:        in.Creci,
		AgencyID:     in.AgencyID,
		CreatedAt:    now,
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM users WHERE email=?`), u.Email).Scan(&exists); err != nil {
			return err
		}
		if exists > 0 {
			return ErrConflict
		}
		if in.Agency != nil {
			a := in.Agency
			agencyID, err := s.d.InsertID(ctx, tx, s.q(`INSERT INTO agencies(name,email,phone,cnpj,creci_juridico,created_at) VALUES(?,?,?,?,?,?)`),
				strings.TrimSpace(a.Name), nullString(a.Email), nullString(a.Phone), nullString(a.CNPJ), nullString(a.CreciJuridico), now)
			if err != nil {
				return fmt.Errorf("insert agency: %w", err)
			}
			u.AgencyID = &agencyID
		}
		id, err := s.d.InsertID(ctx, tx, s.q(`INSERT INTO users(agency_id,name,email,phone,password_hash,role,cpf,creci,created_at) VALUES(?,?,?,?,?,?,?,?,?)`),
			u.AgencyID, u.Name, u.Email, nullString(u.Phone), u.PasswordHash, string(u.Role), nullString(u.CPF), nullString(u.Creci), now)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("insert user: %w", err)
		}
		u.ID = id
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// EnsureAdmin creates the admin account or promotes and re-keys an existing one.
func (s *Store) EnsureAdmin(ctx context.Context, name, email, passwordHash string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || passwordHash == "" {
		return nil
	}
	u, err := s.GetUserByEmail(ctx, email)
	if err == ErrNotFound {
		_, err = s.CreateUser(ctx, NewUser{Name: name, Email: email, PasswordHash: passwordHash, Role: models.RoleAdmin})
		return err
	}
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.q(`UPDATE users SET role=?, password_hash=? WHERE id=?`), string(models.RoleAdmin), passwordHash, u.ID)
	return err
}

func (s *Store) ListUsers(ctx context.Context, limit int) ([]models.UserSummary, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
SELECT `+userCols+`, a.name,
  (SELECT COUNT(1) FROM properties p WHERE p.user_id = u.id) AS property_count
FROM users u
LEFT JOIN agencies a ON a.id = u.agency_id
ORDER BY u.created_at DESC, u.id DESC
LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.UserSummary, 0)
	for rows.Next() {
		var us models.UserSummary
		var agencyName sql.NullString
		if err := scanUser(rows, &us.User, &agencyName, &us.PropertyCount); err != nil {
			return nil, err
		}
		us.AgencyName = ptrString(agencyName)
		out = append(out, us)
	}
	return out, rows.Err()
}

// GetContact returns the advertiser of a property.
func (s *Store) GetContact(ctx context.Context, propertyID int64) (models.Contact, error) {
	var c models.Contact
	var userPhone, agencyName, agencyPhone sql.NullString
	err := s.db.QueryRowContext(ctx, s.q(`
SELECT u.name, u.role, u.phone, a.name, a.phone
FROM properties p
JOIN users u ON u.id = p.user_id
LEFT JOIN agencies a ON a.id = p.agency_id
WHERE p.id=?`), propertyID).Scan(&c.UserName, &c.UserRole, &userPhone, &agencyName, &agencyPhone)
	if err == sql.ErrNoRows {
		return models.Contact{}, ErrNotFound
	}
	if err != nil {
		return models.Contact{}, err
	}
	c.UserPhone = ptrString(userPhone)
	c.AgencyName = ptrString(agencyName)
	c.AgencyPhone = ptrString(agencyPhone)
	return c, nil
}
