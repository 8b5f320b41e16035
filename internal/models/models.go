package models

import "time"

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleBroker Role = "BROKER"
	RoleAgency Role = "AGENCY"
)

type PropertyStatus string

const (
	StatusPending  PropertyStatus = "PENDING"
	StatusActive   PropertyStatus = "ACTIVE"
	StatusRejected PropertyStatus = "REJECTED"
)

func (s PropertyStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusRejected:
		return true
	}
	return false
}

type Purpose string

const (
	PurposeSale Purpose = "SALE"
	PurposeRent Purpose = "RENT"
)

func (p Purpose) Valid() bool { return p == PurposeSale || p == PurposeRent }

type PropertyType string

const (
	TypeHouse     PropertyType = "HOUSE"
	TypeApartment PropertyType = "APARTMENT"
	TypeLand      PropertyType = "LAND"
	TypeStudio    PropertyType = "STUDIO"
)

func (t PropertyType) Valid() bool {
	switch t {
	case TypeHouse, TypeApartment, TypeLand, TypeStudio:
		return true
	}
	return false
}

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationApproved VerificationStatus = "APPROVED"
	VerificationRejected VerificationStatus = "REJECTED"
)

type EventType string

const (
	EventStatusChange EventType = "STATUS_CHANGE"
	EventNote         EventType = "NOTE"
)

type Source string

const (
	SourceSystem Source = "system"
	SourceUser   Source = "user"
	SourceAdmin  Source = "admin"
)

type Agency struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Email         *string   `json:"email,omitempty"`
	Phone         *string   `json:"phone,omitempty"`
	CNPJ          *string   `json:"cnpj,omitempty"`
	CreciJuridico *string   `json:"creci_juridico,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type User struct {
	ID           int64     `json:"id"`
	AgencyID     *int64    `json:"agency_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        *string   `json:"phone"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CPF          *string   `json:"cpf,omitempty"`
	Creci        *string   `json:"creci,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserSummary is a row of the admin users listing.
type UserSummary struct {
	User
	AgencyName    *string `json:"agency_name"`
	PropertyCount int     `json:"property_count"`
}

type Property struct {
	ID                  int64          `json:"id"`
	AgencyID            *int64         `json:"agency_id"`
	UserID              int64          `json:"user_id"`
	Title               string         `json:"title"`
	Description         *string        `json:"description"`
	Price               *float64       `json:"price"`
	Bedrooms            int            `json:"bedrooms"`
	Bathrooms           int            `json:"bathrooms"`
	Suites              int            `json:"suites"`
	ParkingSpaces       int            `json:"parking_spaces"`
	AreaM2              *float64       `json:"area_m2"`
	LotSizeM2           *float64       `json:"lot_size_m2"`
	YearBuilt           *int           `json:"year_built"`
	Floor               *int           `json:"floor"`
	MaintenanceFee      *float64       `json:"maintenance_fee"`
	IPTU                *float64       `json:"iptu"`
	Address             *string        `json:"address"`
	AddressNumber       *string        `json:"address_number"`
	PostalCode          *string        `json:"postal_code"`
	Neighborhood        *string        `json:"neighborhood"`
	City                string         `json:"city"`
	State               string         `json:"state"`
	Purpose             Purpose        `json:"purpose"`
	Type                PropertyType   `json:"type"`
	Lat                 float64        `json:"lat"`
	Lng                 float64        `json:"lng"`
	Status              PropertyStatus `json:"status"`
	CertificateRequired bool           `json:"certificate_required"`
	CertificateVerified bool           `json:"certificate_verified"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// PropertySummary is the row shape of public and admin listings.
type PropertySummary struct {
	ID                  int64          `json:"id"`
	Title               string         `json:"title"`
	Price               *float64       `json:"price"`
	City                string         `json:"city"`
	State               string         `json:"state"`
	Neighborhood        *string        `json:"neighborhood,omitempty"`
	Type                PropertyType   `json:"type"`
	Purpose             Purpose        `json:"purpose"`
	Bedrooms            int            `json:"bedrooms"`
	Bathrooms           int            `json:"bathrooms"`
	AreaM2              *float64       `json:"area_m2"`
	Lat                 float64        `json:"lat"`
	Lng                 float64        `json:"lng"`
	Status              PropertyStatus `json:"status"`
	CertificateVerified bool           `json:"certificate_verified"`
	CoverImage          *string        `json:"cover_image,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
}

// OwnedProperty is a row of the "my listings" view.
type OwnedProperty struct {
	PropertySummary
	CertStatus *VerificationStatus `json:"cert_status"`
	CertNotes  *string             `json:"cert_notes"`
}

type MapMarker struct {
	ID    int64    `json:"id"`
	Title string   `json:"title"`
	Price *float64 `json:"price"`
	Lat   float64  `json:"lat"`
	Lng   float64  `json:"lng"`
}

type Certificate struct {
	ID                 int64              `json:"id"`
	PropertyID         int64              `json:"property_id"`
	Filename           string             `json:"filename"`
	Path               string             `json:"-"`
	Mimetype           string             `json:"mimetype"`
	SizeBytes          int64              `json:"size_bytes"`
	SHA256             string             `json:"sha256_hash"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	VerifiedBy         *int64             `json:"verified_by"`
	VerifiedAt         *time.Time         `json:"verified_at"`
	Notes              *string            `json:"notes"`
	Encrypted          bool               `json:"encrypted"`
	EncAlgo            *string            `json:"-"`
	EncIV              *string            `json:"-"`
	EncAuthTag         *string            `json:"-"`
	UploadedAt         time.Time          `json:"uploaded_at"`
}

type PropertyImage struct {
	ID         int64     `json:"id"`
	PropertyID int64     `json:"property_id"`
	ImagePath  string    `json:"image_path"`
	URL        string    `json:"url"`
	IsCover    bool      `json:"is_cover"`
	CreatedAt  time.Time `json:"created_at"`
}

type HistoryEvent struct {
	ID         int64     `json:"id"`
	PropertyID int64     `json:"property_id"`
	EventDate  time.Time `json:"event_date"`
	EventType  EventType `json:"event_type"`
	Price      *float64  `json:"price"`
	Source     Source    `json:"source"`
	Notes      *string   `json:"notes"`
}

// PropertyPatch carries the mutable listing fields. Nil means "leave unchanged".
type PropertyPatch struct {
	Title          *string
	Description    *string
	Price          *float64
	Bedrooms       *int
	Bathrooms      *int
	Suites         *int
	ParkingSpaces  *int
	AreaM2         *float64
	LotSizeM2      *float64
	YearBuilt      *int
	Floor          *int
	MaintenanceFee *float64
	IPTU           *float64
	Address        *string
	AddressNumber  *string
	PostalCode     *string
	Neighborhood   *string
	City           *string
	State          *string
	Purpose        *Purpose
	Type           *PropertyType
	Lat            *float64
	Lng            *float64
	Status         *PropertyStatus
}

// HasLocation reports whether both coordinates are present.
func (p PropertyPatch) HasLocation() bool { return p.Lat != nil && p.Lng != nil }

// Contact is the advertiser information shown on a public listing.
type Contact struct {
	UserName    string  `json:"user_name"`
	UserRole    Role    `json:"user_role"`
	UserPhone   *string `json:"user_phone"`
	AgencyName  *string `json:"agency_name"`
	AgencyPhone *string `json:"agency_phone"`
}
