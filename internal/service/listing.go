package service

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"ximoveis/internal/models"
)

// listingForm is the validated shape of a create form.
type listingForm struct {
	Title          string   `json:"title" validate:"required,max=255"`
	Description    string   `json:"description"`
	Price          *float64 `json:"price" validate:"required,gte=0"`
	Bedrooms       *int     `json:"bedrooms" validate:"omitnil,gte=0"`
	Bathrooms      *int     `json:"bathrooms" validate:"omitnil,gte=0"`
	Suites         *int     `json:"suites" validate:"omitnil,gte=0"`
	ParkingSpaces  *int     `json:"parking_spaces" validate:"omitnil,gte=0"`
	AreaM2         *float64 `json:"area_m2" validate:"omitnil,gte=0"`
	LotSizeM2      *float64 `json:"lot_size_m2" validate:"omitnil,gte=0"`
	YearBuilt      *int     `json:"year_built" validate:"omitnil,gte=1800,lte=2100"`
	Floor          *int     `json:"floor"`
	MaintenanceFee *float64 `json:"maintenance_fee" validate:"omitnil,gte=0"`
	IPTU           *float64 `json:"iptu" validate:"omitnil,gte=0"`
	Address        string   `json:"address" validate:"max=255"`
	AddressNumber  string   `json:"address_number" validate:"max=30"`
	PostalCode     string   `json:"postal_code" validate:"max=20"`
	Neighborhood   string   `json:"neighborhood" validate:"max=120"`
	City           string   `json:"city" validate:"required,max=120"`
	State          string   `json:"state" validate:"required,max=60"`
	Purpose        string   `json:"purpose" validate:"required,oneof=SALE RENT"`
	Type           string   `json:"type" validate:"required,oneof=HOUSE APARTMENT LAND STUDIO"`
	Lat            *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng            *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

// formReader pulls typed values out of form fields, keeping the first parse error.
type formReader struct {
	v   url.Values
	err error
}

func (f *formReader) str(key string) string { return strings.TrimSpace(f.v.Get(key)) }

func (f *formReader) floatVal(key string) *float64 {
	s := strings.ReplaceAll(f.str(key), ",", ".")
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if f.err == nil {
			f.err = fmt.Errorf("%w: %s must be a number", ErrValidation, key)
		}
		return nil
	}
	return &n
}

func (f *formReader) intVal(key string) *int {
	s := f.str(key)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		if f.err == nil {
			f.err = fmt.Errorf("%w: %s must be an integer", ErrValidation, key)
		}
		return nil
	}
	return &n
}

func (s *Service) parseListing(values url.Values) (models.Property, error) {
	f := &formReader{v: values}
	lf := listingForm{
		Title:          f.str("title"),
		Description:    f.str("description"),
		Price:          f.floatVal("price"),
		Bedrooms:       f.intVal("bedrooms"),
		Bathrooms:      f.intVal("bathrooms"),
		Suites:         f.intVal("suites"),
		ParkingSpaces:  f.intVal("parking_spaces"),
		AreaM2:         f.floatVal("area_m2"),
		LotSizeM2:      f.floatVal("lot_size_m2"),
		YearBuilt:      f.intVal("year_built"),
		Floor:          f.intVal("floor"),
		MaintenanceFee: f.floatVal("maintenance_fee"),
		IPTU:           f.floatVal("iptu"),
		Address:        f.str("address"),
		AddressNumber:  f.str("address_number"),
		PostalCode:     f.str("postal_code"),
		Neighborhood:   f.str("neighborhood"),
		City:           f.str("city"),
		State:          f.str("state"),
		Purpose:        strings.ToUpper(f.str("purpose")),
		Type:           strings.ToUpper(f.str("type")),
		Lat:            f.floatVal("lat"),
		Lng:            f.floatVal("lng"),
	}
	if f.err != nil {
		return models.Property{}, f.err
	}
	if err := s.check(lf); err != nil {
		return models.Property{}, err
	}
	return models.Property{
		Title:          lf.Title,
		Description:    optional(lf.Description),
		Price:          lf.Price,
		Bedrooms:       intOr(lf.Bedrooms),
		Bathrooms:      intOr(lf.Bathrooms),
		Suites:         intOr(lf.Suites),
		ParkingSpaces:  intOr(lf.ParkingSpaces),
		AreaM2:         lf.AreaM2,
		LotSizeM2:      lf.LotSizeM2,
		YearBuilt:      lf.YearBuilt,
		Floor:          lf.Floor,
		MaintenanceFee: lf.MaintenanceFee,
		IPTU:           lf.IPTU,
		Address:        optional(lf.Address),
		AddressNumber:  optional(lf.AddressNumber),
		PostalCode:     optional(lf.PostalCode),
		Neighborhood:   optional(lf.Neighborhood),
		City:           lf.City,
		State:          lf.State,
		Purpose:        models.Purpose(lf.Purpose),
		Type:           models.PropertyType(lf.Type),
		Lat:            *lf.Lat,
		Lng:            *lf.Lng,
	}, nil
}

func intOr(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// PatchRequest is the JSON body of an edit. Absent fields stay unchanged.
// Status is honoured on the admin route only.
type PatchRequest struct {
	Title          *string  `json:"title" validate:"omitnil,min=1,max=255"`
	Description    *string  `json:"description"`
	Price          *float64 `json:"price" validate:"omitnil,gte=0"`
	Bedrooms       *int     `json:"bedrooms" validate:"omitnil,gte=0"`
	Bathrooms      *int     `json:"bathrooms" validate:"omitnil,gte=0"`
	Suites         *int     `json:"suites" validate:"omitnil,gte=0"`
	ParkingSpaces  *int     `json:"parking_spaces" validate:"omitnil,gte=0"`
	AreaM2         *float64 `json:"area_m2" validate:"omitnil,gte=0"`
	LotSizeM2      *float64 `json:"lot_size_m2" validate:"omitnil,gte=0"`
	YearBuilt      *int     `json:"year_built" validate:"omitnil,gte=1800,lte=2100"`
	Floor          *int     `json:"floor"`
	MaintenanceFee *float64 `json:"maintenance_fee" validate:"omitnil,gte=0"`
	IPTU           *float64 `json:"iptu" validate:"omitnil,gte=0"`
	Address        *string  `json:"address" validate:"omitnil,max=255"`
	AddressNumber  *string  `json:"address_number" validate:"omitnil,max=30"`
	PostalCode     *string  `json:"postal_code" validate:"omitnil,max=20"`
	Neighborhood   *string  `json:"neighborhood" validate:"omitnil,max=120"`
	City           *string  `json:"city" validate:"omitnil,min=1,max=120"`
	State          *string  `json:"state" validate:"omitnil,min=1,max=60"`
	Purpose        *string  `json:"purpose" validate:"omitnil,oneof=SALE RENT"`
	Type           *string  `json:"type" validate:"omitnil,oneof=HOUSE APARTMENT LAND STUDIO"`
	Lat            *float64 `json:"lat" validate:"omitnil,gte=-90,lte=90"`
	Lng            *float64 `json:"lng" validate:"omitnil,gte=-180,lte=180"`
	Status         *string  `json:"status" validate:"omitnil,oneof=PENDING ACTIVE REJECTED"`
}

func upper(v *string) *string {
	if v == nil {
		return nil
	}
	u := strings.ToUpper(strings.TrimSpace(*v))
	return &u
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func (s *Service) toPatch(req PatchRequest, allowStatus bool) (models.PropertyPatch, error) {
	req.Purpose, req.Type, req.Status = upper(req.Purpose), upper(req.Type), upper(req.Status)
	req.Title, req.City, req.State = trimmed(req.Title), trimmed(req.City), trimmed(req.State)
	if err := s.check(req); err != nil {
		return models.PropertyPatch{}, err
	}
	if (req.Lat == nil) != (req.Lng == nil) {
		return models.PropertyPatch{}, fmt.Errorf("%w: lat and lng must be given together", ErrValidation)
	}
	p := models.PropertyPatch{
		Title:          req.Title,
		Description:    req.Description,
		Price:          req.Price,
		Bedrooms:       req.Bedrooms,
		Bathrooms:      req.Bathrooms,
		Suites:         req.Suites,
		ParkingSpaces:  req.ParkingSpaces,
		AreaM2:         req.AreaM2,
		LotSizeM2:      req.LotSizeM2,
		YearBuilt:      req.YearBuilt,
		Floor:          req.Floor,
		MaintenanceFee: req.MaintenanceFee,
		IPTU:           req.IPTU,
		Address:        req.Address,
		AddressNumber:  req.AddressNumber,
		PostalCode:     req.PostalCode,
		Neighborhood:   req.Neighborhood,
		City:           req.City,
		State:          req.State,
		Lat:            req.Lat,
		Lng:            req.Lng,
	}
	if req.Purpose != nil {
		v := models.Purpose(*req.Purpose)
		p.Purpose = &v
	}
	if req.Type != nil {
		v := models.PropertyType(*req.Type)
		p.Type = &v
	}
	if allowStatus && req.Status != nil {
		v := models.PropertyStatus(*req.Status)
		p.Status = &v
	}
	return p, nil
}
