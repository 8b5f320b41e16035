// Package search turns listing query parameters into a typed filter and
// compiles it into a parameterized WHERE clause.
package search

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"ximoveis/internal/models"
)

var ErrInvalidCriteria = errors.New("invalid search criteria")

type Sort string

const (
	SortNewest    Sort = "newest"
	SortPriceAsc  Sort = "priceAsc"
	SortPriceDesc Sort = "priceDesc"
)

// Server-side row caps. A client limit may only lower them.
const (
	ListCap  = 500
	MapCap   = 1000
	AdminCap = 300
)

const kmPerDegree = 111.0

type Criteria struct {
	Purpose      *models.Purpose
	Type         *models.PropertyType
	Status       *models.PropertyStatus
	MinPrice     *float64
	MaxPrice     *float64
	City         string
	State        string
	Q            string
	Neighborhood string
	Address      string
	MinBedrooms  *int
	MinBathrooms *int
	MinSuites    *int
	MinParking   *int
	MinArea      *float64
	MaxArea      *float64
	Bound        *orb.Bound
	Sort         Sort
	Limit        int
}

// Parse reads criteria from query parameters. Empty parameters are treated as absent.
func Parse(v url.Values) (Criteria, error) {
	var c Criteria
	p := parser{v: v}

	if s := p.str("purpose"); s != "" {
		purpose := models.Purpose(strings.ToUpper(s))
		if !purpose.Valid() {
			return Criteria{}, fmt.Errorf("%w: purpose must be SALE or RENT", ErrInvalidCriteria)
		}
		c.Purpose = &purpose
	}
	if s := p.str("type"); s != "" {
		typ := models.PropertyType(strings.ToUpper(s))
		if !typ.Valid() {
			return Criteria{}, fmt.Errorf("%w: unknown type %q", ErrInvalidCriteria, s)
		}
		c.Type = &typ
	}
	if s := p.str("status"); s != "" {
		st := models.PropertyStatus(strings.ToUpper(s))
		if !st.Valid() {
			return Criteria{}, fmt.Errorf("%w: unknown status %q", ErrInvalidCriteria, s)
		}
		c.Status = &st
	}

	c.City = p.str("city")
	c.State = p.str("state")
	c.Q = p.str("q")
	c.Neighborhood = p.str("neighborhood")
	c.Address = p.str("address")

	c.MinPrice = p.floatVal("minPrice")
	c.MaxPrice = p.floatVal("maxPrice")
	c.MinArea = p.floatVal("minArea")
	c.MaxArea = p.floatVal("maxArea")
	c.MinBedrooms = p.intVal("minBedrooms")
	c.MinBathrooms = p.intVal("minBathrooms")
	c.MinSuites = p.intVal("suitesMin")
	c.MinParking = p.intVal("parkingMin")
	if limit := p.intVal("limit"); limit != nil {
		if *limit <= 0 {
			return Criteria{}, fmt.Errorf("%w: limit must be positive", ErrInvalidCriteria)
		}
		c.Limit = *limit
	}
	if p.err != nil {
		return Criteria{}, p.err
	}

	switch Sort(p.str("sort")) {
	case "", SortNewest:
		c.Sort = SortNewest
	case SortPriceAsc:
		c.Sort = SortPriceAsc
	case SortPriceDesc:
		c.Sort = SortPriceDesc
	default:
		return Criteria{}, fmt.Errorf("%w: sort must be newest, priceAsc or priceDesc", ErrInvalidCriteria)
	}

	if s := p.str("bbox"); s != "" {
		b, err := ParseBBox(s)
		if err != nil {
			return Criteria{}, err
		}
		c.Bound = &b
	} else if p.has("lat") || p.has("lng") || p.has("radiusKm") {
		lat, lng, r := p.floatVal("lat"), p.floatVal("lng"), p.floatVal("radiusKm")
		if p.err != nil {
			return Criteria{}, p.err
		}
		if lat == nil || lng == nil || r == nil {
			return Criteria{}, fmt.Errorf("%w: lat, lng and radiusKm must be given together", ErrInvalidCriteria)
		}
		b, err := RadiusBound(*lat, *lng, *r)
		if err != nil {
			return Criteria{}, err
		}
		c.Bound = &b
	}
	return c, nil
}

// ParseBBox parses "minLng,minLat,maxLng,maxLat".
func ParseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("%w: bbox must be minLng,minLat,maxLng,maxLat", ErrInvalidCriteria)
	}
	var n [4]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return orb.Bound{}, fmt.Errorf("%w: bbox has a non-numeric value", ErrInvalidCriteria)
		}
		n[i] = f
	}
	b := orb.Bound{Min: orb.Point{n[0], n[1]}, Max: orb.Point{n[2], n[3]}}
	if err := checkBound(b); err != nil {
		return orb.Bound{}, err
	}
	return b, nil
}

// RadiusBound approximates a circle by its bounding box using 111 km per
// degree of latitude and 111*cos(lat) km per degree of longitude.
func RadiusBound(lat, lng, km float64) (orb.Bound, error) {
	if km <= 0 {
		return orb.Bound{}, fmt.Errorf("%w: radiusKm must be positive", ErrInvalidCriteria)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return orb.Bound{}, fmt.Errorf("%w: center out of range", ErrInvalidCriteria)
	}
	dLat := km / kmPerDegree
	dLng := km / (kmPerDegree * math.Cos(lat*math.Pi/180))
	return orb.Bound{
		Min: orb.Point{lng - dLng, lat - dLat},
		Max: orb.Point{lng + dLng, lat + dLat},
	}, nil
}

func checkBound(b orb.Bound) error {
	if b.Min.Lon() > b.Max.Lon() || b.Min.Lat() > b.Max.Lat() {
		return fmt.Errorf("%w: bbox min must not exceed max", ErrInvalidCriteria)
	}
	if b.Min.Lat() < -90 || b.Max.Lat() > 90 || b.Min.Lon() < -180 || b.Max.Lon() > 180 {
		return fmt.Errorf("%w: bbox out of range", ErrInvalidCriteria)
	}
	return nil
}

// EffectiveLimit applies a server cap to a client-requested limit.
func EffectiveLimit(requested, ceiling int) int {
	if requested <= 0 || requested > ceiling {
		return ceiling
	}
	return requested
}

type parser struct {
	v   url.Values
	err error
}

func (p *parser) has(k string) bool { return strings.TrimSpace(p.v.Get(k)) != "" }

func (p *parser) str(k string) string { return strings.TrimSpace(p.v.Get(k)) }

func (p *parser) floatVal(k string) *float64 {
	s := p.str(k)
	if s == "" || p.err != nil {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		p.err = fmt.Errorf("%w: %s must be a number", ErrInvalidCriteria, k)
		return nil
	}
	return &f
}

func (p *parser) intVal(k string) *int {
	s := p.str(k)
	if s == "" || p.err != nil {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		p.err = fmt.Errorf("%w: %s must be an integer", ErrInvalidCriteria, k)
		return nil
	}
	return &n
}
