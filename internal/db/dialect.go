package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect hides the differences between the supported engines. Queries are
// written with '?' placeholders and passed through Rebind before execution.
type Dialect interface {
	Name() string
	DriverName() string
	Rebind(query string) string
	// PointExpr is the SQL expression storing a WKT point argument.
	PointExpr() string
	// WithinBound returns a predicate keeping rows of alias whose location lies in b.
	WithinBound(alias string, b orb.Bound) (string, []any)
	// ILike returns a case-insensitive substring predicate for col.
	ILike(col string) string
	// ForUpdate is appended to SELECTs that guard a read-then-write.
	ForUpdate() string
	InsertID(ctx context.Context, ex Execer, query string, args ...any) (int64, error)
}

func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "mysql":
		return MySQL{}, nil
	case "postgres", "pgx":
		return Postgres{}, nil
	case "sqlite":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// PointWKT encodes a lng/lat pair as WKT.
func PointWKT(lat, lng float64) string {
	return wkt.MarshalString(orb.Point{lng, lat})
}

// PolygonWKT encodes the ring of b as WKT.
func PolygonWKT(b orb.Bound) string {
	return wkt.MarshalString(b.ToPolygon())
}

type MySQL struct{}

func (MySQL) Name() string               { return "mysql" }
func (MySQL) DriverName() string         { return "mysql" }
func (MySQL) Rebind(query string) string { return query }
func (MySQL) PointExpr() string          { return "ST_GeomFromText(?, 4326, 'axis-order=long-lat')" }
func (MySQL) ILike(col string) string    { return col + " LIKE ?" }
func (MySQL) ForUpdate() string          { return " FOR UPDATE" }

func (MySQL) WithinBound(alias string, b orb.Bound) (string, []any) {
	return fmt.Sprintf("ST_Within(%s.location, ST_GeomFromText(?, 4326, 'axis-order=long-lat'))", alias), []any{PolygonWKT(b)}
}

func (MySQL) InsertID(ctx context.Context, ex Execer, query string, args ...any) (int64, error) {
	return lastInsertID(ctx, ex, query, args...)
}

type Postgres struct{}

func (Postgres) Name() string            { return "postgres" }
func (Postgres) DriverName() string      { return "pgx" }
func (Postgres) PointExpr() string       { return "ST_GeomFromText(?, 4326)" }
func (Postgres) ILike(col string) string { return col + " ILIKE ?" }
func (Postgres) ForUpdate() string       { return " FOR UPDATE" }

func (Postgres) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (Postgres) WithinBound(alias string, b orb.Bound) (string, []any) {
	return fmt.Sprintf("ST_Within(%s.location, ST_GeomFromText(?, 4326))", alias), []any{PolygonWKT(b)}
}

func (p Postgres) InsertID(ctx context.Context, ex Execer, query string, args ...any) (int64, error) {
	var id int64
	if err := ex.QueryRowContext(ctx, p.Rebind(query)+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// SQLite keeps the point as WKT text and filters on the lat/lng columns.
type SQLite struct{}

func (SQLite) Name() string               { return "sqlite" }
func (SQLite) DriverName() string         { return "sqlite" }
func (SQLite) Rebind(query string) string { return query }
func (SQLite) PointExpr() string          { return "?" }
func (SQLite) ILike(col string) string    { return col + " LIKE ?" }
func (SQLite) ForUpdate() string          { return "" }

func (SQLite) WithinBound(alias string, b orb.Bound) (string, []any) {
	return fmt.Sprintf("%[1]s.lng BETWEEN ? AND ? AND %[1]s.lat BETWEEN ? AND ?", alias),
		[]any{b.Min.Lon(), b.Max.Lon(), b.Min.Lat(), b.Max.Lat()}
}

func (SQLite) InsertID(ctx context.Context, ex Execer, query string, args ...any) (int64, error) {
	return lastInsertID(ctx, ex, query, args...)
}

func lastInsertID(ctx context.Context, ex Execer, query string, args ...any) (int64, error) {
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
