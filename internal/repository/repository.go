package repository

import (
	"errors"

	"github.com/gocql/gocql"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
)

// SessionFunc hands out the session of one keyspace.
type SessionFunc func() (*gocql.Session, error)

func notFound(err error) error {
	if errors.Is(err, gocql.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// Prices are stored as CQL double and handled as decimals in Go.
func toDouble(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func fromDouble(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}
