package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("23505 must be classified as unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "22001"}) {
		t.Fatal("22001 must not be classified as unique violation")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("plain error must not be classified as unique violation")
	}
	if isUniqueViolation(nil) {
		t.Fatal("nil must not be classified as unique violation")
	}
}

func TestNullableKey(t *testing.T) {
	t.Parallel()

	if v := nullableKey(""); v.Valid {
		t.Fatal("empty key must map to NULL")
	}
	if v := nullableKey("k1"); !v.Valid || v.String != "k1" {
		t.Fatalf("unexpected nullable key: %+v", v)
	}
}
