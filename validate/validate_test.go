package validate

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type line struct {
	ID    string          `validate:"required"`
	Price decimal.Decimal `validate:"gt=0"`
}

func TestCheck(t *testing.T) {
	if err := Check(line{ID: "13", Price: decimal.RequireFromString("4.99")}); err != nil {
		t.Fatalf("valid line rejected: %v", err)
	}

	err := Check(line{Price: decimal.NewFromInt(5)})
	var fe *FieldError
	if !errors.As(err, &fe) || fe.Field != "line.ID" {
		t.Fatalf("expected missing ID, got %v", err)
	}

	err = Check(line{ID: "13", Price: decimal.Zero})
	if !errors.As(err, &fe) || fe.Field != "line.Price" {
		t.Fatalf("expected non-positive price rejected, got %v", err)
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Fatal("ids repeat")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Fatalf("not a uuid: %v", err)
	}
}
