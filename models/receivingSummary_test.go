package models_test

import (
	"testing"

	"github.com/mmdatafocus/warehouse_backend/models"
	"github.com/shopspring/decimal"
)

func TestSummarizeLines(t *testing.T) {
	lines := []models.ReceivingLine{
		{QuantityExpected: 10, QuantityCounted: 10, Variance: 0, UnitCost: decimal.NewFromFloat(2.50)},
		{QuantityExpected: 5, QuantityCounted: 3, QuantityDamaged: 1, Variance: -2, UnitCost: decimal.NewFromInt(4)},
		{QuantityExpected: 8, QuantityCounted: 12, Variance: 4, UnitCost: decimal.Zero},
	}

	summary := models.SummarizeLines(lines)

	if summary.LinesTotal != 3 {
		t.Fatalf("LinesTotal = %d, want 3", summary.LinesTotal)
	}
	if summary.TotalExpected != 23 || summary.TotalCounted != 25 || summary.TotalDamaged != 1 {
		t.Fatalf("totals = (%d, %d, %d), want (23, 25, 1)",
			summary.TotalExpected, summary.TotalCounted, summary.TotalDamaged)
	}
	// complete means counted >= expected, so the overage line counts too
	if summary.LinesComplete != 2 {
		t.Fatalf("LinesComplete = %d, want 2", summary.LinesComplete)
	}
	if summary.LinesWithVariance != 2 {
		t.Fatalf("LinesWithVariance = %d, want 2", summary.LinesWithVariance)
	}
	if want := decimal.NewFromInt(45); !summary.ExpectedValue.Equal(want) {
		t.Fatalf("ExpectedValue = %s, want %s", summary.ExpectedValue, want)
	}
	if want := decimal.NewFromInt(37); !summary.CountedValue.Equal(want) {
		t.Fatalf("CountedValue = %s, want %s", summary.CountedValue, want)
	}
}

func TestSummarizeLines_Empty(t *testing.T) {
	summary := models.SummarizeLines(nil)
	if summary.LinesTotal != 0 || summary.TotalExpected != 0 {
		t.Fatalf("empty summary should be zero-valued: %+v", summary)
	}
	if !summary.ExpectedValue.Equal(decimal.Zero) {
		t.Fatalf("ExpectedValue = %s, want 0", summary.ExpectedValue)
	}
}

func TestStatusTransitionsHelpers(t *testing.T) {
	if !models.ReceivingStatusInProgress.IsActive() || !models.ReceivingStatusSubmitted.IsActive() {
		t.Fatal("IN_PROGRESS and SUBMITTED occupy the active slot")
	}
	if models.ReceivingStatusApproved.IsActive() || models.ReceivingStatusRejected.IsActive() {
		t.Fatal("APPROVED and REJECTED must free the active slot")
	}
	if !models.ReceivingStatusApproved.IsTerminal() {
		t.Fatal("APPROVED is terminal")
	}
	if models.ReceivingStatusRejected.IsTerminal() {
		t.Fatal("REJECTED is not terminal: it may be reopened")
	}
}

func TestRolePermissions(t *testing.T) {
	if !models.RoleAdmin.Elevated() || !models.RoleSupervisor.Elevated() {
		t.Fatal("admin and supervisor are elevated")
	}
	if models.RoleOperator.Elevated() {
		t.Fatal("operator is not elevated")
	}
}
