package workflow

import (
	"testing"

	"github.com/mmdatafocus/warehouse_backend/models"
)

func TestGoodQuantityNeverNegative(t *testing.T) {
	cases := []struct {
		name    string
		counted int
		damaged int
		want    int
	}{
		{"no damage", 10, 0, 10},
		{"partial damage", 10, 3, 7},
		{"all damaged", 10, 10, 0},
		{"damage exceeds count", 5, 9, 0},
		{"nothing counted", 0, 0, 0},
		{"damage without count", 0, 4, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			line := models.ReceivingLine{QuantityCounted: tc.counted, QuantityDamaged: tc.damaged}
			if got := goodQuantity(line); got != tc.want {
				t.Fatalf("goodQuantity(counted=%d damaged=%d) = %d, want %d",
					tc.counted, tc.damaged, got, tc.want)
			}
		})
	}
}
