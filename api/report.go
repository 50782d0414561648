package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/mmdatafocus/warehouse_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// VarianceReportHandler exports the session's count vs expected as an xlsx
// attachment for the purchasing team.
func VarianceReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionIdParam(c)
		if !ok {
			return
		}
		payload, err := workflow.GetReceivingSession(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		session := payload.Session

		// min_variance_value drops lines whose variance value is below the
		// threshold, so purchasing can pull a discrepancies-only sheet.
		minVariance := decimal.Zero
		if raw := c.Query("min_variance_value"); raw != "" {
			minVariance, err = utils.DecimalFromString(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid min_variance_value"})
				return
			}
		}

		f := excelize.NewFile()
		sheet := "Sheet1"
		if _, err := f.NewSheet(sheet); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		// Add headers
		f.SetCellValue(sheet, "A1", "SKU")
		f.SetCellValue(sheet, "B1", "Product")
		f.SetCellValue(sheet, "C1", "Expected")
		f.SetCellValue(sheet, "D1", "Counted")
		f.SetCellValue(sheet, "E1", "Damaged")
		f.SetCellValue(sheet, "F1", "Variance")
		f.SetCellValue(sheet, "G1", "UnitCost")
		f.SetCellValue(sheet, "H1", "VarianceValue")

		// Add data
		rowNum := 2
		for _, line := range session.Lines {
			varianceValue := line.UnitCost.Mul(decimal.NewFromInt(int64(line.Variance)))
			if varianceValue.Abs().LessThan(minVariance) {
				continue
			}
			row := fmt.Sprint(rowNum)
			rowNum++
			f.SetCellValue(sheet, "A"+row, line.Sku)
			f.SetCellValue(sheet, "B"+row, line.ProductName)
			f.SetCellValue(sheet, "C"+row, line.QuantityExpected)
			f.SetCellValue(sheet, "D"+row, line.QuantityCounted)
			f.SetCellValue(sheet, "E"+row, line.QuantityDamaged)
			f.SetCellValue(sheet, "F"+row, line.Variance)
			f.SetCellValue(sheet, "G"+row, line.UnitCost.InexactFloat64())
			f.SetCellValue(sheet, "H"+row, varianceValue.InexactFloat64())
		}

		totalsRow := fmt.Sprint(rowNum + 1)
		f.SetCellValue(sheet, "A"+totalsRow, "TOTAL")
		f.SetCellValue(sheet, "C"+totalsRow, payload.Summary.TotalExpected)
		f.SetCellValue(sheet, "D"+totalsRow, payload.Summary.TotalCounted)
		f.SetCellValue(sheet, "E"+totalsRow, payload.Summary.TotalDamaged)
		f.SetCellValue(sheet, "H"+totalsRow,
			payload.Summary.CountedValue.Sub(payload.Summary.ExpectedValue).InexactFloat64())

		filename := fmt.Sprintf("variance-%s.xlsx", session.PoId)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename="+filename)
		if err := f.Write(c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to write file"})
		}
	}
}
