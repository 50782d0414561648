package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/models"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"gorm.io/gorm"
)

type ScanOutcome string

const (
	ScanMatched        ScanOutcome = "matched"
	ScanKnownElsewhere ScanOutcome = "known_elsewhere"
	ScanUnknown        ScanOutcome = "unknown"
)

type ScanResult struct {
	Outcome ScanOutcome            `json:"outcome"`
	Line    *models.ReceivingLine  `json:"line,omitempty"`
	Variant *models.ProductVariant `json:"variant,omitempty"`
	ScanId  string                 `json:"scan_id"`
	Message string                 `json:"message"`
}

// tokenExtractor pulls one candidate identifier from a line. Extractors are
// evaluated in fixed precedence order across all lines; the first hit wins.
type tokenExtractor func(line models.ReceivingLine, variant *models.ProductVariant) string

var scanExtractors = []tokenExtractor{
	func(l models.ReceivingLine, _ *models.ProductVariant) string { return l.Sku },
	func(l models.ReceivingLine, _ *models.ProductVariant) string { return l.GeneratedBarcode },
	func(_ models.ReceivingLine, v *models.ProductVariant) string {
		if v == nil {
			return ""
		}
		return v.Upc
	},
	func(_ models.ReceivingLine, v *models.ProductVariant) string {
		if v == nil {
			return ""
		}
		return v.Barcode
	},
	func(_ models.ReceivingLine, v *models.ProductVariant) string {
		if v == nil {
			return ""
		}
		return v.Sku
	},
}

// matchScanToken finds the line a token identifies, honoring extractor
// precedence. Returns nil when no line carries the token.
func matchScanToken(lines []models.ReceivingLine, variants map[int]*models.ProductVariant, token string) *models.ReceivingLine {
	if token == "" {
		return nil
	}
	for _, extract := range scanExtractors {
		for i := range lines {
			var variant *models.ProductVariant
			if lines[i].ProductVariantId != nil {
				variant = variants[*lines[i].ProductVariantId]
			}
			if extract(lines[i], variant) == token {
				return &lines[i]
			}
		}
	}
	return nil
}

// BuildBarcodeIndex is the derived token -> lineId projection returned by
// start/get. Recomputed on read; earlier-precedence tokens win collisions.
func BuildBarcodeIndex(lines []models.ReceivingLine, variants map[int]*models.ProductVariant) map[string]int {
	index := make(map[string]int)
	for _, extract := range scanExtractors {
		for i := range lines {
			var variant *models.ProductVariant
			if lines[i].ProductVariantId != nil {
				variant = variants[*lines[i].ProductVariantId]
			}
			token := extract(lines[i], variant)
			if token == "" {
				continue
			}
			if _, taken := index[token]; !taken {
				index[token] = lines[i].ID
			}
		}
	}
	return index
}

// ResolveScan maps a scanned token to a session line. Scanning only
// identifies: a hit bumps scan_count/last_scanned_at but never changes
// quantity_counted. Every attempt, hit or miss, is audited under a fresh
// scan correlation id.
func ResolveScan(ctx context.Context, sessionId int, token string) (*ScanResult, error) {

	warehouseId, userId, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, validationError("scan token is required")
	}

	scanId := uuid.NewString()
	ctx = utils.SetCorrelationIdInContext(ctx, scanId)
	result := &ScanResult{ScanId: scanId}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := models.GetSessionWithLines(tx, ctx, warehouseId, sessionId)
		if err != nil {
			return err
		}
		if session.Status != models.ReceivingStatusInProgress {
			return preconditionError("cannot scan: session is %s", session.Status)
		}
		if err := CheckSessionLock(session, userId, time.Now().UTC()); err != nil {
			return err
		}

		variants, err := lineVariants(tx, ctx, session.Lines)
		if err != nil {
			return err
		}

		line := matchScanToken(session.Lines, variants, token)
		if line != nil {
			now := time.Now().UTC()
			err = tx.Model(&models.ReceivingLine{}).
				Where("id = ?", line.ID).
				Updates(map[string]interface{}{
					"scan_count":      gorm.Expr("scan_count + 1"),
					"last_scanned_at": now,
				}).Error
			if err != nil {
				return err
			}
			line.ScanCount++
			line.LastScannedAt = &now

			result.Outcome = ScanMatched
			result.Line = line
			result.Message = "matched line " + line.Sku
			return models.SaveAuditEntry(tx, "receiving_session", session.ID, "SCAN_MATCHED",
				map[string]interface{}{"token": token, "line_id": line.ID, "sku": line.Sku, "scan_id": scanId})
		}

		// Secondary lookup: the token may identify a real catalog product that
		// simply isn't on this PO — an actionable message for the operator.
		variant, err := models.FindVariantByToken(tx, ctx, warehouseId, token)
		if err != nil {
			return err
		}
		if variant != nil {
			result.Outcome = ScanKnownElsewhere
			result.Variant = variant
			result.Message = "product " + variant.Sku + " is not on this purchase order"
			return models.SaveAuditEntry(tx, "receiving_session", session.ID, "SCAN_NOT_ON_PO",
				map[string]interface{}{"token": token, "product_variant_id": variant.ID, "scan_id": scanId})
		}

		result.Outcome = ScanUnknown
		result.Message = "unknown barcode"
		return models.SaveAuditEntry(tx, "receiving_session", session.ID, "SCAN_UNKNOWN",
			map[string]interface{}{"token": token, "scan_id": scanId})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func lineVariants(tx *gorm.DB, ctx context.Context, lines []models.ReceivingLine) (map[int]*models.ProductVariant, error) {
	ids := make([]int, 0, len(lines))
	for _, line := range lines {
		if line.ProductVariantId != nil {
			ids = append(ids, *line.ProductVariantId)
		}
	}
	return models.FetchVariantsById(tx, ctx, ids)
}
