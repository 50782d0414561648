package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/models"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/mmdatafocus/warehouse_backend/workflow"
	"github.com/shopspring/decimal"
)

// End-to-end receiving lifecycle against real MySQL + Redis:
// start -> scan -> count -> exception -> submit -> reject -> reopen ->
// submit -> approve, with the concurrency gates exercised along the way.
func TestReceivingLifecycle(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "warehouse_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	const warehouseId = "wh-test-1"

	baseCtx := context.Background()
	baseCtx = utils.SetWarehouseIdInContext(baseCtx, warehouseId)

	adminCtx := utils.SetUserIdInContext(baseCtx, 0)
	adminCtx = utils.SetUserNameInContext(adminCtx, "Seeder")

	counter, err := models.CreateUser(adminCtx, &models.NewUser{
		Username: "counter", Name: "Counter One", Password: "secret123", Role: models.RoleOperator,
	})
	if err != nil {
		t.Fatalf("CreateUser counter: %v", err)
	}
	reviewer, err := models.CreateUser(adminCtx, &models.NewUser{
		Username: "reviewer", Name: "Reviewer One", Password: "secret123", Role: models.RoleSupervisor,
	})
	if err != nil {
		t.Fatalf("CreateUser reviewer: %v", err)
	}

	counterCtx := utils.SetUserIdInContext(baseCtx, counter.ID)
	counterCtx = utils.SetUserNameInContext(counterCtx, counter.Name)
	reviewerCtx := utils.SetUserIdInContext(baseCtx, reviewer.ID)
	reviewerCtx = utils.SetUserNameInContext(reviewerCtx, reviewer.Name)

	recvLoc, err := models.CreateLocation(adminCtx, &models.NewLocation{
		Code: "RECV-01", Name: "Receiving Dock", Type: models.LocationTypeReceiving,
	})
	if err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	locations, err := models.ListLocations(adminCtx)
	if err != nil || len(locations) != 1 || locations[0].Code != "RECV-01" {
		t.Fatalf("ListLocations: %v %+v", err, locations)
	}

	// WDG-001 carries a UPC; WDG-002 has neither UPC nor barcode so the
	// session must mint one; WDG-404 exists in the catalog but is never
	// ordered, so its UPC should resolve as known_elsewhere.
	if _, err := models.CreateProductVariant(adminCtx, &models.NewProductVariant{
		Sku: "WDG-001", Upc: "012345678905", Name: "Widget Alpha", UnitCost: decimal.NewFromFloat(2.50),
	}); err != nil {
		t.Fatalf("CreateProductVariant WDG-001: %v", err)
	}
	if _, err := models.CreateProductVariant(adminCtx, &models.NewProductVariant{
		Sku: "WDG-002", Name: "Widget Beta", UnitCost: decimal.NewFromInt(4),
	}); err != nil {
		t.Fatalf("CreateProductVariant WDG-002: %v", err)
	}
	if _, err := models.CreateProductVariant(adminCtx, &models.NewProductVariant{
		Sku: "WDG-404", Upc: "999999999993", Name: "Widget NotOrdered",
	}); err != nil {
		t.Fatalf("CreateProductVariant WDG-404: %v", err)
	}

	payload, err := workflow.StartReceivingSession(counterCtx, &models.NewReceivingSession{
		PoId:        "PO-1001",
		PoReference: "PO-1001/2026",
		VendorName:  "Acme Supply",
		LocationId:  recvLoc.ID,
		ExpectedItems: []models.NewExpectedItem{
			{Sku: "WDG-001", QuantityExpected: 10},
			{Sku: "WDG-002", QuantityExpected: 5},
		},
	})
	if err != nil {
		t.Fatalf("StartReceivingSession: %v", err)
	}
	session := payload.Session
	if session.Version != 1 {
		t.Fatalf("new session version = %d, want 1", session.Version)
	}
	if session.LockedBy == nil || *session.LockedBy != counter.ID {
		t.Fatalf("new session not locked to starter: %+v", session.LockedBy)
	}
	if session.ReceivingLocationId != recvLoc.ID {
		t.Fatalf("session location = %d, want explicit %d", session.ReceivingLocationId, recvLoc.ID)
	}
	if _, ok := payload.BarcodeIndex["012345678905"]; !ok {
		t.Fatalf("barcode index missing catalog UPC: %v", payload.BarcodeIndex)
	}

	var betaLine *models.ReceivingLine
	for i := range session.Lines {
		if session.Lines[i].Sku == "WDG-002" {
			betaLine = &session.Lines[i]
		}
	}
	if betaLine == nil || betaLine.GeneratedBarcode == "" {
		t.Fatalf("expected a generated barcode for WDG-002, got %+v", betaLine)
	}

	// Restarting the same PO resumes the live session instead of duplicating.
	resume, err := workflow.StartReceivingSession(counterCtx, &models.NewReceivingSession{
		PoId:          "PO-1001",
		ExpectedItems: []models.NewExpectedItem{{Sku: "WDG-001", QuantityExpected: 10}},
	})
	if err != nil {
		t.Fatalf("resume StartReceivingSession: %v", err)
	}
	if !resume.Resumed || resume.Session.ID != session.ID {
		t.Fatalf("expected resume of session %d, got %+v", session.ID, resume.Session.ID)
	}

	// Scans identify but never count.
	scan, err := workflow.ResolveScan(counterCtx, session.ID, "012345678905")
	if err != nil {
		t.Fatalf("ResolveScan upc: %v", err)
	}
	if scan.Outcome != workflow.ScanMatched || scan.Line == nil || scan.Line.Sku != "WDG-001" {
		t.Fatalf("upc scan: %+v", scan)
	}
	if scan.Line.QuantityCounted != 0 {
		t.Fatalf("scan must not change quantity_counted, got %d", scan.Line.QuantityCounted)
	}
	scan, err = workflow.ResolveScan(counterCtx, session.ID, "999999999993")
	if err != nil {
		t.Fatalf("ResolveScan known elsewhere: %v", err)
	}
	if scan.Outcome != workflow.ScanKnownElsewhere {
		t.Fatalf("off-PO catalog scan outcome = %s, want known_elsewhere", scan.Outcome)
	}
	scan, err = workflow.ResolveScan(counterCtx, session.ID, "garbage-token")
	if err != nil {
		t.Fatalf("ResolveScan unknown: %v", err)
	}
	if scan.Outcome != workflow.ScanUnknown {
		t.Fatalf("garbage scan outcome = %s, want unknown", scan.Outcome)
	}

	// Nothing has been counted yet, so handing the session off is rejected.
	if _, err := workflow.SubmitForApproval(counterCtx, session.ID, nil); !errors.Is(err, utils.ErrorValidation) {
		t.Fatalf("submit with zero counted: got %v, want validation failure", err)
	}

	lineIdBySku := map[string]int{}
	for _, l := range session.Lines {
		lineIdBySku[l.Sku] = l.ID
	}

	// Another device cannot count while the lock is fresh.
	_, err = workflow.BatchUpdateQuantities(reviewerCtx, session.ID, &workflow.BatchQuantityUpdate{
		Updates: []workflow.QuantityDelta{{LineId: lineIdBySku["WDG-001"], Delta: 1}},
	})
	if !errors.Is(err, utils.ErrorLockConflict) {
		t.Fatalf("expected lock conflict for second user, got %v", err)
	}

	batch, err := workflow.BatchUpdateQuantities(counterCtx, session.ID, &workflow.BatchQuantityUpdate{
		Updates: []workflow.QuantityDelta{
			{LineId: lineIdBySku["WDG-001"], Delta: 10},
			{LineId: lineIdBySku["WDG-002"], Delta: 4},
			{LineId: lineIdBySku["WDG-002"], Delta: -100}, // clamps to zero
			{LineId: lineIdBySku["WDG-002"], Delta: 4},
		},
		ExpectedVersion: utils.Ptr(1),
	})
	if err != nil {
		t.Fatalf("BatchUpdateQuantities: %v", err)
	}
	if batch.Version != 2 {
		t.Fatalf("version after one batch = %d, want 2", batch.Version)
	}
	for _, lr := range batch.Lines {
		if lr.LineId == lineIdBySku["WDG-002"] && lr.QuantityCounted != 4 {
			t.Fatalf("WDG-002 counted = %d, want 4 after clamp", lr.QuantityCounted)
		}
	}

	// A stale token rejects the whole batch with nothing applied.
	_, err = workflow.BatchUpdateQuantities(counterCtx, session.ID, &workflow.BatchQuantityUpdate{
		Updates:         []workflow.QuantityDelta{{LineId: lineIdBySku["WDG-001"], Delta: 99}},
		ExpectedVersion: utils.Ptr(1),
	})
	if !errors.Is(err, utils.ErrorVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	check, err := workflow.GetReceivingSession(counterCtx, session.ID)
	if err != nil {
		t.Fatalf("GetReceivingSession: %v", err)
	}
	if check.Summary.TotalCounted != 14 {
		t.Fatalf("counts leaked from rejected batch: total counted %d, want 14", check.Summary.TotalCounted)
	}

	exception, err := workflow.RecordException(counterCtx, session.ID, &models.NewReceivingException{
		LineId:   lineIdBySku["WDG-002"],
		Type:     models.ExceptionTypeDamaged,
		Quantity: 1,
		Notes:    "crushed carton",
	})
	if err != nil {
		t.Fatalf("RecordException: %v", err)
	}
	if exception.ID == 0 {
		t.Fatal("exception not persisted")
	}

	submitted, err := workflow.SubmitForApproval(counterCtx, session.ID, &reviewer.ID)
	if err != nil {
		t.Fatalf("SubmitForApproval: %v", err)
	}
	if submitted.Status != models.ReceivingStatusSubmitted || submitted.LockedBy != nil {
		t.Fatalf("submit: status %s locked_by %v", submitted.Status, submitted.LockedBy)
	}

	// No counting while under review.
	_, err = workflow.BatchUpdateQuantities(counterCtx, session.ID, &workflow.BatchQuantityUpdate{
		Updates: []workflow.QuantityDelta{{LineId: lineIdBySku["WDG-001"], Delta: 1}},
	})
	if !errors.Is(err, utils.ErrorPreconditionFailed) {
		t.Fatalf("expected precondition failure on submitted session, got %v", err)
	}

	rejected, err := workflow.RejectReceivingSession(reviewerCtx, session.ID, "recount beta widgets")
	if err != nil {
		t.Fatalf("RejectReceivingSession: %v", err)
	}
	if rejected.Status != models.ReceivingStatusRejected {
		t.Fatalf("reject: status %s", rejected.Status)
	}

	reopened, err := workflow.ReopenReceivingSession(counterCtx, session.ID)
	if err != nil {
		t.Fatalf("ReopenReceivingSession: %v", err)
	}
	ro := reopened.Session
	if ro.Status != models.ReceivingStatusInProgress || ro.RejectionReason != "" || ro.SubmittedAt != nil {
		t.Fatalf("reopen left stale review state: %+v", ro)
	}
	if ro.LockedBy == nil || *ro.LockedBy != counter.ID {
		t.Fatalf("reopen must lock to the reopener, got %v", ro.LockedBy)
	}
	if reopened.Summary.TotalCounted != 14 {
		t.Fatalf("reopen must preserve counts, got %d", reopened.Summary.TotalCounted)
	}

	if _, err := workflow.SubmitForApproval(counterCtx, session.ID, nil); err != nil {
		t.Fatalf("second SubmitForApproval: %v", err)
	}

	result, err := workflow.ApproveReceivingSession(reviewerCtx, session.ID)
	if err != nil {
		t.Fatalf("ApproveReceivingSession: %v", err)
	}
	if result.Session.Status != models.ReceivingStatusApproved {
		t.Fatalf("approve: status %s", result.Session.Status)
	}
	// WDG-001: 10 good. WDG-002: 4 counted - 1 damaged = 3 good.
	if result.LinesReceived != 2 || result.UnitsReceived != 13 {
		t.Fatalf("approve materialized (%d lines, %d units), want (2, 13)",
			result.LinesReceived, result.UnitsReceived)
	}
	if want := decimal.NewFromInt(37); !result.ReceivedValue.Equal(want) {
		t.Fatalf("received value %s, want %s", result.ReceivedValue, want)
	}
	if result.PutawayTask == nil || result.Session.PutawayTaskId == nil {
		t.Fatal("approve must create and link a putaway task")
	}
	task, err := models.GetPutawayTask(reviewerCtx, result.PutawayTask.ID)
	if err != nil {
		t.Fatalf("GetPutawayTask: %v", err)
	}
	if len(task.Items) != 2 || task.Status != models.PutawayStatusPending {
		t.Fatalf("putaway task: %d items status %s", len(task.Items), task.Status)
	}

	// Approval is terminal and idempotence is by rejection, not by replay.
	if _, err := workflow.ApproveReceivingSession(reviewerCtx, session.ID); !errors.Is(err, utils.ErrorPreconditionFailed) {
		t.Fatalf("second approve should fail precondition, got %v", err)
	}

	// The slot is free again: a new session for the same PO may start.
	fresh, err := workflow.StartReceivingSession(counterCtx, &models.NewReceivingSession{
		PoId:          "PO-1001",
		ExpectedItems: []models.NewExpectedItem{{Sku: "WDG-001", QuantityExpected: 2}},
	})
	if err != nil {
		t.Fatalf("start after approval: %v", err)
	}
	if fresh.Resumed || fresh.Session.ID == session.ID {
		t.Fatalf("expected a fresh session after approval, got resume of %d", fresh.Session.ID)
	}

	// A flushed counter must not re-issue a task number already on disk.
	if _, err := workflow.BatchUpdateQuantities(counterCtx, fresh.Session.ID, &workflow.BatchQuantityUpdate{
		Updates: []workflow.QuantityDelta{{LineId: fresh.Session.Lines[0].ID, Delta: 2}},
	}); err != nil {
		t.Fatalf("count fresh session: %v", err)
	}
	if _, err := workflow.SubmitForApproval(counterCtx, fresh.Session.ID, nil); err != nil {
		t.Fatalf("submit fresh session: %v", err)
	}
	if err := config.RemoveRedisKey("putawayTaskSeq:" + warehouseId); err != nil {
		t.Fatalf("flush putaway counter: %v", err)
	}
	second, err := workflow.ApproveReceivingSession(reviewerCtx, fresh.Session.ID)
	if err != nil {
		t.Fatalf("approve after counter flush: %v", err)
	}
	if second.PutawayTask == nil || second.PutawayTask.TaskNumber == task.TaskNumber {
		t.Fatalf("flushed counter re-issued task number %q", task.TaskNumber)
	}

	audits, err := models.ListAuditEntries(counterCtx, "receiving_session", session.ID)
	if err != nil {
		t.Fatalf("ListAuditEntries: %v", err)
	}
	seen := map[string]bool{}
	for _, a := range audits {
		seen[a.Action] = true
	}
	for _, action := range []string{"SESSION_STARTED", "SCAN_MATCHED", "SCAN_NOT_ON_PO", "SCAN_UNKNOWN",
		"SESSION_SUBMITTED", "SESSION_REJECTED", "SESSION_REOPENED", "SESSION_APPROVED"} {
		if !seen[action] {
			t.Fatalf("session audit trail missing %s; have %v", action, seen)
		}
	}

	lineAudits, err := models.ListAuditEntries(counterCtx, "receiving_line", lineIdBySku["WDG-002"])
	if err != nil {
		t.Fatalf("ListAuditEntries line: %v", err)
	}
	seen = map[string]bool{}
	for _, a := range lineAudits {
		seen[a.Action] = true
	}
	if !seen["QUANTITY_DELTA"] || !seen["EXCEPTION_RECORDED"] {
		t.Fatalf("line audit trail incomplete; have %v", seen)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("wms-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("wms-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=warehouse_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
