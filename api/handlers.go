package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/warehouse_backend/models"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/mmdatafocus/warehouse_backend/workflow"
)

// respondError maps the error taxonomy onto HTTP. Conflicts carry a
// discriminator so scanner clients can tell "refetch and retry" (version)
// from "someone else has the session" (lock).
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorLockConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "conflict": "lock"})
	case errors.Is(err, utils.ErrorVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "conflict": "version"})
	case errors.Is(err, utils.ErrorPreconditionFailed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "conflict": "precondition"})
	case errors.Is(err, utils.ErrorValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func sessionIdParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return 0, false
	}
	return id, true
}

// bindJSON binds the request body. Validator failures come back as a
// field -> message map so clients can tell which inputs to fix.
func bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	var verr validator.ValidationErrors
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(verr)})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	return false
}

func StartSessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.NewReceivingSession
		if !bindJSON(c, &req) {
			return
		}
		payload, err := workflow.StartReceivingSession(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		status := http.StatusCreated
		if payload.Resumed {
			status = http.StatusOK
		}
		c.JSON(status, payload)
	}
}

func GetSessionHandler() gin.HandlerFunc {
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
		c.JSON(http.StatusOK, payload)
	}
}

type scanRequest struct {
	Token string `json:"token" binding:"required"`
}

func ScanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionIdParam(c)
		if !ok {
			return
		}
		var req scanRequest
		if !bindJSON(c, &req) {
			return
		}
		result, err := workflow.ResolveScan(c.Request.Context(), id, req.Token)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func BatchCountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionIdParam(c)
		if !ok {
			return
		}
		var req workflow.BatchQuantityUpdate
		if !bindJSON(c, &req) {
			return
		}
		result, err := workflow.BatchUpdateQuantities(c.Request.Context(), id, &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func SetLineQuantityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionIdParam(c)
		if !ok {
			return
		}
		lineId, err := strconv.Atoi(c.Param("lineId"))
		if err != nil || lineId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid line id"})
			return
		}
		var req setQuantityRequest
		if !bindJSON(c, &req) {
			return
		}
		line, err := workflow.SetLineQuantity(c.Request.Context(), id, lineId, req.Quantity)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, line)
	}
}

func RecordExceptionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionIdParam(c)
		if !ok {
			return
		}
		var req models.NewReceivingException
		if !bindJSON(c, &req) {
			return
		}
		exception, err := workflow.RecordException(c.Request.Context(), id, &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, exception)
	}
}

func ListExceptionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionIdParam(c)
		if !ok {
			return
		}
		exceptions, err := models.ListSessionExceptions(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"exceptions": exceptions})
	}
}

type submitRequest struct {
	AssignedTo *int `json:"assigned_to"`
}

func SubmitSessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionIdParam(c)
		if !ok {
			return
		}
		var req submitRequest
		if c.Request.ContentLength > 0 {
			if !bindJSON(c, &req) {
				return
			}
		}
		session, err := workflow.SubmitForApproval(c.Request.Context(), id, req.AssignedTo)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

func ApproveSessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionIdParam(c)
		if !ok {
			return
		}
		result, err := workflow.ApproveReceivingSession(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

type rejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func RejectSessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionIdParam(c)
		if !ok {
			return
		}
		var req rejectRequest
		if !bindJSON(c, &req) {
			return
		}
		session, err := workflow.RejectReceivingSession(c.Request.Context(), id, req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

func ReopenSessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionIdParam(c)
		if !ok {
			return
		}
		payload, err := workflow.ReopenReceivingSession(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, payload)
	}
}

func HeartbeatHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionIdParam(c)
		if !ok {
			return
		}
		if err := workflow.HeartbeatSessionLock(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func ReleaseLockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionIdParam(c)
		if !ok {
			return
		}
		if err := workflow.ReleaseSessionLock(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func AuditTrailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionIdParam(c)
		if !ok {
			return
		}
		entries, err := models.ListAuditEntries(c.Request.Context(), "receiving_session", id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	}
}

func GetPutawayTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
			return
		}
		task, err := models.GetPutawayTask(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

func ListLocationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		locations, err := models.ListLocations(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, locations)
	}
}

func CreateLocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.NewLocation
		if !bindJSON(c, &req) {
			return
		}
		location, err := models.CreateLocation(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, location)
	}
}

func CreateProductVariantHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.NewProductVariant
		if !bindJSON(c, &req) {
			return
		}
		variant, err := models.CreateProductVariant(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, variant)
	}
}

func CreateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.NewUser
		if !bindJSON(c, &req) {
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}
