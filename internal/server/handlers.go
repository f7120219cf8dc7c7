package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Alias1177/Cardeon/internal/pipeline"
	"github.com/Alias1177/Cardeon/models"
)

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Details string              `json:"details,omitempty"`
	Fields  []models.FieldError `json:"fields,omitempty"`
}

type reportRequest struct {
	Patient json.RawMessage          `json:"patient"`
	Result  *models.PredictionResult `json:"result"`
}

type checkupRequest struct {
	Date         string `json:"date"`
	Notes        string `json:"notes"`
	DocumentName string `json:"documentName"`
}

func (s *Server) predict(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	result, err := s.newPipeline().PredictJSON(c.Request.Context(), body)
	if err != nil {
		s.predictionError(c, err)
		return
	}

	if userID, ok := optionalUserID(c); ok && s.store != nil {
		ctx := c.Request.Context()
		err := s.store.EnsureUser(ctx, userID, userID)
		if err == nil {
			err = s.store.UpdateLastPredicted(ctx, userID, result)
		}
		if err != nil {
			s.logger.Warn().Err(err).Int64("user_id", userID).Msg("Failed to record prediction")
		}
	}

	c.JSON(http.StatusOK, result)
}

// report renders the HTML document. A result in the body is validated and
// rendered as is; without one the prediction is run first.
func (s *Server) report(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	var req reportRequest
	if err := json.Unmarshal(body, &req); err != nil || len(req.Patient) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_payload", Details: `expected {"patient": {...}, "result": {...}}`})
		return
	}

	patient, err := models.ParsePatientJSON(req.Patient)
	if err != nil {
		s.predictionError(c, err)
		return
	}

	result := req.Result
	if result != nil {
		if err := result.Validate(); err != nil {
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid_result", Details: err.Error()})
			return
		}
	} else {
		result, err = s.newPipeline().Predict(c.Request.Context(), patient)
		if err != nil {
			s.predictionError(c, err)
			return
		}
	}

	doc, err := s.exporter.Export(patient, result)
	if err != nil {
		s.logger.Error().Err(err).Msg("Report export failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "export_failed", Details: err.Error()})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	c.Header("X-Report-ID", doc.ID)
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

func (s *Server) listCheckups(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	checkups, err := s.store.ListCheckups(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to list checkups")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "storage_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"checkups": checkups})
}

func (s *Server) createCheckup(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	var req checkupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_payload", Details: err.Error()})
		return
	}

	date, err := time.Parse(models.CheckupDateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid_date", Details: "date must be YYYY-MM-DD"})
		return
	}

	ctx := c.Request.Context()
	if err := s.store.EnsureUser(ctx, userID, userID); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to register user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "storage_error"})
		return
	}

	checkup, err := s.store.CreateCheckup(ctx, userID, date, strings.TrimSpace(req.Notes), req.DocumentName)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to create checkup")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "storage_error"})
		return
	}

	c.JSON(http.StatusCreated, checkup)
}

func (s *Server) predictionError(c *gin.Context, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "validation_failed", Details: verr.Error(), Fields: verr.Fields})
	case errors.Is(err, pipeline.ErrBusy):
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "busy", Details: err.Error()})
	default:
		s.logger.Error().Err(err).Msg("Prediction failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "payload_too_large"})
		} else {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_payload", Details: err.Error()})
		}
		return nil, false
	}
	return body, true
}

func pathUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_user_id"})
		return 0, false
	}
	return userID, true
}

func optionalUserID(c *gin.Context) (int64, bool) {
	raw := c.Query("userId")
	if raw == "" {
		return 0, false
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	return userID, err == nil && userID > 0
}
