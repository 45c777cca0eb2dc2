package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"car-price-predictor/metrics"
	"car-price-predictor/models"
	"car-price-predictor/validation"
)

// FlexFloat accepts a JSON number, a numeric string, null or "". The latter
// two leave it unset.
type FlexFloat struct {
	Value float64
	Valid bool
}

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = FlexFloat{}
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		var err error
		if s, err = strconv.Unquote(s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = FlexFloat{}
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errors.New("not a number")
	}
	*f = FlexFloat{Value: v, Valid: true}
	return nil
}

func (f FlexFloat) ptr() *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// PredictRequest is the /predict body. Missing fields are imputed.
type PredictRequest struct {
	Year         FlexFloat `json:"year"`
	Odometer     FlexFloat `json:"odometer"`
	Manufacturer string    `json:"manufacturer"`
	Model        string    `json:"model"`
	Condition    string    `json:"condition"`
	Cylinders    string    `json:"cylinders"`
	Fuel         string    `json:"fuel"`
	TitleStatus  string    `json:"title_status"`
	Transmission string    `json:"transmission"`
	Drive        string    `json:"drive"`
	Size         string    `json:"size"`
	Type         string    `json:"type"`
	PaintColor   string    `json:"paint_color"`
}

// predictInput is the validated form of a PredictRequest.
type predictInput struct {
	Year     *float64                      `json:"year" validate:"omitempty,gte=1900,lte=2100"`
	Odometer *float64                      `json:"odometer" validate:"omitempty,gte=0,lte=10000000"`
	Attrs    [models.NumCategorical]string `json:"attrs" validate:"dive,max=128"`
}

// Record converts the request into a listing record.
func (p PredictRequest) Record() models.Record {
	r := models.Record{Year: p.Year.ptr(), Odometer: p.Odometer.ptr()}
	r.Attrs = [models.NumCategorical]string{
		p.Manufacturer, p.Model, p.Condition, p.Cylinders, p.Fuel, p.TitleStatus,
		p.Transmission, p.Drive, p.Size, p.Type, p.PaintColor,
	}
	for i, a := range r.Attrs {
		r.Attrs[i] = strings.TrimSpace(a)
	}
	return r
}

// PredictResponse is the /predict reply.
type PredictResponse struct {
	PredictedPriceDollar float64 `json:"predicted_price_dollar"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.PredictionsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		s.respondError(w, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON: "+err.Error(), nil)
		return
	}

	rec := req.Record()
	if err := validation.ValidateStruct(&predictInput{Year: rec.Year, Odometer: rec.Odometer, Attrs: rec.Attrs}); err != nil {
		metrics.PredictionsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		var verr *validation.Error
		errors.As(err, &verr)
		var fields []validation.FieldError
		if verr != nil {
			fields = verr.Fields
		}
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), fields)
		return
	}

	out, err := s.predictor.Predict(r.Context(), rec)
	if err != nil {
		metrics.PredictionsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		s.logger.Error("[api] Prediction failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "PREDICTION_FAILED", "prediction failed", nil)
		return
	}
	metrics.PredictionDuration.Observe(time.Since(start).Seconds())

	outcome := metrics.OutcomeOK
	if len(out.Unseen) > 0 {
		outcome = metrics.OutcomeUnseenRemap
		for _, col := range out.Unseen {
			metrics.UnseenCategories.WithLabelValues(col).Inc()
		}
	}
	metrics.PredictionsTotal.WithLabelValues(outcome).Inc()

	s.respondJSON(w, http.StatusOK, PredictResponse{PredictedPriceDollar: out.Price})
}

// HealthResponse is the /health reply.
type HealthResponse struct {
	Status        string  `json:"status"`
	BundleID      string  `json:"bundle_id"`
	Bundle        string  `json:"bundle"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	b := s.predictor.Bundle()
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		BundleID:      b.ID.String(),
		Bundle:        b.Name(),
		UptimeSeconds: time.Since(s.started).Seconds(),
	})
}

// ModelResponse is the /model reply.
type ModelResponse struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Version    int               `json:"version"`
	Kind       string            `json:"kind"`
	CreatedAt  time.Time         `json:"created_at"`
	Schema     models.Schema     `json:"schema"`
	Evaluation models.Evaluation `json:"evaluation"`
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	b := s.predictor.Bundle()
	s.respondJSON(w, http.StatusOK, ModelResponse{
		ID:         b.ID.String(),
		Name:       b.Name(),
		Version:    b.Version,
		Kind:       b.Model.Kind(),
		CreatedAt:  b.CreatedAt,
		Schema:     b.Schema,
		Evaluation: b.Eval,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("[api] Failed to marshal JSON response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string, fields []validation.FieldError) {
	s.respondJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message, Fields: fields}})
}
