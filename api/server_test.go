package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"car-price-predictor/config"
	"car-price-predictor/models"
	"car-price-predictor/services"
	"car-price-predictor/utils"
)

func testServer(t *testing.T) (*Server, *models.Bundle) {
	t.Helper()
	logger := utils.NewNopLogger()

	makes := []string{"ford", "honda", "bmw"}
	var vehicles []models.Vehicle
	for i := 0; i < 120; i++ {
		v := models.Vehicle{
			Year:     float64(2000 + i%20),
			Odometer: float64(10000 + (i*7919)%150000),
		}
		for c := range v.Attrs {
			v.Attrs[c] = "x"
		}
		v.Attrs[models.Manufacturer] = makes[i%3]
		v.Price = 5000 + (v.Year-2000)*800 + float64(i%3)*2000 - v.Odometer*0.02
		vehicles = append(vehicles, v)
	}

	variant := config.DefaultVariants()[config.VariantLightGBM]
	variant.Regressor.NEstimators = 20
	variant.Regressor.MinChildSamples = 3
	medians := models.Medians{Year: 2010, Odometer: 80000, Price: 12000}

	b, err := services.NewTrainer(logger, 1).Train(context.Background(), variant, vehicles, medians, 1)
	require.NoError(t, err)

	opts := DefaultOptions()
	return NewServer(services.NewPredictor(b, logger), logger, opts), b
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const corollaJSON = `{"year":2015,"odometer":60000,"manufacturer":"toyota","model":"corolla",
"condition":"Excellent","cylinders":"4 cylinders","fuel":"gas","title_status":"clean",
"transmission":"automatic","drive":"fwd","size":"mid-size","type":"sedan","paint_color":"white"}`

func TestPredict_ExampleRecord(t *testing.T) {
	s, _ := testServer(t)
	rec := do(t, s.Routes(), http.MethodPost, "/predict", corollaJSON, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp PredictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.GreaterOrEqual(t, resp.PredictedPriceDollar, 0.0)
}

func TestPredict_StringNumbersAndBlanks(t *testing.T) {
	s, _ := testServer(t)
	h := s.Routes()

	a := do(t, h, http.MethodPost, "/predict", `{"year":"2012","odometer":"","manufacturer":"ford"}`, nil)
	require.Equal(t, http.StatusOK, a.Code, a.Body.String())
	b := do(t, h, http.MethodPost, "/predict", `{"year":2012,"odometer":null,"manufacturer":"ford"}`, nil)
	require.Equal(t, http.StatusOK, b.Code)
	assert.JSONEq(t, a.Body.String(), b.Body.String())
}

func TestPredict_BadRequests(t *testing.T) {
	s, _ := testServer(t)
	h := s.Routes()

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed", `{"year":`, "INVALID_JSON"},
		{"not a number", `{"year":"abc"}`, "INVALID_JSON"},
		{"year out of range", `{"year":1500}`, "VALIDATION_ERROR"},
		{"negative odometer", `{"odometer":-5}`, "VALIDATION_ERROR"},
		{"long category", fmt.Sprintf(`{"model":%q}`, strings.Repeat("a", 200)), "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/predict", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestHealthAndModel(t *testing.T) {
	s, b := testServer(t)
	h := s.Routes()

	rec := do(t, h, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, b.ID.String(), health.BundleID)
	assert.Equal(t, "lightgbm_v1", health.Bundle)

	rec = do(t, h, http.MethodGet, "/model", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var model ModelResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &model))
	assert.Equal(t, "gbdt", model.Kind)
	assert.Equal(t, b.Schema.Features, model.Schema.Features)
	assert.Equal(t, models.EncodingLabel, model.Schema.Encoding)
	assert.Equal(t, b.Eval.Test.Count, model.Evaluation.Test.Count)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := testServer(t)
	h := s.Routes()
	do(t, h, http.MethodPost, "/predict", corollaJSON, nil)

	rec := do(t, h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "carprice_predictions_total")
	assert.Contains(t, body, `carprice_unseen_categories_total{column="manufacturer"}`)
	assert.Contains(t, body, "carprice_model_info")
	assert.Contains(t, body, `carprice_http_requests_total{method="POST",route="/predict",status="200"}`)
}

func TestCORS(t *testing.T) {
	s, _ := testServer(t)
	h := s.Routes()

	allowed := do(t, h, http.MethodOptions, "/predict", "", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, "http://localhost:3000", allowed.Header().Get("Access-Control-Allow-Origin"))

	denied := do(t, h, http.MethodOptions, "/predict", "", map[string]string{
		"Origin":                        "http://evil.test",
		"Access-Control-Request-Method": "POST",
	})
	assert.Empty(t, denied.Header().Get("Access-Control-Allow-Origin"))
}

func TestListenAndServe_ShutsDownOnCancel(t *testing.T) {
	s, _ := testServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()
	assert.NoError(t, <-done)
}
