package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSetModelReplacesPrevious(t *testing.T) {
	SetModel("lightgbm", "a")
	SetModel("finetuned", "b")

	assert.Equal(t, 1, testutil.CollectAndCount(ModelInfo))
	assert.Equal(t, 1.0, testutil.ToFloat64(ModelInfo.WithLabelValues("finetuned", "b")))
}

func TestPredictionsCounter(t *testing.T) {
	before := testutil.ToFloat64(PredictionsTotal.WithLabelValues(OutcomeOK))
	PredictionsTotal.WithLabelValues(OutcomeOK).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(PredictionsTotal.WithLabelValues(OutcomeOK)))
}
