package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestMiddlewareLabelsByRouteTemplate(t *testing.T) {
	m := New(false)
	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/api/models/:brand", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, brand := range []string{"Tata", "Honda"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/models/"+brand, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/models/:brand", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("unmatched", "GET", "404")))
}

func TestObserveReloadAndPrediction(t *testing.T) {
	m := New(false)
	m.ObserveReload(nil, 5, 9)
	m.ObserveReload(errors.New("bad file"), 0, 0)
	m.ObservePrediction(OutcomeRejected)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.datasetBrands))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.datasetModels))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reloads.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.predictions.WithLabelValues(OutcomeRejected)))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New(true)
	m.SetDatasetSize(3, 4)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "drivalyze_dataset_brands 3"), body)
	assert.Contains(t, body, "go_goroutines")
}
