package server

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/goliatone/go-drivalyze"
	"github.com/goliatone/go-drivalyze/internal/metrics"
	"github.com/goliatone/go-drivalyze/pkg/dataset"
)

type errorResponse struct {
	Error string `json:"error"`
}

type brandsResponse struct {
	Brands []string `json:"brands"`
}

type modelsResponse struct {
	Models []string `json:"models"`
	Brand  string   `json:"brand"`
}

type fuelTypesResponse struct {
	FuelTypes []string `json:"fuel_types"`
	Brand     string   `json:"brand,omitempty"`
	Model     string   `json:"model,omitempty"`
}

type yearsResponse struct {
	Years     []int             `json:"years"`
	YearRange dataset.YearRange `json:"year_range"`
}

type transmissionsResponse struct {
	Transmissions []string `json:"transmissions"`
}

type predictRequest struct {
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	Year         int    `json:"year"`
	FuelType     string `json:"fuel_type"`
	Transmission string `json:"transmission"`
}

type predictResponse struct {
	PredictedPrice float64 `json:"predicted_price"`
	Brand          string  `json:"brand"`
	Model          string  `json:"model"`
	Year           int     `json:"year"`
	FuelType       string  `json:"fuel_type"`
	Transmission   string  `json:"transmission"`
}

type reloadResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	BrandsCount int    `json:"brands_count,omitempty"`
	ModelsCount int    `json:"models_count,omitempty"`
}

type healthResponse struct {
	Status        string `json:"status"`
	ModelLoaded   bool   `json:"model_loaded"`
	DatasetLoaded bool   `json:"dataset_info_loaded"`
	BrandsCount   int    `json:"brands_count"`
	ModelsCount   int    `json:"models_count"`
	Engine        string `json:"pricing_engine"`
}

// pathValue reads a path parameter; clients may send spaces as underscores.
func pathValue(c *gin.Context, name string) string {
	return strings.ReplaceAll(c.Param(name), "_", " ")
}

func (s *Server) handleBrands(c *gin.Context) {
	c.JSON(http.StatusOK, brandsResponse{Brands: orEmpty(s.source.Current().Brands)})
}

func (s *Server) handleModels(c *gin.Context) {
	brand := pathValue(c, "brand")
	c.JSON(http.StatusOK, modelsResponse{
		Models: orEmpty(s.source.Current().Models(brand)),
		Brand:  brand,
	})
}

func (s *Server) handleFuelTypes(c *gin.Context) {
	c.JSON(http.StatusOK, fuelTypesResponse{FuelTypes: orEmpty(s.source.Current().FuelTypes)})
}

func (s *Server) handleFuelTypesFor(c *gin.Context) {
	brand, model := pathValue(c, "brand"), pathValue(c, "model")
	c.JSON(http.StatusOK, fuelTypesResponse{
		FuelTypes: orEmpty(s.source.Current().FuelTypesFor(brand, model)),
		Brand:     brand,
		Model:     model,
	})
}

func (s *Server) handleYears(c *gin.Context) {
	ds := s.source.Current()
	years := ds.Years
	if years == nil {
		years = []int{}
	}
	c.JSON(http.StatusOK, yearsResponse{Years: years, YearRange: ds.YearRange})
}

func (s *Server) handleTransmissions(c *gin.Context) {
	c.JSON(http.StatusOK, transmissionsResponse{Transmissions: orEmpty(s.source.Current().Transmissions)})
}

func (s *Server) handleSchema(c *gin.Context) {
	c.JSON(http.StatusOK, s.schema)
}

func (s *Server) handleHealth(c *gin.Context) {
	ds := s.source.Current()
	stats := ds.Stats()
	c.JSON(http.StatusOK, healthResponse{
		Status:        "healthy",
		ModelLoaded:   s.estimator != nil,
		DatasetLoaded: ds != nil,
		BrandsCount:   stats.Brands,
		ModelsCount:   stats.Models,
		Engine:        s.estimator.Engine(),
	})
}

func (s *Server) handleReload(c *gin.Context) {
	err := s.source.Reload()
	s.ObserveReload(err)
	if err != nil {
		s.logger.Warn("dataset reload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, reloadResponse{
			Status:  "error",
			Message: "Failed to reload dataset",
		})
		return
	}
	stats := s.source.Current().Stats()
	c.JSON(http.StatusOK, reloadResponse{
		Status:      "success",
		Message:     "Dataset reloaded successfully",
		BrandsCount: stats.Brands,
		ModelsCount: stats.Models,
	})
}

// ObserveReload records a reload outcome, whichever path triggered it.
func (s *Server) ObserveReload(err error) {
	if s.metrics == nil {
		return
	}
	stats := s.source.Current().Stats()
	s.metrics.ObserveReload(err, stats.Brands, stats.Models)
}

// predictFields is the order in which missing fields are reported.
var predictFields = []string{"brand", "model", "year", "fuel_type", "transmission"}

func (s *Server) handlePredict(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		s.reject(c, "Request body must be a JSON object")
		return
	}
	for _, field := range predictFields {
		if !present(body[field]) {
			s.reject(c, fmt.Sprintf("Missing required field: %s", field))
			return
		}
	}
	year, ok := parseYear(body["year"])
	if !ok {
		s.reject(c, fmt.Sprintf("Invalid year: %v", body["year"]))
		return
	}
	sel := drivalyze.Selection{
		Brand:        text(body["brand"]),
		Model:        text(body["model"]),
		FuelType:     text(body["fuel_type"]),
		Year:         year,
		Transmission: text(body["transmission"]),
	}

	ds := s.source.Current()
	switch {
	case !ds.HasBrand(sel.Brand):
		s.reject(c, fmt.Sprintf("Brand %q not found in dataset", sel.Brand))
		return
	case !ds.HasModel(sel.Brand, sel.Model):
		s.reject(c, fmt.Sprintf("Model %q not found for brand %q", sel.Model, sel.Brand))
		return
	case !ds.YearRange.Contains(sel.Year):
		s.reject(c, fmt.Sprintf("Year %d is out of valid range (%d-%d)", sel.Year, ds.YearRange.Min, ds.YearRange.Max))
		return
	case !ds.HasFuelType(sel.FuelType):
		s.reject(c, fmt.Sprintf("Fuel type %q not found in dataset", sel.FuelType))
		return
	case !ds.HasTransmission(sel.Transmission):
		s.reject(c, fmt.Sprintf("Transmission %q not found in dataset", sel.Transmission))
		return
	}

	price, err := s.estimator.Estimate(sel)
	if err != nil {
		s.logger.Error("prediction failed", zap.Error(err))
		s.observePrediction(metrics.OutcomeFailed)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "Prediction error: " + err.Error()})
		return
	}
	s.observePrediction(metrics.OutcomeOK)
	c.JSON(http.StatusOK, predictResponse{
		PredictedPrice: price,
		Brand:          sel.Brand,
		Model:          sel.Model,
		Year:           sel.Year,
		FuelType:       sel.FuelType,
		Transmission:   sel.Transmission,
	})
}

func (s *Server) reject(c *gin.Context, message string) {
	s.observePrediction(metrics.OutcomeRejected)
	c.JSON(http.StatusBadRequest, errorResponse{Error: message})
}

func (s *Server) observePrediction(outcome string) {
	if s.metrics != nil {
		s.metrics.ObservePrediction(outcome)
	}
}

// present treats null, empty strings, zero and false as missing.
func present(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case float64:
		return v != 0
	case bool:
		return v
	default:
		return true
	}
}

func text(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// parseYear accepts whole JSON numbers and numeric strings.
func parseYear(value any) (int, bool) {
	switch v := value.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case string:
		year, err := strconv.Atoi(strings.TrimSpace(v))
		return year, err == nil
	default:
		return 0, false
	}
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
