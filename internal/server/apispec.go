package server

import (
	"net/http"

	"github.com/goliatone/go-drivalyze/internal/apidoc"
)

// buildSchema describes the routes served by the server.
func buildSchema() (map[string]any, error) {
	badRequest := []int{http.StatusBadRequest}
	return apidoc.NewBuilder(apidoc.Info{
		Title:       "Drivalyze catalog and prediction API",
		Version:     "1",
		Description: "Path parameters accept underscores in place of spaces.",
	}).
		Add(apidoc.Operation{Method: http.MethodGet, Path: "/api/brands", Summary: "List brands", Response: brandsResponse{}}).
		Add(apidoc.Operation{Method: http.MethodGet, Path: "/api/models/:brand", Summary: "List the models of a brand", Params: []string{"brand"}, Response: modelsResponse{}}).
		Add(apidoc.Operation{Method: http.MethodGet, Path: "/api/fuel-types", Summary: "List every fuel type", Response: fuelTypesResponse{}}).
		Add(apidoc.Operation{Method: http.MethodGet, Path: "/api/fuel-types/:brand/:model", Summary: "List the fuel types of a model", Params: []string{"brand", "model"}, Response: fuelTypesResponse{}}).
		Add(apidoc.Operation{Method: http.MethodGet, Path: "/api/years", Summary: "List model years and their range", Response: yearsResponse{}}).
		Add(apidoc.Operation{Method: http.MethodGet, Path: "/api/transmissions", Summary: "List transmissions", Response: transmissionsResponse{}}).
		Add(apidoc.Operation{Method: http.MethodPost, Path: "/predict", Summary: "Estimate a price", Request: predictRequest{}, Response: predictResponse{}, ErrorCodes: append(badRequest, http.StatusInternalServerError)}).
		Add(apidoc.Operation{Method: http.MethodPost, Path: "/api/reload", Summary: "Reload the dataset", Response: reloadResponse{}, ErrorCodes: []int{http.StatusInternalServerError}}).
		Add(apidoc.Operation{Method: http.MethodGet, Path: "/health", Summary: "Health check", Response: healthResponse{}}).
		Build()
}
