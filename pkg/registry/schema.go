// pkg/registry/schema.go
package registry

import "onboarding-flow/internal/models"

// CatalogRegistry is the on-disk bundle of question catalogs.
type CatalogRegistry struct {
	Version     string           `json:"version" yaml:"version"`
	LastUpdated string           `json:"lastUpdated" yaml:"lastUpdated"`
	Catalogs    []models.Catalog `json:"catalogs" yaml:"catalogs"`
}

// Catalog returns the catalog for flowType.
func (r *CatalogRegistry) Catalog(flowType models.FlowType) (*models.Catalog, bool) {
	for i := range r.Catalogs {
		if r.Catalogs[i].FlowType == flowType {
			return &r.Catalogs[i], true
		}
	}
	return nil, false
}
