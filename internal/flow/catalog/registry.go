// Package catalog holds the question catalogs of every flow type.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"onboarding-flow/internal/common/errors"
	"onboarding-flow/internal/models"
	"onboarding-flow/pkg/registry"
)

// Registry resolves a flow type to its linted catalog.
type Registry struct {
	catalogs map[models.FlowType]*models.Catalog
}

// NewRegistry lints and indexes catalogs. A later catalog replaces an earlier
// one with the same flow type.
func NewRegistry(catalogs ...*models.Catalog) (*Registry, error) {
	r := &Registry{catalogs: map[models.FlowType]*models.Catalog{}}
	for _, c := range catalogs {
		if issues := Lint(c); len(issues) > 0 {
			msgs := make([]string, len(issues))
			for i, issue := range issues {
				msgs[i] = issue.String()
			}
			return nil, errors.NewCatalogInvalidError(fmt.Sprintf("%s catalog: %s", c.FlowType, strings.Join(msgs, "; ")))
		}
		r.catalogs[c.FlowType] = c
	}
	return r, nil
}

// Builtin returns the registry of the compiled-in catalogs.
func Builtin(maxChildren int) (*Registry, error) {
	return NewRegistry(Family(maxChildren), Nanny())
}

// Load returns the built-in catalogs overlaid with those from path, if set.
func Load(path string, maxChildren int) (*Registry, error) {
	catalogs := []*models.Catalog{Family(maxChildren), Nanny()}
	if path != "" {
		reg, err := registry.LoadRegistry(path)
		if err != nil {
			return nil, errors.NewCatalogInvalidError(err.Error())
		}
		for i := range reg.Catalogs {
			catalogs = append(catalogs, &reg.Catalogs[i])
		}
	}
	return NewRegistry(catalogs...)
}

// Get returns the catalog for flowType.
func (r *Registry) Get(flowType models.FlowType) (*models.Catalog, error) {
	c, ok := r.catalogs[flowType]
	if !ok {
		return nil, errors.NewFlowNotFoundError(string(flowType))
	}
	return c, nil
}

// FlowTypes lists the registered flow types in order.
func (r *Registry) FlowTypes() []models.FlowType {
	out := make([]models.FlowType, 0, len(r.catalogs))
	for ft := range r.catalogs {
		out = append(out, ft)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Export bundles every catalog for registry files.
func (r *Registry) Export(lastUpdated string) *registry.CatalogRegistry {
	out := &registry.CatalogRegistry{Version: Version, LastUpdated: lastUpdated}
	for _, ft := range r.FlowTypes() {
		out.Catalogs = append(out.Catalogs, *r.catalogs[ft])
	}
	return out
}
