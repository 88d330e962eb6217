package recon

import (
	"net/http"

	"github.com/paddymills/nestbridge/pkg/config"
	apperrors "github.com/paddymills/nestbridge/pkg/errors"
)

// Resolver maps a Source system code to its Target district and remnant path
// template.
type Resolver interface {
	Resolve(system string) (config.SystemRoute, error)
}

// ConfigResolver resolves routes from the externally provisioned systems
// table in the application config.
type ConfigResolver struct {
	cfg *config.Config
}

func NewConfigResolver(cfg *config.Config) *ConfigResolver {
	return &ConfigResolver{cfg: cfg}
}

func (r *ConfigResolver) Resolve(system string) (config.SystemRoute, error) {
	route, ok := r.cfg.Route(system)
	if !ok {
		return config.SystemRoute{}, apperrors.Newf(
			apperrors.ErrSystemNotConfigured,
			http.StatusUnprocessableEntity,
			"no route for system %q", system,
		)
	}
	return route, nil
}
