package chorus

import (
	"errors"
	"fmt"

	"github.com/casualjim/chorus/api"
	"github.com/casualjim/chorus/provider/models"
)

type Model = api.Model

// Resolve looks up every name in the model registry, keeping their order.
// Unknown names are reported together.
func Resolve(names ...string) ([]Model, error) {
	var (
		resolved = make([]Model, 0, len(names))
		errs     []error
	)
	for _, name := range names {
		m, ok := models.Get(name)
		if !ok {
			errs = append(errs, fmt.Errorf("unknown model %q", name))
			continue
		}
		resolved = append(resolved, m)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return resolved, nil
}
