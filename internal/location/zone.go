package location

import (
	"fmt"

	"github.com/ringsaturn/tzf"

	"github.com/abelbrown/companion/internal/model"
)

// TZF resolves timezones offline from bundled polygon data.
type TZF struct {
	finder tzf.F
}

// NewTZF loads the default finder. Loading takes a moment; create one and share it.
func NewTZF() (*TZF, error) {
	f, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, fmt.Errorf("load timezone data: %w", err)
	}
	return &TZF{finder: f}, nil
}

func (z *TZF) Zone(c model.Coordinates) string {
	if !c.Valid() {
		return ""
	}
	return z.finder.GetTimezoneName(c.Lng, c.Lat)
}
