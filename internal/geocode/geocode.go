package geocode

import (
	"context"
	"errors"

	"github.com/optiroute/backend/internal/models"
)

// ErrNotFound means the provider had no match for the address.
var ErrNotFound = errors.New("geocode not found")

// Geocoder resolves a free-form postal address to coordinates. The returned
// string is the provider's normalized display name for the match.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.Location, string, error)
}
