package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	lagos := Point{Lat: 6.5244, Lng: 3.3792}
	abuja := Point{Lat: 9.0765, Lng: 7.3986}

	assert.Zero(t, Distance(lagos, lagos))
	assert.InDelta(t, Distance(lagos, abuja), Distance(abuja, lagos), 1e-9)
	assert.InDelta(t, 111.19, Distance(Point{0, 0}, Point{0, 1}), 0.01)
	assert.InDelta(t, 525, Distance(lagos, abuja), 10)
}

func TestPointValidate(t *testing.T) {
	assert.NoError(t, Point{Lat: 90, Lng: -180}.Validate())
	assert.Error(t, Point{Lat: 90.1, Lng: 0}.Validate())
	assert.Error(t, Point{Lat: 0, Lng: 180.5}.Validate())
}
