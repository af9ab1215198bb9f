package ormpack

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZones_Table(t *testing.T) {
	assert.True(t, zonesSorted(), "wire indexes depend on the table order")

	zones := Zones()
	require.Len(t, zones, len(zoneNames))
	zones[0] = "mutated"
	assert.NotEqual(t, "mutated", Zones()[0])

	for _, name := range []string{"UTC", "GMT", "Europe/Berlin", "Asia/Tokyo", "America/New_York"} {
		idx, ok := ZoneIndex(name)
		require.True(t, ok, name)
		got, ok := ZoneName(idx)
		require.True(t, ok)
		assert.Equal(t, name, got)
	}

	_, ok := ZoneIndex("Local")
	assert.False(t, ok)
	_, ok = ZoneName(-1)
	assert.False(t, ok)
	_, ok = ZoneName(len(zoneNames))
	assert.False(t, ok)
}

func TestZoneLocation(t *testing.T) {
	idx, _ := ZoneIndex("Europe/Berlin")
	a, err := zoneLocation(idx)
	require.NoError(t, err)
	b, err := zoneLocation(idx)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, "Europe/Berlin", a.String())

	_, err = zoneLocation(len(zoneNames))
	assert.ErrorIs(t, err, ErrMalformedTuple)
}

func TestZonedTime(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	in := time.Date(2021, 6, 1, 12, 30, 45, 999999999, berlin)

	idx, secs, err := zonedTime(in)
	require.NoError(t, err)
	name, _ := ZoneName(idx)
	assert.Equal(t, "Europe/Berlin", name)
	assert.Equal(t, float64(in.Unix())+0.999999, secs)

	out, err := zonedTimeFrom(int64(idx), secs)
	require.NoError(t, err)
	assert.True(t, in.Truncate(time.Microsecond).Equal(out))
	assert.Equal(t, "Europe/Berlin", out.Location().String())

	_, _, err = zonedTime(in.In(time.FixedZone("CEST", 7200)))
	assert.ErrorIs(t, err, ErrUnsupportedValue)

	_, err = zonedTimeFrom(int64(idx), math.NaN())
	assert.ErrorIs(t, err, ErrMalformedTuple)
	_, err = zonedTimeFrom(int64(idx), math.Inf(1))
	assert.ErrorIs(t, err, ErrMalformedTuple)
}
