package tvdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEpisode_AirInstant(t *testing.T) {
	ep := Episode{AirDate: time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)}
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		ny = time.FixedZone("EDT", -4*3600)
	}

	tests := []struct {
		airsTime string
		loc      *time.Location
		want     time.Time
	}{
		{"21:00", time.UTC, time.Date(2024, 6, 5, 21, 0, 0, 0, time.UTC)},
		{"9:30 PM", time.UTC, time.Date(2024, 6, 5, 21, 30, 0, 0, time.UTC)},
		{"", nil, time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)},
		{"garbage", time.UTC, time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)},
		{"20:00", ny, time.Date(2024, 6, 5, 20, 0, 0, 0, ny)},
	}
	for _, tt := range tests {
		t.Run(tt.airsTime, func(t *testing.T) {
			assert.True(t, tt.want.Equal(ep.AirInstant(tt.airsTime, tt.loc)))
		})
	}
}

func TestEpisode_Aired(t *testing.T) {
	assert.False(t, Episode{}.Aired())
	assert.True(t, Episode{AirDate: time.Now()}.Aired())
}
