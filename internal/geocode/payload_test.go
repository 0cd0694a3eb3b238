package geocode

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantExif bool
		wantOK   bool
		wantLat  float64
	}{
		{"own fields", `{"latitude":40.5,"longitude":-74}`, false, true, 40.5},
		{"aliases", `{"lat":"1.5","lng":2}`, false, true, 1.5},
		{"exif object", `{"exif":{"latitude":39.9,"longitude":116.4},"latitude":1,"longitude":2}`, true, true, 39.9},
		{"null exif falls back", `{"exif":null,"latitude":3,"longitude":4}`, false, true, 3},
		{"string exif has no coordinates", `{"exif":"raw","latitude":3,"longitude":4}`, true, false, 0},
		{"array exif has no coordinates", `{"exif":[1,2],"latitude":3,"longitude":4}`, true, false, 0},
		{"number exif has no coordinates", `{"exif":7,"lat":3,"lng":4}`, true, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Payload
			require.NoError(t, json.Unmarshal([]byte(tt.body), &p))
			assert.Equal(t, tt.wantExif, p.Exif != nil)

			c, ok := p.Coordinates()
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.wantLat, c.Latitude, 1e-9)
			}
		})
	}
}

func TestPayloadUnmarshalRejectsBrokenJSON(t *testing.T) {
	var p Payload
	assert.Error(t, json.Unmarshal([]byte(`{"exif":`), &p))
}
