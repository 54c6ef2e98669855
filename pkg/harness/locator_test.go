package harness

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryString(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want string
	}{
		{"empty", Query{}, ":root"},
		{"test id", TestID("buttonGroup"), `testid="buttonGroup"`},
		{"test id regex", TestID(regexp.MustCompile(`baseButton-segments(Active)?`)),
			"testid=/baseButton-segments(Active)?/"},
		{"nested with nth", TestID("buttonGroup").Nth(1).TestID("baseButton-pills"),
			`testid="buttonGroup" >> nth=1 >> testid="baseButton-pills"`},
		{"has text filter", TestID("buttonGroup").HasText("Foobar"),
			`testid="buttonGroup" >> has-text="Foobar"`},
		{"text exact", TextExact("Multi selection: None"), `text-exact="Multi selection: None"`},
		{"css", CSS(".mapboxgl-canvas"), `css=.mapboxgl-canvas`},
		{"first", CSS("canvas").First(), "css=canvas >> nth=0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.String())
		})
	}
}

func TestQueryImmutable(t *testing.T) {
	base := TestID("buttonGroup")
	first := base.Nth(0)
	second := base.Nth(1)

	// deriving from a shared base must not leak steps between derived queries
	assert.Equal(t, `testid="buttonGroup"`, base.String())
	assert.Equal(t, `testid="buttonGroup" >> nth=0`, first.String())
	assert.Equal(t, `testid="buttonGroup" >> nth=1`, second.String())
}

func TestQueryComposition(t *testing.T) {
	re := regexp.MustCompile("baseButton-segments(Active)?")
	q := TestID("buttonGroup").Nth(0).TestID(re).HasText("📊 Charts")
	assert.Equal(t, `testid="buttonGroup" >> nth=0 >> testid=/baseButton-segments(Active)?/ >> has-text="📊 Charts"`, q.String())
}
