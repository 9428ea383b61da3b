package pipeline

import (
	"errors"
	"testing"
)

func TestCriteriaNormalize(t *testing.T) {
	t.Run("trims and keeps order", func(t *testing.T) {
		c := Criteria{Keywords: []string{" cooking ", "", "asmr"}}
		if err := c.Normalize(); err != nil {
			t.Fatal(err)
		}
		if len(c.Keywords) != 2 || c.Keywords[0] != "cooking" || c.Keywords[1] != "asmr" {
			t.Errorf("keywords = %v", c.Keywords)
		}
		if c.Platform != PlatformAll {
			t.Errorf("platform default = %q", c.Platform)
		}
		if c.MaxResultsPerKeyword != 50 {
			t.Errorf("breadth default = %d", c.MaxResultsPerKeyword)
		}
	})

	t.Run("rejects empty keywords", func(t *testing.T) {
		for _, kws := range [][]string{nil, {}, {"", "  "}} {
			c := Criteria{Keywords: kws}
			if err := c.Normalize(); !errors.Is(err, ErrInvalidCriteria) {
				t.Errorf("Normalize(%v) = %v, want ErrInvalidCriteria", kws, err)
			}
		}
	})

	t.Run("clamps limits", func(t *testing.T) {
		c := Criteria{
			Keywords:             []string{"x"},
			MaxAgeDays:           -1,
			MinViews:             -5,
			MaxResultsPerKeyword: 500,
			MaxPerChannel:        99,
			Platform:             "YouTube",
		}
		if err := c.Normalize(); err != nil {
			t.Fatal(err)
		}
		if c.MaxAgeDays != 0 || c.MinViews != 0 {
			t.Errorf("negatives not clamped: %+v", c)
		}
		if c.MaxResultsPerKeyword != 50 || c.MaxPerChannel != 50 {
			t.Errorf("breadth not clamped: %d/%d", c.MaxResultsPerKeyword, c.MaxPerChannel)
		}
		if c.Platform != "youtube" {
			t.Errorf("platform not lowered: %q", c.Platform)
		}
	})
}
