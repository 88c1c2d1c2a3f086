package portfolio

import (
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type fileRule struct {
	Portfolio      string  `yaml:"portfolio"`
	Investment     string  `yaml:"investment"`
	MinimumBalance string  `yaml:"minimum_balance"`
	WeeklyRatePct  float64 `yaml:"weekly_rate_pct"`
	DurationWeeks  int     `yaml:"duration_weeks"`
}

type rulesFile struct {
	Rules []fileRule `yaml:"rules"`
}

// LoadYAML reads a rules table of the form:
//
//	rules:
//	  - portfolio: Balanced
//	    investment: Gold Flair
//	    minimum_balance: "5000000"
//	    weekly_rate_pct: 7
//	    duration_weeks: 12
func LoadYAML(r io.Reader) (*Rules, error) {
	var f rulesFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("portfolio rules: decode: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("portfolio rules: no rules defined")
	}
	rules := make([]Rule, 0, len(f.Rules))
	for i, fr := range f.Rules {
		if fr.Portfolio == "" || fr.Investment == "" {
			return nil, fmt.Errorf("portfolio rules: entry %d missing portfolio or investment", i)
		}
		if fr.DurationWeeks <= 0 || fr.WeeklyRatePct <= 0 {
			return nil, fmt.Errorf("portfolio rules: entry %d (%s/%s) needs positive rate and duration", i, fr.Portfolio, fr.Investment)
		}
		min, err := decimal.NewFromString(fr.MinimumBalance)
		if err != nil {
			return nil, fmt.Errorf("portfolio rules: entry %d minimum_balance: %w", i, err)
		}
		rules = append(rules, Rule{
			Portfolio:      fr.Portfolio,
			Investment:     fr.Investment,
			MinimumBalance: min,
			WeeklyRatePct:  decimal.NewFromFloat(fr.WeeklyRatePct),
			DurationWeeks:  fr.DurationWeeks,
		})
	}
	return NewRules(rules), nil
}

// Load returns Default when path is empty, otherwise the YAML file at path.
func Load(path string) (*Rules, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadYAML(f)
}
