package autotile

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/talgya/tileworld/internal/world"
)

// ErrInvalidRules wraps every rule table load error.
var ErrInvalidRules = errors.New("invalid rule table")

//go:embed rules.schema.json
var schemaSource string

var ruleSchema = jsonschema.MustCompileString("rules.schema.json", schemaSource)

// patternJSON accepts either a single name or a list of alternatives.
type patternJSON []string

func (p *patternJSON) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*p = patternJSON{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*p = many
	return nil
}

type ruleJSON struct {
	Name      string      `json:"name"`
	Self      string      `json:"self"`
	West      patternJSON `json:"west"`
	NorthWest patternJSON `json:"northwest"`
	North     patternJSON `json:"north"`
	NorthEast patternJSON `json:"northeast"`
	East      patternJSON `json:"east"`
	SouthEast patternJSON `json:"southeast"`
	South     patternJSON `json:"south"`
	SouthWest patternJSON `json:"southwest"`
	Rotations int         `json:"rotations"`
	Result    string      `json:"result"`
}

type ruleFile struct {
	Rules []ruleJSON `json:"rules"`
}

// LoadRules parses an ordered rule table. Order is preserved: earlier rules
// take precedence at match time.
func LoadRules(r io.Reader) ([]Rule, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	if err := ruleSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	var file ruleFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	rules := make([]Rule, 0, len(file.Rules))
	for i, rj := range file.Rules {
		rule, err := rj.compile()
		if err != nil {
			return nil, fmt.Errorf("%w: rule %d (%s): %v", ErrInvalidRules, i, rj.Name, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// LoadRulesFile opens path and calls LoadRules.
func LoadRulesFile(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadRules(f)
}

func (rj ruleJSON) compile() (Rule, error) {
	self, err := world.ParseBiome(rj.Self)
	if err != nil {
		return Rule{}, fmt.Errorf("self: %w", err)
	}
	rule := Rule{Name: rj.Name, Self: self, Rotations: rj.Rotations, Result: rj.Result}

	fields := [8]patternJSON{rj.West, rj.NorthWest, rj.North, rj.NorthEast, rj.East, rj.SouthEast, rj.South, rj.SouthWest}
	for d, names := range fields {
		p, err := compilePattern(names)
		if err != nil {
			return Rule{}, fmt.Errorf("%s: %w", Direction(d), err)
		}
		rule.Neighbors[d] = p
	}
	return rule, nil
}

// compilePattern turns names into a Pattern. An absent field or any "*"
// alternative is the wildcard.
func compilePattern(names patternJSON) (Pattern, error) {
	if len(names) == 0 {
		return Any(), nil
	}
	var p Pattern
	for _, n := range names {
		if n == Wildcard {
			return Any(), nil
		}
		b, err := world.ParseBiome(n)
		if err != nil {
			return Pattern{}, err
		}
		p.Biomes = append(p.Biomes, b)
	}
	return p, nil
}
