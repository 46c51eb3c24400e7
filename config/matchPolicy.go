package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/match_backend/matching"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// MatchPolicySet is the default tolerance policy plus per-supplier overrides.
type MatchPolicySet struct {
	Default matching.Policy
	Vendors map[int]matching.Policy
}

// ForVendor returns the supplier's override, or the default policy.
func (s MatchPolicySet) ForVendor(supplierId int) matching.Policy {
	if p, ok := s.Vendors[supplierId]; ok {
		return p
	}
	return s.Default
}

type policyOverride struct {
	QuantityTolerancePct *float64 `yaml:"quantity_tolerance_pct" validate:"omitempty,gte=0"`
	PriceTolerance       *float64 `yaml:"price_tolerance" validate:"omitempty,gte=0"`
	TotalTolerancePct    *float64 `yaml:"total_tolerance_pct" validate:"omitempty,gte=0"`
	MinScoreForApproval  *int     `yaml:"min_score_for_approval" validate:"omitempty,gte=0,lte=100"`
}

func (o policyOverride) apply(base matching.Policy) matching.Policy {
	p := base
	if o.QuantityTolerancePct != nil {
		p.QuantityTolerancePct = decimal.NewFromFloat(*o.QuantityTolerancePct)
	}
	if o.PriceTolerance != nil {
		p.PriceTolerance = decimal.NewFromFloat(*o.PriceTolerance)
	}
	if o.TotalTolerancePct != nil {
		p.TotalTolerancePct = decimal.NewFromFloat(*o.TotalTolerancePct)
	}
	if o.MinScoreForApproval != nil {
		p.MinScoreForApproval = *o.MinScoreForApproval
	}
	return p
}

type vendorPolicy struct {
	SupplierId     int `yaml:"supplier_id" validate:"required,gt=0"`
	policyOverride `yaml:",inline"`
}

type matchPolicyFile struct {
	Default policyOverride `yaml:"default"`
	Vendors []vendorPolicy `yaml:"vendors" validate:"dive"`
}

// LoadMatchPolicySet reads the tolerances from env and, when MATCH_POLICY_FILE
// is set, layers the YAML file on top of them.
//
//   - QUANTITY_TOLERANCE_PCT (default 2)
//   - PRICE_TOLERANCE_DOLLARS (default 0.50)
//   - TOTAL_TOLERANCE_PCT (default 1)
//   - MIN_SCORE_FOR_APPROVAL (default 95)
func LoadMatchPolicySet() (MatchPolicySet, error) {
	base, err := matchPolicyFromEnv()
	if err != nil {
		return MatchPolicySet{}, err
	}

	path := strings.TrimSpace(os.Getenv("MATCH_POLICY_FILE"))
	if path == "" {
		return MatchPolicySet{Default: base, Vendors: map[int]matching.Policy{}}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return MatchPolicySet{}, fmt.Errorf("read match policy file: %w", err)
	}
	return ParseMatchPolicySet(data, base)
}

// ParseMatchPolicySet decodes a policy file. Fields missing from the default
// section inherit base; fields missing from a vendor entry inherit the default.
func ParseMatchPolicySet(data []byte, base matching.Policy) (MatchPolicySet, error) {
	var file matchPolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return MatchPolicySet{}, fmt.Errorf("decode match policy file: %w", err)
	}
	if err := validator.New().Struct(file); err != nil {
		return MatchPolicySet{}, fmt.Errorf("invalid match policy file: %w", err)
	}

	set := MatchPolicySet{
		Default: file.Default.apply(base),
		Vendors: make(map[int]matching.Policy, len(file.Vendors)),
	}
	if err := set.Default.Validate(); err != nil {
		return MatchPolicySet{}, err
	}
	for _, v := range file.Vendors {
		if _, dup := set.Vendors[v.SupplierId]; dup {
			return MatchPolicySet{}, fmt.Errorf("duplicate policy for supplier %d", v.SupplierId)
		}
		p := v.policyOverride.apply(set.Default)
		if err := p.Validate(); err != nil {
			return MatchPolicySet{}, fmt.Errorf("supplier %d: %w", v.SupplierId, err)
		}
		set.Vendors[v.SupplierId] = p
	}
	return set, nil
}

func matchPolicyFromEnv() (matching.Policy, error) {
	def := matching.DefaultPolicy()
	p := def

	var err error
	if p.QuantityTolerancePct, err = decimalFromEnv("QUANTITY_TOLERANCE_PCT", def.QuantityTolerancePct); err != nil {
		return matching.Policy{}, err
	}
	if p.PriceTolerance, err = decimalFromEnv("PRICE_TOLERANCE_DOLLARS", def.PriceTolerance); err != nil {
		return matching.Policy{}, err
	}
	if p.TotalTolerancePct, err = decimalFromEnv("TOTAL_TOLERANCE_PCT", def.TotalTolerancePct); err != nil {
		return matching.Policy{}, err
	}
	if p.MinScoreForApproval, err = strictIntFromEnv("MIN_SCORE_FOR_APPROVAL", def.MinScoreForApproval); err != nil {
		return matching.Policy{}, err
	}
	if err := p.Validate(); err != nil {
		return matching.Policy{}, err
	}
	return p, nil
}
