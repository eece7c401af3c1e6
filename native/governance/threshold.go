package governance

// Percentage is an integer-encoded fixed-point percentage with basis-point
// precision scaled 4x: 40_000 represents 100%. Mirrors
// `Percentage<u16>` in original_source/rs/nx-gov-main/src/types.rs, the
// precision the Rust source actually wires up (`PercentagePrecision = u16`).
type Percentage uint16

const fullPercentage Percentage = 40_000

// PercentFromWhole builds a Percentage from a whole-number percent, e.g.
// PercentFromWhole(20) == 20%.
func PercentFromWhole(percent uint8) Percentage {
	return Percentage(uint16(percent) * 400)
}

// PercentFromBasisPoints builds a Percentage from basis points (1/100 of a
// percent), e.g. PercentFromBasisPoints(2000) == 20%.
func PercentFromBasisPoints(basisPoints uint16) Percentage {
	return Percentage(basisPoints * 4)
}

// PercentFromRate builds a Percentage from a fractional rate in [0,1], e.g.
// PercentFromRate(0.2) == 20%. Values outside [0,1] saturate.
func PercentFromRate(rate float64) Percentage {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	scaled := rate * float64(fullPercentage)
	if scaled > float64(^uint16(0)) {
		return Percentage(^uint16(0))
	}
	return Percentage(uint16(scaled))
}

// IsValid reports whether the percentage is within [0, 100%].
func (p Percentage) IsValid() bool {
	return p <= fullPercentage
}

// ProposalPassingThreshold is the {quorum, pass_rate} pair a Validator
// assigns to a proposal. Mirrors ProposalPassingThreshold in
// original_source/rs/nx-gov-main/src/types.rs.
type ProposalPassingThreshold struct {
	Quorum           Percentage `json:"quorum"`
	PassingThreshold Percentage `json:"passingThreshold"`
}

// DefaultPassingThreshold mirrors the Rust Default impl: 20% quorum, 20%
// passing threshold.
func DefaultPassingThreshold() ProposalPassingThreshold {
	return ProposalPassingThreshold{
		Quorum:           PercentFromWhole(20),
		PassingThreshold: PercentFromWhole(20),
	}
}

// IsValid reports whether both components are within [0, 100%].
func (t ProposalPassingThreshold) IsValid() bool {
	return t.Quorum.IsValid() && t.PassingThreshold.IsValid()
}

// AllFieldsGTE reports whether both components are at least as strict as
// the supplied minimums (used to enforce config.min_passing_threshold).
func (t ProposalPassingThreshold) AllFieldsGTE(min ProposalPassingThreshold) bool {
	return t.Quorum >= min.Quorum && t.PassingThreshold >= min.PassingThreshold
}
