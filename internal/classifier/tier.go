package classifier

import "encoding/json"

// Tier is the complexity class assigned to a chat request. Tiers are
// totally ordered by expected cost and capability.
type Tier int

const (
	TierSimple    Tier = iota // greetings, short factual questions
	TierMedium                // light code, summarization, moderate Q&A
	TierComplex               // deep analysis, architecture, multi-step
	TierReasoning             // math proofs, formal logic, planning chains
)

var tierNames = [...]string{"SIMPLE", "MEDIUM", "COMPLEX", "REASONING"}

func (t Tier) String() string {
	if int(t) >= 0 && int(t) < len(tierNames) {
		return tierNames[t]
	}
	return "UNKNOWN"
}

// MarshalJSON implements json.Marshaler, emitting the tier's string name.
func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler, accepting either the string
// name or the raw ordinal.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var i int
		if err2 := json.Unmarshal(data, &i); err2 != nil {
			return err
		}
		*t = Tier(i)
		return nil
	}
	switch s {
	case "SIMPLE":
		*t = TierSimple
	case "MEDIUM":
		*t = TierMedium
	case "COMPLEX":
		*t = TierComplex
	case "REASONING":
		*t = TierReasoning
	default:
		*t = TierComplex
	}
	return nil
}

// Max returns the higher-cost of the two tiers.
func Max(a, b Tier) Tier {
	if b > a {
		return b
	}
	return a
}

// SelectTier maps a score to a tier using the three monotonically
// increasing boundaries (simpleMedium, mediumComplex, complexReasoning),
// returning the distance from the nearest boundary within the selected
// band for confidence calibration.
func SelectTier(score float64, boundaries [3]float64) (tier Tier, distance float64) {
	b1, b2, b3 := boundaries[0], boundaries[1], boundaries[2]
	switch {
	case score < b1:
		return TierSimple, b1 - score
	case score < b2:
		return TierMedium, min(score-b1, b2-score)
	case score < b3:
		return TierComplex, min(score-b2, b3-score)
	default:
		return TierReasoning, score - b3
	}
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
