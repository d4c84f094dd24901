package domain

import "strings"

// SignatureFactor is a single authentication factor.
type SignatureFactor int

const (
	FactorPossession SignatureFactor = iota + 1
	FactorKnowledge
	FactorBiometry
)

// SignatureType names a factor combination accepted on the wire.
type SignatureType string

const (
	SignaturePossession                  SignatureType = "POSSESSION"
	SignatureKnowledge                   SignatureType = "KNOWLEDGE"
	SignatureBiometry                    SignatureType = "BIOMETRY"
	SignaturePossessionKnowledge         SignatureType = "POSSESSION_KNOWLEDGE"
	SignaturePossessionBiometry          SignatureType = "POSSESSION_BIOMETRY"
	SignaturePossessionKnowledgeBiometry SignatureType = "POSSESSION_KNOWLEDGE_BIOMETRY"
)

// ParseSignatureType normalizes a wire value. Unrecognized values fall back
// to the strongest composite; the second return value tells the caller the
// fallback fired so the decision can be logged as a configuration error.
func ParseSignatureType(raw string) (SignatureType, bool) {
	switch SignatureType(strings.ToUpper(strings.TrimSpace(raw))) {
	case SignaturePossession:
		return SignaturePossession, true
	case SignatureKnowledge:
		return SignatureKnowledge, true
	case SignatureBiometry:
		return SignatureBiometry, true
	case SignaturePossessionKnowledge:
		return SignaturePossessionKnowledge, true
	case SignaturePossessionBiometry:
		return SignaturePossessionBiometry, true
	case SignaturePossessionKnowledgeBiometry:
		return SignaturePossessionKnowledgeBiometry, true
	default:
		return SignaturePossessionKnowledgeBiometry, false
	}
}

// Factors decomposes the type into its ordered factor list.
func (t SignatureType) Factors() []SignatureFactor {
	switch t {
	case SignaturePossession:
		return []SignatureFactor{FactorPossession}
	case SignatureKnowledge:
		return []SignatureFactor{FactorKnowledge}
	case SignatureBiometry:
		return []SignatureFactor{FactorBiometry}
	case SignaturePossessionKnowledge:
		return []SignatureFactor{FactorPossession, FactorKnowledge}
	case SignaturePossessionBiometry:
		return []SignatureFactor{FactorPossession, FactorBiometry}
	case SignaturePossessionKnowledgeBiometry:
		return []SignatureFactor{FactorPossession, FactorKnowledge, FactorBiometry}
	default:
		return nil
	}
}
