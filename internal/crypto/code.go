package crypto

import (
	"strings"

	"github.com/mobilauth/activation-service/internal/domain"
)

// codeAlphabet is the Base32 subset used for human-transcribable codes.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

const (
	codeGroupCount  = 4
	codeGroupLength = 5
	// ActivationCodeLength is the exact wire length including separators.
	ActivationCodeLength = codeGroupCount*codeGroupLength + codeGroupCount - 1
	// PukLength is the digit count of a recovery PUK.
	PukLength = 10
)

// GenerateActivationCode mints a fresh XXXXX-XXXXX-XXXXX-XXXXX code.
func (p *Provider) GenerateActivationCode() (string, error) {
	raw, err := p.RandomBytes(codeGroupCount * codeGroupLength)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(ActivationCodeLength)
	for i, r := range raw {
		if i > 0 && i%codeGroupLength == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(codeAlphabet[int(r)%len(codeAlphabet)])
	}
	return b.String(), nil
}

// GenerateRecoveryCode uses the activation code format for recovery codes.
func (p *Provider) GenerateRecoveryCode() (string, error) {
	return p.GenerateActivationCode()
}

// GeneratePuk mints a fixed-length numeric PUK.
func (p *Provider) GeneratePuk() (string, error) {
	raw, err := p.RandomBytes(PukLength)
	if err != nil {
		return "", err
	}
	digits := make([]byte, PukLength)
	for i, r := range raw {
		digits[i] = '0' + r%10
	}
	return string(digits), nil
}

// ValidateActivationCode enforces the protocol-mandated shape. A wrong
// length is a fatal validation error, deliberately distinguishable from a
// not-found so diagnostics never leak which codes exist.
func ValidateActivationCode(code string) error {
	if len(code) != ActivationCodeLength {
		return domain.Errf(domain.ErrInvalidRequest, "activation code must be %d characters", ActivationCodeLength)
	}
	for i := 0; i < len(code); i++ {
		if (i+1)%(codeGroupLength+1) == 0 {
			if code[i] != '-' {
				return domain.Errf(domain.ErrInvalidRequest, "malformed activation code")
			}
			continue
		}
		if !strings.ContainsRune(codeAlphabet, rune(code[i])) {
			return domain.Errf(domain.ErrInvalidRequest, "malformed activation code")
		}
	}
	return nil
}

// ValidatePuk enforces the numeric PUK shape.
func ValidatePuk(puk string) error {
	if len(puk) != PukLength {
		return domain.Errf(domain.ErrInvalidRequest, "puk must be %d digits", PukLength)
	}
	for _, c := range puk {
		if c < '0' || c > '9' {
			return domain.Errf(domain.ErrInvalidRequest, "malformed puk")
		}
	}
	return nil
}
