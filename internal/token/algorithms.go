package token

import (
	"strings"

	"github.com/go-jose/go-jose/v4"

	"github.com/jvs-project/ctverify/pkg/errclass"
)

// publicKeyAlgorithms are the JWS algorithms whose signatures a certificate
// can verify. HMAC and "none" are never allowed.
var publicKeyAlgorithms = map[jose.SignatureAlgorithm]bool{
	jose.RS256: true, jose.RS384: true, jose.RS512: true,
	jose.PS256: true, jose.PS384: true, jose.PS512: true,
	jose.ES256: true, jose.ES384: true, jose.ES512: true,
	jose.EdDSA: true,
}

// ParseAlgorithms turns configured names into an allow-list.
func ParseAlgorithms(names []string) ([]jose.SignatureAlgorithm, error) {
	if len(names) == 0 {
		return nil, errclass.ErrUnsupportedAlgorithm.WithMessage("empty algorithm allow-list")
	}
	out := make([]jose.SignatureAlgorithm, 0, len(names))
	seen := make(map[jose.SignatureAlgorithm]bool, len(names))
	for _, name := range names {
		alg := jose.SignatureAlgorithm(strings.TrimSpace(name))
		if alg == jose.EdDSA || strings.EqualFold(string(alg), string(jose.EdDSA)) {
			alg = jose.EdDSA
		} else {
			alg = jose.SignatureAlgorithm(strings.ToUpper(string(alg)))
		}
		if !publicKeyAlgorithms[alg] {
			return nil, errclass.ErrUnsupportedAlgorithm.WithMessagef("%q cannot be verified with a certificate", name)
		}
		if !seen[alg] {
			seen[alg] = true
			out = append(out, alg)
		}
	}
	return out, nil
}
