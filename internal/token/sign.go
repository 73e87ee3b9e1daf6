package token

import (
	"encoding/base64"

	"github.com/go-jose/go-jose/v4"

	"github.com/jvs-project/ctverify/pkg/errclass"
)

// Sign produces a compact token over payload. chain holds DER certificates,
// leaf first; it is embedded in the "x5c" header so Verify can find the key.
func Sign(payload []byte, key any, chain [][]byte, alg jose.SignatureAlgorithm) (string, error) {
	if len(chain) == 0 {
		return "", errclass.ErrMalformedToken.WithMessage("signing requires at least one certificate")
	}
	x5c := make([]string, len(chain))
	for i, der := range chain {
		x5c[i] = base64.StdEncoding.EncodeToString(der)
	}

	opts := (&jose.SignerOptions{}).WithHeader("x5c", x5c)
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: alg, Key: key}, opts)
	if err != nil {
		return "", errclass.ErrUnsupportedAlgorithm.Wrap("create signer", err)
	}
	obj, err := signer.Sign(payload)
	if err != nil {
		return "", errclass.ErrUnknown.Wrap("sign payload", err)
	}
	return obj.CompactSerialize()
}
