// Package pkginfo supplies what the platform knows about an installed
// package: where its archives live and which certificates signed it.
package pkginfo

import (
	"fmt"
	"os"

	"github.com/sigstore/sigstore/pkg/cryptoutils"

	"github.com/jvs-project/ctverify/pkg/errclass"
	"github.com/jvs-project/ctverify/pkg/model"
)

// PackageSource locates an installed package.
type PackageSource interface {
	// SigningInfo returns the package signers and rotation history.
	SigningInfo() (model.SigningInfo, error)
	// Archives returns the base archive path and the split archive paths.
	Archives() (base string, splits []string, err error)
}

// Static is a PackageSource whose answers are fixed up front.
type Static struct {
	Base   string
	Splits []string
	Info   model.SigningInfo
	// Err, when set, is returned by SigningInfo.
	Err error
}

func (s Static) SigningInfo() (model.SigningInfo, error) {
	if s.Err != nil {
		return model.SigningInfo{}, s.Err
	}
	return s.Info, nil
}

func (s Static) Archives() (string, []string, error) {
	return s.Base, append([]string(nil), s.Splits...), nil
}

// LoadCertificates reads every PEM certificate in files and returns their DER
// encodings in file order.
func LoadCertificates(files ...string) ([][]byte, error) {
	var out [][]byte
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, errclass.ErrPackageInfoUnreadable.Wrap("read certificate", err)
		}
		certs, err := cryptoutils.UnmarshalCertificatesFromPEM(data)
		if err != nil {
			return nil, errclass.ErrPackageInfoUnreadable.Wrap(fmt.Sprintf("parse certificate %s", f), err)
		}
		if len(certs) == 0 {
			return nil, errclass.ErrPackageInfoUnreadable.WithMessagef("no certificate in %s", f)
		}
		for _, c := range certs {
			out = append(out, c.Raw)
		}
	}
	return out, nil
}
