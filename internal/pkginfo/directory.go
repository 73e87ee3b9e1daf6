package pkginfo

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/jvs-project/ctverify/pkg/errclass"
	"github.com/jvs-project/ctverify/pkg/model"
	"github.com/jvs-project/ctverify/pkg/pathutil"
)

// BaseArchiveName is the base archive file inside a package directory.
const BaseArchiveName = "base.apk"

// SplitArchivePattern matches split archive files inside a package directory.
const SplitArchivePattern = "split_*.apk"

// Directory is an installed package laid out as on device: base.apk plus any
// split_*.apk next to it. Signing certificates come from PEM files.
type Directory struct {
	Dir         string
	SignerCerts []string
	// HistoryCerts is the rotation lineage, oldest first. Optional.
	HistoryCerts []string
}

// NewDirectory returns a Directory source for dir signed by the certificates
// in signerCerts.
func NewDirectory(dir string, signerCerts ...string) *Directory {
	return &Directory{Dir: dir, SignerCerts: signerCerts}
}

func (d *Directory) SigningInfo() (model.SigningInfo, error) {
	return loadSigningInfo(d.SignerCerts, d.HistoryCerts)
}

func (d *Directory) Archives() (string, []string, error) {
	info, err := os.Stat(d.Dir)
	if err != nil {
		return "", nil, errclass.ErrPackageInfoUnreadable.Wrap("package directory", err)
	}
	if !info.IsDir() {
		return "", nil, errclass.ErrPackageInfoUnreadable.WithMessagef("%s is not a directory", d.Dir)
	}

	base := filepath.Join(d.Dir, BaseArchiveName)
	splits, err := filepath.Glob(filepath.Join(d.Dir, SplitArchivePattern))
	if err != nil {
		return "", nil, errclass.ErrPackageInfoUnreadable.Wrap("list splits", err)
	}
	sort.Strings(splits)

	for _, p := range append([]string{base}, splits...) {
		if err := pathutil.WithinRoot(d.Dir, p); err != nil {
			return "", nil, errclass.ErrPackageInfoUnreadable.Wrap("", err)
		}
	}
	return base, splits, nil
}

func loadSigningInfo(signerFiles, historyFiles []string) (model.SigningInfo, error) {
	if len(signerFiles) == 0 {
		return model.SigningInfo{}, errclass.ErrPackageInfoUnreadable.WithMessage("no signer certificate configured")
	}
	signers, err := LoadCertificates(signerFiles...)
	if err != nil {
		return model.SigningInfo{}, err
	}
	var history [][]byte
	if len(historyFiles) > 0 {
		history, err = LoadCertificates(historyFiles...)
		if err != nil {
			return model.SigningInfo{}, err
		}
	}
	return model.SigningInfo{Signers: signers, History: history}, nil
}

// Files names the archives and certificate files of a package explicitly.
type Files struct {
	Base         string
	Splits       []string
	SignerCerts  []string
	HistoryCerts []string
}

func (f *Files) SigningInfo() (model.SigningInfo, error) {
	return loadSigningInfo(f.SignerCerts, f.HistoryCerts)
}

func (f *Files) Archives() (string, []string, error) {
	return f.Base, append([]string(nil), f.Splits...), nil
}
