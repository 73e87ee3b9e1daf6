package pkginfo

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jvs-project/ctverify/pkg/errclass"
	"github.com/jvs-project/ctverify/pkg/model"
)

// Descriptor describes an installed package in a YAML file. Relative paths
// are resolved against the descriptor's directory.
//
//	base: base.apk
//	splits: [split_config.arm64_v8a.apk]
//	signers: [signer.pem]
//	history: [old.pem, signer.pem]
type Descriptor struct {
	Base    string   `yaml:"base"`
	Splits  []string `yaml:"splits,omitempty"`
	Signers []string `yaml:"signers"`
	History []string `yaml:"history,omitempty"`

	dir string
}

// LoadDescriptor reads a package descriptor.
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errclass.ErrPackageInfoUnreadable.Wrap("read descriptor", err)
	}
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, errclass.ErrPackageInfoUnreadable.Wrap("parse descriptor", err)
	}
	if d.Base == "" {
		return nil, errclass.ErrPackageInfoUnreadable.WithMessagef("%s: base is required", path)
	}
	d.dir = filepath.Dir(path)
	return &d, nil
}

func (d *Descriptor) resolve(p string) string {
	if filepath.IsAbs(p) || d.dir == "" {
		return p
	}
	return filepath.Join(d.dir, p)
}

func (d *Descriptor) resolveAll(ps []string) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = d.resolve(p)
	}
	return out
}

func (d *Descriptor) SigningInfo() (model.SigningInfo, error) {
	return loadSigningInfo(d.resolveAll(d.Signers), d.resolveAll(d.History))
}

func (d *Descriptor) Archives() (string, []string, error) {
	return d.resolve(d.Base), d.resolveAll(d.Splits), nil
}
