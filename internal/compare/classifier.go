// Package compare checks the code files of installed archives against a
// transparency manifest.
package compare

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jvs-project/ctverify/pkg/config"
	"github.com/jvs-project/ctverify/pkg/errclass"
	"github.com/jvs-project/ctverify/pkg/model"
)

// Classifier maps entry names to code file kinds by suffix.
type Classifier struct {
	rules []config.ClassifierRule
}

// NewClassifier builds a classifier from rules. The first matching rule wins.
// An empty rule set falls back to config.DefaultRules.
func NewClassifier(rules []config.ClassifierRule) (*Classifier, error) {
	if len(rules) == 0 {
		rules = config.DefaultRules()
	}
	c := &Classifier{rules: make([]config.ClassifierRule, 0, len(rules))}
	for _, r := range rules {
		if r.Suffix == "" {
			return nil, errclass.ErrConfigInvalid.WithMessage("classifier rule has empty suffix")
		}
		if !r.Kind.Valid() {
			return nil, errclass.ErrConfigInvalid.WithMessagef("classifier rule %q: unknown kind %q", r.Suffix, r.Kind)
		}
		c.rules = append(c.rules, config.ClassifierRule{Suffix: norm.NFC.String(r.Suffix), Kind: r.Kind})
	}
	return c, nil
}

// Classify returns the kind of the entry called name, or false when the entry
// is not a code file.
func (c *Classifier) Classify(name string) (model.FileKind, bool) {
	for _, r := range c.rules {
		if strings.HasSuffix(name, r.Suffix) {
			return r.Kind, true
		}
	}
	return "", false
}
