// Package recipe holds the fixed command sequences which issue each kind of
// certificate. A recipe is pure data: running it is the issuer's job.
package recipe

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/wrouesnel/makepki/pkg/models"
)

var ErrUnsupportedSelector = errors.New("operation not supported by this variant")

const (
	rootKeyBits = "4096"
	nodeKeyBits = "2048"
	// selfSignedKeyBits applies to every key of the selfsigned variant.
	selfSignedKeyBits = "2048"

	hierarchyRootDays         = "7300"
	hierarchyIntermediateDays = "3650"
	hierarchyNodeDays         = "375"
	selfSignedDays            = "10000"
)

// Step is a single unit of work in a recipe.
type Step interface {
	StepName() string
}

// Exec is an invocation of the external tool. Args exclude the binary name.
type Exec struct {
	Name string
	Args []string
}

func (e Exec) StepName() string { return e.Name }

// Concat writes the bytes of each source, in order, to Dest.
type Concat struct {
	Name    string
	Dest    string
	Sources []string
}

func (c Concat) StepName() string { return c.Name }

// Prepare creates missing directories and openssl ca database files.
// It never overwrites anything.
type Prepare struct {
	Name        string
	Directories []string
	Databases   []string
}

func (p Prepare) StepName() string { return p.Name }

// Recipe is the ordered list of steps behind one selector.
type Recipe struct {
	Selector models.Selector
	Variant  models.Variant
	Steps    []Step
}

// Execs returns only the external invocations of the recipe, in order.
func (r Recipe) Execs() []Exec {
	execs := []Exec{}
	for _, step := range r.Steps {
		if e, ok := step.(Exec); ok {
			execs = append(execs, e)
		}
	}
	return execs
}

// Build returns the recipe for selector under variant. passArg is the openssl
// pass phrase argument (pass:..., env:... or fd:...) used for every -passin
// and -passout of the recipe.
func Build(variant models.Variant, selector models.Selector, layout models.Layout, passArg string) (Recipe, error) {
	r := Recipe{Selector: selector, Variant: variant}

	var steps []Step
	switch variant {
	case models.VariantHierarchy:
		switch selector {
		case models.SelectorRoot:
			steps = hierarchyRoot(layout, passArg)
		case models.SelectorIntermediate:
			steps = hierarchyIntermediate(layout, passArg)
		case models.SelectorNode:
			steps = hierarchyNode(layout, passArg)
		case models.SelectorInit:
			steps = initLayout(layout)
		}
	case models.VariantSelfSigned:
		switch selector {
		case models.SelectorRoot:
			steps = selfSignedRoot(layout, passArg)
		case models.SelectorNode:
			steps = selfSignedNode(layout, passArg)
		case models.SelectorInit:
			steps = initLayout(layout)
		}
	}

	if steps == nil {
		return r, errors.Wrap(ErrUnsupportedSelector, fmt.Sprintf("%s (variant %s)", selector, variant))
	}
	r.Steps = steps
	return r, nil
}

// Supports reports whether variant has a recipe for selector.
func Supports(variant models.Variant, selector models.Selector) bool {
	_, err := Build(variant, selector, models.LayoutFor(variant), "")
	return err == nil
}

func hierarchyRoot(l models.Layout, pass string) []Step {
	return []Step{
		Exec{Name: "generate root key", Args: []string{
			"genrsa", "-aes256", "-out", l.RootKey, "-passout", pass, rootKeyBits,
		}},
		Exec{Name: "self-sign root certificate", Args: []string{
			"req", "-config", l.RootConfig, "-key", l.RootKey, "-new", "-x509",
			"-days", hierarchyRootDays, "-passin", pass, "-sha256", "-extensions", "v3_ca",
			"-out", l.RootCert,
		}},
	}
}

func hierarchyIntermediate(l models.Layout, pass string) []Step {
	return []Step{
		Exec{Name: "generate intermediate key", Args: []string{
			"genrsa", "-aes256", "-out", l.IntermediateKey, "-passout", pass, rootKeyBits,
		}},
		Exec{Name: "request intermediate certificate", Args: []string{
			"req", "-config", l.IntermediateConfig, "-new", "-sha256", "-passin", pass,
			"-key", l.IntermediateKey, "-out", l.IntermediateCSR,
		}},
		Exec{Name: "sign intermediate certificate", Args: []string{
			"ca", "-config", l.RootConfig, "-extensions", "v3_intermediate_ca",
			"-days", hierarchyIntermediateDays, "-notext", "-md", "sha256", "-passin", pass,
			"-in", l.IntermediateCSR, "-out", l.IntermediateCert,
		}},
		Concat{Name: "write certificate chain", Dest: l.ChainCert, Sources: []string{
			l.IntermediateCert, l.RootCert,
		}},
	}
}

func hierarchyNode(l models.Layout, pass string) []Step {
	return []Step{
		Exec{Name: "generate node key", Args: []string{
			"genrsa", "-aes256", "-out", l.NodeKey, "-passout", pass, nodeKeyBits,
		}},
		Exec{Name: "request node certificate", Args: []string{
			"req", "-config", l.IntermediateConfig, "-key", l.NodeKey, "-new", "-sha256",
			"-out", l.NodeCSR, "-passin", pass,
		}},
		Exec{Name: "sign node certificate", Args: []string{
			"ca", "-config", l.IntermediateConfig, "-extensions", "server_cert",
			"-days", hierarchyNodeDays, "-notext", "-md", "sha256", "-passin", pass,
			"-in", l.NodeCSR, "-out", l.NodeCert,
		}},
	}
}

func selfSignedRoot(l models.Layout, pass string) []Step {
	return []Step{
		Exec{Name: "generate root key", Args: []string{
			"genrsa", "-des3", "-out", l.RootKey, "-passout", pass, selfSignedKeyBits,
		}},
		Exec{Name: "self-sign root certificate", Args: []string{
			"req", "-x509", "-new", "-key", l.RootKey, "-config", l.RootConfig,
			"-out", l.RootCert, "-days", selfSignedDays, "-passin", pass,
		}},
	}
}

// selfSignedNode signs the node directly with the root key. openssl creates
// the serial file next to the root certificate on first use.
func selfSignedNode(l models.Layout, pass string) []Step {
	return []Step{
		Exec{Name: "generate node key", Args: []string{
			"genrsa", "-des3", "-out", l.NodeKey, "-passout", pass, selfSignedKeyBits,
		}},
		Exec{Name: "request node certificate", Args: []string{
			"req", "-new", "-key", l.NodeKey, "-config", l.RootConfig,
			"-out", l.NodeCSR, "-passin", pass,
		}},
		Exec{Name: "sign node certificate", Args: []string{
			"x509", "-req", "-in", l.NodeCSR, "-CA", l.RootCert, "-CAkey", l.RootKey,
			"-CAcreateserial", "-out", l.NodeCert, "-days", selfSignedDays, "-passin", pass,
		}},
	}
}

func initLayout(l models.Layout) []Step {
	return []Step{
		Prepare{Name: "create layout", Directories: l.Directories(), Databases: l.CADatabases},
	}
}
