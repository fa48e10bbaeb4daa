package models

import (
	"github.com/samber/lo"
)

// Variant selects the PKI layout and the command recipes used to populate it.
type Variant string

const (
	// VariantHierarchy is the root -> intermediate -> node CA hierarchy.
	VariantHierarchy Variant = "hierarchy"
	// VariantSelfSigned is the single-level layout where nodes are signed
	// directly by a self-signed root.
	VariantSelfSigned Variant = "selfsigned"
)

var variantNames = []string{string(VariantHierarchy), string(VariantSelfSigned)} //nolint:gochecknoglobals

// VariantNames lists the accepted Variant values.
func VariantNames() []string { return variantNames[:] }

func (v Variant) String() string { return string(v) }

func (v Variant) IsValid() bool { return lo.Contains(variantNames, string(v)) }

// Selector is an operation requested on the command line.
type Selector string

const (
	SelectorRoot         Selector = "root"
	SelectorIntermediate Selector = "intermediate"
	SelectorNode         Selector = "node"
	SelectorInit         Selector = "init"
)

var selectorNames = []string{ //nolint:gochecknoglobals
	string(SelectorRoot), string(SelectorIntermediate), string(SelectorNode), string(SelectorInit),
}

// SelectorNames lists every selector in flag declaration order.
func SelectorNames() []string { return selectorNames[:] }

func (s Selector) String() string { return string(s) }

func (s Selector) IsValid() bool { return lo.Contains(selectorNames, string(s)) }

// Prompts reports whether the operation asks the operator for a passphrase.
func (s Selector) Prompts() bool {
	return s != SelectorInit
}

// PassphraseMode is how a passphrase reaches the external tool.
type PassphraseMode string

const (
	// PassphraseModeEnv exports the passphrase to the child environment only.
	PassphraseModeEnv PassphraseMode = "env"
	// PassphraseModeFd writes the passphrase to a pipe handed to the child.
	PassphraseModeFd PassphraseMode = "fd"
	// PassphraseModeArg puts the passphrase on the command line as pass:<value>.
	// It is visible in process listings.
	PassphraseModeArg PassphraseMode = "arg"
)

var passphraseModeNames = []string{ //nolint:gochecknoglobals
	string(PassphraseModeEnv), string(PassphraseModeFd), string(PassphraseModeArg),
}

func PassphraseModeNames() []string { return passphraseModeNames[:] }

func (m PassphraseMode) String() string { return string(m) }

func (m PassphraseMode) IsValid() bool { return lo.Contains(passphraseModeNames, string(m)) }

// FailurePolicy decides what happens when a step fails.
type FailurePolicy string

const (
	// FailurePolicyContinue logs the failure and runs the next step.
	FailurePolicyContinue FailurePolicy = "continue"
	// FailurePolicyAbort stops at the first failed step.
	FailurePolicyAbort FailurePolicy = "abort"
)

var failurePolicyNames = []string{string(FailurePolicyContinue), string(FailurePolicyAbort)} //nolint:gochecknoglobals

func FailurePolicyNames() []string { return failurePolicyNames[:] }

func (p FailurePolicy) String() string { return string(p) }

func (p FailurePolicy) IsValid() bool { return lo.Contains(failurePolicyNames, string(p)) }
