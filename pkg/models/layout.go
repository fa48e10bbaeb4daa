package models

import (
	"path/filepath"

	"github.com/samber/lo"
)

// Layout names every file a variant reads or writes, relative to the base directory.
// Entries a variant does not use are blank.
type Layout struct {
	RootConfig         string
	IntermediateConfig string

	RootKey  string
	RootCert string

	IntermediateKey  string
	IntermediateCSR  string
	IntermediateCert string
	ChainCert        string

	NodeKey  string
	NodeCSR  string
	NodeCert string

	// CADatabases are the directories holding an openssl ca index and serial file.
	CADatabases []string
}

// HierarchyLayout is the root/intermediate/node directory tree.
func HierarchyLayout() Layout {
	return Layout{
		RootConfig:         "openssl.cnf",
		IntermediateConfig: filepath.Join("intermediate", "openssl.cnf"),
		RootKey:            filepath.Join("private", "ca.key.pem"),
		RootCert:           filepath.Join("certs", "ca.cert.pem"),
		IntermediateKey:    filepath.Join("intermediate", "private", "intermediate.key.pem"),
		IntermediateCSR:    filepath.Join("intermediate", "csr", "intermediate.csr.pem"),
		IntermediateCert:   filepath.Join("intermediate", "certs", "intermediate.cert.pem"),
		ChainCert:          filepath.Join("intermediate", "certs", "ca-chain.cert.pem"),
		NodeKey:            filepath.Join("intermediate", "private", "node.key.pem"),
		NodeCSR:            filepath.Join("intermediate", "csr", "node.csr.pem"),
		NodeCert:           filepath.Join("intermediate", "certs", "node.cert.pem"),
		CADatabases:        []string{".", "intermediate"},
	}
}

// SelfSignedLayout is the flat layout of the single-level variant.
func SelfSignedLayout() Layout {
	return Layout{
		RootConfig: "openssl.cnf",
		RootKey:    "rsa_key.pem",
		RootCert:   "selfcert.crt",
		NodeKey:    "node_key.pem",
		NodeCSR:    "node.csr",
		NodeCert:   "node.crt",
	}
}

// LayoutFor returns the layout of the given variant.
func LayoutFor(variant Variant) Layout {
	if variant == VariantSelfSigned {
		return SelfSignedLayout()
	}
	return HierarchyLayout()
}

// DefaultBaseDir is the directory a variant operates in when none is configured.
func DefaultBaseDir(variant Variant) string {
	if variant == VariantSelfSigned {
		return "."
	}
	return filepath.Join("root", "ca")
}

// Files lists every non-blank file path in the layout.
func (l Layout) Files() []string {
	return lo.Compact([]string{
		l.RootConfig, l.IntermediateConfig,
		l.RootKey, l.RootCert,
		l.IntermediateKey, l.IntermediateCSR, l.IntermediateCert, l.ChainCert,
		l.NodeKey, l.NodeCSR, l.NodeCert,
	})
}

// Directories lists the distinct directories the layout's files live in,
// plus the newcerts directories openssl ca writes into.
func (l Layout) Directories() []string {
	dirs := lo.Map(l.Files(), func(item string, _ int) string {
		return filepath.Dir(item)
	})
	for _, db := range l.CADatabases {
		dirs = append(dirs, filepath.Join(db, "newcerts"))
	}
	return lo.Without(lo.Uniq(dirs), ".")
}
