package models

import "path/filepath"

// IssueConfig carries the options shared by every issuing operation.
type IssueConfig struct {
	Variant        Variant        `default:"hierarchy" enum:"${variants}"        help:"PKI layout and command set (${enum})"`
	BaseDir        string         `help:"Directory all PKI paths are resolved against. Defaults to root/ca for hierarchy and . for selfsigned" type:"path"`
	OpenSSL        string         `default:"openssl"   help:"openssl binary to invoke"                                                           name:"openssl"`
	PassphraseMode PassphraseMode `default:"env"       enum:"${passphrasemodes}" help:"How the passphrase is handed to openssl (${enum})"`
	OnFailure      FailurePolicy  `default:"continue"  enum:"${failurepolicies}" help:"What to do when an openssl step fails (${enum})"`
	DryRun         bool           `help:"Log the commands which would run without running them"`
}

// ResolvedBaseDir returns the base directory as an absolute path, applying
// the variant default. afero.BasePathFs requires an absolute base: with "."
// it rejects every relative name.
func (c IssueConfig) ResolvedBaseDir() string {
	dir := c.BaseDir
	if dir == "" {
		dir = DefaultBaseDir(c.Variant)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return abs
}
