package openssl

import (
	"fmt"

	"github.com/wrouesnel/makepki/pkg/models"
)

// PassphraseEnvVar is the child environment variable used in env mode.
const PassphraseEnvVar = "MAKEPKI_PASSPHRASE"

const passPrefix = "pass:"

// Passphrase is a secret and the way it is delivered to openssl.
type Passphrase struct {
	Mode  models.PassphraseMode
	Value string
}

// Arg is the openssl pass phrase argument for -passin and -passout.
func (p Passphrase) Arg() string {
	switch p.Mode {
	case models.PassphraseModeArg:
		return passPrefix + p.Value
	case models.PassphraseModeFd:
		return fmt.Sprintf("fd:%d", firstExtraFd)
	default:
		return "env:" + PassphraseEnvVar
	}
}

// Apply attaches the secret to an invocation whose arguments use Arg.
func (p Passphrase) Apply(inv Invocation) Invocation {
	switch p.Mode {
	case models.PassphraseModeArg:
	case models.PassphraseModeFd:
		// openssl reads the first line of the descriptor.
		inv.Files = append([][]byte{[]byte(p.Value + "\n")}, inv.Files...)
	default:
		inv.Env = append(inv.Env, PassphraseEnvVar+"="+p.Value)
	}
	return inv
}

// String never reveals the secret.
func (p Passphrase) String() string {
	return fmt.Sprintf("passphrase(%s)", p.Mode)
}
