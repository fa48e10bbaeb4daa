package entrypoint_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/wrouesnel/makepki/internal/entrypoint"

	. "gopkg.in/check.v1"
)

// Hook up gocheck into the "go test" runner.
func Test(t *testing.T) { TestingT(t) }

// fakeOpenSSL appends its arguments to $FAKE_OPENSSL_LOG, writes
// "<subcommand>:<path>" to every -out file and fails when its subcommand
// equals $FAKE_OPENSSL_FAIL.
const fakeOpenSSL = `#!/bin/sh
printf '%s\n' "$*" >> "$FAKE_OPENSSL_LOG"
if [ -n "$MAKEPKI_PASSPHRASE" ]; then printf '%s\n' "$MAKEPKI_PASSPHRASE" >> "$FAKE_OPENSSL_LOG.env"; fi
if [ "$1" = "$FAKE_OPENSSL_FAIL" ]; then exit 1; fi
prev=""
for arg in "$@"; do
  if [ "$prev" = "-out" ]; then printf '%s:%s\n' "$1" "$arg" > "$arg"; fi
  prev="$arg"
done
exit 0
`

type FunctionalSuite struct {
	dir     string
	origDir string
	binary  string
	log     string
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
}

var _ = Suite(&FunctionalSuite{})

func (s *FunctionalSuite) SetUpSuite(c *C) {
	var err error
	s.origDir, err = os.Getwd()
	c.Assert(err, IsNil)
}

func (s *FunctionalSuite) TearDownSuite(c *C) {
	c.Assert(os.Chdir(s.origDir), IsNil)
}

func (s *FunctionalSuite) SetUpTest(c *C) {
	s.dir = c.MkDir()
	c.Assert(os.Chdir(s.dir), IsNil)

	toolDir := c.MkDir()
	s.binary = filepath.Join(toolDir, "openssl")
	c.Assert(os.WriteFile(s.binary, []byte(fakeOpenSSL), os.FileMode(0755)), IsNil)
	s.log = filepath.Join(toolDir, "calls.log")
	c.Assert(os.Setenv("FAKE_OPENSSL_LOG", s.log), IsNil)
	c.Assert(os.Setenv("FAKE_OPENSSL_FAIL", ""), IsNil)

	s.stdout = &bytes.Buffer{}
	s.stderr = &bytes.Buffer{}
}

func (s *FunctionalSuite) run(stdin string, args ...string) error {
	return entrypoint.Entrypoint(args, s.stdout, s.stderr, io.NopCloser(strings.NewReader(stdin)))
}

func (s *FunctionalSuite) issue(stdin string, args ...string) error {
	return s.run(stdin, append([]string{"--openssl=" + s.binary, "--log-level=debug"}, args...)...)
}

func (s *FunctionalSuite) calls(c *C) []string {
	content, err := os.ReadFile(s.log)
	if os.IsNotExist(err) {
		return []string{}
	}
	c.Assert(err, IsNil)
	return strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
}

func (s *FunctionalSuite) subcommands(c *C) []string {
	result := []string{}
	for _, call := range s.calls(c) {
		result = append(result, strings.SplitN(call, " ", 2)[0])
	}
	return result
}

func (s *FunctionalSuite) TestHelp(c *C) {
	err := s.run("", "--help")
	c.Assert(err, IsNil)
	c.Assert(entrypoint.ExitCode(err), Equals, entrypoint.ExitOK)
	c.Assert(s.stdout.String(), Matches, "(?s).*--root.*--intermediate.*--node.*")
	c.Assert(s.calls(c), HasLen, 0)

	s.stdout.Reset()
	c.Assert(s.run("", "-h", "--root"), IsNil)
	c.Assert(s.stdout.String(), Matches, "(?s)Usage: makepki.*")
	c.Assert(s.calls(c), HasLen, 0)
}

func (s *FunctionalSuite) TestNoOperation(c *C) {
	err := s.run("")
	c.Assert(errors.Is(err, entrypoint.ErrUsage), Equals, true)
	c.Assert(entrypoint.ExitCode(err), Equals, entrypoint.ExitUsage)
	c.Assert(s.stdout.String(), Matches, "(?s).*Usage: makepki.*")

	s.stdout.Reset()
	err = s.run("", "--on-failure=abort")
	c.Assert(entrypoint.ExitCode(err), Equals, entrypoint.ExitUsage)
}

func (s *FunctionalSuite) TestUnknownFlag(c *C) {
	err := s.run("secret\n", "--root", "--bogus")
	c.Assert(entrypoint.ExitCode(err), Equals, entrypoint.ExitUsage)
	c.Assert(s.stdout.String(), Matches, "(?s)makepki: error: .*bogus.*")
	c.Assert(s.calls(c), HasLen, 0)
}

func (s *FunctionalSuite) TestUnsupportedOperation(c *C) {
	err := s.issue("secret\n", "--variant=selfsigned", "-r", "-i")
	c.Assert(entrypoint.ExitCode(err), Equals, entrypoint.ExitUsage)
	c.Assert(s.calls(c), HasLen, 0)
}

func (s *FunctionalSuite) TestRootWithLiteralPassphrase(c *C) {
	c.Assert(s.issue("", "--init"), IsNil)

	err := s.issue("s3cret\n", "--passphrase-mode=arg", "--root")
	c.Assert(err, IsNil)
	c.Assert(s.stdout.String(), Equals, "Please enter a password :")
	c.Assert(s.calls(c), DeepEquals, []string{
		"genrsa -aes256 -out private/ca.key.pem -passout pass:s3cret 4096",
		"req -config openssl.cnf -key private/ca.key.pem -new -x509 -days 7300 -passin pass:s3cret -sha256 -extensions v3_ca -out certs/ca.cert.pem",
	})

	cert, err := os.ReadFile(filepath.Join(s.dir, "root", "ca", "certs", "ca.cert.pem"))
	c.Assert(err, IsNil)
	c.Assert(string(cert), Equals, "req:certs/ca.cert.pem\n")
	c.Assert(strings.Contains(s.stderr.String(), "s3cret"), Equals, false, Commentf("passphrase leaked to the log"))
}

func (s *FunctionalSuite) TestOperationsRunInCommandLineOrder(c *C) {
	err := s.issue("one\ntwo\nthree\n", "--init", "-n", "--root", "-i")
	c.Assert(err, IsNil)
	c.Assert(s.subcommands(c), DeepEquals, []string{
		"genrsa", "req", "ca", // node
		"genrsa", "req", // root
		"genrsa", "req", "ca", // intermediate
	})
	c.Assert(s.calls(c)[0], Matches, "genrsa .*intermediate/private/node.key.pem.*")
	c.Assert(s.calls(c)[3], Matches, "genrsa .*private/ca.key.pem.*")

	// Each operation received its own passphrase through the environment.
	env, err := os.ReadFile(s.log + ".env")
	c.Assert(err, IsNil)
	c.Assert(string(env), Equals, "one\none\none\ntwo\ntwo\nthree\nthree\nthree\n")
	for _, call := range s.calls(c) {
		c.Assert(call, Matches, ".*env:MAKEPKI_PASSPHRASE.*")
	}

	chain, err := os.ReadFile(filepath.Join(s.dir, "root", "ca", "intermediate", "certs", "ca-chain.cert.pem"))
	c.Assert(err, IsNil)
	c.Assert(string(chain), Equals, "ca:intermediate/certs/intermediate.cert.pem\nreq:certs/ca.cert.pem\n")
}

func (s *FunctionalSuite) TestDisabledOperationDoesNotRun(c *C) {
	err := s.issue("a\nb\n", "--init", "--root=false", "--node")
	c.Assert(err, IsNil)
	c.Assert(s.subcommands(c), DeepEquals, []string{"genrsa", "req", "ca"})
	c.Assert(s.stdout.String(), Equals, "Please enter a password :")
	_, err = os.Stat(filepath.Join(s.dir, "root", "ca", "private", "ca.key.pem"))
	c.Assert(os.IsNotExist(err), Equals, true)

	err = s.issue("a\n", "--root=false")
	c.Assert(entrypoint.ExitCode(err), Equals, entrypoint.ExitUsage)
}

func (s *FunctionalSuite) TestCombinedShortFlags(c *C) {
	err := s.issue("a\nb\n", "--init", "-rn")
	c.Assert(err, IsNil)
	c.Assert(s.subcommands(c), DeepEquals, []string{"genrsa", "req", "genrsa", "req", "ca"})
}

func (s *FunctionalSuite) TestFailuresAreIgnoredByDefault(c *C) {
	c.Assert(os.Setenv("FAKE_OPENSSL_FAIL", "genrsa"), IsNil)

	err := s.issue("secret\n", "--init", "--node")
	c.Assert(err, IsNil)
	c.Assert(s.subcommands(c), DeepEquals, []string{"genrsa", "req", "ca"})
}

func (s *FunctionalSuite) TestAbortOnFailure(c *C) {
	c.Assert(os.Setenv("FAKE_OPENSSL_FAIL", "req"), IsNil)

	err := s.issue("secret\nsecret\n", "--init", "--on-failure=abort", "--root", "--node")
	c.Assert(err, NotNil)
	c.Assert(entrypoint.ExitCode(err), Equals, entrypoint.ExitFailure)
	c.Assert(s.subcommands(c), DeepEquals, []string{"genrsa", "req"})
}

func (s *FunctionalSuite) TestRerunOverwrites(c *C) {
	c.Assert(s.issue("first\n", "--init", "--variant=selfsigned", "--root"), IsNil)
	c.Assert(s.issue("second\n", "--variant=selfsigned", "--root"), IsNil)
	c.Assert(s.calls(c), HasLen, 4)

	cert, err := os.ReadFile(filepath.Join(s.dir, "selfcert.crt"))
	c.Assert(err, IsNil)
	c.Assert(string(cert), Equals, "req:selfcert.crt\n")
}

func (s *FunctionalSuite) TestSelfSignedNode(c *C) {
	c.Assert(s.issue("pw\n", "--variant=selfsigned", "--passphrase-mode=arg", "--node"), IsNil)
	c.Assert(s.calls(c), DeepEquals, []string{
		"genrsa -des3 -out node_key.pem -passout pass:pw 2048",
		"req -new -key node_key.pem -config openssl.cnf -out node.csr -passin pass:pw",
		"x509 -req -in node.csr -CA selfcert.crt -CAkey rsa_key.pem -CAcreateserial -out node.crt -days 10000 -passin pass:pw",
	})
}

func (s *FunctionalSuite) TestMissingPassphrase(c *C) {
	err := s.issue("", "--root")
	c.Assert(entrypoint.ExitCode(err), Equals, entrypoint.ExitFailure)
	c.Assert(s.calls(c), HasLen, 0)
}

func (s *FunctionalSuite) TestDryRun(c *C) {
	err := s.issue("secret\n", "--dry-run", "--init", "--intermediate")
	c.Assert(err, IsNil)
	c.Assert(s.calls(c), HasLen, 0)
	_, err = os.Stat(filepath.Join(s.dir, "root"))
	c.Assert(os.IsNotExist(err), Equals, true)
}

func (s *FunctionalSuite) TestConfigurationFile(c *C) {
	config := "passphrase_mode: arg\nvariant: selfsigned\nlog:\n  format: json\n"
	c.Assert(os.WriteFile(filepath.Join(s.dir, "makepki.yml"), []byte(config), 0644), IsNil)

	c.Assert(s.issue("pw\n", "--root"), IsNil)
	c.Assert(s.calls(c)[0], Equals, "genrsa -des3 -out rsa_key.pem -passout pass:pw 2048")
}

func (s *FunctionalSuite) TestConfigurationCannotSelectOperations(c *C) {
	c.Assert(os.WriteFile(filepath.Join(s.dir, "makepki.yml"), []byte("root: true\n"), 0644), IsNil)

	err := s.issue("pw\n")
	c.Assert(entrypoint.ExitCode(err), Equals, entrypoint.ExitUsage)
}
