package version

// Name is the application name. It is also the environment variable prefix.
const Name = "makepki"

// Description is the short application description shown in help output.
const Description = "Issue root, intermediate and node certificates for a private PKI by driving openssl."

// Version is set during build to the current git commitish.
var Version = "development" //nolint:gochecknoglobals
