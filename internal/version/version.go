package version

// Version is the semantic version of the binary.
const Version = "0.1.0"
