package conceptgen

// Version is bumped by cmd/bump_version.go on release.
const Version = "0.1.0"
