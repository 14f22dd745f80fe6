//go:build integration

// Package integration contains end-to-end tests that run the loader and the
// grid against an nginx container serving generated images.
//
// Run with: go test -tags integration ./integration/...
// Set SKIP_DOCKER_TESTS=1 to skip them where Docker is unavailable.
package integration
