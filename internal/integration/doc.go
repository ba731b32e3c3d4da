// Package integration holds end-to-end tests that package, publish and install releases over HTTP.
package integration
