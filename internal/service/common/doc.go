// Package common holds helpers shared by several services.
//
// It provides an HTTP client with retries, progress reporting and on-the-fly
// hashing, and a helper to detect the current system actor (hostname/username)
// recorded in install receipts.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
