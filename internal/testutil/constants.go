// Package testutil provides shared test helpers and httptest fakes of the
// catalog and platform APIs.
package testutil

// TestEncryptionKey is a 32-byte vault key for use in tests only.
const TestEncryptionKey = "12345678901234567890123456789012"
