// Package password implements argon2id password hashing in PHC string format.
//
// Hashes are self-describing: cost parameters and salt are encoded alongside
// the digest, so verification never consults configuration and parameter
// upgrades roll out lazily via [Argon2.NeedsRehash].
package password
