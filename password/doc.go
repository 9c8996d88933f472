// Package password provides argon2id hashing and verification for user
// credentials, plus the composition policy enforced before any hash is
// produced.
//
// Digests use the PHC string format:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<b64 salt>$<b64 key>
//
// The cost parameters travel inside the digest, so verification never depends
// on the currently configured costs and old hashes keep verifying after a
// cost upgrade. NeedsUpgrade reports when a stored digest was produced with
// weaker costs than the active config; callers rehash on the next successful
// login, the only moment the plaintext is available.
//
// # What this package must NOT do
//
//   - Talk to storage. It hashes and compares strings, nothing else.
//   - Return an error from Verify for a malformed digest. A digest that
//     cannot be parsed is simply a failed match; corrupted rows in the user
//     store must not crash the login path.
package password
