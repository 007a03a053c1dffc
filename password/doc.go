// Package password implements the credential manager: argon2id hashing with
// PHC-encoded output, constant-time verification, password strength scoring,
// and secure random secret generation.
//
// Hashing is deliberately CPU-expensive. Callers invoke it from their own
// goroutines; the package itself never spawns workers.
package password
