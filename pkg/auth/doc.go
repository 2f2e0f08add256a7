// Package auth provides the identity primitives shared by the user service and
// the HTTP middleware: users, bearer tokens, password hashing and audit logging.
//
// # Tokens
//
// Tokens have the format hr_<base64url(32 random bytes)>. The plaintext is
// shown once when issued; only its SHA-256 hash is stored:
//
//	generator := auth.NewTokenGenerator()
//	token, hash, prefix, err := generator.GenerateToken()
//
// Account secret tokens used by the ingestion endpoint are 32 random bytes,
// hex encoded, generated with GenerateSecret.
//
// # Passwords
//
// Passwords are hashed with bcrypt:
//
//	hasher := auth.NewPasswordHasher(0)
//	hash, err := hasher.Hash("s3cret")
//	err = hasher.Check(hash, "s3cret")
//
// # Related Packages
//
//   - pkg/users: user lifecycle and token storage
//   - pkg/middleware: HTTP authentication middleware
//   - pkg/rbac: account scoped authorization
package auth
