// Package users manages login identities and their bearer tokens.
//
// The first user ever created needs no credentials and becomes the
// superuser; afterwards only superusers create users. Tokens are opaque
// "hr_" strings whose SHA-256 hash is stored in auth_tokens; each login
// issues a new token and logout revokes the one in use.
package users
