// Package password hashes login passwords with argon2id for the apitest
// backend.
//
// # Output format
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// # What this package must NOT do
//
//   - Import any other goAuthClient package.
//   - Log plaintext passwords.
package password
