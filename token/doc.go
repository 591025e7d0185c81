// Package token persists the server-issued access/refresh pair and
// inspects access-token expiry.
//
// # Architecture boundaries
//
// Tokens are minted and signed by the issuance collaborator ([Issuer]);
// this package never signs or verifies signatures — it decodes claims
// unverified and interprets only the exp claim. The transport retry
// policy belongs to the collaborator, not here: a failed refresh clears
// the pair and forces re-authentication.
package token
