// Package iam is the identity front door: it exchanges operator
// credentials, refresh tokens and signed device assertions for bearer
// tokens.
//
// # Layout
//
//   - iam/grant      - grant requests, the dispatcher and the token endpoint
//   - iam/signature  - RSA SHA-512 verification of device assertions
//   - iam/auth       - JWT issuance, refresh-token rotation, fiber middleware
//   - iam/directory  - operator and device lookups (Postgres in directoryinfra)
//   - iam/client     - device registration and maintenance
//
// Layers follow the same shape in every sub-package:
//
//	HTTP handler  →  service  →  port interface  →  infrastructure (Postgres/KV)
//
// Each sub-package owns an errx registry. Failures in the grant path collapse
// to a small set of RFC 6749 errors:
//
//	invalid_request         400  a required field is missing
//	unsupported_grant_type  400  grant_type is not one of the three below
//	invalid_grant           401  bad credentials, bad refresh token, inactive user
//	invalid_client          401  missing or bad signature, unknown client
//	server_error            500  a directory or store outage
//
// # Grants
//
//	password            operator login; admins receive the Admin role
//	refresh_token       rotates a single-use refresh token; scopes may only narrow
//	client_credentials  device login; the signature travels in code_challenge
//
// A device signs the JSON document
//
//	{"grant_type":"client_credentials","client_id":"<id>","client_secret":"<secret>"}
//
// with its private key (PKCS#1 v1.5, SHA-512) and sends the base64 signature
// alongside client_id and client_secret.
package iam
