// Package common contains shared constants and sentinel errors used across
// gophauth components.
package common

// AuthorizationHeaderName is the HTTP header and gRPC metadata key carrying
// the bearer credential.
const AuthorizationHeaderName = "authorization"

// AuthSchemes lists the accepted credential scheme labels. Matching is
// case-sensitive.
var AuthSchemes = []string{"Bearer", "Token"}

// UsersNamespace is the cache and event namespace owned by the users service.
const UsersNamespace = "users"
