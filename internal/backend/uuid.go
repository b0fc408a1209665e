// Package backend provides the LDAP backend interface that wraps the storage engine
// and provides LDAP-specific operations including authentication, entry validation,
// and coordination with the storage layer.
package backend

import "github.com/google/uuid"

// GenerateUUID generates a UUID v4, suitable for an entryUUID operational
// attribute value (RFC 4530).
func GenerateUUID() string {
	return uuid.New().String()
}
