// Package workspace aggregates the records of several tenants into one
// board. Each tenant's record IDs are namespaced as "tenant:id" so they stay
// unique across tenants, and status changes are routed back to the tenant
// that owns the record.
package workspace

import (
	"errors"
	"strings"
)

// Separator joins a tenant name and a local record ID.
const Separator = ":"

// ErrUnknownTenant is returned when a namespaced ID names no loaded tenant.
var ErrUnknownTenant = errors.New("unknown tenant")

// NamespacedID is a record ID qualified by its tenant.
type NamespacedID struct {
	Tenant  string
	LocalID string
}

// String returns "tenant:id", or just the local ID when there is no tenant.
func (n NamespacedID) String() string {
	if n.Tenant == "" {
		return n.LocalID
	}
	return n.Tenant + Separator + n.LocalID
}

// ParseNamespacedID splits id at the first separator. Tenant names cannot
// contain the separator, so local IDs may.
func ParseNamespacedID(id string) NamespacedID {
	tenant, local, ok := strings.Cut(id, Separator)
	if !ok {
		return NamespacedID{LocalID: id}
	}
	return NamespacedID{Tenant: tenant, LocalID: local}
}

// QualifyID prefixes localID with tenant. Local IDs that already look
// qualified are prefixed again so they never collide with another record.
func QualifyID(localID, tenant string) string {
	if tenant == "" {
		return localID
	}
	return tenant + Separator + localID
}

// UnqualifyID strips one tenant prefix, if present. It inverts QualifyID.
func UnqualifyID(id, tenant string) string {
	if tenant == "" {
		return id
	}
	return strings.TrimPrefix(id, tenant+Separator)
}
