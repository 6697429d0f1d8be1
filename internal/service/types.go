package service

import (
	"strings"
	"time"
)

// Provider identifies a connected third-party platform.
type Provider string

const (
	ProviderVercel   Provider = "vercel"
	ProviderSupabase Provider = "supabase"
)

// ParseProvider validates a provider name from a request path or body.
func ParseProvider(name string) (Provider, bool) {
	switch Provider(strings.ToLower(strings.TrimSpace(name))) {
	case ProviderVercel:
		return ProviderVercel, true
	case ProviderSupabase:
		return ProviderSupabase, true
	}
	return "", false
}

// SubResourceKind enumerates the per-project resource categories a provider
// exposes.
type SubResourceKind string

const (
	KindDeployments SubResourceKind = "deployments"
	KindFunctions   SubResourceKind = "functions"
	KindBuckets     SubResourceKind = "buckets"
	KindBranches    SubResourceKind = "branches"
)

// ProjectRef is a provider-scoped project identifier plus display fields.
// Immutable once fetched except for status refresh during sync.
type ProjectRef struct {
	Ref            string    `json:"ref"`
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Region         string    `json:"region,omitempty"`
	Status         string    `json:"status,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

// ProjectDetails is the normalized project-level snapshot.
type ProjectDetails struct {
	Ref            string    `json:"ref"`
	Name           string    `json:"name"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Status         string    `json:"status,omitempty"`
	Region         string    `json:"region,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	// Version carries provider-specific version metadata (e.g. database
	// version); empty when the provider has none.
	Version string `json:"version,omitempty"`
	// Framework is the build framework where the provider reports one.
	Framework string `json:"framework,omitempty"`
}

// BillingAddon is one optional paid add-on on a plan.
type BillingAddon struct {
	Name    string `json:"name"`
	Variant string `json:"variant,omitempty"`
}

// BillingInfo is the normalized billing snapshot for a project or account.
type BillingInfo struct {
	Plan   string         `json:"plan"`
	Addons []BillingAddon `json:"addons,omitempty"`
}

// NormalizePlanName maps provider plan casing conventions onto one display
// form: first letter upper, remainder lower.
func NormalizePlanName(plan string) string {
	plan = strings.TrimSpace(plan)
	if plan == "" {
		return ""
	}
	return strings.ToUpper(plan[:1]) + strings.ToLower(plan[1:])
}

// ResourceItem is one normalized sub-resource (deployment, edge function,
// storage bucket or database branch). ProjectRef is stamped by the sync
// layer, not the adapter.
type ResourceItem struct {
	ID         string          `json:"id"`
	Name       string          `json:"name,omitempty"`
	Kind       SubResourceKind `json:"kind"`
	ProjectRef string          `json:"project_ref,omitempty"`
	Status     string          `json:"status,omitempty"`
	// Category groups items for statistics: framework for deployments,
	// runtime/visibility/region for the other kinds.
	Category  string    `json:"category,omitempty"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// PartialFailure records one failed (project, kind) sub-fetch. Non-fatal:
// that pair contributes nothing and the sync continues.
type PartialFailure struct {
	ProjectRef string          `json:"project_ref"`
	Kind       SubResourceKind `json:"kind"`
	Reason     string          `json:"reason"`
}

// FrequencyBucket is one calendar day (UTC date string) of activity.
type FrequencyBucket struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// SyncStats is the derived statistics block of a sync.
type SyncStats struct {
	Total      int                     `json:"total"`
	ByStatus   map[string]int          `json:"by_status"`
	ByCategory map[string]int          `json:"by_category"`
	ByKind     map[SubResourceKind]int `json:"by_kind"`
	Frequency  []FrequencyBucket       `json:"frequency"`
}

// SyncResult is the aggregate produced by one sync call. Never persisted as
// a first-class entity; its serialized form is cached on the account record.
type SyncResult struct {
	Projects  []ProjectDetails                   `json:"projects"`
	Billing   *BillingInfo                       `json:"billing,omitempty"`
	Resources map[SubResourceKind][]ResourceItem `json:"resources"`
	Stats     SyncStats                          `json:"stats"`
	Failures  []PartialFailure                   `json:"failures,omitempty"`
	SyncedAt  time.Time                          `json:"synced_at"`
}

// TokenPair is decrypted token material. In-memory use only; at rest tokens
// exist solely as tokencrypt blobs.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// EncryptedCredentials is the storage/wire form of a token pair.
type EncryptedCredentials struct {
	AccessToken  string `json:"encrypted_access_token"`
	RefreshToken string `json:"encrypted_refresh_token,omitempty"`
}

// TokenResponse is the normalized result of a code exchange or refresh.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
}

// ConnectedAccount is the durable record linking a user to one provider
// connection. Owned by the external record store.
type ConnectedAccount struct {
	ID           string               `json:"id"`
	UserID       string               `json:"user_id"`
	Provider     Provider             `json:"provider"`
	Credentials  EncryptedCredentials `json:"credentials"`
	Projects     []ProjectRef         `json:"projects"`
	LastSyncedAt *time.Time           `json:"last_synced_at,omitempty"`
	SyncError    string               `json:"sync_error,omitempty"`
	// Snapshot caches the serialized last SyncResult.
	Snapshot     []byte     `json:"-"`
	SnapshotAt   *time.Time `json:"snapshot_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
