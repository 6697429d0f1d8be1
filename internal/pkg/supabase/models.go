package supabase

// Raw Supabase Management API payloads, decoded at the client boundary.

// Project is a raw project from /v1/projects. ID is the project ref.
type Project struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Region         string `json:"region"`
	Status         string `json:"status"` // ACTIVE_HEALTHY, INACTIVE, PAUSED, ...
	CreatedAt      string `json:"created_at"`
	Database       struct {
		Host    string `json:"host"`
		Version string `json:"version"`
	} `json:"database"`
}

// EdgeFunction is a raw function from /v1/projects/{ref}/functions.
type EdgeFunction struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Version   int    `json:"version"`
	CreatedAt int64  `json:"created_at"` // epoch millis
	UpdatedAt int64  `json:"updated_at"`
}

// StorageBucket is a raw bucket from /v1/projects/{ref}/storage/buckets.
type StorageBucket struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Public    bool   `json:"public"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Branch is a raw database branch from /v1/projects/{ref}/branches.
type Branch struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	ProjectRef       string `json:"project_ref"`
	ParentProjectRef string `json:"parent_project_ref"`
	IsDefault        bool   `json:"is_default"`
	Status           string `json:"status"`
	CreatedAt        string `json:"created_at"`
}

// Organization is a raw organization from /v1/organizations/{slug}.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Plan string `json:"plan"`
}

// BillingAddons is the /v1/projects/{ref}/billing/addons envelope.
type BillingAddons struct {
	SelectedAddons []struct {
		Type    string `json:"type"`
		Variant struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"variant"`
	} `json:"selected_addons"`
}

// TokenResponse is the OAuth token endpoint payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}
