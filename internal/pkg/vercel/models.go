package vercel

// Raw Vercel API payloads. Decoded at the client boundary; the rest of the
// system depends only on the normalized shapes built from these.

// Project is a raw project from /v9/projects.
type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AccountID string `json:"accountId"`
	Framework string `json:"framework"`
	NodeVer   string `json:"nodeVersion"`
	CreatedAt int64  `json:"createdAt"` // epoch millis
	UpdatedAt int64  `json:"updatedAt"`
	Paused    bool   `json:"paused"`
	Live      bool   `json:"live"`
}

// ProjectList is the /v9/projects envelope.
type ProjectList struct {
	Projects []Project `json:"projects"`
}

// Deployment is a raw deployment from /v6/deployments.
type Deployment struct {
	UID       string `json:"uid"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	State     string `json:"state"` // READY, ERROR, BUILDING, QUEUED, CANCELED
	Target    string `json:"target"`
	Framework string `json:"framework"`
	Created   int64  `json:"created"` // epoch millis
	Meta      struct {
		GitCommitRef string `json:"githubCommitRef"`
	} `json:"meta"`
}

// DeploymentList is the /v6/deployments envelope.
type DeploymentList struct {
	Deployments []Deployment `json:"deployments"`
}

// Team is a raw team from /v2/teams/{id}; Billing may be absent for
// restricted tokens.
type Team struct {
	ID      string `json:"id"`
	Slug    string `json:"slug"`
	Name    string `json:"name"`
	Billing struct {
		Plan string `json:"plan"`
	} `json:"billing"`
}

// User is the /v2/user envelope for personal accounts.
type User struct {
	User struct {
		ID      string `json:"id"`
		Billing struct {
			Plan string `json:"plan"`
		} `json:"billing"`
	} `json:"user"`
}

// TokenResponse is the OAuth token endpoint payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}
