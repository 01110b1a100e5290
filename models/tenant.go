package models

// TenantContext is the caller identity derived from the request credential. It lives for one request.
type TenantContext struct {
	TenantID string `json:"tenantId"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

// Actor is the label stamped on approvals made by this caller.
func (t TenantContext) Actor() string {
	if t.Email != "" {
		return t.Email
	}
	if t.Username != "" {
		return t.Username
	}
	return t.TenantID
}
