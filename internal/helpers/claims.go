package helpers

import "time"

// HostClaims is what the auth middleware stores on the request after the token
// has been validated.
type HostClaims struct {
	*CustomClaims
	UserID      string `json:"id"`
	Email       string `json:"email,omitempty"`
	AccessToken string `json:"-"`
}

func (hc *HostClaims) IsAdmin() bool {
	for _, r := range hc.AppMetadata.Roles {
		if r == "admin" {
			return true
		}
	}
	return false
}

// CanManage reports whether the caller may moderate an event owned by hostID.
func (hc *HostClaims) CanManage(hostID string) bool {
	return hc.UserID == hostID || hc.IsAdmin()
}

// TokenExpiry is when the host's access token stops working, or the zero time
// when the token carries no expiry.
func (hc *HostClaims) TokenExpiry() time.Time {
	if hc.CustomClaims == nil || hc.ExpiresAt == nil {
		return time.Time{}
	}
	return hc.ExpiresAt.Time
}
