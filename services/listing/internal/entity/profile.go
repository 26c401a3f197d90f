package entity

// Profile is the authenticated identity uploads and listings are attributed to.
type Profile struct {
	ID   string `json:"id"`
	Role string `json:"role,omitempty"`
}

func (p *Profile) Identified() bool {
	return p != nil && p.ID != ""
}
