package roster

import "kpiconsole/internal/domain/kpi"

type ProvisionRequest struct {
	Name       string
	Role       kpi.Role
	Passkey    string
	Department string
}

// Member is a registry row without its passkey hash.
type Member struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Role       kpi.Role `json:"role"`
	Department string   `json:"department"`
}

func memberOf(c kpi.Credential) Member {
	return Member{ID: c.ID, Name: c.Name, Role: c.Role, Department: c.Department}
}
