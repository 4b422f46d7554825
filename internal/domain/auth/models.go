package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"kpiconsole/internal/domain/kpi"
)

// Financials are the salary figures attached to a role.
type Financials struct {
	BaseSalary      float64
	IncentiveTarget float64
}

var RoleFinancials = map[kpi.Role]Financials{
	kpi.RoleEmployee:   {BaseSalary: 62000, IncentiveTarget: 12000},
	kpi.RoleSupervisor: {BaseSalary: 88000, IncentiveTarget: 18000},
	kpi.RoleDeptHead:   {BaseSalary: 135000, IncentiveTarget: 45000},
	kpi.RoleAdmin:      {BaseSalary: 105000, IncentiveTarget: 25000},
	kpi.RoleExecutive:  {BaseSalary: 275000, IncentiveTarget: 125000},
}

type Claims struct {
	UserID     string   `json:"uid"`
	Name       string   `json:"name"`
	Role       kpi.Role `json:"role"`
	Department string   `json:"dept,omitempty"`
	jwt.RegisteredClaims
}

// UserContext is the authenticated identity carried through a request.
type UserContext struct {
	UserID     string
	Name       string
	Role       kpi.Role
	Department string
}

// User expands the identity into the full profile.
func (u UserContext) User() kpi.User {
	fin := RoleFinancials[u.Role]
	return kpi.User{
		ID:              u.UserID,
		Name:            u.Name,
		Email:           kpi.Email(u.Name),
		Role:            u.Role,
		BaseSalary:      fin.BaseSalary,
		IncentiveTarget: fin.IncentiveTarget,
		Department:      u.Department,
	}
}
