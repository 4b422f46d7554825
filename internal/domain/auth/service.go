package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kpiconsole/internal/domain/kpi"
)

// CredentialLookup resolves a display name in the credential registry.
type CredentialLookup interface {
	Credential(ctx context.Context, name string) (kpi.Credential, bool, error)
}

type Auditor interface {
	Record(ctx context.Context, actor, action, details, entryType string) (kpi.AuditEntry, error)
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      kpi.User  `json:"user"`
}

// Service is the login stub: registered names must present their passkey,
// anyone else is let in under the selected role.
type Service struct {
	creds  CredentialLookup
	audit  Auditor
	secret string
	ttl    time.Duration
}

func NewService(creds CredentialLookup, audit Auditor, secret string, ttl time.Duration) *Service {
	return &Service{creds: creds, audit: audit, secret: secret, ttl: ttl}
}

func (s *Service) Login(ctx context.Context, name, role, passkey string) (kpi.User, error) {
	selected, err := kpi.ParseRole(role)
	if err != nil {
		return kpi.User{}, err
	}
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		name = "User_" + string(selected)
	}

	id := kpi.UserID(name)
	department := ""
	cred, found, err := s.creds.Credential(ctx, name)
	if err != nil {
		return kpi.User{}, err
	}
	if found {
		if CheckPassword(cred.PasswordHash, passkey) != nil {
			return kpi.User{}, ErrInvalidCredentials
		}
		if cred.Role != selected {
			return kpi.User{}, fmt.Errorf("%w: registered as %s", ErrRoleMismatch, cred.Role)
		}
		id, name, department = cred.ID, cred.Name, cred.Department
	}

	user := UserContext{UserID: id, Name: name, Role: selected, Department: department}.User()
	if s.audit != nil {
		if _, err := s.audit.Record(ctx, user.Name, kpi.ActionLogin, fmt.Sprintf("Signed in as %s", user.Role), kpi.AuditInfo); err != nil {
			return kpi.User{}, err
		}
	}
	return user, nil
}

// Start logs the user in and issues a session token.
func (s *Service) Start(ctx context.Context, name, role, passkey string) (Session, error) {
	user, err := s.Login(ctx, name, role, passkey)
	if err != nil {
		return Session{}, err
	}
	token, err := GenerateToken(s.secret, Claims{
		UserID:     user.ID,
		Name:       user.Name,
		Role:       user.Role,
		Department: user.Department,
	}, s.ttl)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: time.Now().Add(s.ttl).UTC(), User: user}, nil
}

func (s *Service) Verify(token string) (UserContext, error) {
	claims, err := ParseToken(s.secret, token)
	if err != nil {
		return UserContext{}, err
	}
	return UserContext{
		UserID:     claims.UserID,
		Name:       claims.Name,
		Role:       claims.Role,
		Department: claims.Department,
	}, nil
}
