package roster

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"kpiconsole/internal/domain/auth"
	"kpiconsole/internal/domain/kpi"
	"kpiconsole/internal/platform/store"
)

// Purger drops every record a collaborator keeps for a user.
type Purger interface {
	PurgeUser(ctx context.Context, userID string) error
}

type Auditor interface {
	Record(ctx context.Context, actor, action, details, entryType string) (kpi.AuditEntry, error)
}

type Service struct {
	departments *store.Collection[[]string]
	roster      *store.Collection[map[string][]string]
	credentials *store.Collection[[]kpi.Credential]

	audit          Auditor
	purgers        []Purger
	secret         string
	defaultPasskey string
}

func New(st *store.Store, audit Auditor, secret, defaultPasskey string, purgers ...Purger) *Service {
	return &Service{
		departments:    store.NewCollection(st, store.KeyDepartments, func() []string { return []string{} }),
		roster:         store.NewCollection(st, store.KeyRoster, func() map[string][]string { return map[string][]string{} }),
		credentials:    store.NewCollection(st, store.KeyCredentials, func() []kpi.Credential { return []kpi.Credential{} }),
		audit:          audit,
		purgers:        purgers,
		secret:         secret,
		defaultPasskey: defaultPasskey,
	}
}

func normalize(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

func sameName(a, b string) bool {
	return strings.EqualFold(normalize(a), normalize(b))
}

func indexOf(creds []kpi.Credential, name string) int {
	for i, c := range creds {
		if sameName(c.Name, name) {
			return i
		}
	}
	return -1
}

// Seed creates the initial departments when none exist yet.
func (s *Service) Seed(ctx context.Context, departments []string) error {
	return s.departments.Update(ctx, func(current *[]string) error {
		if len(*current) > 0 || len(departments) == 0 {
			return store.ErrNoChange
		}
		for _, d := range departments {
			if d = normalize(d); d != "" && s.findDepartment(*current, d) == "" {
				*current = append(*current, d)
			}
		}
		return nil
	})
}

func (s *Service) Departments(ctx context.Context) ([]string, error) {
	return s.departments.Get(ctx)
}

func (s *Service) findDepartment(departments []string, name string) string {
	for _, d := range departments {
		if strings.EqualFold(d, name) {
			return d
		}
	}
	return ""
}

// resolveDepartment returns the stored spelling of a department name.
func (s *Service) resolveDepartment(ctx context.Context, name string) (string, error) {
	name = normalize(name)
	if name == "" {
		return "", ErrDepartmentRequired
	}
	departments, err := s.departments.Get(ctx)
	if err != nil {
		return "", err
	}
	if d := s.findDepartment(departments, name); d != "" {
		return d, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownDepartment, name)
}

func (s *Service) AddDepartment(ctx context.Context, actor, name, secret string) error {
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.secret)) != 1 {
		return ErrInvalidSecret
	}
	name = normalize(name)
	if name == "" {
		return ErrDepartmentRequired
	}
	err := s.departments.Update(ctx, func(current *[]string) error {
		if s.findDepartment(*current, name) != "" {
			return fmt.Errorf("%w: %s", ErrDepartmentExists, name)
		}
		*current = append(*current, name)
		return nil
	})
	if err != nil {
		return err
	}
	return s.record(ctx, actor, kpi.ActionDepartmentAdd, "Created department "+name)
}

// Roster returns the names per department in provisioning order.
func (s *Service) Roster(ctx context.Context) (map[string][]string, error) {
	return s.roster.Get(ctx)
}

func (s *Service) Members(ctx context.Context) ([]Member, error) {
	creds, err := s.credentials.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Member, 0, len(creds))
	for _, c := range creds {
		out = append(out, memberOf(c))
	}
	return out, nil
}

func (s *Service) Credential(ctx context.Context, name string) (kpi.Credential, bool, error) {
	creds, err := s.credentials.Get(ctx)
	if err != nil {
		return kpi.Credential{}, false, err
	}
	if i := indexOf(creds, name); i >= 0 {
		return creds[i], true, nil
	}
	return kpi.Credential{}, false, nil
}

// DepartmentOf reports the registered department of a name.
func (s *Service) DepartmentOf(ctx context.Context, name string) (string, bool, error) {
	cred, ok, err := s.Credential(ctx, name)
	return cred.Department, ok, err
}

func (s *Service) Provision(ctx context.Context, actor string, req ProvisionRequest) (Member, error) {
	name := normalize(req.Name)
	if name == "" {
		return Member{}, ErrNameRequired
	}
	if !req.Role.Valid() {
		return Member{}, fmt.Errorf("%w: %q", kpi.ErrUnknownRole, req.Role)
	}
	department, err := s.resolveDepartment(ctx, req.Department)
	if err != nil {
		return Member{}, err
	}
	passkey := req.Passkey
	if passkey == "" {
		passkey = s.defaultPasskey
	}
	hash, err := auth.HashPassword(passkey)
	if err != nil {
		return Member{}, err
	}
	// Registry ids are random so a retired name never maps back to the
	// person who held it.
	cred := kpi.Credential{
		ID:           uuid.NewString(),
		Name:         name,
		PasswordHash: hash,
		Department:   department,
		Role:         req.Role,
	}

	err = s.credentials.Update(ctx, func(creds *[]kpi.Credential) error {
		if indexOf(*creds, name) >= 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
		*creds = append(*creds, cred)
		return nil
	})
	if err != nil {
		return Member{}, err
	}
	if err := s.roster.Update(ctx, func(r *map[string][]string) error {
		(*r)[department] = append((*r)[department], name)
		return nil
	}); err != nil {
		return Member{}, err
	}
	if err := s.record(ctx, actor, kpi.ActionUserProvision, fmt.Sprintf("Provisioned %s as %s in %s", name, req.Role, department)); err != nil {
		return Member{}, err
	}
	return memberOf(cred), nil
}

// Rename changes a display name. The credential id is kept so existing
// records stay attached to the person.
func (s *Service) Rename(ctx context.Context, actor, oldName, newName string) (Member, error) {
	newName = normalize(newName)
	if newName == "" {
		return Member{}, ErrNameRequired
	}
	var renamed kpi.Credential
	var previous string
	err := s.credentials.Update(ctx, func(creds *[]kpi.Credential) error {
		i := indexOf(*creds, oldName)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrUserNotFound, oldName)
		}
		if j := indexOf(*creds, newName); j >= 0 && j != i {
			return fmt.Errorf("%w: %s", ErrDuplicateName, newName)
		}
		previous = (*creds)[i].Name
		(*creds)[i].Name = newName
		renamed = (*creds)[i]
		return nil
	})
	if err != nil {
		return Member{}, err
	}
	if err := s.roster.Update(ctx, func(r *map[string][]string) error {
		names := (*r)[renamed.Department]
		for i, n := range names {
			if n == previous {
				names[i] = newName
			}
		}
		return nil
	}); err != nil {
		return Member{}, err
	}
	if err := s.record(ctx, actor, kpi.ActionUserRename, fmt.Sprintf("Renamed %s to %s", previous, newName)); err != nil {
		return Member{}, err
	}
	return memberOf(renamed), nil
}

func (s *Service) Transfer(ctx context.Context, actor, name, toDepartment string) (Member, error) {
	department, err := s.resolveDepartment(ctx, toDepartment)
	if err != nil {
		return Member{}, err
	}
	var moved kpi.Credential
	var from string
	err = s.credentials.Update(ctx, func(creds *[]kpi.Credential) error {
		i := indexOf(*creds, name)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrUserNotFound, name)
		}
		from = (*creds)[i].Department
		if from == department {
			moved = (*creds)[i]
			return store.ErrNoChange
		}
		(*creds)[i].Department = department
		moved = (*creds)[i]
		return nil
	})
	if err != nil {
		return Member{}, err
	}
	if from == department {
		return memberOf(moved), nil
	}
	if err := s.roster.Update(ctx, func(r *map[string][]string) error {
		(*r)[from] = without((*r)[from], moved.Name)
		if len((*r)[from]) == 0 {
			delete(*r, from)
		}
		(*r)[department] = append((*r)[department], moved.Name)
		return nil
	}); err != nil {
		return Member{}, err
	}
	if err := s.record(ctx, actor, kpi.ActionUserTransfer, fmt.Sprintf("Transferred %s from %s to %s", moved.Name, from, department)); err != nil {
		return Member{}, err
	}
	return memberOf(moved), nil
}

// Delete removes a person from the registry and roster and purges their
// workflow records. Audit history is left untouched.
func (s *Service) Delete(ctx context.Context, actor, name string) error {
	var removed kpi.Credential
	err := s.credentials.Update(ctx, func(creds *[]kpi.Credential) error {
		i := indexOf(*creds, name)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrUserNotFound, name)
		}
		removed = (*creds)[i]
		*creds = append((*creds)[:i:i], (*creds)[i+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.roster.Update(ctx, func(r *map[string][]string) error {
		(*r)[removed.Department] = without((*r)[removed.Department], removed.Name)
		if len((*r)[removed.Department]) == 0 {
			delete(*r, removed.Department)
		}
		return nil
	}); err != nil {
		return err
	}

	var purgeErr error
	for _, p := range s.purgers {
		if err := p.PurgeUser(ctx, removed.ID); err != nil {
			slog.Warn("user purge failed", "userId", removed.ID, "err", err)
			purgeErr = errors.Join(purgeErr, err)
		}
	}
	if err := s.record(ctx, actor, kpi.ActionUserDelete, fmt.Sprintf("Deleted %s from %s", removed.Name, removed.Department)); err != nil {
		return errors.Join(purgeErr, err)
	}
	return purgeErr
}

func without(names []string, name string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

func (s *Service) record(ctx context.Context, actor, action, details string) error {
	if s.audit == nil {
		return nil
	}
	entryType := kpi.AuditInfo
	if action == kpi.ActionUserDelete {
		entryType = kpi.AuditWarn
	}
	_, err := s.audit.Record(ctx, actor, action, details, entryType)
	return err
}
