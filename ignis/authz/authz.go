// Package authz provides casbin-backed role/permission management and
// forbidden-kind authorization decisions, grounded on the teacher's
// authz/rbac package but exposed as an instance (no package-level
// Enforcer global) so a Boot-managed component can own its lifecycle.
package authz

import (
	_ "embed"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/ignis-framework/ignis/ignis/igniserr"
	"gorm.io/gorm"
)

const allowEffect = "allow"

//go:embed model.conf
var defaultModelConf string

// Authorizer grants, revokes, and checks role-based permissions and exposes
// a single Can() decision point that raises igniserr.KindForbidden.
type Authorizer struct {
	enforcer *casbin.Enforcer
}

// New builds an Authorizer backed by a casbin RBAC model persisted through
// db via the gorm adapter — the same storage connection the rest of the
// application already uses. An empty modelPath uses the framework's
// embedded default RBAC model.
func New(db *gorm.DB, modelPath string) (*Authorizer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, igniserr.Wrap(igniserr.KindConfigInvalid, err, "failed to build casbin gorm adapter")
	}

	m, err := loadModel(modelPath)
	if err != nil {
		return nil, err
	}

	enforcer, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, igniserr.Wrap(igniserr.KindConfigInvalid, err, "failed to build casbin enforcer")
	}
	return &Authorizer{enforcer: enforcer}, nil
}

func loadModel(modelPath string) (casbinmodel.Model, error) {
	if modelPath != "" {
		m, err := casbinmodel.NewModelFromFile(modelPath)
		if err != nil {
			return nil, igniserr.Wrap(igniserr.KindConfigInvalid, err, "failed to load casbin model file")
		}
		return m, nil
	}
	m, err := casbinmodel.NewModelFromString(defaultModelConf)
	if err != nil {
		return nil, igniserr.Wrap(igniserr.KindConfigInvalid, err, "failed to load default casbin model")
	}
	return m, nil
}

// Can reports whether subject may perform action on resource, the single
// decision point every authorization check in the application goes
// through.
func (a *Authorizer) Can(subject, resource, action string) (bool, error) {
	ok, err := a.enforcer.Enforce(subject, resource, action)
	if err != nil {
		return false, igniserr.Wrap(igniserr.KindForbidden, err, "authorization check failed")
	}
	return ok, nil
}

// Require is Can plus the spec's forbidden-kind error on denial, meant to
// be called directly from a controller or middleware.
func (a *Authorizer) Require(subject, resource, action string) error {
	ok, err := a.Can(subject, resource, action)
	if err != nil {
		return err
	}
	if !ok {
		return igniserr.Newf(igniserr.KindForbidden, "%s is not permitted to %s %s", subject, action, resource)
	}
	return nil
}

// AddRole is a no-op: casbin roles are created implicitly by use, same as
// the teacher's rbac.AddRole.
func (a *Authorizer) AddRole(string) error { return nil }

func (a *Authorizer) RemoveRole(name string) error {
	if _, err := a.enforcer.DeleteRole(name); err != nil {
		return err
	}
	return a.enforcer.SavePolicy()
}

func (a *Authorizer) GrantPermission(role, resource, action string) error {
	if _, err := a.enforcer.AddPermissionForUser(role, resource, action, allowEffect); err != nil {
		return err
	}
	return a.enforcer.SavePolicy()
}

// RevokePermission mirrors the teacher's flexible filtered-removal
// behavior: an empty resource/action broadens the match.
func (a *Authorizer) RevokePermission(role, resource, action string) error {
	switch {
	case resource == "" && action == "":
		if _, err := a.enforcer.RemoveFilteredPolicy(0, role); err != nil {
			return err
		}
	case resource == "":
		if _, err := a.enforcer.RemoveFilteredPolicy(0, role, "", action); err != nil {
			return err
		}
	case action == "":
		if _, err := a.enforcer.RemoveFilteredPolicy(0, role, resource); err != nil {
			return err
		}
	default:
		if _, err := a.enforcer.DeletePermissionForUser(role, resource, action, allowEffect); err != nil {
			return err
		}
	}
	return a.enforcer.SavePolicy()
}

func (a *Authorizer) AssignRole(subject, role string) error {
	if _, err := a.enforcer.AddRoleForUser(subject, role); err != nil {
		return err
	}
	return a.enforcer.SavePolicy()
}

func (a *Authorizer) UnassignRole(subject, role string) error {
	if _, err := a.enforcer.DeleteRoleForUser(subject, role); err != nil {
		return err
	}
	return a.enforcer.SavePolicy()
}

// RolesFor returns every role assigned to subject.
func (a *Authorizer) RolesFor(subject string) ([]string, error) {
	return a.enforcer.GetRolesForUser(subject)
}
