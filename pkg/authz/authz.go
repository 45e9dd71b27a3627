// Package authz 基于 Casbin 的权限判定。
//
// 模型与策略来自配置，不依赖策略表。用户以 "user:<id>" 作为主体，
// 通过 g 规则继承角色。
package authz

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/kart-io/logger"
)

// 资源与动作。
const (
	RoleAdmin       = "admin"
	RoleRAGAdmin    = "rag_admin"
	RoleRouterAdmin = "router_admin"

	ResourceRAG    = "rag"
	ActionManage   = "manage"
	ActionQuery    = "query"
	ResourceRouter = "router"
)

// DefaultModel RBAC 模型，支持 "*" 通配资源和动作。
const DefaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

// Authorizer 判断用户是否有权对资源执行动作。
type Authorizer interface {
	Authorize(userID int64, resource, action string) (bool, error)
}

// Enforcer 基于 Casbin 的 Authorizer 实现。
type Enforcer struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
}

var _ Authorizer = (*Enforcer)(nil)

// Subject 返回用户主体名。
func Subject(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

// NewEnforcer 创建权限判定器，admin 角色拥有全部权限，admins 中的用户被授予 admin 角色。
func NewEnforcer(admins []int64) (*Enforcer, error) {
	m, err := model.NewModelFromString(DefaultModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}
	if _, err := e.AddPolicy(RoleAdmin, "*", "*"); err != nil {
		return nil, fmt.Errorf("failed to add admin policy: %w", err)
	}

	enf := &Enforcer{enforcer: e}
	for _, id := range admins {
		if err := enf.GrantRole(id, RoleAdmin); err != nil {
			return nil, err
		}
	}
	logger.Infow("authorizer initialized", "admins", len(admins))
	return enf, nil
}

// Authorize 检查权限。
func (e *Enforcer) Authorize(userID int64, resource, action string) (bool, error) {
	if resource == "" || action == "" {
		return false, fmt.Errorf("resource and action are required")
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enforcer.Enforce(Subject(userID), resource, action)
}

// GrantRole 为用户授予角色。
func (e *Enforcer) GrantRole(userID int64, role string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.enforcer.AddGroupingPolicy(Subject(userID), role); err != nil {
		return fmt.Errorf("failed to grant role %s: %w", role, err)
	}
	return nil
}

// RevokeRole 撤销用户角色。
func (e *Enforcer) RevokeRole(userID int64, role string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.enforcer.RemoveGroupingPolicy(Subject(userID), role); err != nil {
		return fmt.Errorf("failed to revoke role %s: %w", role, err)
	}
	return nil
}

// AllowPermission 为角色添加资源权限。
func (e *Enforcer) AllowPermission(role, resource, action string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.enforcer.AddPolicy(role, resource, action); err != nil {
		return fmt.Errorf("failed to add policy: %w", err)
	}
	return nil
}
