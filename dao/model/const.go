package model

import "fmt"

// Role applies both to the platform (User.Role) and to a project membership
// (ProjectMember.Role). Platform role is advisory; real authorization is
// project and environment scoped.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// ParseRole coerces a loose string into a Role. Unknown values report an
// error so raw strings never travel past the boundary.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleMember, RoleViewer:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// EnvName is one of the three fixed environments of a project.
type EnvName string

const (
	EnvLocal EnvName = "local"
	EnvDev   EnvName = "dev"
	EnvProd  EnvName = "prod"
)

// EnvNames lists all environments in bootstrap order.
var EnvNames = []EnvName{EnvLocal, EnvDev, EnvProd}

func ParseEnvName(s string) (EnvName, error) {
	switch EnvName(s) {
	case EnvLocal, EnvDev, EnvProd:
		return EnvName(s), nil
	}
	return "", fmt.Errorf("unknown environment %q", s)
}

// SecretType classifies what kind of credential a secret holds.
type SecretType string

const (
	SecretTypeKey      SecretType = "key"
	SecretTypeToken    SecretType = "token"
	SecretTypeEndpoint SecretType = "endpoint"
)

func ParseSecretType(s string) (SecretType, error) {
	switch SecretType(s) {
	case SecretTypeKey, SecretTypeToken, SecretTypeEndpoint:
		return SecretType(s), nil
	}
	return "", fmt.Errorf("unknown secret type %q", s)
}
