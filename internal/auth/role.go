package auth

type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleViewer, RoleOperator, RoleAdmin:
		return true
	}
	return false
}

type Permission string

const (
	PermRead    Permission = "read"
	PermDeploy  Permission = "deploy"  // store and delete deployments
	PermDevices Permission = "devices" // edit the device cache
	PermReload  Permission = "reload"  // rescan instrument manifests
)

func (r Role) Permissions() []Permission {
	switch r {
	case RoleAdmin:
		return []Permission{PermRead, PermDeploy, PermDevices, PermReload}
	case RoleOperator:
		return []Permission{PermRead, PermDeploy}
	default:
		return []Permission{PermRead}
	}
}
