package auth

// Ownership 是资源所有权校验能力。多租户与单租户部署提供不同实现，
// 但调用点完全一致 —— 单租户也必须执行校验调用，重新引入多租户时
// 不会出现被悄悄跳过的检查。
type Ownership interface {
	IsOwner(resourceOwnerID, callerID string) bool
}

// TenantOwnership 多租户实现：调用者必须是资源 owner。
type TenantOwnership struct{}

func (TenantOwnership) IsOwner(resourceOwnerID, callerID string) bool {
	return callerID != "" && resourceOwnerID == callerID
}

// SingleTenantOwnership 单租户实现：恒为真。
type SingleTenantOwnership struct{}

func (SingleTenantOwnership) IsOwner(string, string) bool {
	return true
}
