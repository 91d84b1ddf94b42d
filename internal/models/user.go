package models

// Role is the tenant role carried in the backend token and user records.
type Role string

const (
	RoleSuperAdmin  Role = "ROLE_SUPER_ADMIN"
	RoleTenantAdmin Role = "ROLE_TENANT_ADMIN"
	RoleApprover    Role = "ROLE_APPROVER"
	RoleSecurity    Role = "ROLE_SECURITY"
	RoleEmployee    Role = "ROLE_EMPLOYEE"
)

// User is a tenant member as returned by the admin endpoints.
type User struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	IsActive   bool   `json:"isActive"`
	TenantID   int64  `json:"tenantId"`
	Contact    string `json:"contact,omitempty"`
	Department string `json:"department,omitempty"`
}

// CreateUserRequest is the body for POST /tenants/{id}/admin/users.
type CreateUserRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	Role       Role   `json:"role" validate:"required,oneof=ROLE_TENANT_ADMIN ROLE_APPROVER ROLE_SECURITY ROLE_EMPLOYEE"`
	Contact    string `json:"contact,omitempty" validate:"omitempty,max=20"`
	Department string `json:"department,omitempty" validate:"omitempty,max=100"`
}

// UpdateUserStatusRequest is the body for PUT /tenants/{id}/admin/users/{userId}/status.
type UpdateUserStatusRequest struct {
	IsActive bool `json:"isActive"`
}
