package model

// UserRole 由认证服务签发在 JWT 中，本服务只做校验
type UserRole string

const (
	Student    UserRole = "student"
	Instructor UserRole = "instructor"
	Admin      UserRole = "admin"
)

// CanCurate 可以维护图谱与审核建议
func (r UserRole) CanCurate() bool {
	return r == Admin || r == Instructor
}
