package client

// LoginRequest is the body of POST /accounts/login/
type LoginRequest struct {
	Email         string         `json:"email"`
	Password      string         `json:"password"`
	ScreenSize    string         `json:"screen_size"`
	Timezone      string         `json:"timezone"`
	Language      string         `json:"language"`
	ExtraMetadata map[string]any `json:"extra_metadata"`
}

// RegisterRequest is the body of POST /accounts/register/
type RegisterRequest struct {
	Name           string `json:"name"`
	Surname        string `json:"surname"`
	Patronym       string `json:"patronym"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	PasswordRepeat string `json:"password_repeat"`
}

// AuthResponse is returned by login, registration and refresh
type AuthResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	ExpiresAt    string   `json:"expires_at,omitempty"`
	Email        string   `json:"email,omitempty"`
	User         *Profile `json:"user,omitempty"`
	Message      string   `json:"message,omitempty"`
}

// EmailAddress returns the top level email, or the nested user email
func (r *AuthResponse) EmailAddress() string {
	if r.Email != "" {
		return r.Email
	}
	if r.User != nil {
		return r.User.Email
	}
	return ""
}

// fields returns the credential fields present in the response.
// Absent fields are omitted so they never clear known values.
func (r *AuthResponse) fields() map[Field]string {
	out := make(map[Field]string, len(Fields))
	if r.AccessToken != "" {
		out[FieldAccessToken] = r.AccessToken
	}
	if r.RefreshToken != "" {
		out[FieldRefreshToken] = r.RefreshToken
	}
	if r.ExpiresAt != "" {
		out[FieldExpiresAt] = r.ExpiresAt
	}
	if email := r.EmailAddress(); email != "" {
		out[FieldEmail] = email
	}
	return out
}

// Profile is the authenticated user's account as returned by /accounts/profile/
type Profile struct {
	ID            int64  `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Surname       string `json:"surname"`
	Patronym      string `json:"patronym"`
	FullName      string `json:"full_name"`
	RoleName      string `json:"role_name"`
	BirthDate     string `json:"birth_date,omitempty"`
	BirthPlace    string `json:"birth_place,omitempty"`
	AccountStatus string `json:"account_status"`
	IsActive      bool   `json:"is_active"`
	DateJoined    string `json:"date_joined"`
	LastLogin     string `json:"last_login,omitempty"`
}

// IsAdministrator reports whether the profile carries the administrator role
func (p *Profile) IsAdministrator() bool {
	return p != nil && p.RoleName == RoleAdministrator
}

// ProfileUpdate is the body of PATCH /accounts/profile/
type ProfileUpdate struct {
	Name       *string `json:"name,omitempty"`
	Surname    *string `json:"surname,omitempty"`
	Patronym   *string `json:"patronym,omitempty"`
	BirthDate  *string `json:"birth_date,omitempty"`
	BirthPlace *string `json:"birth_place,omitempty"`
}

// ChangePasswordRequest is the body of POST /accounts/change-password/
type ChangePasswordRequest struct {
	OldPassword       string `json:"old_password"`
	NewPassword       string `json:"new_password"`
	NewPasswordRepeat string `json:"new_password_repeat"`
}

// ChangeEmailRequest is the body of POST /accounts/change-email/
type ChangeEmailRequest struct {
	NewEmail string `json:"new_email"`
	Password string `json:"password"`
}

// ChangeEmailResponse is returned by /accounts/change-email/
type ChangeEmailResponse struct {
	Message  string `json:"message"`
	OldEmail string `json:"old_email"`
	NewEmail string `json:"new_email"`
}

// Role names used by the backend
const (
	RoleUser          = "user"
	RoleModerator     = "moderator"
	RoleAdministrator = "administrator"
)

// Task statuses
const (
	TaskPending    = "pending"
	TaskInProgress = "in_progress"
	TaskDone       = "done"
)

// ValidTaskStatus reports whether s is a status the backend accepts
func ValidTaskStatus(s string) bool {
	switch s {
	case TaskPending, TaskInProgress, TaskDone:
		return true
	}
	return false
}

// UserInfo is the owner summary embedded in a task
type UserInfo struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	RoleName string `json:"role_name"`
}

// Task is a (possibly nested) task
type Task struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	User        int64    `json:"user"`
	UserInfo    UserInfo `json:"user_info"`
	ParentID    *int64   `json:"parent_id"`
	Status      string   `json:"status"`
	Subtasks    []Task   `json:"subtasks"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
	IsDeleted   bool     `json:"is_deleted"`
}

// TaskInput is the body of POST /tasks/
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ParentID    *int64 `json:"parent_id,omitempty"`
	Status      string `json:"status,omitempty"`
}

// TaskPatch is the body of PATCH /tasks/{id}/
type TaskPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	ParentID    *int64  `json:"parent_id,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// User is an account as listed by the administrator endpoints
type User struct {
	ID            int64  `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Surname       string `json:"surname"`
	Patronym      string `json:"patronym"`
	FullName      string `json:"full_name"`
	RoleName      string `json:"role_name"`
	IsActive      bool   `json:"is_active"`
	AccountStatus string `json:"account_status"`
	DateJoined    string `json:"date_joined"`
}

// RoleChangeResponse is returned by promote/demote
type RoleChangeResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}

// messageResponse is the generic {"message": "..."} body
type messageResponse struct {
	Message string `json:"message"`
}

// profileUpdateResponse wraps the updated profile
type profileUpdateResponse struct {
	User    *Profile `json:"user"`
	Message string   `json:"message"`
}
