package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// API exposes the authenticated task board endpoints. Every call is
// authorized through the token manager; a 401 triggers at most one
// refresh and one retry.
type API struct {
	client *Client
	tokens *TokenManager
}

// NewAPI binds a REST client to a token manager
func NewAPI(c *Client, tokens *TokenManager) *API {
	return &API{client: c, tokens: tokens}
}

// Tokens returns the token manager used for authorization
func (a *API) Tokens() *TokenManager {
	return a.tokens
}

// call performs an authorized request
func (a *API) call(ctx context.Context, req request, out any) error {
	header, refreshed := a.tokens.authorize(ctx)
	req.header = header

	_, err := a.client.do(ctx, req, out)
	if err == nil || !IsUnauthorized(err) {
		return err
	}
	if refreshed || a.tokens.RefreshToken() == "" {
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	a.tokens.log.Debug("request unauthorized, refreshing once", "endpoint", req.endpoint)
	if !a.tokens.Refresh(ctx) {
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	req.header = newHeader(a.tokens.AccessToken())
	if _, err := a.client.do(ctx, req, out); err != nil {
		if IsUnauthorized(err) {
			return fmt.Errorf("%w: %w", ErrSessionExpired, err)
		}
		return err
	}
	return nil
}

// Profile fetches the authenticated user's profile
func (a *API) Profile(ctx context.Context) (*Profile, error) {
	var out Profile
	if err := a.call(ctx, request{
		endpoint: "profile",
		method:   http.MethodGet,
		path:     "/accounts/profile/",
	}, &out); err != nil {
		return nil, err
	}
	a.tokens.SetEmail(out.Email)
	return &out, nil
}

// UpdateProfile patches the profile fields that are set
func (a *API) UpdateProfile(ctx context.Context, in ProfileUpdate) (*Profile, error) {
	var out profileUpdateResponse
	if err := a.call(ctx, request{
		endpoint: "profile.update",
		method:   http.MethodPatch,
		path:     "/accounts/profile/",
		body:     in,
	}, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return a.Profile(ctx)
	}
	return out.User, nil
}

// ChangePassword changes the account password and returns the backend's message
func (a *API) ChangePassword(ctx context.Context, in ChangePasswordRequest) (string, error) {
	var out messageResponse
	if err := a.call(ctx, request{
		endpoint: "change_password",
		method:   http.MethodPost,
		path:     "/accounts/change-password/",
		body:     in,
	}, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// ChangeEmail changes the account email and updates the cached email
func (a *API) ChangeEmail(ctx context.Context, in ChangeEmailRequest) (*ChangeEmailResponse, error) {
	var out ChangeEmailResponse
	if err := a.call(ctx, request{
		endpoint: "change_email",
		method:   http.MethodPost,
		path:     "/accounts/change-email/",
		body:     in,
	}, &out); err != nil {
		return nil, err
	}
	if out.NewEmail == "" {
		out.NewEmail = in.NewEmail
	}
	a.tokens.SetEmail(out.NewEmail)
	return &out, nil
}

// DeleteAccount deletes the account and forgets the local credential
func (a *API) DeleteAccount(ctx context.Context) (string, error) {
	var out messageResponse
	if err := a.call(ctx, request{
		endpoint: "delete_account",
		method:   http.MethodPost,
		path:     "/accounts/delete/",
	}, &out); err != nil {
		return "", err
	}
	a.tokens.Forget()
	return out.Message, nil
}

// Tasks lists the caller's tasks. group filters by status; "" and "all"
// return every task.
func (a *API) Tasks(ctx context.Context, group string) ([]Task, error) {
	var query url.Values
	if group != "" && group != "all" {
		query = url.Values{"group": {group}}
	}
	var out []Task
	if err := a.call(ctx, request{
		endpoint: "tasks.list",
		method:   http.MethodGet,
		path:     "/tasks/",
		query:    query,
	}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PublicTasks lists tasks visible without signing in
func (a *API) PublicTasks(ctx context.Context) ([]Task, error) {
	var out []Task
	if _, err := a.client.do(ctx, request{
		endpoint: "tasks.public",
		method:   http.MethodGet,
		path:     "/tasks/public/",
		header:   newHeader(""),
	}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Task fetches a single task with its subtasks
func (a *API) Task(ctx context.Context, id int64) (*Task, error) {
	var out Task
	if err := a.call(ctx, request{
		endpoint: "tasks.get",
		method:   http.MethodGet,
		path:     taskPath(id),
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTask creates a task, or a subtask when ParentID is set
func (a *API) CreateTask(ctx context.Context, in TaskInput) (*Task, error) {
	var out Task
	if err := a.call(ctx, request{
		endpoint: "tasks.create",
		method:   http.MethodPost,
		path:     "/tasks/",
		body:     in,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTask patches the task fields that are set
func (a *API) UpdateTask(ctx context.Context, id int64, in TaskPatch) (*Task, error) {
	var out Task
	if err := a.call(ctx, request{
		endpoint: "tasks.update",
		method:   http.MethodPatch,
		path:     taskPath(id),
		body:     in,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTask soft-deletes a task
func (a *API) DeleteTask(ctx context.Context, id int64) error {
	return a.call(ctx, request{
		endpoint: "tasks.delete",
		method:   http.MethodDelete,
		path:     taskPath(id) + "delete/",
	}, nil)
}

// Users lists every account. Administrators only.
func (a *API) Users(ctx context.Context) ([]User, error) {
	var out []User
	if err := a.call(ctx, request{
		endpoint: "users.list",
		method:   http.MethodGet,
		path:     "/users/",
	}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PromoteUser raises a user's role by one step
func (a *API) PromoteUser(ctx context.Context, id int64) (*RoleChangeResponse, error) {
	return a.changeRole(ctx, id, "promote")
}

// DemoteUser lowers a user's role by one step
func (a *API) DemoteUser(ctx context.Context, id int64) (*RoleChangeResponse, error) {
	return a.changeRole(ctx, id, "demote")
}

func (a *API) changeRole(ctx context.Context, id int64, action string) (*RoleChangeResponse, error) {
	var out RoleChangeResponse
	if err := a.call(ctx, request{
		endpoint: "users." + action,
		method:   http.MethodPost,
		path:     "/users/" + strconv.FormatInt(id, 10) + "/" + action + "/",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func taskPath(id int64) string {
	return "/tasks/" + strconv.FormatInt(id, 10) + "/"
}
