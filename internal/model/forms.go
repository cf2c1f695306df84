package model

type LoginForm struct {
	Username   string `json:"username" validate:"required,max=150"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

type RegisterForm struct {
	Username  string `json:"username" validate:"required,max=150"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
	Mobile    string `json:"mobile" validate:"omitempty,mobile"`
	Address   string `json:"address"`
}

type ProfileForm struct {
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
	Email     string `json:"email" validate:"required,email"`
	Mobile    string `json:"mobile" validate:"omitempty,mobile"`
	Address   string `json:"address"`
}

// ProfileFormFrom seeds an edit form with the user's current values.
func ProfileFormFrom(u User) ProfileForm {
	return ProfileForm{
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Mobile:    u.Mobile,
		Address:   u.Address,
	}
}

// LoginResponse is the backend's answer to a successful login.
type LoginResponse struct {
	User    User   `json:"user"`
	Token   string `json:"token"`
	Message string `json:"message"`
}

type RegisterResponse struct {
	User    User   `json:"user"`
	Message string `json:"message"`
}
