package form

import "github.com/hitoshi/blogclient/internal/model"

// SignIn はサインインフォームの入力値。
type SignIn struct {
	Email    string `json:"email" validate:"required,looseemail"`
	Password string `json:"password" validate:"required"`
}

var signInMessages = messages{
	"email.required":    "Email is required",
	"email.looseemail":  "Please enter a valid email",
	"password.required": "Password is required",
}

// Validate はサインインフォームを検証する。
func (f SignIn) Validate() model.FieldErrors {
	return run(f, signInMessages)
}

// Credentials はAPIに送信するログイン情報を返す。
func (f SignIn) Credentials() model.Credentials {
	return model.Credentials{Email: f.Email, Password: f.Password}
}

// SignUp はアカウント登録フォームの入力値。
type SignUp struct {
	Username        string `json:"username" validate:"required,min=3,max=20"`
	Email           string `json:"email" validate:"required,looseemail"`
	Password        string `json:"password" validate:"required,min=6,max=40"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	Agreement       bool   `json:"agreement" validate:"required"`
}

var signUpMessages = messages{
	"username.required":        "Username is required",
	"username.min":             "Username must be at least 3 characters",
	"username.max":             "Username must be at most 20 characters",
	"email.required":           "Email is required",
	"email.looseemail":         "Please enter a valid email",
	"password.required":        "Password is required",
	"password.min":             "Password must be at least 6 characters",
	"password.max":             "Password must be at most 40 characters",
	"confirmPassword.required": "Please confirm your password",
	"confirmPassword.eqfield":  "Passwords must match",
	"agreement.required":       "You must agree to the terms",
}

// Validate はアカウント登録フォームを検証する。
func (f SignUp) Validate() model.FieldErrors {
	return run(f, signUpMessages)
}

// Registration はAPIに送信する登録情報を返す。確認用パスワードと同意は送信しない。
func (f SignUp) Registration() model.Registration {
	return model.Registration{Username: f.Username, Email: f.Email, Password: f.Password}
}

// Profile はプロフィール編集フォームの入力値。
type Profile struct {
	Username    string `json:"username" validate:"required"`
	Email       string `json:"email" validate:"required,strictemail"`
	NewPassword string `json:"newPassword" validate:"omitempty,min=6"`
	AvatarImage string `json:"avatarImage" validate:"omitempty,max=255"`
}

var profileMessages = messages{
	"username.required": "Username is required",
	"email.required":    "Email is required",
	"email.strictemail": "Invalid email address",
	"newPassword.min":   "Password must be at least 6 characters",
	"avatarImage.max":   "URL must be at most 255 characters",
}

// Validate はプロフィール編集フォームを検証する。
func (f Profile) Validate() model.FieldErrors {
	return run(f, profileMessages)
}

// Update はAPIに送信する部分更新を返す。
// 新しいパスワードは入力された場合のみ送信し、空の画像URLはアバター削除として扱う。
func (f Profile) Update() model.UserUpdate {
	username := f.Username
	email := f.Email
	image := f.AvatarImage

	update := model.UserUpdate{
		Username: &username,
		Email:    &email,
		Image:    &image,
	}
	if f.NewPassword != "" {
		password := f.NewPassword
		update.Password = &password
	}
	return update
}
