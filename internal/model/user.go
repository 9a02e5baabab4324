package model

// User はログイン中のユーザーを表す。
// セッションだけが保持し、他のコンポーネントは変更しない。
type User struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Bio      *string `json:"bio"`
	Image    *string `json:"image"`
	Token    string  `json:"token"`
}

// Clone はUserのコピーを返す。
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Bio != nil {
		bio := *u.Bio
		c.Bio = &bio
	}
	if u.Image != nil {
		image := *u.Image
		c.Image = &image
	}
	return &c
}

// Credentials はログインリクエストの入力値。
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration はアカウント登録リクエストの入力値。
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserUpdate はプロフィール更新の入力値。
// nilのフィールドは送信しない部分更新となる。
type UserUpdate struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Bio      *string `json:"bio,omitempty"`
	// Image は空文字列の場合にnullとして送信し、アバターを削除する。
	Image    *string `json:"-"`
	Password *string `json:"password,omitempty"`
}
