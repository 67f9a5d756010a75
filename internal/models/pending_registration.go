package models

// PendingRegistration is the value kept under form:{email} while a sign-up waits
// for its code. The avatar is referenced by path only; its bytes live in temp storage.
type PendingRegistration struct {
	FormData   map[string]string `json:"form_data"`
	AvatarPath string            `json:"avatar_path,omitempty"`
}

// Ключи form_data.
const (
	FieldEmail        = "email"
	FieldNickname     = "nickname"
	FieldBio          = "bio"
	FieldPasswordHash = "password_hash"
)

// Upload is a file received with a form.
type Upload struct {
	Filename string
	Data     []byte
}
