package chat

import "banter-server/models"

// Directory resolves uids to public profiles. The sqlite user store
// implements it in production; tests use a map-backed fake.
type Directory interface {
	Profile(uid string) (*models.UserResponse, error)
	ProfileByHandle(username, tag string) (*models.UserResponse, error)
}
