package types

// ContextUserKey is the gin context key the route guard stores the
// authenticated identity under.
const ContextUserKey = "user"

// AuthenticatedUser is the decoded token identity attached to the request
// context. It comes straight from verified claims; the guard does not hit
// the store.
type AuthenticatedUser struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type UserResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
