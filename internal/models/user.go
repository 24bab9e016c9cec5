package models

// User is the identity of the person starting or joining a meeting. Only the
// fields tagged into create-time metadata are carried here.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
