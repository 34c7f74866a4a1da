package models

// Animal is the display identity of a collaborator.
type Animal struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// User is a participant of a collaboration session.
type User struct {
	ID     string `json:"id"`
	Animal Animal `json:"animal"`
}
