package collab

import (
	"github.com/flatplan/flatplan.go/internal/rand"
	"github.com/flatplan/flatplan.go/pkg/models"
)

var animals = []models.Animal{
	{Name: "Fox", Color: "#F97316"},
	{Name: "Wolf", Color: "#6B7280"},
	{Name: "Bear", Color: "#92400E"},
	{Name: "Deer", Color: "#B45309"},
	{Name: "Owl", Color: "#78350F"},
	{Name: "Lion", Color: "#D97706"},
	{Name: "Tiger", Color: "#EA580C"},
	{Name: "Panda", Color: "#4B5563"},
	{Name: "Koala", Color: "#737373"},
	{Name: "Rabbit", Color: "#A3A3A3"},
	{Name: "Penguin", Color: "#0F172A"},
	{Name: "Dolphin", Color: "#0EA5E9"},
	{Name: "Elephant", Color: "#64748B"},
	{Name: "Giraffe", Color: "#CA8A04"},
	{Name: "Kangaroo", Color: "#A16207"},
}

// Animals returns the display identities collaborators are drawn from.
func Animals() []models.Animal {
	return append([]models.Animal(nil), animals...)
}

// RandomAnimal picks one of Animals.
func RandomAnimal(rnd rand.Source) models.Animal {
	if rnd == nil {
		rnd = rand.Default()
	}
	return animals[rnd.IntN(len(animals))]
}
