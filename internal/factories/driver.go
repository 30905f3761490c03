package factories

import (
	"math/rand"

	"github.com/jaswdr/faker"

	"github.com/dispatchsim/dispatchsim/internal/models"
)

type DriverFactory struct {
	fake faker.Faker
}

// NewDriverFactory seeds the generator so a world rebuilt with the same
// seed gets the same driver roster.
func NewDriverFactory(seed int64) *DriverFactory {
	return &DriverFactory{fake: faker.NewWithSeed(rand.NewSource(seed))}
}

func (df *DriverFactory) CreateDriver(id, node int) models.Driver {
	return models.Driver{
		ID:       id,
		Name:     df.fake.Person().Name(),
		Node:     node,
		PrevNode: node,
		Order:    models.NoOrder,
	}
}
