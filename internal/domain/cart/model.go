package cart

import (
	"errors"

	"github.com/ayursutra/portal/internal/domain/catalog"
)

var ErrConcurrentUpdate = errors.New("cart was modified concurrently, try again")

// Item is one treatment line. The same treatment may appear more than once.
type Item struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Price       int    `json:"price"`
	DurationMin int    `json:"duration_min"`
}

func ItemFromTreatment(t catalog.Treatment) Item {
	return Item{ID: t.ID, Name: t.Name, Price: t.Price, DurationMin: t.DurationMin}
}

type Cart struct {
	Items            []Item `json:"items"`
	Total            int    `json:"total"`
	TotalDurationMin int    `json:"total_duration_min"`
}

func newCart(items []Item) *Cart {
	if items == nil {
		items = []Item{}
	}
	c := &Cart{Items: items}
	for _, it := range items {
		c.Total += it.Price
		c.TotalDurationMin += it.DurationMin
	}
	return c
}
