package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/irsalhamdi/storefront/validate"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	CategoryNew     = "new"
	CategoryPopular = "popular"
)

var ErrNotFound = errors.New("item not found")

type Item struct {
	ID            string           `json:"id" validate:"required"`
	Name          string           `json:"name" validate:"required"`
	Price         decimal.Decimal  `json:"price" validate:"gt=0"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	Image         string           `json:"image"`
	Description   string           `json:"description"`
	Console       string           `json:"console"`
	Generation    int              `json:"generation"`
	ReleaseDate   string           `json:"releaseDate"`
	Category      string           `json:"category"`
	InStock       bool             `json:"inStock"`
	Rating        float64          `json:"rating"`
	Features      []string         `json:"features"`
	PriceCategory string           `json:"priceCategory"`
}

// Source is a remote product listing that takes precedence over the
// embedded catalog when it returns at least one item.
type Source interface {
	Name() string
	Products(ctx context.Context) ([]Item, error)
}

//go:embed products.json
var localProducts []byte

func Local() ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(localProducts, &items); err != nil {
		return nil, fmt.Errorf("decoding embedded catalog: %w", err)
	}
	return items, nil
}

type Filter struct {
	Category    string
	Generation  int
	InStockOnly bool
}

func (f Filter) match(it Item) bool {
	if f.Category != "" && it.Category != f.Category {
		return false
	}
	if f.Generation != 0 && it.Generation != f.Generation {
		return false
	}
	if f.InStockOnly && !it.InStock {
		return false
	}
	return true
}

type Store struct {
	origin string
	items  []Item
	byID   map[string]int
}

func New(origin string, items []Item) (*Store, error) {
	s := &Store{
		origin: origin,
		items:  make([]Item, 0, len(items)),
		byID:   make(map[string]int, len(items)),
	}

	for _, it := range items {
		if err := validate.Check(it); err != nil {
			return nil, fmt.Errorf("item[%s]: %w", it.ID, err)
		}
		if _, ok := s.byID[it.ID]; ok {
			return nil, fmt.Errorf("item[%s]: duplicated id", it.ID)
		}
		s.byID[it.ID] = len(s.items)
		s.items = append(s.items, it)
	}

	return s, nil
}

// Load builds the store from the first source returning products, falling
// back to the embedded catalog when every source fails or is empty.
func Load(ctx context.Context, log logrus.FieldLogger, sources ...Source) (*Store, error) {
	for _, src := range sources {
		items, err := src.Products(ctx)
		if err != nil {
			log.WithField("source", src.Name()).Warnf("fetching products, using local catalog: %v", err)
			continue
		}
		if len(items) == 0 {
			continue
		}
		return New(src.Name(), items)
	}

	items, err := Local()
	if err != nil {
		return nil, err
	}
	return New("local", items)
}

func (s *Store) Origin() string { return s.origin }

func (s *Store) Len() int { return len(s.items) }

func (s *Store) Fetch(id string) (Item, error) {
	i, ok := s.byID[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return s.items[i], nil
}

// List returns the items accepted by f ordered by ascending price.
func (s *Store) List(f Filter) []Item {
	out := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		if f.match(it) {
			out = append(out, it)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}
