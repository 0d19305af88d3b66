package hosted

import (
	"context"
	"strconv"
	"strings"

	"github.com/irsalhamdi/storefront/core/catalog"
)

const productLimit = 50

// Source lists the platform's products for the catalog. Items are keyed by
// their first variant so cart lines map straight onto remote lines.
type Source struct {
	client *Client
}

func NewSource(c *Client) *Source {
	return &Source{client: c}
}

func (s *Source) Name() string { return "hosted" }

func (s *Source) Products(ctx context.Context) ([]catalog.Item, error) {
	prods, err := s.client.Products(ctx, productLimit)
	if err != nil {
		return nil, err
	}

	items := make([]catalog.Item, 0, len(prods))
	for _, p := range prods {
		if len(p.Variants) == 0 {
			continue
		}
		items = append(items, toItem(p))
	}
	return items, nil
}

func toItem(p Product) catalog.Item {
	v := p.Variants[0]

	it := catalog.Item{
		ID:          v.ID,
		Name:        p.Title,
		Price:       v.Price.Amount,
		Description: p.Description,
		Console:     p.ProductType,
		InStock:     v.Available,
		Category:    catalog.CategoryPopular,
		Features:    []string{},
	}
	if v.CompareAtPrice != nil {
		op := v.CompareAtPrice.Amount
		it.OriginalPrice = &op
	}
	if len(p.Images) > 0 {
		it.Image = p.Images[0].Src
	}
	if !p.CreatedAt.IsZero() {
		it.ReleaseDate = p.CreatedAt.Format("2006-01-02")
	}

	for _, tag := range p.Tags {
		low := strings.ToLower(tag)
		switch {
		case low == catalog.CategoryNew:
			it.Category = catalog.CategoryNew
		case strings.HasPrefix(low, "gen-"):
			if n, err := strconv.Atoi(strings.TrimPrefix(low, "gen-")); err == nil {
				it.Generation = n
			}
		default:
			it.Features = append(it.Features, tag)
		}
	}
	return it
}
