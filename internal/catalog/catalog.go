package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/RENDAROBOTIC/rds-website/internal/domain"
	"github.com/RENDAROBOTIC/rds-website/pkg/validator"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// file is the on-disk layout of a catalog.
type file struct {
	Products []entry `yaml:"products" validate:"required,min=1,dive"`
}

type entry struct {
	Name     string `yaml:"name" json:"name" validate:"required"`
	Price    string `yaml:"price" json:"price" validate:"required"`
	URL      string `yaml:"url" json:"url" validate:"required"`
	Category string `yaml:"category" json:"category"`
}

// Catalog is a read-only, ordered product list.
type Catalog struct {
	products []domain.Product
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a YAML catalog from path, or the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := validator.Validate(&f); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	products := make([]domain.Product, 0, len(f.Products))
	for _, e := range f.Products {
		products = append(products, domain.Product{
			Name:     e.Name,
			Price:    e.Price,
			URL:      e.URL,
			Category: e.Category,
		})
	}
	return &Catalog{products: products}, nil
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}

// Products returns a copy of every product in catalog order.
func (c *Catalog) Products() []domain.Product {
	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Match returns the products whose name, price or category contains query,
// ignoring case, in catalog order. An empty query matches nothing.
func (c *Catalog) Match(query string) []domain.Product {
	matched := make([]domain.Product, 0)
	if query == "" {
		return matched
	}

	q := strings.ToLower(query)
	for _, p := range c.products {
		if contains(p.Name, q) || contains(p.Price, q) || contains(p.Category, q) {
			matched = append(matched, p)
		}
	}
	return matched
}

func contains(field, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(field), lowerQuery)
}
