package models

import (
	"strings"
	"time"
)

// DefaultCategory is appended to every product's category list so that
// clients filtering on "All" always see the full catalog.
const DefaultCategory = "All"

// Seller is the embedded seller reference on a product. SellerID weakly
// references a User; no ownership cascade is implied.
type Seller struct {
	SellerID string `json:"seller_id" validate:"omitempty,uuid"`
	Name     string `json:"seller_name"`
	Address  string `json:"seller_address"`
}

// Rating is a single user review embedded in a product.
type Rating struct {
	UserID string `json:"user_id"`
	Score  int    `json:"score" validate:"required,min=1,max=5"`
	Review string `json:"review"`
}

// Product represents a catalog entry. Images holds a comma-joined list
// of stored filenames; Model3D holds the stored 3D asset filename.
type Product struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name        string    `json:"product_name" validate:"required,min=1,max=200"`
	Price       float64   `json:"product_price" validate:"required,gt=0"`
	Quantity    int       `json:"product_quantity" validate:"gte=0"`
	Categories  []string  `json:"product_category" gorm:"serializer:json"`
	Description string    `json:"product_desc" validate:"omitempty,max=2000"`
	Images      string    `json:"product_images"`
	Model3D     string    `json:"product_model3D"`
	Seller      Seller    `json:"product_seller" gorm:"embedded;embeddedPrefix:seller_"`
	Ratings     []Rating  `json:"product_rating,omitempty" gorm:"serializer:json"`
	UpdatedAt   time.Time `json:"update_at"`
}

// ImageList splits the comma-joined Images field into trimmed filenames.
func (p *Product) ImageList() []string {
	if p.Images == "" {
		return nil
	}
	parts := strings.Split(p.Images, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// EnsureDefaultCategory appends DefaultCategory unless already present.
func (p *Product) EnsureDefaultCategory() {
	for _, c := range p.Categories {
		if c == DefaultCategory {
			return
		}
	}
	p.Categories = append(p.Categories, DefaultCategory)
}

// ProductResponse mirrors Product on the wire but carries image and
// model references as fully-qualified download URLs.
type ProductResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"product_name"`
	Price       float64   `json:"product_price"`
	Quantity    int       `json:"product_quantity"`
	Categories  []string  `json:"product_category"`
	Description string    `json:"product_desc"`
	Images      []string  `json:"product_images"`
	Model3D     string    `json:"product_model3D"`
	Seller      Seller    `json:"product_seller"`
	Ratings     []Rating  `json:"product_rating,omitempty"`
	UpdatedAt   time.Time `json:"update_at"`
}

// NewProductResponse rewrites stored filenames to absolute URLs under
// {baseURL}/download/products/.
func NewProductResponse(p *Product, baseURL string) ProductResponse {
	prefix := baseURL + "/download/products/"
	images := p.ImageList()
	urls := make([]string, len(images))
	for i, name := range images {
		urls[i] = prefix + name
	}

	resp := ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Quantity:    p.Quantity,
		Categories:  p.Categories,
		Description: p.Description,
		Images:      urls,
		Seller:      p.Seller,
		Ratings:     p.Ratings,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Model3D != "" {
		resp.Model3D = prefix + p.Model3D
	}
	return resp
}
