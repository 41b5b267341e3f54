package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	"arstore/internal/models"
	"arstore/internal/repositories"
	"arstore/internal/storage"
)

// EventPublisher publishes catalog lifecycle events to a message broker.
// A nil publisher is tolerated; events are then skipped with a log line.
type EventPublisher interface {
	PublishCatalogEvent(event string, payload map[string]interface{}) error
}

// ProductService handles business logic related to products: catalog
// queries with download-URL shaping, upload persistence, partial
// updates, ratings, and delete-time disk cleanup.
type ProductService struct {
	repo      repositories.ProductRepository
	store     *storage.LocalStore
	publisher EventPublisher
	baseURL   string
}

// NewProductService creates a new ProductService. store is the upload
// directory backing product images and 3D models; baseURL is the public
// root under which /download/products is mounted.
func NewProductService(repo repositories.ProductRepository, store *storage.LocalStore, publisher EventPublisher, baseURL string) *ProductService {
	return &ProductService{
		repo:      repo,
		store:     store,
		publisher: publisher,
		baseURL:   baseURL,
	}
}

// CreateProductInput is the validated result of a product upload. Images
// and Model3D reference files already written to the upload store.
type CreateProductInput struct {
	Name          string
	Price         float64
	Quantity      int
	Categories    []string
	Description   string
	SellerID      string
	SellerName    string
	SellerAddress string
	Images        []string
	Model3D       string
}

// UpdateProductInput carries a partial product update. Nil pointers and
// nil slices leave the corresponding field untouched.
type UpdateProductInput struct {
	Name        *string
	Price       *float64
	Quantity    *int
	Categories  []string
	Description *string
	SellerID    *string
	SellerName  *string
	Images      []string
	Model3D     string
}

// ListProducts retrieves all products with download URLs attached.
func (s *ProductService) ListProducts() ([]models.ProductResponse, error) {
	products, err := s.repo.GetAll()
	if err != nil {
		return nil, err
	}
	return s.shapeAll(products), nil
}

// GetProduct retrieves a single product by its ID.
func (s *ProductService) GetProduct(id string) (*models.ProductResponse, error) {
	product, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	resp := models.NewProductResponse(product, s.baseURL)
	return &resp, nil
}

// ListBySellerName retrieves products by exact seller name match. An
// empty result set is reported as not found.
func (s *ProductService) ListBySellerName(name string) ([]models.ProductResponse, error) {
	products, err := s.repo.GetBySellerName(name)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("no products for seller name %s: %w", name, repositories.ErrNotFound)
	}
	return s.shapeAll(products), nil
}

// ListBySellerID retrieves products by seller ID. An empty result set is
// reported as not found. The ID format is validated at the handler
// boundary.
func (s *ProductService) ListBySellerID(sellerID string) ([]models.ProductResponse, error) {
	products, err := s.repo.GetBySellerID(sellerID)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("no products for seller ID %s: %w", sellerID, repositories.ErrNotFound)
	}
	return s.shapeAll(products), nil
}

// CreateProduct persists a new product from an upload. The default
// category is always appended to the supplied list.
func (s *ProductService) CreateProduct(input CreateProductInput) (*models.Product, error) {
	product := &models.Product{
		Name:        input.Name,
		Price:       input.Price,
		Quantity:    input.Quantity,
		Categories:  input.Categories,
		Description: input.Description,
		Images:      joinFilenames(input.Images),
		Model3D:     input.Model3D,
		Seller: models.Seller{
			SellerID: input.SellerID,
			Name:     input.SellerName,
			Address:  input.SellerAddress,
		},
		UpdatedAt: time.Now(),
	}
	product.EnsureDefaultCategory()

	if err := s.repo.Create(product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.publish("product.created", map[string]interface{}{
		"product_id": product.ID,
		"name":       product.Name,
		"seller_id":  product.Seller.SellerID,
	})

	return product, nil
}

// UpdateProduct applies a partial update: only supplied fields overwrite
// existing ones. Replaced filenames do not trigger deletion of the old
// files on disk.
func (s *ProductService) UpdateProduct(id string, input UpdateProductInput) (*models.Product, error) {
	product, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		product.Name = *input.Name
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.Quantity != nil {
		product.Quantity = *input.Quantity
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.SellerID != nil {
		product.Seller.SellerID = *input.SellerID
	}
	if input.SellerName != nil {
		product.Seller.Name = *input.SellerName
	}
	if input.Categories != nil {
		product.Categories = input.Categories
		product.EnsureDefaultCategory()
	}
	if len(input.Images) > 0 {
		product.Images = joinFilenames(input.Images)
	}
	if input.Model3D != "" {
		product.Model3D = input.Model3D
	}
	product.UpdatedAt = time.Now()

	if err := s.repo.Update(product); err != nil {
		return nil, err
	}

	s.publish("product.updated", map[string]interface{}{
		"product_id": product.ID,
	})

	return product, nil
}

// DeleteProduct removes the product record, then deletes its stored
// image and model files. File removal failures are logged, never
// surfaced: the record deletion is the authoritative outcome.
func (s *ProductService) DeleteProduct(id string) (*models.Product, error) {
	product, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Delete(id); err != nil {
		return nil, err
	}

	for _, name := range product.ImageList() {
		if err := s.store.Remove(name); err != nil {
			log.Printf("Failed to delete image file %s for product %s: %v", name, id, err)
		}
	}
	if product.Model3D != "" {
		if err := s.store.Remove(product.Model3D); err != nil {
			log.Printf("Failed to delete 3D model file %s for product %s: %v", product.Model3D, id, err)
		}
	}

	s.publish("product.deleted", map[string]interface{}{
		"product_id": product.ID,
	})

	return product, nil
}

// AddRating appends a user rating to a product. Score bounds are
// validated at the handler boundary.
func (s *ProductService) AddRating(id string, rating models.Rating) (*models.Product, error) {
	product, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	product.Ratings = append(product.Ratings, rating)
	product.UpdatedAt = time.Now()

	if err := s.repo.Update(product); err != nil {
		return nil, err
	}
	return product, nil
}

// Model3DFile resolves a product's stored 3D model to its on-disk path
// and download filename. A product without a model, or a model whose
// file is gone, is reported as not found.
func (s *ProductService) Model3DFile(id string) (path string, filename string, err error) {
	product, err := s.repo.GetByID(id)
	if err != nil {
		return "", "", err
	}
	if product.Model3D == "" || !s.store.Exists(product.Model3D) {
		return "", "", fmt.Errorf("3D model file for product %s: %w", id, repositories.ErrNotFound)
	}
	return s.store.Path(product.Model3D), product.Model3D, nil
}

func (s *ProductService) shapeAll(products []models.Product) []models.ProductResponse {
	responses := make([]models.ProductResponse, len(products))
	for i := range products {
		responses[i] = models.NewProductResponse(&products[i], s.baseURL)
	}
	return responses
}

// publish sends a catalog event, logging failures instead of failing the
// request.
func (s *ProductService) publish(event string, payload map[string]interface{}) {
	if s.publisher == nil {
		log.Println("Event publisher is not initialized. Skipping message publication.")
		return
	}
	if err := s.publisher.PublishCatalogEvent(event, payload); err != nil {
		log.Printf("Warning: Failed to publish %s event: %v", event, err)
	}
}

func joinFilenames(names []string) string {
	return strings.Join(names, ", ")
}
