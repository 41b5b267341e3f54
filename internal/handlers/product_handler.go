package handlers

import (
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"strconv"

	"arstore/internal/models"
	"arstore/internal/repositories"
	"arstore/internal/services"
	"arstore/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// maxImageFields is the number of image slots accepted per product
// upload (image0 through image5).
const maxImageFields = 6

// modelMIMETypes lists the content types accepted for 3D model uploads.
var modelMIMETypes = map[string]bool{
	"application/octet-stream": true,
	"model/vnd.usdz+zip":       true,
}

// ProductHandler handles HTTP requests for the product catalog.
type ProductHandler struct {
	service  *services.ProductService
	store    *storage.LocalStore
	validate *validator.Validate
}

// NewProductHandler creates a new ProductHandler. store is the upload
// directory files are written into before their names are persisted.
func NewProductHandler(service *services.ProductService, store *storage.LocalStore) *ProductHandler {
	return &ProductHandler{
		service:  service,
		store:    store,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the product routes with the Fiber app. auth
// protects the routes that need an authenticated identity.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/bySellerName/:name", h.HandleGetBySellerName)
	productRoutes.Get("/bySellerId/:sellerId", h.HandleGetBySellerID)
	productRoutes.Post("/upload", h.HandleUpload)
	productRoutes.Put("/update/:id", h.HandleUpdate)
	productRoutes.Get("/:id", h.HandleGetProductByID)
	productRoutes.Get("/:id/model3D", h.HandleGetModel3D)
	productRoutes.Post("/:id/ratings", auth, h.HandleAddRating)
	productRoutes.Delete("/:id", h.HandleDelete)
}

// HandleGetProducts retrieves all products with download URLs attached.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.service.ListProducts()
	if err != nil {
		log.Printf("Error getting all products: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve products",
			"error":   err.Error(),
		})
	}
	return c.JSON(products)
}

// HandleGetBySellerName retrieves products matching a seller name.
func (h *ProductHandler) HandleGetBySellerName(c *fiber.Ctx) error {
	name := c.Params("name")
	products, err := h.service.ListBySellerName(name)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "No products found for the specified seller name",
			})
		}
		log.Printf("Error getting products by seller name %s: %v", name, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve products",
			"error":   err.Error(),
		})
	}
	return c.JSON(products)
}

// HandleGetBySellerID retrieves products matching a seller ID.
func (h *ProductHandler) HandleGetBySellerID(c *fiber.Ctx) error {
	sellerID := c.Params("sellerId")
	if _, err := uuid.Parse(sellerID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid seller ID format",
		})
	}

	products, err := h.service.ListBySellerID(sellerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "No products found for the specified seller ID",
			})
		}
		log.Printf("Error getting products by seller ID %s: %v", sellerID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve products",
			"error":   err.Error(),
		})
	}
	return c.JSON(products)
}

// HandleGetProductByID retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	productID := c.Params("id")
	product, err := h.service.GetProduct(productID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Product not found",
			})
		}
		log.Printf("Error getting product by ID %s: %v", productID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve product",
			"error":   err.Error(),
		})
	}
	return c.JSON(product)
}

// HandleGetModel3D streams a product's 3D model file as an attachment.
func (h *ProductHandler) HandleGetModel3D(c *fiber.Ctx) error {
	productID := c.Params("id")
	path, filename, err := h.service.Model3DFile(productID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "File not found",
			})
		}
		log.Printf("Error resolving 3D model for product %s: %v", productID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve 3D model",
			"error":   err.Error(),
		})
	}
	return c.Download(path, filename)
}

// uploadRequest is the typed, validated form of a product upload's
// metadata fields.
type uploadRequest struct {
	Name          string  `validate:"required,min=1,max=200"`
	Price         float64 `validate:"required,gt=0"`
	Quantity      int     `validate:"gte=0"`
	Description   string  `validate:"omitempty,max=2000"`
	SellerID      string  `validate:"omitempty,uuid"`
	SellerName    string
	SellerAddress string
	Categories    []string
}

// parseUploadForm extracts and converts the metadata fields of a product
// upload. Presence of name/price/quantity is enforced by the caller via
// the validator.
func parseUploadForm(form *multipart.Form) (*uploadRequest, error) {
	req := &uploadRequest{
		Name:          formValue(form, "productName"),
		Description:   formValue(form, "productDescription"),
		SellerID:      formValue(form, "productSellerId"),
		SellerName:    formValue(form, "productSellerName"),
		SellerAddress: formValue(form, "productSellerAddress"),
		Categories:    form.Value["productCategory"],
	}

	if raw := formValue(form, "productPrice"); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid productPrice %q", raw)
		}
		req.Price = price
	}
	if raw := formValue(form, "productQuantity"); raw != "" {
		quantity, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid productQuantity %q", raw)
		}
		req.Quantity = quantity
	}
	return req, nil
}

// HandleUpload creates a product from a multipart submission: up to six
// image fields plus one 3D model file, stored to disk before their
// names are persisted.
func (h *ProductHandler) HandleUpload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid multipart form",
			"error":   err.Error(),
		})
	}

	req, err := parseUploadForm(form)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": err.Error(),
		})
	}
	if req.Name == "" || formValue(form, "productPrice") == "" || formValue(form, "productQuantity") == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Product name, price, and quantity are required",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		if req.SellerID != "" {
			if _, parseErr := uuid.Parse(req.SellerID); parseErr != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"message": "Invalid productSellerId",
				})
			}
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"error":   err.Error(),
		})
	}

	modelFile := firstFile(form, "usdzFile")
	if modelFile != nil && !modelMIMETypes[modelFile.Header.Get("Content-Type")] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Unsupported USDZ file type",
		})
	}

	images, err := h.saveImages(form)
	if err != nil {
		log.Printf("Error storing product images: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not store uploaded files",
			"error":   err.Error(),
		})
	}

	modelName := ""
	if modelFile != nil {
		modelName, err = h.store.Save(modelFile)
		if err != nil {
			log.Printf("Error storing 3D model file: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Could not store uploaded files",
				"error":   err.Error(),
			})
		}
	}

	product, err := h.service.CreateProduct(services.CreateProductInput{
		Name:          req.Name,
		Price:         req.Price,
		Quantity:      req.Quantity,
		Categories:    req.Categories,
		Description:   req.Description,
		SellerID:      req.SellerID,
		SellerName:    req.SellerName,
		SellerAddress: req.SellerAddress,
		Images:        images,
		Model3D:       modelName,
	})
	if err != nil {
		log.Printf("Error creating product: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not create product",
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdate applies a partial multipart update to a product. Only
// supplied form fields overwrite existing values; newly uploaded files
// replace the stored filenames.
func (h *ProductHandler) HandleUpdate(c *fiber.Ctx) error {
	productID := c.Params("id")
	if _, err := uuid.Parse(productID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid product ID",
		})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid multipart form",
			"error":   err.Error(),
		})
	}

	var input services.UpdateProductInput
	if v, ok := optionalValue(form, "productName"); ok {
		input.Name = &v
	}
	if v, ok := optionalValue(form, "productPrice"); ok {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": fmt.Sprintf("invalid productPrice %q", v),
			})
		}
		input.Price = &price
	}
	if v, ok := optionalValue(form, "productQuantity"); ok {
		quantity, err := strconv.Atoi(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": fmt.Sprintf("invalid productQuantity %q", v),
			})
		}
		input.Quantity = &quantity
	}
	if v, ok := optionalValue(form, "productDescription"); ok {
		input.Description = &v
	}
	if v, ok := optionalValue(form, "productSellerId"); ok {
		if _, err := uuid.Parse(v); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid productSellerId",
			})
		}
		input.SellerID = &v
	}
	if v, ok := optionalValue(form, "productSellerName"); ok {
		input.SellerName = &v
	}
	if categories := form.Value["productCategory"]; len(categories) > 0 {
		input.Categories = categories
	}

	modelFile := firstFile(form, "usdzFile")
	if modelFile != nil && !modelMIMETypes[modelFile.Header.Get("Content-Type")] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Unsupported USDZ file type",
		})
	}

	images, err := h.saveImages(form)
	if err != nil {
		log.Printf("Error storing product images: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not store uploaded files",
			"error":   err.Error(),
		})
	}
	input.Images = images

	if modelFile != nil {
		modelName, err := h.store.Save(modelFile)
		if err != nil {
			log.Printf("Error storing 3D model file: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Could not store uploaded files",
				"error":   err.Error(),
			})
		}
		input.Model3D = modelName
	}

	product, err := h.service.UpdateProduct(productID, input)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Product not found",
			})
		}
		log.Printf("Error updating product %s: %v", productID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not update product",
			"error":   err.Error(),
		})
	}

	return c.JSON(product)
}

// HandleDelete removes a product and its stored files, returning the
// deleted record.
func (h *ProductHandler) HandleDelete(c *fiber.Ctx) error {
	productID := c.Params("id")
	product, err := h.service.DeleteProduct(productID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Product not found",
			})
		}
		log.Printf("Error deleting product %s: %v", productID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not delete product",
			"error":   err.Error(),
		})
	}
	return c.JSON(product)
}

// RatingRequest represents the request body for adding a rating.
type RatingRequest struct {
	Score  int    `json:"score" validate:"required,min=1,max=5"`
	Review string `json:"review" validate:"omitempty,max=2000"`
}

// HandleAddRating appends the authenticated user's rating to a product.
func (h *ProductHandler) HandleAddRating(c *fiber.Ctx) error {
	productID := c.Params("id")

	var req RatingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Rating score must be between 1 and 5",
			"error":   err.Error(),
		})
	}

	userID, _ := c.Locals("user_id").(string)
	product, err := h.service.AddRating(productID, models.Rating{
		UserID: userID,
		Score:  req.Score,
		Review: req.Review,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Product not found",
			})
		}
		log.Printf("Error adding rating to product %s: %v", productID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not add rating",
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(product)
}

// saveImages stores every supplied image0..image5 file and returns the
// generated filenames in field order.
func (h *ProductHandler) saveImages(form *multipart.Form) ([]string, error) {
	var names []string
	for i := 0; i < maxImageFields; i++ {
		fh := firstFile(form, fmt.Sprintf("image%d", i))
		if fh == nil {
			continue
		}
		name, err := h.store.Save(fh)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// optionalValue distinguishes an absent field from one supplied empty.
func optionalValue(form *multipart.Form, key string) (string, bool) {
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func firstFile(form *multipart.Form, key string) *multipart.FileHeader {
	if files := form.File[key]; len(files) > 0 {
		return files[0]
	}
	return nil
}
