package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"arstore/internal/handlers"
	"arstore/internal/middleware"
	"arstore/internal/models"
	"arstore/internal/repositories"
	"arstore/internal/services"
	"arstore/internal/storage"

	"github.com/dgrijalva/jwt-go"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	testJWTSecret = "test_jwt_secret"
	testBaseURL   = "http://localhost:3000"
)

type testEnv struct {
	app          *fiber.App
	uploadStore  *storage.LocalStore
	profileStore *storage.LocalStore
}

// setupEnv wires the full application against a throwaway SQLite
// database and temp upload directories.
func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Product{}))

	uploadStore, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	profileStore, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	userRepo := repositories.NewGORMUserRepository(db)
	productRepo := repositories.NewGORMProductRepository(db)

	authService := services.NewAuthService(userRepo, testJWTSecret)
	userService := services.NewUserService(userRepo, profileStore, testBaseURL)
	productService := services.NewProductService(productRepo, uploadStore, nil, testBaseURL)

	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService, profileStore)
	productHandler := handlers.NewProductHandler(productService, uploadStore)

	app := fiber.New()
	authRequired := middleware.AuthRequired(authService)
	authHandler.RegisterRoutes(app)
	userHandler.RegisterRoutes(app, authRequired)
	productHandler.RegisterRoutes(app, authRequired)
	app.Static("/download/products", uploadStore.Dir())
	app.Static("/download/users", profileStore.Dir())

	return &testEnv{app: app, uploadStore: uploadStore, profileStore: profileStore}
}

func (e *testEnv) doJSON(t *testing.T, method, path string, body interface{}, token string) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)

	payload := map[string]interface{}{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body = io.NopCloser(bytes.NewReader(data))
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &payload))
	}
	return resp, payload
}

func (e *testEnv) register(t *testing.T, username, password string) {
	t.Helper()
	resp, _ := e.doJSON(t, http.MethodPost, "/auth/register", map[string]string{
		"username":    username,
		"password":    password,
		"email":       username + "@example.com",
		"address":     "1 Test Street",
		"phoneNum":    "0812345678",
		"dateOfBirth": "1999-04-02",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	resp, payload := e.doJSON(t, http.MethodPost, "/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := payload["token"].(string)
	require.NotEmpty(t, token)
	return token
}

// multipartBody builds a multipart request body from string fields and
// files given as field -> filename -> content.
func multipartBody(t *testing.T, fields map[string]string, files map[string][2]string, modelMIME string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, w.WriteField(key, value))
	}
	for field, file := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, file[0]))
		contentType := "application/octet-stream"
		if field == "usdzFile" && modelMIME != "" {
			contentType = modelMIME
		}
		header.Set("Content-Type", contentType)
		part, err := w.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte(file[1]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (e *testEnv) doMultipart(t *testing.T, method, path string, fields map[string]string, files map[string][2]string, modelMIME string) (*http.Response, map[string]interface{}) {
	t.Helper()

	body, contentType := multipartBody(t, fields, files, modelMIME)
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)

	payload := map[string]interface{}{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &payload))
	}
	return resp, payload
}

func TestRegisterAndLogin(t *testing.T) {
	env := setupEnv(t)

	env.register(t, "alice", "password123")

	// The registered user is listed, without any password material
	resp, _ := env.doJSON(t, http.MethodGet, "/users", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "password123")
	assert.NotContains(t, string(data), `"Password"`)

	// Correct credentials yield a token decodable to the same user
	token := env.login(t, "alice", "password123")
	parsed, err := jwt.Parse(token, func(tok *jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "alice", claims["username"])
	assert.NotEmpty(t, claims["user_id"])

	// Wrong password and unknown username both fail with the same 401
	resp, _ = env.doJSON(t, http.MethodPost, "/auth/login", map[string]string{"username": "alice", "password": "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = env.doJSON(t, http.MethodPost, "/auth/login", map[string]string{"username": "mallory", "password": "password123"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegisterValidation(t *testing.T) {
	env := setupEnv(t)

	// Missing required fields
	resp, _ := env.doJSON(t, http.MethodPost, "/auth/register", map[string]string{"username": "bob"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Duplicate username conflicts
	env.register(t, "bob", "password123")
	resp, _ = env.doJSON(t, http.MethodPost, "/auth/register", map[string]string{
		"username":    "bob",
		"password":    "password123",
		"email":       "other@example.com",
		"address":     "1 Test Street",
		"phoneNum":    "0812345678",
		"dateOfBirth": "1999-04-02",
	}, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUserProfile(t *testing.T) {
	env := setupEnv(t)
	env.register(t, "carol", "password123")
	token := env.login(t, "carol", "password123")

	// No token
	resp, _ := env.doJSON(t, http.MethodGet, "/users/profile", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Expired token
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  "whoever",
		"username": "carol",
		"exp":      time.Now().Add(-time.Hour).Unix(),
	})
	expiredString, err := expired.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	resp, _ = env.doJSON(t, http.MethodGet, "/users/profile", nil, expiredString)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Valid token: non-sensitive fields only, date-only DOB
	resp, payload := env.doJSON(t, http.MethodGet, "/users/profile", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "carol", payload["username"])
	assert.Equal(t, "1999-04-02", payload["dateOfBirth"])
	assert.NotContains(t, payload, "password")
	assert.NotContains(t, payload, "Password")
}

func productFields() map[string]string {
	return map[string]string{
		"productName":          "Toy Car",
		"productPrice":         "19.99",
		"productQuantity":      "3",
		"productCategory":      "Toys",
		"productDescription":   "A small car",
		"productSellerName":    "acme",
		"productSellerAddress": "2 Factory Road",
	}
}

func TestProductUploadLifecycle(t *testing.T) {
	env := setupEnv(t)

	files := map[string][2]string{
		"image0":   {"car.png", "png-bytes"},
		"image1":   {"car2.png", "more-png-bytes"},
		"usdzFile": {"car.usdz", "usdz-bytes"},
	}

	resp, created := env.doMultipart(t, http.MethodPost, "/products/upload", productFields(), files, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	productID, _ := created["id"].(string)
	require.NotEmpty(t, productID)

	// Category list contains both the supplied category and "All"
	categories := created["product_category"].([]interface{})
	assert.ElementsMatch(t, []interface{}{"Toys", "All"}, categories)

	// Stored files exist on disk
	images, _ := created["product_images"].(string)
	require.NotEmpty(t, images)
	model, _ := created["product_model3D"].(string)
	require.NotEmpty(t, model)
	assert.True(t, env.uploadStore.Exists(model))

	// Listing rewrites filenames to absolute download URLs
	resp, _ = env.doJSON(t, http.MethodGet, "/products", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	req := httptest.NewRequest(http.MethodGet, "/products/"+productID, nil)
	single, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, single.StatusCode)
	var shaped map[string]interface{}
	require.NoError(t, json.NewDecoder(single.Body).Decode(&shaped))
	urls := shaped["product_images"].([]interface{})
	require.Len(t, urls, 2)
	for _, u := range urls {
		assert.Contains(t, u.(string), testBaseURL+"/download/products/")
	}
	assert.Contains(t, shaped["product_model3D"].(string), testBaseURL+"/download/products/")

	// 3D model download streams the stored file
	req = httptest.NewRequest(http.MethodGet, "/products/"+productID+"/model3D", nil)
	download, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, download.StatusCode)
	downloaded, err := io.ReadAll(download.Body)
	require.NoError(t, err)
	assert.Equal(t, "usdz-bytes", string(downloaded))

	// Partial update: only the price changes
	resp, updated := env.doMultipart(t, http.MethodPut, "/products/update/"+productID,
		map[string]string{"productPrice": "25.50"}, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 25.50, updated["product_price"])
	assert.Equal(t, "Toy Car", updated["product_name"])
	assert.Equal(t, images, updated["product_images"])
	assert.ElementsMatch(t, []interface{}{"Toys", "All"}, updated["product_category"].([]interface{}))

	// Delete removes the record and the stored files
	resp, deleted := env.doJSON(t, http.MethodDelete, "/products/"+productID, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, productID, deleted["id"])
	assert.False(t, env.uploadStore.Exists(model))

	resp, _ = env.doJSON(t, http.MethodGet, "/products/"+productID, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProductUploadValidation(t *testing.T) {
	env := setupEnv(t)

	// Missing name/price/quantity
	resp, _ := env.doMultipart(t, http.MethodPost, "/products/upload",
		map[string]string{"productName": "Incomplete"}, nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Malformed seller ID
	fields := productFields()
	fields["productSellerId"] = "not-a-uuid"
	resp, _ = env.doMultipart(t, http.MethodPost, "/products/upload", fields, nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Wrong model MIME type
	resp, _ = env.doMultipart(t, http.MethodPost, "/products/upload", productFields(),
		map[string][2]string{"usdzFile": {"car.usdz", "usdz-bytes"}}, "text/plain")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProductSellerFilters(t *testing.T) {
	env := setupEnv(t)

	sellerID := "11111111-1111-1111-1111-111111111111"
	fields := productFields()
	fields["productSellerId"] = sellerID
	resp, _ := env.doMultipart(t, http.MethodPost, "/products/upload", fields, nil, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Match by name and by ID
	resp, _ = env.doJSON(t, http.MethodGet, "/products/bySellerName/acme", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.doJSON(t, http.MethodGet, "/products/bySellerId/"+sellerID, nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// No match is 404, malformed seller ID is 400
	resp, _ = env.doJSON(t, http.MethodGet, "/products/bySellerName/nobody", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = env.doJSON(t, http.MethodGet, "/products/bySellerId/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = env.doJSON(t, http.MethodGet, "/products/bySellerId/22222222-2222-2222-2222-222222222222", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProductRatings(t *testing.T) {
	env := setupEnv(t)
	env.register(t, "dave", "password123")
	token := env.login(t, "dave", "password123")

	resp, created := env.doMultipart(t, http.MethodPost, "/products/upload", productFields(), nil, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	productID := created["id"].(string)

	// Unauthenticated rating is rejected
	resp, _ = env.doJSON(t, http.MethodPost, "/products/"+productID+"/ratings",
		map[string]interface{}{"score": 5, "review": "great"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Out-of-range scores are rejected
	for _, score := range []int{0, 6} {
		resp, _ = env.doJSON(t, http.MethodPost, "/products/"+productID+"/ratings",
			map[string]interface{}{"score": score}, token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}

	// A valid rating is appended with the authenticated user's ID
	resp, rated := env.doJSON(t, http.MethodPost, "/products/"+productID+"/ratings",
		map[string]interface{}{"score": 4, "review": "solid"}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ratings := rated["product_rating"].([]interface{})
	require.Len(t, ratings, 1)
	rating := ratings[0].(map[string]interface{})
	assert.Equal(t, float64(4), rating["score"])
	assert.NotEmpty(t, rating["user_id"])
}

func TestUserUpdateAndDelete(t *testing.T) {
	env := setupEnv(t)
	env.register(t, "erin", "password123")

	// Find erin's ID
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	var users []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&users))
	require.Len(t, users, 1)
	userID := users[0]["id"].(string)

	// Partial update with a profile image
	respU, updated := env.doMultipart(t, http.MethodPut, "/users/"+userID,
		map[string]string{"address": "9 New Lane"},
		map[string][2]string{"image": {"face.png", "image-bytes"}}, "")
	require.Equal(t, http.StatusOK, respU.StatusCode)
	assert.Equal(t, "9 New Lane", updated["address"])
	assert.Equal(t, "erin", updated["username"])
	image := updated["image"].(string)
	assert.Equal(t, "profileImage_"+userID+".png", image)
	assert.True(t, env.profileStore.Exists(image))

	// Delete removes record and image
	respD, _ := env.doJSON(t, http.MethodDelete, "/users/"+userID, nil, "")
	require.Equal(t, http.StatusOK, respD.StatusCode)
	assert.False(t, env.profileStore.Exists(image))
	respG, _ := env.doJSON(t, http.MethodGet, "/users/"+userID, nil, "")
	assert.Equal(t, http.StatusNotFound, respG.StatusCode)
}
