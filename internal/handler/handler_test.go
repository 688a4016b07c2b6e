package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/digigoods/internal/domain/auth"
	"github.com/xenking/digigoods/internal/domain/cart"
	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/domain/order"
	"github.com/xenking/digigoods/internal/domain/product"
	"github.com/xenking/digigoods/internal/domain/user"
)

// --- Mock implementations ---

type mockUserRepo struct {
	users map[int64]*user.User
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (*user.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

type mockProductRepo struct {
	byID map[int64]product.Product
}

func (m *mockProductRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, &product.NotFoundError{ProductID: id}
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockValidator struct {
	discounts []discount.Discount
	err       error
}

func (m *mockValidator) Validate(_ context.Context, codes []string) ([]discount.Discount, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(codes) == 0 {
		return []discount.Discount{}, nil
	}
	return m.discounts, nil
}

type mockCommitter struct {
	err error
}

func (m *mockCommitter) Commit(_ context.Context, _ *order.Order, _ map[int64]int, _ []string) error {
	return m.err
}

type mockCartRepo struct {
	listLines []cart.Line
}

func (m *mockCartRepo) Upsert(_ context.Context, _, _ int64, _ int) error {
	return nil
}

func (m *mockCartRepo) List(_ context.Context, _ int64) ([]cart.Line, error) {
	return m.listLines, nil
}

type mockTokenRepo struct {
	token *auth.Token
}

func (m *mockTokenRepo) FindByHash(_ context.Context, hash string) (*auth.Token, error) {
	if m.token == nil || m.token.KeyHash != hash {
		return nil, errors.New("token not found")
	}
	return m.token, nil
}

// --- Helpers ---

type testEnv struct {
	handler   *Handler
	validator *mockValidator
	committer *mockCommitter
	cartRepo  *mockCartRepo
}

func newTestEnv(products ...product.Product) *testEnv {
	byID := make(map[int64]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	users := &mockUserRepo{users: map[int64]*user.User{1: {ID: 1, Username: "alice"}}}
	productRepo := &mockProductRepo{byID: byID}
	validator := &mockValidator{}
	committer := &mockCommitter{}
	cartRepo := &mockCartRepo{}

	return &testEnv{
		handler: NewHandler(
			order.NewService(users, productRepo, validator, committer),
			cart.NewService(users, productRepo, cartRepo),
		),
		validator: validator,
		committer: committer,
		cartRepo:  cartRepo,
	}
}

func newTestProduct(id int64, name, price string, stock int) product.Product {
	return product.Product{
		ID:    id,
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
}

// doAuthed serves the request with caller id 1 already established, the way
// Auth would after a successful token check.
func doAuthed(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), callerKey{}, int64(1)))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// --- Checkout tests ---

func TestCheckout_Success(t *testing.T) {
	env := newTestEnv(newTestProduct(1, "Widget", "10.00", 5))

	rec := doAuthed(env.handler.Checkout, http.MethodPost, "/api/checkout",
		`{"userId":1,"productIds":[1,1]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Order created successfully!", body["message"])
	assert.InDelta(t, 20.00, body["finalPrice"], 0.001)
}

func TestCheckout_FinalPriceHasTwoDecimals(t *testing.T) {
	env := newTestEnv(newTestProduct(1, "Widget", "10.00", 5))

	rec := doAuthed(env.handler.Checkout, http.MethodPost, "/api/checkout",
		`{"userId":1,"productIds":[1]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"finalPrice":10.00`)
}

func TestCheckout_MissingCaller(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodPost, "/api/checkout",
		strings.NewReader(`{"userId":1,"productIds":[1]}`))
	rec := httptest.NewRecorder()
	env.handler.Checkout(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckout_AnotherUsersOrderForbidden(t *testing.T) {
	env := newTestEnv(newTestProduct(1, "Widget", "10.00", 5))

	rec := doAuthed(env.handler.Checkout, http.MethodPost, "/api/checkout",
		`{"userId":2,"productIds":[1]}`)

	require.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "User cannot place order for another user", body["message"])
}

func TestCheckout_MalformedBody(t *testing.T) {
	env := newTestEnv()

	rec := doAuthed(env.handler.Checkout, http.MethodPost, "/api/checkout", `{"userId":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_EmptyProducts(t *testing.T) {
	env := newTestEnv()

	rec := doAuthed(env.handler.Checkout, http.MethodPost, "/api/checkout",
		`{"userId":1,"productIds":[]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_ProductNotFound(t *testing.T) {
	env := newTestEnv()

	rec := doAuthed(env.handler.Checkout, http.MethodPost, "/api/checkout",
		`{"userId":1,"productIds":[99]}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckout_InvalidDiscount(t *testing.T) {
	env := newTestEnv(newTestProduct(1, "Widget", "10.00", 5))
	env.validator.err = &discount.InvalidDiscountError{
		Code:   "BOGUS",
		Reason: discount.ReasonNotFound,
	}

	rec := doAuthed(env.handler.Checkout, http.MethodPost, "/api/checkout",
		`{"userId":1,"productIds":[1],"discountCodes":["BOGUS"]}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["message"], "discount code not found")
}

func TestCheckout_ExcessiveDiscount(t *testing.T) {
	env := newTestEnv(newTestProduct(1, "Widget", "100.00", 5))
	env.validator.discounts = []discount.Discount{{
		Code:          "HUGE",
		Percentage:    decimal.NewFromInt(90),
		Kind:          discount.KindGeneral,
		RemainingUses: 5,
	}}

	rec := doAuthed(env.handler.Checkout, http.MethodPost, "/api/checkout",
		`{"userId":1,"productIds":[1],"discountCodes":["HUGE"]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_InsufficientStockAtCommit(t *testing.T) {
	env := newTestEnv(newTestProduct(1, "Widget", "10.00", 5))
	env.committer.err = &product.InsufficientStockError{ProductID: 1, Requested: 2, Available: 1}

	rec := doAuthed(env.handler.Checkout, http.MethodPost, "/api/checkout",
		`{"userId":1,"productIds":[1,1]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_CommitFailureIsInternal(t *testing.T) {
	env := newTestEnv(newTestProduct(1, "Widget", "10.00", 5))
	env.committer.err = errors.New("connection reset")

	rec := doAuthed(env.handler.Checkout, http.MethodPost, "/api/checkout",
		`{"userId":1,"productIds":[1]}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "internal error", body["message"])
}

// --- Cart tests ---

func TestAddToCart_Success(t *testing.T) {
	env := newTestEnv(newTestProduct(1, "Widget", "10.00", 5))

	rec := doAuthed(env.handler.AddToCart, http.MethodPost, "/api/carts",
		`{"productId":1,"quantity":2}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Product added to cart successfully!", body["message"])
	assert.Equal(t, "Widget", body["productName"])
}

func TestAddToCart_InvalidQuantity(t *testing.T) {
	env := newTestEnv(newTestProduct(1, "Widget", "10.00", 5))

	rec := doAuthed(env.handler.AddToCart, http.MethodPost, "/api/carts",
		`{"productId":1,"quantity":0}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddToCart_InsufficientStock(t *testing.T) {
	env := newTestEnv(newTestProduct(1, "Widget", "10.00", 2))

	rec := doAuthed(env.handler.AddToCart, http.MethodPost, "/api/carts",
		`{"productId":1,"quantity":3}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddToCart_ProductNotFound(t *testing.T) {
	env := newTestEnv()

	rec := doAuthed(env.handler.AddToCart, http.MethodPost, "/api/carts",
		`{"productId":42,"quantity":1}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCart_Empty(t *testing.T) {
	env := newTestEnv()

	rec := doAuthed(env.handler.GetCart, http.MethodGet, "/api/carts", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetCart_ReturnsLines(t *testing.T) {
	env := newTestEnv()
	env.cartRepo.listLines = []cart.Line{
		{ProductID: 1, ProductName: "Widget", Quantity: 2},
		{ProductID: 2, ProductName: "Gadget", Quantity: 1},
	}

	rec := doAuthed(env.handler.GetCart, http.MethodGet, "/api/carts", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"productId":1,"productName":"Widget","quantity":2},
		{"productId":2,"productName":"Gadget","quantity":1}
	]`, rec.Body.String())
}

// --- Auth middleware tests ---

func tokenHash(token string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestAuth_ValidToken(t *testing.T) {
	pepper := []byte("pepper")
	repo := &mockTokenRepo{token: &auth.Token{
		ID:      1,
		UserID:  42,
		KeyHash: tokenHash("secret-token", pepper),
	}}

	var gotCaller int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := CallerID(r.Context())
		require.True(t, ok)
		gotCaller = id
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/carts", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()
	Auth(repo, pepper)(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), gotCaller)
}

func TestAuth_MissingHeader(t *testing.T) {
	repo := &mockTokenRepo{}
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("next handler must not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/carts", nil)
	rec := httptest.NewRecorder()
	Auth(repo, []byte("pepper"))(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_UnknownToken(t *testing.T) {
	repo := &mockTokenRepo{}
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("next handler must not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/carts", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rec := httptest.NewRecorder()
	Auth(repo, []byte("pepper"))(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_NonBearerScheme(t *testing.T) {
	repo := &mockTokenRepo{}

	req := httptest.NewRequest(http.MethodGet, "/api/carts", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	Auth(repo, []byte("pepper"))(http.NotFoundHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
