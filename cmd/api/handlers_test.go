package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"budmart/docs"
	"budmart/internal/auth"
	"budmart/internal/domain/orders"
	"budmart/internal/domain/products"
	"budmart/internal/domain/storage"
	"budmart/internal/ident"
	"budmart/internal/importer"
	"budmart/internal/mailer"
	"budmart/internal/ratelimiter"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	decimal.MarshalJSONWithoutQuotes = true
	os.Exit(m.Run())
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type testApp struct {
	*application
	handler  http.Handler
	products *memProducts
	cleaner  *recordingCleaner
}

func newTestApplication(t *testing.T) *testApp {
	t.Helper()

	logger := zap.NewNop().Sugar()
	numbers, err := orders.NewNumberGenerator("test")
	require.NoError(t, err)

	prods := newMemProducts()
	cats := newMemCategories(prods)
	store := &storage.Container{
		Products:   prods,
		Categories: cats,
		Orders:     newMemOrders(prods, numbers),
		Leads:      newMemLeads(),
		Banners:    newMemBanners(),
	}
	cleaner := &recordingCleaner{}

	app := &application{
		config: config{
			env:   "test",
			admin: auth.AdminCredentials{Username: "admin", Password: "s3cret"},
		},
		store:         store,
		logger:        logger,
		cleanup:       cleaner,
		mailer:        mailer.NewNoop(logger),
		authenticator: auth.NewJWTAuthenticator("test-secret", "budmart", "budmart", time.Hour),
		importer:      importer.New(prods, cats, logger),
	}
	t.Cleanup(app.wg.Wait)

	return &testApp{application: app, handler: app.mount(), products: prods, cleaner: cleaner}
}

func (ta *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ta.handler.ServeHTTP(rr, req)
	return rr
}

func (ta *testApp) login(t *testing.T) string {
	t.Helper()

	rr := ta.do(t, http.MethodPost, "/v1/auth/login", "", LoginPayload{Username: "admin", Password: "s3cret"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.NotEmpty(t, res.Token)
	return res.Token
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func TestLogin(t *testing.T) {
	ta := newTestApplication(t)

	t.Run("wrong password", func(t *testing.T) {
		rr := ta.do(t, http.MethodPost, "/v1/auth/login", "", LoginPayload{Username: "admin", Password: "nope"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)

		body := decode[errorBody](t, rr)
		assert.False(t, body.Success)
		assert.Equal(t, http.StatusUnauthorized, body.Status)
	})

	t.Run("me", func(t *testing.T) {
		token := ta.login(t)
		rr := ta.do(t, http.MethodGet, "/v1/auth/me", token, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "admin", decode[MeResponse](t, rr).Username)
	})

	t.Run("token for another subject", func(t *testing.T) {
		other, err := ta.authenticator.GenerateToken("intruder")
		require.NoError(t, err)
		rr := ta.do(t, http.MethodGet, "/v1/auth/me", other, nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestAdminRoutesNeedToken(t *testing.T) {
	ta := newTestApplication(t)

	rr := ta.do(t, http.MethodPost, "/v1/products", "", map[string]any{"name": "Цемент", "price": 10})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ta.do(t, http.MethodGet, "/v1/orders", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestProductLifecycle(t *testing.T) {
	ta := newTestApplication(t)
	token := ta.login(t)

	rr := ta.do(t, http.MethodPost, "/v1/products", token, map[string]any{
		"name":   "Test Hammer",
		"price":  199.99,
		"stock":  5,
		"images": []map[string]string{{"url": "https://res.cloudinary.com/demo/image/upload/v1/products/hammer.jpg", "publicId": "products/hammer"}},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	id, ok := created["_id"].(string)
	require.True(t, ok, "_id should be a string")
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/v1/products/hammer.jpg", created["image"])
	assert.Equal(t, "products/hammer", created["imagePublicId"])
	assert.Equal(t, 199.99, created["price"])

	t.Run("duplicate name", func(t *testing.T) {
		rr := ta.do(t, http.MethodPost, "/v1/products", token, map[string]any{"name": "test hammer", "price": 1})
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("public get", func(t *testing.T) {
		rr := ta.do(t, http.MethodGet, "/v1/products/"+id, "", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	})

	t.Run("negative price", func(t *testing.T) {
		rr := ta.do(t, http.MethodPost, "/v1/products", token, map[string]any{"name": "Broken", "price": -1})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	rr = ta.do(t, http.MethodDelete, "/v1/products/"+id, token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[OKResponse](t, rr).OK)
	assert.Equal(t, []string{"products/hammer"}, ta.cleaner.queued())

	rr = ta.do(t, http.MethodGet, "/v1/products/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpdateProductQueuesRemovedImages(t *testing.T) {
	ta := newTestApplication(t)
	token := ta.login(t)

	rr := ta.do(t, http.MethodPost, "/v1/products", token, map[string]any{
		"name":  "Плитка",
		"price": 350,
		"images": []map[string]string{
			{"url": "https://img/a.jpg", "publicId": "products/a"},
			{"url": "https://img/b.jpg", "publicId": "products/b"},
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[map[string]any](t, rr)["_id"].(string)

	rr = ta.do(t, http.MethodPut, "/v1/products/"+id, token, map[string]any{
		"images": []map[string]string{{"url": "https://img/b.jpg", "publicId": "products/b"}},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	updated := decode[map[string]any](t, rr)
	assert.Equal(t, "https://img/b.jpg", updated["image"])
	assert.Equal(t, "Плитка", updated["name"])
	assert.Equal(t, []string{"products/a"}, ta.cleaner.queued())
}

func TestDeleteAllProducts(t *testing.T) {
	ta := newTestApplication(t)
	token := ta.login(t)

	for _, name := range []string{"Цемент М500", "Пісок"} {
		rr := ta.do(t, http.MethodPost, "/v1/products", token, map[string]any{
			"name":   name,
			"price":  100,
			"images": []map[string]string{{"url": "https://img/" + name, "publicId": "products/" + name}},
		})
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := ta.do(t, http.MethodDelete, "/v1/products", token, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "confirm is required")

	rr = ta.do(t, http.MethodDelete, "/v1/products?confirm=true", token, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code, "password is required")

	rr = ta.do(t, http.MethodDelete, "/v1/products?confirm=true", token, DeleteAllPayload{Password: "wrong"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, 2, ta.products.count())

	req := httptest.NewRequest(http.MethodDelete, "/v1/products?confirm=true", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Admin-Password", "s3cret")
	res := httptest.NewRecorder()
	ta.handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	body := decode[DeleteAllResponse](t, res)
	assert.True(t, body.OK)
	assert.EqualValues(t, 2, body.Deleted)
	assert.Equal(t, 0, ta.products.count())
	assert.ElementsMatch(t, []string{"products/Цемент М500", "products/Пісок"}, ta.cleaner.queued())
}

func TestListProductsPagination(t *testing.T) {
	ta := newTestApplication(t)
	token := ta.login(t)

	for _, name := range []string{"Цегла", "Цемент", "Гіпс"} {
		rr := ta.do(t, http.MethodPost, "/v1/products", token, map[string]any{"name": name, "price": 1})
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := ta.do(t, http.MethodGet, "/v1/products", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	all := decode[[]map[string]any](t, rr)
	require.Len(t, all, 3)
	assert.Equal(t, "Гіпс", all[0]["name"], "newest first")

	rr = ta.do(t, http.MethodGet, "/v1/products?page=2&limit=2", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var page struct {
		Items []map[string]any `json:"items"`
		Total int              `json:"total"`
		Page  int              `json:"page"`
		Limit int              `json:"limit"`
		Pages int              `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, 2, page.Pages)

	rr = ta.do(t, http.MethodGet, "/v1/products?q=цем", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]any](t, rr), 1)

	rr = ta.do(t, http.MethodGet, "/v1/products?page=9223372036854775807&limit=100", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "an offset past int32 is rejected")
}

func TestProductCounts(t *testing.T) {
	ta := newTestApplication(t)
	token := ta.login(t)

	category := func(name, parent string) string {
		body := map[string]any{"name": name}
		if parent != "" {
			body["parent"] = parent
		}
		rr := ta.do(t, http.MethodPost, "/v1/categories", token, body)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		return decode[map[string]any](t, rr)["_id"].(string)
	}
	mixes := category("Суміші", "")
	cement := category("Цемент", mixes)
	m500 := category("М500", cement)
	paint := category("Фарби", "")

	seed := []map[string]any{
		{"name": "Цемент ПЦ-500 25кг", "category": mixes, "subcategory": cement, "type": m500},
		{"name": "Цемент ПЦ-400 50кг", "category": mixes, "subcategory": cement},
		{"name": "Клей для плитки", "category": mixes},
		{"name": "Фарба фасадна", "category": paint},
		{"name": "Цемент без категорії"},
	}
	for _, body := range seed {
		body["price"] = 1
		rr := ta.do(t, http.MethodPost, "/v1/products", token, body)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	counts := func(query string) products.Counts {
		rr := ta.do(t, http.MethodGet, "/v1/products/counts"+query, "", nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		return decode[products.Counts](t, rr)
	}

	t.Run("no filter", func(t *testing.T) {
		c := counts("")
		assert.Equal(t, map[string]int{mixes: 3, paint: 1}, c.ByCategory)
		assert.Equal(t, map[string]int{cement: 2}, c.BySubcategory)
		assert.Equal(t, map[string]int{m500: 1}, c.ByType)
	})

	t.Run("name filter", func(t *testing.T) {
		c := counts("?q=" + url.QueryEscape("цемент"))
		assert.Equal(t, map[string]int{mixes: 2}, c.ByCategory, "unassigned products are not counted")
		assert.Equal(t, map[string]int{cement: 2}, c.BySubcategory)
		assert.Equal(t, map[string]int{m500: 1}, c.ByType)
	})

	t.Run("category filter", func(t *testing.T) {
		c := counts("?category=" + paint)
		assert.Equal(t, map[string]int{paint: 1}, c.ByCategory)
		assert.Empty(t, c.BySubcategory)
		assert.Empty(t, c.ByType)
	})

	t.Run("bad id", func(t *testing.T) {
		rr := ta.do(t, http.MethodGet, "/v1/products/counts?category=abc", "", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestCategories(t *testing.T) {
	ta := newTestApplication(t)
	token := ta.login(t)

	create := func(name string, parent string) *httptest.ResponseRecorder {
		body := map[string]any{"name": name}
		if parent != "" {
			body["parent"] = parent
		}
		return ta.do(t, http.MethodPost, "/v1/categories", token, body)
	}

	rr := create("Будівельні суміші", "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	root := decode[map[string]any](t, rr)
	rootID := root["_id"].(string)
	assert.Nil(t, root["parent"])

	rr = create("будівельні суміші", "")
	assert.Equal(t, http.StatusConflict, rr.Code, "sibling names are unique case-insensitively")

	rr = create("Цемент", rootID)
	require.Equal(t, http.StatusCreated, rr.Code)
	childID := decode[map[string]any](t, rr)["_id"].(string)

	rr = create("Сухі", "999")
	assert.Equal(t, http.StatusNotFound, rr.Code, "parent must exist")

	t.Run("tree", func(t *testing.T) {
		rr := ta.do(t, http.MethodGet, "/v1/categories/tree", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		tree := decode[[]map[string]any](t, rr)
		require.Len(t, tree, 1)
		assert.Len(t, tree[0]["children"], 1)
	})

	t.Run("roots only", func(t *testing.T) {
		rr := ta.do(t, http.MethodGet, "/v1/categories?parent=null", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, decode[[]map[string]any](t, rr), 1)
	})

	t.Run("cycle", func(t *testing.T) {
		rr := ta.do(t, http.MethodPut, "/v1/categories/"+rootID, token, map[string]any{"parent": childID})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("delete parent with children", func(t *testing.T) {
		rr := ta.do(t, http.MethodDelete, "/v1/categories/"+rootID, token, nil)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("reassign", func(t *testing.T) {
		rr := ta.do(t, http.MethodPost, "/v1/products", token, map[string]any{"name": "Цемент ПЦ-400", "price": 180, "category": rootID, "subcategory": childID})
		require.Equal(t, http.StatusCreated, rr.Code)

		rr = create("Сухі суміші", "")
		require.Equal(t, http.StatusCreated, rr.Code)
		targetID := decode[map[string]any](t, rr)["_id"].(string)

		rr = ta.do(t, http.MethodPost, "/v1/categories/reassign", token, map[string]any{"from": rootID, "to": targetID})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.EqualValues(t, 1, decode[ReassignResponse](t, rr).Modified)

		rr = ta.do(t, http.MethodPost, "/v1/categories/reassign", token, map[string]any{"from": targetID, "to": targetID})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("delete leaf", func(t *testing.T) {
		rr := ta.do(t, http.MethodDelete, "/v1/categories/"+childID, token, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, decode[OKResponse](t, rr).OK)
	})
}

func TestCreateOrderSnapshotsPrices(t *testing.T) {
	ta := newTestApplication(t)
	token := ta.login(t)

	rr := ta.do(t, http.MethodPost, "/v1/products", token, map[string]any{"name": "Фарба", "price": "233.33"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	productID := decode[map[string]any](t, rr)["_id"].(string)

	rr = ta.do(t, http.MethodPost, "/v1/orders", "", map[string]any{
		"customerName": "Олена",
		"phone":        "+38 (050) 123-45-67",
		"address":      "Київ",
		"items":        []map[string]any{{"product": productID, "quantity": 3}},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	order := decode[map[string]any](t, rr)
	assert.Equal(t, 699.99, order["totalPrice"])
	assert.Equal(t, "new", order["status"])
	assert.True(t, strings.HasPrefix(order["number"].(string), "BM-"))
	orderID := order["_id"].(string)

	id, err := ident.Parse(productID)
	require.NoError(t, err)
	ta.products.setPrice(id, "999")

	rr = ta.do(t, http.MethodGet, "/v1/orders/"+orderID, token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 699.99, decode[map[string]any](t, rr)["totalPrice"], "later price changes do not touch the order")

	t.Run("unknown product", func(t *testing.T) {
		rr := ta.do(t, http.MethodPost, "/v1/orders", "", map[string]any{
			"customerName": "Олена",
			"phone":        "0501234567",
			"items":        []map[string]any{{"product": "4242", "quantity": 1}},
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("empty order", func(t *testing.T) {
		rr := ta.do(t, http.MethodPost, "/v1/orders", "", map[string]any{
			"customerName": "Олена",
			"phone":        "0501234567",
			"items":        []map[string]any{},
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("status update", func(t *testing.T) {
		rr := ta.do(t, http.MethodPut, "/v1/orders/"+orderID, token, map[string]any{"status": "shipped"})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "shipped", decode[map[string]any](t, rr)["status"])

		rr = ta.do(t, http.MethodPut, "/v1/orders/"+orderID, token, map[string]any{"status": "lost"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("list by status", func(t *testing.T) {
		rr := ta.do(t, http.MethodGet, "/v1/orders?status=shipped", token, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, decode[[]map[string]any](t, rr), 1)

		rr = ta.do(t, http.MethodGet, "/v1/orders?status=new", token, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, decode[[]map[string]any](t, rr))
	})
}

func TestCreateLead(t *testing.T) {
	ta := newTestApplication(t)

	rr := ta.do(t, http.MethodPost, "/v1/leads", "", map[string]any{
		"type":     "delivery",
		"name":     "Іван",
		"phone":    "0671234567",
		"city":     "Львів",
		"street":   "Городоцька",
		"house":    "12",
		"datetime": "2026-10-20T10:00:00Z",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	lead := decode[map[string]any](t, rr)
	assert.Equal(t, "new", lead["status"])
	assert.NotEmpty(t, lead["_id"])

	rr = ta.do(t, http.MethodPost, "/v1/leads", "", map[string]any{
		"type":  "delivery",
		"name":  "Іван",
		"phone": "0671234567",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "delivery needs an address and a time")

	rr = ta.do(t, http.MethodPost, "/v1/leads", "", map[string]any{
		"type":  "call",
		"name":  "Іван",
		"phone": "12345",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "phone must be Ukrainian")

	rr = ta.do(t, http.MethodPost, "/v1/leads", "", map[string]any{
		"type":   "call",
		"name":   "Іван",
		"phone":  "+380671234567",
		"city":   "Львів",
		"street": "ignored",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[map[string]any](t, rr)["city"], "call requests drop the address")
}

func TestBulkCSVUpsertsBySKU(t *testing.T) {
	ta := newTestApplication(t)
	token := ta.login(t)

	csvBody := "name;price;sku\nЦвяхи 100мм;45,50;NAIL-100\nЦвяхи 100 мм (уп.);47;NAIL-100\n"

	req := httptest.NewRequest(http.MethodPost, "/v1/products/bulk", strings.NewReader(csvBody))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	ta.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	summary := decode[importer.Summary](t, rr)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, ta.products.count())

	rr = ta.do(t, http.MethodGet, "/v1/products", "", nil)
	list := decode[[]map[string]any](t, rr)
	require.Len(t, list, 1)
	assert.Equal(t, "Цвяхи 100 мм (уп.)", list[0]["name"])
	assert.Equal(t, 47.0, list[0]["price"])

	t.Run("json wrapper", func(t *testing.T) {
		rr := ta.do(t, http.MethodPost, "/v1/products/bulk", token, BulkCSVPayload{CSV: "name,price\nЩебінь,900\n"})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, 1, decode[importer.Summary](t, rr).Inserted)
	})

	t.Run("garbage", func(t *testing.T) {
		rr := ta.do(t, http.MethodPost, "/v1/products/bulk", token, "hello")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

// deadlineProducts records the context deadline the importer writes under.
type deadlineProducts struct {
	*memProducts

	mu       sync.Mutex
	deadline time.Time
}

func (d *deadlineProducts) Insert(ctx context.Context, p *products.Product) (*products.Product, error) {
	d.mu.Lock()
	d.deadline, _ = ctx.Deadline()
	d.mu.Unlock()
	return d.memProducts.Insert(ctx, p)
}

func TestImportOutlivesRequestTimeout(t *testing.T) {
	ta := newTestApplication(t)
	token := ta.login(t)

	recorder := &deadlineProducts{memProducts: ta.products}
	ta.importer = importer.New(recorder, ta.store.Categories, ta.logger)

	rr := ta.do(t, http.MethodPost, "/v1/products/bulk", token, BulkCSVPayload{CSV: "name,price\nЩебінь,900\n"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, 1, decode[importer.Summary](t, rr).Inserted)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.False(t, recorder.deadline.IsZero())
	assert.Greater(t, time.Until(recorder.deadline), requestTimeout)
}

type deadlineWriter struct {
	*httptest.ResponseRecorder
	read, write time.Time
}

func (d *deadlineWriter) SetReadDeadline(t time.Time) error {
	d.read = t
	return nil
}

func (d *deadlineWriter) SetWriteDeadline(t time.Time) error {
	d.write = t
	return nil
}

func TestExtendDeadlines(t *testing.T) {
	w := &deadlineWriter{ResponseRecorder: httptest.NewRecorder()}
	h := ExtendDeadlines(10 * time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	start := time.Now()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.WithinDuration(t, start.Add(10*time.Minute), w.read, time.Second)
	assert.WithinDuration(t, start.Add(10*time.Minute), w.write, time.Second)

	t.Run("unsupported writer", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}

func TestXLSXExportImportRoundTrip(t *testing.T) {
	ta := newTestApplication(t)
	token := ta.login(t)

	for _, name := range []string{"Профнастил", "Утеплювач"} {
		rr := ta.do(t, http.MethodPost, "/v1/products", token, map[string]any{"name": name, "price": 250, "unit": "м2"})
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := ta.do(t, http.MethodGet, "/v1/products/export/xlsx", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, xlsxContentType, rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), ".xlsx")
	workbook := rr.Body.Bytes()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "products.xlsx")
	require.NoError(t, err)
	_, err = part.Write(workbook)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/products/import/xlsx", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	ta.handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	summary := decode[importer.Summary](t, res)
	assert.Equal(t, 2, summary.Updated)
	assert.Zero(t, summary.Inserted)
	assert.Equal(t, 2, ta.products.count())
}

func TestExportCSV(t *testing.T) {
	ta := newTestApplication(t)
	token := ta.login(t)

	rr := ta.do(t, http.MethodPost, "/v1/products", token, map[string]any{"name": "Клей для плитки", "price": 320})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = ta.do(t, http.MethodGet, "/v1/products/export/all", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, rr.Body.String(), "Клей для плитки")
	assert.Contains(t, rr.Body.String(), "320.00")
}

func TestBanner(t *testing.T) {
	ta := newTestApplication(t)
	token := ta.login(t)

	rr := ta.do(t, http.MethodGet, "/v1/banner", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	empty := decode[map[string]any](t, rr)
	assert.Equal(t, "home", empty["key"])
	assert.Empty(t, empty["items"])

	rr = ta.do(t, http.MethodPut, "/v1/banner", token, map[string]any{
		"key": "home",
		"items": []map[string]string{
			{"url": "https://img/1.jpg", "publicId": "banners/1"},
			{"url": "https://img/2.jpg", "publicId": "banners/2"},
		},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = ta.do(t, http.MethodPut, "/v1/banner", token, map[string]any{
		"key":   "home",
		"items": []map[string]string{{"url": "https://img/2.jpg", "publicId": "banners/2"}},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"banners/1"}, ta.cleaner.queued())

	rr = ta.do(t, http.MethodGet, "/v1/banner?key=home", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[map[string]any](t, rr)["items"], 1)
}

func TestUploadWithoutImageStore(t *testing.T) {
	ta := newTestApplication(t)
	token := ta.login(t)

	rr := ta.do(t, http.MethodPost, "/v1/uploads/image", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHealthCheck(t *testing.T) {
	ta := newTestApplication(t)
	ta.config.auth.basic = basicConfig{user: "ops", pass: "ops"}

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rr := httptest.NewRecorder()
	ta.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.SetBasicAuth("ops", "ops")
	rr = httptest.NewRecorder()
	ta.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "ok", decode[map[string]any](t, rr)["status"])
}

func TestValidPhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"+380501234567", true},
		{"380501234567", true},
		{"0501234567", true},
		{"050 123-45-67", true},
		{"+38 (050) 123 45 67", true},
		{"501234567", false},
		{"+48501234567", false},
		{"05012345678", false},
		{"phone", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, validPhone(tt.phone), tt.phone)
	}
}

func TestTurnstileMiddleware(t *testing.T) {
	verifier := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		ok := r.PostForm.Get("secret") == "turnstile-secret" && r.PostForm.Get("response") == "good-token"
		_ = json.NewEncoder(w).Encode(map[string]any{"success": ok, "hostname": "budmart.ua"})
	}))
	defer verifier.Close()

	ta := newTestApplication(t)
	ta.config.turnstile = turnstileConfig{
		secretKey:        "turnstile-secret",
		expectedHostname: "budmart.ua",
		verifyURL:        verifier.URL,
	}

	lead := `{"type":"call","name":"Іван","phone":"0671234567"}`
	send := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/leads", strings.NewReader(lead))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set(turnstileHeader, token)
		}
		rr := httptest.NewRecorder()
		ta.handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusBadRequest, send(""))
	assert.Equal(t, http.StatusBadRequest, send("bad-token"))
	assert.Equal(t, http.StatusOK, send("good-token"))

	ta.config.turnstile.expectedHostname = "elsewhere.ua"
	assert.Equal(t, http.StatusBadRequest, send("good-token"))
}

func TestRateLimiterMiddleware(t *testing.T) {
	ta := newTestApplication(t)
	limiter := ratelimiter.NewFixedWindowLimiter(2, time.Minute)
	defer limiter.Stop()
	ta.rateLimiter = limiter
	ta.config.rateLimiter = ratelimiter.Config{RequestsPerTimeFrame: 2, TimeFrame: time.Minute, Enabled: true}

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = ta.do(t, http.MethodPost, "/v1/auth/login", "", LoginPayload{Username: "admin", Password: "nope"})
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
}

func TestSwaggerDescribesEveryRoute(t *testing.T) {
	ta := newTestApplication(t)

	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(docs.SwaggerInfo.ReadDoc()), &doc))

	routes := map[string]bool{}
	err := chi.Walk(ta.handler.(chi.Routes), func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		route = strings.TrimPrefix(route, "/v1")
		if route != "/" {
			route = strings.TrimSuffix(route, "/")
		}
		if strings.HasPrefix(route, "/swagger") || route == "/debug/vars" {
			return nil
		}
		routes[strings.ToLower(method)+" "+route] = true
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, routes)

	for key := range routes {
		method, path, _ := strings.Cut(key, " ")
		_, ok := doc.Paths[path][method]
		assert.True(t, ok, "%s is mounted but not documented", key)
	}
	for path, ops := range doc.Paths {
		for method := range ops {
			assert.True(t, routes[method+" "+path], "%s %s is documented but not mounted", method, path)
		}
	}
}
