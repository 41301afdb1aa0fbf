package handler_test

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/handler"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/repository"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/service"
	"github.com/stockwatch/stockwatch-backend/pkg/database"
	"github.com/stockwatch/stockwatch-backend/pkg/logger"
	"github.com/stockwatch/stockwatch-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	ctx := context.Background()

	if !testing.Short() {
		var err error
		suite, err = testutil.NewIntegrationSuite(ctx)
		if err != nil {
			log.Fatalf("failed to create integration suite: %v", err)
		}
	}

	code := m.Run()

	if suite != nil {
		suite.Cleanup(ctx)
		testutil.TerminateContainer(ctx)
	}
	os.Exit(code)
}

// envelope mirrors httputil.Response with a raw payload
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rr interface{ Result() *http.Response }, target interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rr.Result().Body).Decode(&env))
	if target != nil {
		require.NoError(t, json.Unmarshal(env.Data, target))
	}
	return env
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

// newRouter mounts the inventory routes over db the way the service does
func newRouter(db *database.DB) http.Handler {
	log := logger.Nop()

	reportRepo := repository.NewReportRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	scanner := service.NewAlertScanner(reportRepo, alertRepo, nil, 7, log)

	ledger := service.NewStockLedgerService(repository.NewLedgerRepository(db), nil, nil, scanner, log)
	catalog := service.NewCatalogService(
		repository.NewCategoryRepository(db),
		repository.NewUnitRepository(db),
		repository.NewSupplierRepository(db),
		repository.NewItemRepository(db),
		repository.NewMenuItemRepository(db),
		nil, log,
	)
	reports := service.NewReportingService(
		reportRepo,
		repository.NewDeliveryRepository(db),
		repository.NewUsageRepository(db),
		nil, time.Minute, 7, log,
	)

	ledgerHandler := handler.NewLedgerHandler(ledger, reports, log)
	unitHandler := handler.NewUnitHandler(catalog, log)
	itemHandler := handler.NewItemHandler(catalog, log)
	menuItemHandler := handler.NewMenuItemHandler(catalog, log)
	reportHandler := handler.NewReportHandler(reports, log)
	exportHandler := handler.NewExportHandler(reports, log)
	alertHandler := handler.NewAlertHandler(service.NewAlertService(alertRepo), log)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/deliveries", ledgerHandler.ListDeliveries)
		r.Post("/deliveries", ledgerHandler.RecordDelivery)
		r.Get("/deliveries/{id}", ledgerHandler.GetDelivery)
		r.Get("/usage", ledgerHandler.ListUsage)
		r.Post("/usage/manual", ledgerHandler.RecordManualUsage)
		r.Post("/usage/sale/{menuItemId}", ledgerHandler.RecordSale)
		r.Post("/waste", ledgerHandler.RecordWaste)

		r.Post("/units", unitHandler.Create)
		r.Get("/items/{id}", itemHandler.Get)
		r.Post("/items", itemHandler.Create)
		r.Put("/items/{id}", itemHandler.Update)
		r.Post("/menu-items", menuItemHandler.Create)
		r.Post("/menu-items/{id}/ingredients", menuItemHandler.AddIngredient)

		r.Get("/reports/low-stock", reportHandler.LowStock)
		r.Get("/reports/low-stock/export", exportHandler.ExportLowStock)
		r.Get("/reports/expirations", reportHandler.Expirations)
		r.Get("/reports/reconciliation", reportHandler.Reconciliation)
		r.Get("/alerts", alertHandler.List)
		r.Get("/alerts/count", alertHandler.Count)
	})
	return r
}

// --- Requests rejected before reaching the store ---

func TestHandlers_RejectBadInput(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	router := newRouter(mockDB.DB)

	tests := []struct {
		name         string
		method       string
		path         string
		body         interface{}
		expectedCode string
		detailKey    string
	}{
		{
			name:   "delivery without lines",
			method: http.MethodPost, path: "/api/v1/deliveries",
			body:         map[string]interface{}{"deliveryDate": "2024-05-01", "items": []interface{}{}},
			expectedCode: "VALIDATION_ERROR", detailKey: "items",
		},
		{
			name:   "delivery with unparseable date",
			method: http.MethodPost, path: "/api/v1/deliveries",
			body: map[string]interface{}{
				"deliveryDate": "May 1st",
				"items":        []interface{}{map[string]interface{}{"itemId": 1, "quantityReceived": 5, "unitId": 1}},
			},
			expectedCode: "VALIDATION_ERROR", detailKey: "deliveryDate",
		},
		{
			name:   "delivery line with zero quantity",
			method: http.MethodPost, path: "/api/v1/deliveries",
			body: map[string]interface{}{
				"deliveryDate": "2024-05-01",
				"items": []interface{}{
					map[string]interface{}{"itemId": 1, "quantityReceived": 5, "unitId": 1},
					map[string]interface{}{"itemId": 2, "quantityReceived": 0, "unitId": 1},
				},
			},
			expectedCode: "VALIDATION_ERROR", detailKey: "items[1].quantityReceived",
		},
		{
			name:   "manual usage with negative quantity",
			method: http.MethodPost, path: "/api/v1/usage/manual",
			body:         map[string]interface{}{"itemId": 1, "quantityUsed": -2, "unitId": 1},
			expectedCode: "VALIDATION_ERROR", detailKey: "quantityUsed",
		},
		{
			name:   "manual usage with malformed JSON",
			method: http.MethodPost, path: "/api/v1/usage/manual",
			body:         `{"itemId": 1,`,
			expectedCode: "BAD_REQUEST",
		},
		{
			name:   "sale with non-numeric menu item",
			method: http.MethodPost, path: "/api/v1/usage/sale/bread",
			body:         map[string]interface{}{},
			expectedCode: "VALIDATION_ERROR", detailKey: "menuItemId",
		},
		{
			name:   "sale with zero quantity",
			method: http.MethodPost, path: "/api/v1/usage/sale/3",
			body:         map[string]interface{}{"quantitySold": 0},
			expectedCode: "VALIDATION_ERROR", detailKey: "quantitySold",
		},
		{
			name:   "waste without unit",
			method: http.MethodPost, path: "/api/v1/waste",
			body:         map[string]interface{}{"itemId": 1, "quantityWasted": 1},
			expectedCode: "VALIDATION_ERROR", detailKey: "unitId",
		},
		{
			name:   "item with malformed id",
			method: http.MethodGet, path: "/api/v1/items/-4",
			expectedCode: "VALIDATION_ERROR", detailKey: "id",
		},
		{
			name:   "item update touching the balance",
			method: http.MethodPut, path: "/api/v1/items/1",
			body:         map[string]interface{}{"name": "Flour", "unitId": 1, "reorderPoint": 1, "quantityOnHand": 99},
			expectedCode: "VALIDATION_ERROR", detailKey: "quantityOnHand",
		},
		{
			name:   "expiration window out of range",
			method: http.MethodGet, path: "/api/v1/reports/expirations?days=400",
			expectedCode: "VALIDATION_ERROR", detailKey: "days",
		},
		{
			name:   "usage list with malformed date",
			method: http.MethodGet, path: "/api/v1/usage?startDate=01-02-2024",
			expectedCode: "VALIDATION_ERROR", detailKey: "startDate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.NewHTTPRequest(tt.method, tt.path, tt.body)
			rr := testutil.ExecuteRequest(router, req)

			testutil.AssertStatus(t, rr, http.StatusBadRequest)
			env := decode(t, rr, nil)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.expectedCode, env.Error.Code)
			if tt.detailKey != "" {
				assert.Contains(t, env.Error.Details, tt.detailKey)
			}
		})
	}

	mockDB.ExpectationsWereMet(t)
}

// --- Full flows against PostgreSQL ---

type balanceView struct {
	ItemID         int64  `json:"itemId"`
	QuantityOnHand string `json:"quantityOnHand"`
}

func TestLedgerFlow_HTTP(t *testing.T) {
	testutil.SkipIfShort(t)
	schema := suite.SetupSchema(t, context.Background(), "http-ledger")
	router := newRouter(schema.DB)

	var unit struct {
		UnitID int64 `json:"unitId"`
	}
	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/units",
		map[string]interface{}{"name": "Kilogram", "abbreviation": "kg"}))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	decode(t, rr, &unit)

	var item struct {
		ItemID int64 `json:"itemId"`
	}
	rr = testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/items",
		map[string]interface{}{
			"name": "Flour", "unitId": unit.UnitID, "quantityOnHand": 0, "reorderPoint": 40,
			"itemType": "NonPerishable",
		}))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	decode(t, rr, &item)

	t.Run("delivery", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/deliveries",
			map[string]interface{}{
				"deliveryDate":  time.Now().Format("2006-01-02"),
				"invoiceNumber": "INV-1001",
				"items": []interface{}{
					map[string]interface{}{"itemId": item.ItemID, "quantityReceived": "50", "unitId": unit.UnitID, "costPerUnit": "0.85"},
				},
			}))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var delivery struct {
			DeliveryID int64 `json:"deliveryId"`
			Items      []struct {
				ItemName string `json:"itemName"`
			} `json:"items"`
		}
		decode(t, rr, &delivery)
		assert.NotZero(t, delivery.DeliveryID)
		require.Len(t, delivery.Items, 1)
		assert.Equal(t, "Flour", delivery.Items[0].ItemName)
	})

	t.Run("manual usage", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/usage/manual",
			map[string]interface{}{"itemId": item.ItemID, "quantityUsed": 20, "unitId": unit.UnitID}))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var result struct {
			UpdatedItem balanceView `json:"updatedItem"`
		}
		decode(t, rr, &result)
		testutil.AssertDecimal(t, "30", testutil.Dec(result.UpdatedItem.QuantityOnHand))
	})

	t.Run("sale", func(t *testing.T) {
		var menuItem struct {
			MenuItemID int64 `json:"menuItemId"`
		}
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/menu-items",
			map[string]interface{}{"name": "Bread", "price": "4.50"}))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		decode(t, rr, &menuItem)

		rr = testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost,
			"/api/v1/menu-items/"+itoa(menuItem.MenuItemID)+"/ingredients",
			map[string]interface{}{"itemId": item.ItemID, "quantityRequired": "0.5", "unitId": unit.UnitID}))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		rr = testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost,
			"/api/v1/usage/sale/"+itoa(menuItem.MenuItemID),
			map[string]interface{}{"quantitySold": 10}))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var result struct {
			Message string `json:"message"`
			Sale    struct {
				Deductions []balanceView `json:"deductions"`
			} `json:"sale"`
		}
		decode(t, rr, &result)
		assert.Contains(t, result.Message, "Bread")
		require.Len(t, result.Sale.Deductions, 1)
		testutil.AssertDecimal(t, "25", testutil.Dec(result.Sale.Deductions[0].QuantityOnHand))
	})

	t.Run("waste beyond the balance", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/waste",
			map[string]interface{}{"itemId": item.ItemID, "quantityWasted": 30, "unitId": unit.UnitID}))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		env := decode(t, rr, nil)
		require.NotNil(t, env.Error)
		assert.Equal(t, "INSUFFICIENT_STOCK", env.Error.Code)
		assert.Equal(t, "25", env.Error.Details["available"])
	})

	t.Run("usage of an unknown item", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/usage/manual",
			map[string]interface{}{"itemId": 987654, "quantityUsed": 1, "unitId": unit.UnitID}))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		env := decode(t, rr, nil)
		require.NotNil(t, env.Error)
		assert.Equal(t, "INVALID_REFERENCE", env.Error.Code)
	})

	t.Run("item read paths", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/items/"+itoa(item.ItemID), nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		var got balanceView
		decode(t, rr, &got)
		testutil.AssertDecimal(t, "25", testutil.Dec(got.QuantityOnHand))

		rr = testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/items/987654", nil))
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("usage history", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/usage?type=sale", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		var records []struct {
			UsageType string `json:"usageType"`
		}
		decode(t, rr, &records)
		require.Len(t, records, 1)
		assert.Equal(t, "sale", records[0].UsageType)
	})

	t.Run("reports", func(t *testing.T) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/reports/low-stock", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		var low []balanceView
		decode(t, rr, &low)
		require.Len(t, low, 1)
		assert.Equal(t, item.ItemID, low[0].ItemID)

		rr = testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/reports/reconciliation", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		var report struct {
			Consistent bool `json:"consistent"`
		}
		decode(t, rr, &report)
		assert.True(t, report.Consistent)

		rr = testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/alerts/count", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		var count struct {
			Count int64 `json:"count"`
		}
		decode(t, rr, &count)
		assert.Equal(t, int64(1), count.Count)
	})
}

func TestExportLowStock_HTTP(t *testing.T) {
	testutil.SkipIfShort(t)
	schema := suite.SetupSchema(t, context.Background(), "http-export")
	router := newRouter(schema.DB)

	kg := schema.Fixtures.Unit(t, "Kilogram", "kg")
	schema.Fixtures.Item(t, kg, "1", "5", testutil.WithItemName("Yeast"))

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/reports/low-stock/export", nil))

	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, service.XLSXContentType, rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "low-stock-")

	book, err := excelize.OpenReader(rr.Body)
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows("Low Stock")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Item", rows[0][1])
	assert.Equal(t, "Yeast", rows[1][1])
	assert.Equal(t, "kg", rows[1][5])
}
