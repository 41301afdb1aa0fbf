package service_test

import (
	"context"
	"flag"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stockwatch/stockwatch-backend/internal/inventory/repository"
	"github.com/stockwatch/stockwatch-backend/internal/inventory/service"
	"github.com/stockwatch/stockwatch-backend/pkg/errors"
	"github.com/stockwatch/stockwatch-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

type services struct {
	schema  *testutil.TestSchema
	ledger  *service.StockLedgerService
	catalog *service.CatalogService
	reports *service.ReportingService
	alerts  *repository.AlertRepository
}

func newServices(t *testing.T, name string) *services {
	t.Helper()
	testutil.SkipIfShort(t)

	schema := suite.SetupSchema(t, context.Background(), name)
	db := schema.DB
	log := suite.Logger

	reportRepo := repository.NewReportRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	scanner := service.NewAlertScanner(reportRepo, alertRepo, nil, 7, log)

	return &services{
		schema: schema,
		ledger: service.NewStockLedgerService(repository.NewLedgerRepository(db), nil, nil, scanner, log),
		catalog: service.NewCatalogService(
			repository.NewCategoryRepository(db),
			repository.NewUnitRepository(db),
			repository.NewSupplierRepository(db),
			repository.NewItemRepository(db),
			repository.NewMenuItemRepository(db),
			nil, log,
		),
		reports: service.NewReportingService(
			reportRepo,
			repository.NewDeliveryRepository(db),
			repository.NewUsageRepository(db),
			nil, time.Minute, 7, log,
		),
		alerts: alertRepo,
	}
}

func today() string {
	return time.Now().Format("2006-01-02")
}

func TestLedger_KitchenDay(t *testing.T) {
	s := newServices(t, "kitchen-day")
	ctx := context.Background()
	fx := s.schema.Fixtures

	kg := fx.Unit(t, "Kilogram", "kg")
	flour := fx.Item(t, kg, "0", "40", testutil.WithItemName("Flour"))

	t.Run("delivery raises the balance", func(t *testing.T) {
		delivery, err := s.ledger.RecordDelivery(ctx, &service.RecordDeliveryInput{
			DeliveryDate: today(),
			Lines: []service.DeliveryLineInput{
				{ItemID: flour, QuantityReceived: testutil.Dec("50"), UnitID: kg},
			},
		})
		require.NoError(t, err)
		require.Len(t, delivery.Lines, 1)
		assert.Equal(t, "Flour", delivery.Lines[0].ItemName)

		testutil.AssertDecimal(t, "50", fx.Balance(t, flour))
		assert.Equal(t, 1, fx.Count(t, "delivery_lines"))
	})

	t.Run("manual usage lowers the balance", func(t *testing.T) {
		result, err := s.ledger.RecordManualUsage(ctx, &service.RecordManualUsageInput{
			ItemID:       flour,
			QuantityUsed: testutil.Dec("20"),
			UnitID:       kg,
		})
		require.NoError(t, err)
		assert.Equal(t, repository.UsageTypeManual, result.UsageRecord.UsageType)
		testutil.AssertDecimal(t, "30", result.UpdatedItem.QuantityOnHand)
		testutil.AssertDecimal(t, "30", fx.Balance(t, flour))
		assert.Equal(t, 1, fx.Count(t, "usage_records"))
	})

	t.Run("low stock report includes the item", func(t *testing.T) {
		low, err := s.reports.LowStock(ctx)
		require.NoError(t, err)
		require.Len(t, low, 1)
		assert.Equal(t, flour, low[0].ItemID)
		testutil.AssertDecimal(t, "30", low[0].QuantityOnHand)
	})

	t.Run("sale deducts the recipe", func(t *testing.T) {
		bread := fx.MenuItem(t, "Bread", "4.50")
		fx.Ingredient(t, bread, flour, "0.5", kg)

		result, err := s.ledger.RecordSale(ctx, &service.RecordSaleInput{
			MenuItemID:   bread,
			QuantitySold: testutil.PtrInt(10),
		})
		require.NoError(t, err)
		require.Len(t, result.Sale.Deductions, 1)
		testutil.AssertDecimal(t, "5", result.Sale.Deductions[0].QuantityDeducted)
		testutil.AssertDecimal(t, "25", fx.Balance(t, flour))

		require.Len(t, result.Sale.UsageRecords, 1)
		record := result.Sale.UsageRecords[0]
		assert.Equal(t, repository.UsageTypeSale, record.UsageType)
		require.NotNil(t, record.MenuItemID)
		assert.Equal(t, bread, *record.MenuItemID)
	})

	t.Run("oversized waste is refused", func(t *testing.T) {
		_, err := s.ledger.RecordWaste(ctx, &service.RecordWasteInput{
			ItemID:         flour,
			QuantityWasted: testutil.Dec("30"),
			UnitID:         kg,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

		appErr, _ := errors.AsAppError(err)
		assert.Equal(t, "30", appErr.Details["requested"])
		assert.Equal(t, "25", appErr.Details["available"])

		testutil.AssertDecimal(t, "25", fx.Balance(t, flour))
		assert.Equal(t, 0, fx.Count(t, "waste_records"))
	})

	t.Run("ledger reconciles with the balance", func(t *testing.T) {
		report, err := s.reports.Reconcile(ctx, &flour)
		require.NoError(t, err)
		assert.True(t, report.Consistent)
		require.Len(t, report.Items, 1)
		testutil.AssertDecimal(t, "25", report.Items[0].Expected)
		assert.Empty(t, report.Items[0].ReplayError)
	})
}

func TestRecordDelivery_FailedLineLeavesNoTrace(t *testing.T) {
	s := newServices(t, "delivery-atomic")
	ctx := context.Background()
	fx := s.schema.Fixtures

	kg := fx.Unit(t, "Kilogram", "kg")
	items := make([]int64, 4)
	for i := range items {
		items[i] = fx.Item(t, kg, "1", "0")
	}

	in := &service.RecordDeliveryInput{DeliveryDate: today()}
	for _, id := range []int64{items[0], items[1], 999999, items[2], items[3]} {
		in.Lines = append(in.Lines, service.DeliveryLineInput{
			ItemID: id, QuantityReceived: testutil.Dec("10"), UnitID: kg,
		})
	}

	_, err := s.ledger.RecordDelivery(ctx, in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidReference))
	appErr, _ := errors.AsAppError(err)
	assert.Equal(t, "3", appErr.Details["line"])

	for _, id := range items {
		testutil.AssertDecimal(t, "1", fx.Balance(t, id))
	}
	assert.Equal(t, 0, fx.Count(t, "deliveries"))
	assert.Equal(t, 0, fx.Count(t, "delivery_lines"))
}

func TestRecordDelivery_UnknownSupplier(t *testing.T) {
	s := newServices(t, "delivery-supplier")
	fx := s.schema.Fixtures

	kg := fx.Unit(t, "Kilogram", "kg")
	item := fx.Item(t, kg, "0", "0")

	_, err := s.ledger.RecordDelivery(context.Background(), &service.RecordDeliveryInput{
		SupplierID:   testutil.PtrInt64(4242),
		DeliveryDate: today(),
		Lines: []service.DeliveryLineInput{
			{ItemID: item, QuantityReceived: testutil.Dec("1"), UnitID: kg},
		},
	})
	require.Error(t, err)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "INVALID_REFERENCE", appErr.Code)
	assert.Equal(t, "supplier", appErr.Details["resource"])
	assert.Equal(t, "4242", appErr.Details["id"])
}

func TestRecordSale_AllOrNothing(t *testing.T) {
	s := newServices(t, "sale-atomic")
	ctx := context.Background()
	fx := s.schema.Fixtures

	kg := fx.Unit(t, "Kilogram", "kg")
	cheese := fx.Item(t, kg, "10", "0", testutil.WithItemName("Cheese"))
	dough := fx.Item(t, kg, "0.2", "0", testutil.WithItemName("Dough"))

	pizza := fx.MenuItem(t, "Pizza", "12")
	fx.Ingredient(t, pizza, cheese, "0.3", kg)
	fx.Ingredient(t, pizza, dough, "0.25", kg)

	_, err := s.ledger.RecordSale(ctx, &service.RecordSaleInput{MenuItemID: pizza})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))
	appErr, _ := errors.AsAppError(err)
	assert.Equal(t, "Dough", appErr.Details["itemName"])

	testutil.AssertDecimal(t, "10", fx.Balance(t, cheese))
	testutil.AssertDecimal(t, "0.2", fx.Balance(t, dough))
	assert.Equal(t, 0, fx.Count(t, "usage_records"))
}

func TestRecordSale_WithoutRecipe(t *testing.T) {
	s := newServices(t, "sale-no-recipe")
	ctx := context.Background()
	fx := s.schema.Fixtures

	kg := fx.Unit(t, "Kilogram", "kg")
	item := fx.Item(t, kg, "5", "0")
	water := fx.MenuItem(t, "Tap Water", "0")

	result, err := s.ledger.RecordSale(ctx, &service.RecordSaleInput{
		MenuItemID:   water,
		QuantitySold: testutil.PtrInt(3),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Sale.Deductions)
	assert.Contains(t, result.Message, "no stock was deducted")

	require.Len(t, result.Sale.UsageRecords, 1)
	record := result.Sale.UsageRecords[0]
	assert.Nil(t, record.ItemID)
	testutil.AssertDecimal(t, "3", record.QuantityUsed)

	testutil.AssertDecimal(t, "5", fx.Balance(t, item))
}

func TestRecordSale_UnknownMenuItem(t *testing.T) {
	s := newServices(t, "sale-unknown")

	_, err := s.ledger.RecordSale(context.Background(), &service.RecordSaleInput{MenuItemID: 31337})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidReference))
}

func TestRecordManualUsage_ConcurrentDeductionsNeverOverdraw(t *testing.T) {
	s := newServices(t, "usage-race")
	ctx := context.Background()
	fx := s.schema.Fixtures

	kg := fx.Unit(t, "Kilogram", "kg")
	item := fx.Item(t, kg, "10", "0")

	var wg sync.WaitGroup
	results := make(chan error, 2)
	start := make(chan struct{})

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.ledger.RecordManualUsage(ctx, &service.RecordManualUsageInput{
				ItemID:       item,
				QuantityUsed: testutil.Dec("6"),
				UnitID:       kg,
			})
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	var succeeded, refused int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, errors.ErrInsufficientStock):
			refused++
			appErr, _ := errors.AsAppError(err)
			assert.Equal(t, "4", appErr.Details["available"])
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, refused)
	testutil.AssertDecimal(t, "4", fx.Balance(t, item))
	assert.Equal(t, 1, fx.Count(t, "usage_records"))
}

func TestLedger_BalanceConservation(t *testing.T) {
	s := newServices(t, "conservation")
	ctx := context.Background()
	fx := s.schema.Fixtures

	l := fx.Unit(t, "Litre", "l")
	milk := fx.Item(t, l, "2.5", "0")
	latte := fx.MenuItem(t, "Latte", "3.80")
	fx.Ingredient(t, latte, milk, "0.25", l)

	for i := 0; i < 3; i++ {
		_, err := s.ledger.RecordDelivery(ctx, &service.RecordDeliveryInput{
			DeliveryDate: today(),
			Lines: []service.DeliveryLineInput{
				{ItemID: milk, QuantityReceived: testutil.Dec("4.125"), UnitID: l},
			},
		})
		require.NoError(t, err)
	}
	_, err := s.ledger.RecordManualUsage(ctx, &service.RecordManualUsageInput{
		ItemID: milk, QuantityUsed: testutil.Dec("1.1"), UnitID: l,
	})
	require.NoError(t, err)
	_, err = s.ledger.RecordSale(ctx, &service.RecordSaleInput{MenuItemID: latte, QuantitySold: testutil.PtrInt(7)})
	require.NoError(t, err)
	_, err = s.ledger.RecordWaste(ctx, &service.RecordWasteInput{
		ItemID: milk, QuantityWasted: testutil.Dec("0.4"), UnitID: l, Reason: testutil.PtrString("spoiled"),
	})
	require.NoError(t, err)

	// 2.5 + 3*4.125 - 1.1 - 7*0.25 - 0.4
	testutil.AssertDecimal(t, "11.625", fx.Balance(t, milk))

	report, err := s.reports.Reconcile(ctx, nil)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, 1, report.ItemsChecked)
}

func TestReconcile_ReportsDrift(t *testing.T) {
	s := newServices(t, "reconcile-drift")
	ctx := context.Background()
	fx := s.schema.Fixtures

	kg := fx.Unit(t, "Kilogram", "kg")
	item := fx.Item(t, kg, "10", "0")

	_, err := s.schema.DB.ExecContext(ctx,
		`UPDATE inventory_items SET quantity_on_hand = 12 WHERE item_id = $1`, item)
	require.NoError(t, err)

	report, err := s.reports.Reconcile(ctx, &item)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.Equal(t, 1, report.ItemsDrifting)
	testutil.AssertDecimal(t, "2", report.Items[0].Drift)

	_, err = s.reports.Reconcile(ctx, testutil.PtrInt64(777))
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestReports_RepeatableWithoutWrites(t *testing.T) {
	s := newServices(t, "reports-repeatable")
	ctx := context.Background()
	fx := s.schema.Fixtures

	kg := fx.Unit(t, "Kilogram", "kg")
	butter := fx.Item(t, kg, "1", "5", testutil.WithItemType("Perishable"))
	expires := time.Now().AddDate(0, 0, 3).Format("2006-01-02")

	_, err := s.ledger.RecordDelivery(ctx, &service.RecordDeliveryInput{
		DeliveryDate: today(),
		Lines: []service.DeliveryLineInput{
			{ItemID: butter, QuantityReceived: testutil.Dec("2"), UnitID: kg, ExpirationDate: &expires},
		},
	})
	require.NoError(t, err)
	_, err = s.ledger.RecordWaste(ctx, &service.RecordWasteInput{
		ItemID: butter, QuantityWasted: testutil.Dec("0.5"), UnitID: kg,
	})
	require.NoError(t, err)

	low1, err := s.reports.LowStock(ctx)
	require.NoError(t, err)
	low2, err := s.reports.LowStock(ctx)
	require.NoError(t, err)
	assert.Equal(t, low1, low2)
	require.Len(t, low1, 1)

	exp1, err := s.reports.Expirations(ctx, 7, true)
	require.NoError(t, err)
	exp2, err := s.reports.Expirations(ctx, 7, true)
	require.NoError(t, err)
	assert.Equal(t, exp1, exp2)
	require.Len(t, exp1, 1)
	assert.Equal(t, expires, exp1[0].ExpirationDate.String())

	waste1, err := s.reports.Waste(ctx, repository.WasteFilter{})
	require.NoError(t, err)
	waste2, err := s.reports.Waste(ctx, repository.WasteFilter{})
	require.NoError(t, err)
	assert.Equal(t, waste1, waste2)
	require.Len(t, waste1, 1)

	dash1, err := s.reports.Dashboard(ctx)
	require.NoError(t, err)
	dash2, err := s.reports.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, dash1, dash2)
	assert.Equal(t, int64(1), dash1.TotalItems)
	assert.Equal(t, int64(1), dash1.LowStockItems)
}

func TestExpirations_ValidatesWindow(t *testing.T) {
	s := newServices(t, "expirations-window")

	_, err := s.reports.Expirations(context.Background(), -1, true)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = s.reports.Expirations(context.Background(), service.MaxExpiryDays+1, true)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestLowStockAlert_RaisedOnceAfterDeduction(t *testing.T) {
	s := newServices(t, "low-stock-alert")
	ctx := context.Background()
	fx := s.schema.Fixtures

	kg := fx.Unit(t, "Kilogram", "kg")
	rice := fx.Item(t, kg, "10", "8", testutil.WithItemName("Rice"))

	for _, qty := range []string{"7", "1"} {
		_, err := s.ledger.RecordManualUsage(ctx, &service.RecordManualUsageInput{
			ItemID: rice, QuantityUsed: testutil.Dec(qty), UnitID: kg,
		})
		require.NoError(t, err)
	}

	alerts, total, err := s.alerts.List(ctx, repository.AlertFilter{
		AlertType: repository.AlertTypeLowStock, Page: 1, PerPage: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Rice", alerts[0].ItemName)
	assert.Equal(t, repository.SeverityHigh, alerts[0].Severity)
}

func TestCatalog_ItemRules(t *testing.T) {
	s := newServices(t, "catalog-items")
	ctx := context.Background()
	fx := s.schema.Fixtures

	kg := fx.Unit(t, "Kilogram", "kg")

	item := &repository.InventoryItem{
		Name:           "Salmon",
		UnitID:         kg,
		QuantityOnHand: testutil.Dec("3"),
		ReorderPoint:   testutil.Dec("1"),
		ItemType:       repository.ItemTypePerishable,
		Perishable:     &repository.PerishableAttributes{StorageTemperature: testutil.PtrString("0-4C")},
	}
	require.NoError(t, s.catalog.CreateItem(ctx, item))
	assert.NotZero(t, item.ID)
	testutil.AssertDecimal(t, "3", item.OpeningQuantity)
	require.NotNil(t, item.Perishable)
	assert.Equal(t, "0-4C", *item.Perishable.StorageTemperature)

	t.Run("duplicate name is a conflict", func(t *testing.T) {
		dup := &repository.InventoryItem{
			Name: "Salmon", UnitID: kg, ItemType: repository.ItemTypeTool,
		}
		err := s.catalog.CreateItem(ctx, dup)
		assert.True(t, errors.Is(err, errors.ErrConflict))
	})

	t.Run("attributes of another type are rejected", func(t *testing.T) {
		bad := &repository.InventoryItem{
			Name: "Whisk", UnitID: kg, ItemType: repository.ItemTypeTool,
			Perishable: &repository.PerishableAttributes{},
		}
		err := s.catalog.CreateItem(ctx, bad)
		require.True(t, errors.Is(err, errors.ErrValidation))
		appErr, _ := errors.AsAppError(err)
		assert.Contains(t, appErr.Details, "perishable")
	})

	t.Run("type cannot change on update", func(t *testing.T) {
		err := s.catalog.UpdateItem(ctx, &repository.InventoryItem{
			ID: item.ID, Name: "Salmon", UnitID: kg, ItemType: repository.ItemTypeTool,
		})
		require.True(t, errors.Is(err, errors.ErrValidation))
	})

	t.Run("update leaves the balance alone", func(t *testing.T) {
		update := &repository.InventoryItem{
			ID: item.ID, Name: "Atlantic Salmon", UnitID: kg,
			ReorderPoint:   testutil.Dec("2"),
			QuantityOnHand: testutil.Dec("100"),
		}
		require.NoError(t, s.catalog.UpdateItem(ctx, update))
		assert.Equal(t, "Atlantic Salmon", update.Name)
		testutil.AssertDecimal(t, "3", update.QuantityOnHand)
		testutil.AssertDecimal(t, "2", update.ReorderPoint)
	})

	t.Run("unknown unit is an invalid reference", func(t *testing.T) {
		err := s.catalog.CreateItem(ctx, &repository.InventoryItem{
			Name: "Ghost", UnitID: 9999, ItemType: repository.ItemTypeNonPerishable,
		})
		assert.True(t, errors.Is(err, errors.ErrInvalidReference))
	})

	t.Run("item with ledger history cannot be deleted", func(t *testing.T) {
		_, err := s.ledger.RecordWaste(ctx, &service.RecordWasteInput{
			ItemID: item.ID, QuantityWasted: testutil.Dec("1"), UnitID: kg,
		})
		require.NoError(t, err)

		err = s.catalog.DeleteItem(ctx, item.ID)
		assert.True(t, errors.Is(err, errors.ErrConflict))
	})

	t.Run("missing item is not found", func(t *testing.T) {
		_, err := s.catalog.GetItem(ctx, 123456)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})
}

func TestCatalog_RecipeIngredients(t *testing.T) {
	s := newServices(t, "catalog-recipes")
	ctx := context.Background()
	fx := s.schema.Fixtures

	g := fx.Unit(t, "Gram", "g")
	sugar := fx.Item(t, g, "1000", "0", testutil.WithItemName("Sugar"))

	cake := &repository.MenuItem{Name: "Cake", Price: testutil.Dec("5")}
	require.NoError(t, s.catalog.CreateMenuItem(ctx, cake))

	ingredient := &repository.RecipeIngredient{
		MenuItemID: cake.ID, ItemID: sugar, QuantityRequired: testutil.Dec("120"), UnitID: g,
	}
	require.NoError(t, s.catalog.AddIngredient(ctx, ingredient))
	assert.Equal(t, "Sugar", ingredient.ItemName)

	err := s.catalog.AddIngredient(ctx, &repository.RecipeIngredient{
		MenuItemID: cake.ID, ItemID: sugar, QuantityRequired: testutil.Dec("1"), UnitID: g,
	})
	assert.True(t, errors.Is(err, errors.ErrConflict))

	err = s.catalog.AddIngredient(ctx, &repository.RecipeIngredient{
		MenuItemID: cake.ID, ItemID: sugar, QuantityRequired: testutil.Dec("0"), UnitID: g,
	})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	loaded, err := s.catalog.GetMenuItem(ctx, cake.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Ingredients, 1)
	testutil.AssertDecimal(t, "120", loaded.Ingredients[0].QuantityRequired)

	require.NoError(t, s.catalog.RemoveIngredient(ctx, cake.ID, sugar))
	ingredients, err := s.catalog.ListIngredients(ctx, cake.ID)
	require.NoError(t, err)
	assert.Empty(t, ingredients)
}
