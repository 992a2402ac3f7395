package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"orders_sync/internal/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const feed = `<?xml version="1.0" encoding="utf-8"?>
<ValCurs Date="17.01.2024" name="Foreign Currency Market">
<Valute ID="R01235"><NumCode>840</NumCode><CharCode>USD</CharCode><Nominal>1</Nominal><Name>US Dollar</Name><Value>90,0000</Value></Valute>
</ValCurs>`

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()

	f := excelize.NewFile()
	defer f.Close()
	for cell, value := range map[string]string{
		"A2": "1", "B2": "100", "C2": "10", "D2": "01/01/2024",
		"A3": "2", "B3": "200", "C3": "20,5", "D3": "02/01/2024",
	} {
		require.NoError(t, f.SetCellValue("Sheet1", cell, value))
	}
	workbook := filepath.Join(dir, "orders.xlsx")
	require.NoError(t, f.SaveAs(workbook))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feed)
	}))
	t.Cleanup(srv.Close)

	return Config{
		DBDriver:         "sqlite3",
		DBPath:           filepath.Join(dir, "orders.db"),
		SheetSource:      SourceXLSX,
		SpreadsheetRange: "A2:D999",
		XLSXPath:         workbook,
		XLSXSheet:        "Sheet1",
		RateURL:          srv.URL,
		RateCurrencyID:   "R01235",
		SyncInterval:     time.Second,
	}
}

func TestNewRunsCycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	defer a.Close(ctx)

	report, err := a.Engine.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, int64(1), a.Rates.GetAPICallCount())

	row, err := a.Store.Lookup(ctx, 2)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1845").Equal(row.PriceLocal))

	report, err = a.Engine.RunCycle(ctx)
	require.NoError(t, err)
	assert.False(t, report.Changed)
	assert.Equal(t, int64(1), a.Rates.GetAPICallCount())
}

func TestOpenStoreGivesUp(t *testing.T) {
	cfg := Config{DBDriver: "sqlite3", DBPath: filepath.Join(t.TempDir(), "missing", "orders.db")}
	rc := config.DefaultResilienceConfig.StoreConnect
	rc.MaxRetries = 1
	rc.BaseDelay = time.Millisecond
	rc.MaxDelay = time.Millisecond

	_, err := OpenStore(context.Background(), cfg, rc)
	assert.Error(t, err)
}
