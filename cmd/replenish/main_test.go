package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func writeSeed(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	var sales strings.Builder
	sales.WriteString("sku,date,units_sold\n")
	today := time.Now().UTC()
	for d := 0; d < 60; d++ {
		date := today.AddDate(0, 0, -d).Format(time.DateOnly)
		fmt.Fprintf(&sales, "A,%s,10\nB,%s,10\n", date, date)
	}
	products := "sku,name,supplier_id,warehouse_id,current_stock,pack_size,unit_cost\nA,Widget,S1,W1,400,1,2.00\nB,Gadget,S1,W1,20,10,3.00\n"

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales.csv"), []byte(sales.String()), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "products.csv"), []byte(products), 0o644))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DRIVE_DOWNLOAD_DIR", t.TempDir())
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"replenish"}, args...))
	return out.String(), err
}

func TestBatchCommand_Memory(t *testing.T) {
	seed := writeSeed(t)

	out, err := run(t, "--memory", "--seed-dir", seed, "--log-level", "error", "batch", "--only-needed")
	require.NoError(t, err)
	assert.Contains(t, out, "products=2  shown=1  errors=0")
	assert.Contains(t, out, "supplier_id,supplier_name")

	out, err = run(t, "--memory", "--seed-dir", seed, "--log-level", "error", "batch", "--format", "csv", "--method", "time_phased")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], "TIME_PHASED")
}

func TestCoverageCommand_Memory(t *testing.T) {
	out, err := run(t, "--memory", "--seed-dir", writeSeed(t), "--log-level", "error", "coverage", "--sku", "A")
	require.NoError(t, err)
	assert.Contains(t, out, `"sku": "A"`)

	_, err = run(t, "--memory", "--seed-dir", writeSeed(t), "--log-level", "error", "coverage", "--sku", "ZZZ")
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestRequirementConfig(t *testing.T) {
	var got domain.PurchaseRequirementConfig
	app := &cli.App{
		Flags: purchaseFlags(),
		Action: func(c *cli.Context) error {
			got = requirementConfig(c, domain.DefaultPurchaseRequirementConfig())
			return nil
		},
	}
	require.NoError(t, app.Run([]string{"x", "--method", "time_phased", "--lead-time-days", "10", "--lead-time-strategy", "p90"}))
	assert.Equal(t, domain.MethodTimePhased, got.Method)
	assert.Equal(t, 10, got.LeadTimeDays)
	assert.Equal(t, domain.LeadTimeP90, got.LeadTimeStrategy)
	assert.Equal(t, 30, got.CoverageDays)
}

func TestCollectCSVFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sales"), 0o755))
	for _, name := range []string{"sales/b.csv", "a.CSV", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	files, err := collectCSVFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.CSV"), filepath.Join(dir, "sales", "b.csv")}, files)
}
