package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/andresuchdata/autopo-replenish/internal/drive"
	"github.com/andresuchdata/autopo-replenish/internal/ingest"
	"github.com/andresuchdata/autopo-replenish/internal/report"
	"github.com/andresuchdata/autopo-replenish/internal/storage"
	"github.com/urfave/cli/v2"
)

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// purchaseFlags override the configured purchase defaults
func purchaseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "method", Usage: "RAPID or TIME_PHASED"},
		&cli.IntFlag{Name: "coverage-days", Usage: "Days of demand to cover after arrival"},
		&cli.IntFlag{Name: "lead-time-days", Usage: "Supplier lead time"},
		&cli.StringFlag{Name: "lead-time-strategy", Usage: "P50 or P90"},
		&cli.BoolFlag{Name: "stock-reserve", Usage: "Add a stock reserve on top of the target"},
		&cli.IntFlag{Name: "stock-reserve-days", Usage: "Days of demand held as reserve"},
	}
}

func requirementConfig(c *cli.Context, base domain.PurchaseRequirementConfig) domain.PurchaseRequirementConfig {
	if v := c.String("method"); v != "" {
		base.Method = domain.Method(strings.ToUpper(v))
	}
	if c.IsSet("coverage-days") {
		base.CoverageDays = c.Int("coverage-days")
	}
	if c.IsSet("lead-time-days") {
		base.LeadTimeDays = c.Int("lead-time-days")
	}
	if v := c.String("lead-time-strategy"); v != "" {
		base.LeadTimeStrategy = domain.LeadTimeStrategy(strings.ToUpper(v))
	}
	if c.IsSet("stock-reserve") {
		base.IncludeStockReserve = c.Bool("stock-reserve")
	}
	if c.IsSet("stock-reserve-days") {
		base.StockReserveDays = c.Int("stock-reserve-days")
	}
	return base
}

func coverageCommand() *cli.Command {
	return &cli.Command{
		Name:  "coverage",
		Usage: "Forecast demand and stock coverage for one SKU",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "sku", Required: true},
			&cli.BoolFlag{Name: "no-cache", Usage: "Ignore any cached result"},
		},
		Action: func(c *cli.Context) error {
			rt, err := fromContext(c)
			if err != nil {
				return err
			}
			res, err := rt.svc.CalculateCoverage(c.Context, c.String("sku"), !c.Bool("no-cache"))
			if err != nil {
				return err
			}
			return printJSON(c, res)
		},
	}
}

func purchaseCommand() *cli.Command {
	return &cli.Command{
		Name:  "purchase",
		Usage: "Compute the purchase requirement of one SKU",
		Flags: append([]cli.Flag{&cli.StringFlag{Name: "sku", Required: true}}, purchaseFlags()...),
		Action: func(c *cli.Context) error {
			rt, err := fromContext(c)
			if err != nil {
				return err
			}
			res, err := rt.svc.CalculatePurchaseRequirement(c.Context, c.String("sku"), requirementConfig(c, rt.svc.Defaults()))
			if err != nil {
				return err
			}
			return printJSON(c, res)
		},
	}
}

func batchCommand() *cli.Command {
	flags := append([]cli.Flag{
		&cli.StringSliceFlag{Name: "sku"},
		&cli.StringSliceFlag{Name: "supplier"},
		&cli.StringSliceFlag{Name: "warehouse"},
		&cli.StringSliceFlag{Name: "brand"},
		&cli.BoolFlag{Name: "only-needed", Usage: "Only list products with a positive suggestion"},
		&cli.IntFlag{Name: "workers", Usage: "Parallel workers; 1 runs sequentially"},
		&cli.DurationFlag{Name: "timeout", Usage: "Abandon products still pending after this long"},
		&cli.StringFlag{Name: "format", Value: "summary", Usage: "summary, json or csv"},
		&cli.BoolFlag{Name: "export", Usage: "Upload the CSV report to object storage"},
	}, purchaseFlags()...)

	return &cli.Command{
		Name:  "batch",
		Usage: "Compute purchase requirements for a product universe",
		Flags: flags,
		Action: func(c *cli.Context) error {
			rt, err := fromContext(c)
			if err != nil {
				return err
			}

			cfg := requirementConfig(c, rt.svc.Defaults())
			if c.IsSet("only-needed") {
				cfg.ShowOnlyNeeded = c.Bool("only-needed")
			}
			if c.IsSet("workers") {
				cfg.MaxConcurrency = c.Int("workers")
				cfg.EnableParallel = cfg.MaxConcurrency > 1
			}
			if c.IsSet("timeout") {
				cfg.Timeout = c.Duration("timeout")
			}

			filters := domain.ProductFilter{
				SKUs:         c.StringSlice("sku"),
				SupplierIDs:  c.StringSlice("supplier"),
				WarehouseIDs: c.StringSlice("warehouse"),
				BrandNames:   c.StringSlice("brand"),
			}
			batch, err := rt.svc.CalculateBatch(c.Context, filters, cfg)
			if err != nil {
				return err
			}

			if c.Bool("export") {
				if err := exportBatch(c, rt, batch); err != nil {
					return err
				}
			}

			switch c.String("format") {
			case "json":
				return printJSON(c, batch)
			case "csv":
				data, err := report.LinesCSV(batch)
				if err != nil {
					return err
				}
				_, err = c.App.Writer.Write(data)
				return err
			default:
				return printSummary(c, batch)
			}
		},
	}
}

func exportBatch(c *cli.Context, rt *runtime, batch *domain.PurchaseBatchResult) error {
	if !rt.cfg.Storage.Enabled {
		return fmt.Errorf("object storage is disabled; set S3_ENABLED=true")
	}
	client, err := storage.NewMinioClient(rt.cfg.Storage)
	if err != nil {
		return err
	}
	if err := client.EnsureBucket(c.Context); err != nil {
		return err
	}
	keys, err := report.NewExporter(client, "batches").Export(c.Context, batch)
	if err != nil {
		return err
	}
	for _, k := range keys {
		fmt.Fprintf(c.App.ErrWriter, "exported %s\n", k)
	}
	return nil
}

func printSummary(c *cli.Context, batch *domain.PurchaseBatchResult) error {
	w := c.App.Writer
	fmt.Fprintf(w, "batch %s  method=%s  products=%d  shown=%d  errors=%d  took=%s\n",
		batch.BatchID, batch.Config.Method, batch.TotalProducts, len(batch.Products), len(batch.Errors),
		batch.CalculationTime.Round(time.Millisecond))

	data, err := report.SuppliersCSV(batch)
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	if _, err := w.Write(data); err != nil {
		return err
	}
	for _, e := range batch.Errors {
		fmt.Fprintf(c.App.ErrWriter, "error %s [%s]: %s\n", e.SKU, e.Code, e.Error)
	}
	return nil
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import sales, availability, purchase order and product CSV files",
		ArgsUsage: "[file or directory ...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "drive", Usage: "Download the CSV files of the configured Google Drive folder first"},
			&cli.StringFlag{Name: "folder-id", Usage: "Drive folder, overrides DRIVE_FOLDER_ID", EnvVars: []string{"DRIVE_FOLDER_ID"}},
		},
		Action: func(c *cli.Context) error {
			rt, err := fromContext(c)
			if err != nil {
				return err
			}
			importer := ingest.NewImporter(rt.svc)

			var results []*ingest.Result
			if c.Bool("drive") {
				results, err = syncDrive(c, rt, importer)
				if err != nil {
					return err
				}
			}

			var files []string
			for _, arg := range c.Args().Slice() {
				info, err := os.Stat(arg)
				if err != nil {
					return err
				}
				if !info.IsDir() {
					files = append(files, arg)
					continue
				}
				found, err := collectCSVFiles(arg)
				if err != nil {
					return err
				}
				files = append(files, found...)
			}
			if len(files) == 0 && !c.Bool("drive") {
				return fmt.Errorf("nothing to import")
			}

			imported, err := importer.ImportFiles(c.Context, files)
			results = append(results, imported...)
			if err != nil {
				return err
			}
			return printJSON(c, results)
		},
	}
}

func syncDrive(c *cli.Context, rt *runtime, importer *ingest.Importer) ([]*ingest.Result, error) {
	folderID := c.String("folder-id")
	if folderID == "" {
		folderID = rt.cfg.Drive.FolderID
	}
	svc, err := drive.NewServiceFromFile(c.Context, rt.cfg.Drive.CredentialsFile)
	if err != nil {
		return nil, err
	}
	sync := drive.NewSyncService(drive.NewDownloader(svc), importer, drive.DownloadOptions{
		FolderID:    folderID,
		DownloadDir: rt.cfg.Drive.DownloadDir,
	})
	return sync.Sync(c.Context)
}

func refreshCommand() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Recompute and cache coverage for every active product",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "workers", Value: 4},
		},
		Action: func(c *cli.Context) error {
			rt, err := fromContext(c)
			if err != nil {
				return err
			}
			refreshed, failed, err := rt.svc.RefreshCoverage(c.Context, domain.ProductFilter{}, c.Int("workers"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "refreshed=%d failed=%d\n", refreshed, failed)
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or update the database schema",
		Action: func(c *cli.Context) error {
			rt, err := fromContext(c)
			if err != nil {
				return err
			}
			if rt.db == nil {
				return fmt.Errorf("migrate needs a database; drop --memory")
			}
			n, err := rt.db.Migrate(c.Context)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "applied %d migration(s)\n", n)
			return nil
		},
	}
}
