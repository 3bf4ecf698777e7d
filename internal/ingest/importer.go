package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/autopo-replenish/internal/domain"
	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
)

// Kind names the dataset held by a CSV file
type Kind string

const (
	KindSales        Kind = "sales"
	KindAvailability Kind = "availability"
	KindOrders       Kind = "purchase_orders"
	KindProducts     Kind = "products"
)

// Recorder persists parsed rows. service.ReplenishmentService implements it.
type Recorder interface {
	RecordSales(ctx context.Context, records []domain.SalesRecord) (int, error)
	RecordAvailability(ctx context.Context, records []domain.AvailabilityRecord) (int, error)
	RecordOpenOrders(ctx context.Context, orders []domain.OpenPurchaseOrder) (int, error)
	RecordProducts(ctx context.Context, products []domain.Product) (int, error)
}

// Result summarises one imported file
type Result struct {
	File    string `json:"file"`
	Kind    Kind   `json:"kind"`
	Rows    int    `json:"rows"`
	Written int    `json:"written"`
}

// Importer loads CSV exports into the history store
type Importer struct {
	recorder  Recorder
	chunkSize int
}

func NewImporter(recorder Recorder) *Importer {
	return &Importer{recorder: recorder, chunkSize: 1000}
}

// DetectKind resolves the dataset from the parent directory name, falling back
// to the file name prefix, e.g. data/sales/2024-03.csv or sales_2024-03.csv.
func DetectKind(path string) (Kind, error) {
	candidates := []string{
		strings.ToLower(filepath.Base(filepath.Dir(path))),
		strings.ToLower(filepath.Base(path)),
	}
	kinds := []Kind{KindAvailability, KindOrders, KindProducts, KindSales}
	for _, c := range candidates {
		for _, k := range kinds {
			if strings.HasPrefix(c, string(k)) {
				return k, nil
			}
		}
		if strings.HasPrefix(c, "orders") || strings.HasPrefix(c, "po_") {
			return KindOrders, nil
		}
	}
	return "", fmt.Errorf("cannot tell dataset of %s", path)
}

// ImportFile parses path and writes its rows. Products should be imported
// before the facts that reference them.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	kind, err := DetectKind(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	res, err := im.Import(ctx, kind, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	res.File = path
	return res, nil
}

// ImportFiles imports products first, then the remaining files in order.
func (im *Importer) ImportFiles(ctx context.Context, paths []string) ([]*Result, error) {
	ordered := make([]string, 0, len(paths))
	var rest []string
	for _, p := range paths {
		if k, err := DetectKind(p); err == nil && k == KindProducts {
			ordered = append(ordered, p)
			continue
		}
		rest = append(rest, p)
	}
	ordered = append(ordered, rest...)

	results := make([]*Result, 0, len(ordered))
	for _, p := range ordered {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := im.ImportFile(ctx, p)
		if err != nil {
			return results, err
		}
		log.Info().
			Str("file", filepath.Base(p)).
			Str("kind", string(res.Kind)).
			Int("rows", res.Rows).
			Msg("ingest: file imported")
		results = append(results, res)
	}
	return results, nil
}

// Import parses a CSV stream of the given kind
func (im *Importer) Import(ctx context.Context, kind Kind, r io.Reader) (*Result, error) {
	res := &Result{Kind: kind}
	var err error
	switch kind {
	case KindSales:
		res.Rows, res.Written, err = importRows(ctx, r, im.chunkSize, salesRow.toDomain, im.recorder.RecordSales)
	case KindAvailability:
		res.Rows, res.Written, err = importRows(ctx, r, im.chunkSize, availabilityRow.toDomain, im.recorder.RecordAvailability)
	case KindOrders:
		res.Rows, res.Written, err = importRows(ctx, r, im.chunkSize, orderRow.toDomain, im.recorder.RecordOpenOrders)
	case KindProducts:
		res.Rows, res.Written, err = importRows(ctx, r, im.chunkSize, productRow.toDomain, im.recorder.RecordProducts)
	default:
		err = fmt.Errorf("unknown dataset %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func importRows[Row, T any](
	ctx context.Context,
	r io.Reader,
	chunkSize int,
	convert func(Row) (T, error),
	write func(context.Context, []T) (int, error),
) (rows, written int, err error) {
	var parsed []Row
	if err := gocsv.Unmarshal(r, &parsed); err != nil {
		return 0, 0, fmt.Errorf("failed to parse CSV: %w", err)
	}

	chunk := make([]T, 0, min(chunkSize, len(parsed)))
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		n, err := write(ctx, chunk)
		if err != nil {
			return err
		}
		written += n
		chunk = chunk[:0]
		return nil
	}

	for i, row := range parsed {
		rec, err := convert(row)
		if err != nil {
			// header is line 1
			return rows, written, fmt.Errorf("line %d: %w", i+2, err)
		}
		chunk = append(chunk, rec)
		rows++
		if len(chunk) == chunkSize {
			if err := flush(); err != nil {
				return rows, written, err
			}
		}
	}
	if err := flush(); err != nil {
		return rows, written, err
	}
	return rows, written, nil
}
