package storage

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"solarcrawl/pkg/types"
)

// Pipeline adapts the crawl engine's product stream onto a ProductStore,
// tagging every record with the distributor and a per-run UUID.
type Pipeline struct {
	store         ProductStore
	distributorID string
	runID         string
	logger        *slog.Logger
}

// NewPipeline constructs a pipeline for one crawl run.
func NewPipeline(store ProductStore, distributorID string, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:         store,
		distributorID: distributorID,
		runID:         uuid.NewString(),
		logger:        logger,
	}
}

// RunID returns the identifier stamped on this run's records.
func (p *Pipeline) RunID() string { return p.runID }

// SaveProduct upserts one extracted product. Products without identity
// (no name and no price) are dropped here, at the persistence boundary.
func (p *Pipeline) SaveProduct(ctx context.Context, product types.ScrapedProduct, cat types.EquipmentCategory) error {
	if p == nil || p.store == nil {
		return nil
	}
	if !product.HasIdentity() {
		p.logger.Debug("dropping product without identity", "url", product.SourceURL)
		return nil
	}

	price := sql.NullFloat64{}
	if product.Price != nil {
		price = sql.NullFloat64{Float64: *product.Price, Valid: true}
	}

	return p.store.UpsertProduct(ctx, ProductRecord{
		DistributorID: p.distributorID,
		RunID:         p.runID,
		SourceURL:     product.SourceURL,
		Name:          product.Name,
		Price:         price,
		Description:   product.Description,
		Manufacturer:  product.Manufacturer,
		ModelNumber:   product.ModelNumber,
		SpecsJSON:     MarshalSpecs(product.Specifications),
		ImageURL:      product.ImageURL,
		DataSheetURL:  product.DataSheetURL,
		InStock:       product.InStock,
		Category:      string(cat),
		ScrapedAt:     time.Now(),
	})
}

// SaveRun records the finished crawl's summary.
func (p *Pipeline) SaveRun(ctx context.Context, report *types.CrawlReport) error {
	if p == nil || p.store == nil || report == nil {
		return nil
	}
	return p.store.SaveRun(ctx, RunRecord{
		ID:            p.runID,
		DistributorID: p.distributorID,
		Seed:          report.Seed,
		PagesVisited:  len(report.PagesVisited),
		CatalogPages:  report.CatalogPagesFound,
		ProductsFound: len(report.Products),
		Termination:   string(report.Termination),
		Started:       report.Started,
		Finished:      report.Finished,
	})
}
