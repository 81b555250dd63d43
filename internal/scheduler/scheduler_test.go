package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/abhingram/deals247online-sub000/internal/amazon"
	"github.com/abhingram/deals247online-sub000/internal/ingest"
	"github.com/abhingram/deals247online-sub000/internal/models"
	"github.com/abhingram/deals247online-sub000/internal/refresh"
	"github.com/abhingram/deals247online-sub000/internal/retry"
)

type noopBackend struct{}

func (noopBackend) SearchItems(ctx context.Context, params amazon.SearchParams) (*amazon.SearchItemsResponse, error) {
	return &amazon.SearchItemsResponse{SearchResult: &amazon.SearchResult{}}, nil
}

func (noopBackend) GetItems(ctx context.Context, ids []string, resources []string) (*amazon.GetItemsResponse, error) {
	return &amazon.GetItemsResponse{ItemsResult: &amazon.ItemsResult{}}, nil
}

func (noopBackend) GetProductByExternalID(ctx context.Context, externalID, store string) (*models.Product, error) {
	return nil, nil
}

func (noopBackend) InsertProduct(ctx context.Context, p *models.Product) (int64, error) {
	return 1, nil
}

func (noopBackend) UpdateProduct(ctx context.Context, p *models.Product) error { return nil }

func (noopBackend) AddPriceHistory(ctx context.Context, entry *models.PriceHistoryEntry) error {
	return nil
}

func (noopBackend) GetStats(ctx context.Context) (*models.PipelineStats, error) {
	return &models.PipelineStats{}, nil
}

func (noopBackend) GetActiveProducts(ctx context.Context) ([]models.Product, error) {
	return nil, nil
}

func (noopBackend) GetActiveProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	return nil, nil
}

func (noopBackend) GetDealByProductID(ctx context.Context, productID int64) (*models.Deal, error) {
	return nil, nil
}

func (noopBackend) InsertDeal(ctx context.Context, d *models.Deal) (int64, error) { return 1, nil }

func (noopBackend) UpdateDeal(ctx context.Context, d *models.Deal) error { return nil }

func (noopBackend) DeactivateExpiredDeals(ctx context.Context, threshold int) (int64, error) {
	return 0, nil
}

func TestRunEncerraComCancelamento(t *testing.T) {
	backend := noopBackend{}
	normalizer := amazon.NewNormalizer("loja-20")
	ingestor := ingest.New(backend, backend, normalizer, ingest.Options{Retry: retry.Policy{MaxAttempts: 1}})
	refresher := refresh.New(backend, backend, normalizer, refresh.Options{Retry: retry.Policy{MaxAttempts: 1}})

	s := New(ingestor, refresher, []string{"Livros"}, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run não encerrou após o cancelamento do contexto")
	}
}
