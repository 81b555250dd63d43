package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abhingram/deals247online-sub000/internal/amazon"
	"github.com/abhingram/deals247online-sub000/internal/ingest"
	"github.com/abhingram/deals247online-sub000/internal/models"
	"github.com/abhingram/deals247online-sub000/internal/refresh"
	"github.com/abhingram/deals247online-sub000/internal/retry"
)

// fakeBackend implementa as fatias de cliente e banco usadas pelo ingestor e
// pelo refresher, o suficiente para exercitar os gatilhos HTTP.
type fakeBackend struct {
	products map[string]*models.Product
	nextID   int64
	history  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{products: make(map[string]*models.Product)}
}

func (f *fakeBackend) SearchItems(ctx context.Context, params amazon.SearchParams) (*amazon.SearchItemsResponse, error) {
	return &amazon.SearchItemsResponse{SearchResult: &amazon.SearchResult{Items: []amazon.Item{{
		ASIN:     "B0HTTP01",
		ItemInfo: &amazon.ItemInfo{Title: &amazon.DisplayValue{DisplayValue: "Produto de teste"}},
		Offers: &amazon.Offers{Listings: []amazon.Listing{{
			Price: &amazon.OfferPrice{Amount: 5000, Currency: "BRL"},
		}}},
	}}}}, nil
}

func (f *fakeBackend) GetItems(ctx context.Context, ids []string, resources []string) (*amazon.GetItemsResponse, error) {
	return &amazon.GetItemsResponse{ItemsResult: &amazon.ItemsResult{}}, nil
}

func (f *fakeBackend) GetProductByExternalID(ctx context.Context, externalID, store string) (*models.Product, error) {
	if p, ok := f.products[externalID]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeBackend) InsertProduct(ctx context.Context, p *models.Product) (int64, error) {
	f.nextID++
	copied := *p
	copied.ID = f.nextID
	f.products[p.ExternalID] = &copied
	return f.nextID, nil
}

func (f *fakeBackend) UpdateProduct(ctx context.Context, p *models.Product) error {
	copied := *p
	f.products[p.ExternalID] = &copied
	return nil
}

func (f *fakeBackend) AddPriceHistory(ctx context.Context, entry *models.PriceHistoryEntry) error {
	f.history++
	return nil
}

func (f *fakeBackend) GetStats(ctx context.Context) (*models.PipelineStats, error) {
	return &models.PipelineStats{
		Products:     models.ProductStats{Total: int64(len(f.products))},
		PriceHistory: models.PriceHistoryStats{Entries: int64(f.history)},
	}, nil
}

func (f *fakeBackend) GetActiveProducts(ctx context.Context) ([]models.Product, error) {
	return nil, nil
}

func (f *fakeBackend) GetActiveProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	return nil, nil
}

func (f *fakeBackend) GetDealByProductID(ctx context.Context, productID int64) (*models.Deal, error) {
	return nil, nil
}

func (f *fakeBackend) InsertDeal(ctx context.Context, d *models.Deal) (int64, error) { return 1, nil }

func (f *fakeBackend) UpdateDeal(ctx context.Context, d *models.Deal) error { return nil }

func (f *fakeBackend) DeactivateExpiredDeals(ctx context.Context, threshold int) (int64, error) {
	return 2, nil
}

func newTestServer() (*httptest.Server, *fakeBackend) {
	backend := newFakeBackend()
	normalizer := amazon.NewNormalizer("loja-20")
	ingestor := ingest.New(backend, backend, normalizer, ingest.Options{Retry: retry.Policy{MaxAttempts: 1}})
	refresher := refresh.New(backend, backend, normalizer, refresh.Options{Retry: retry.Policy{MaxAttempts: 1}})
	return httptest.NewServer(New(ingestor, refresher).Handler()), backend
}

func TestHandleIngest(t *testing.T) {
	ts, backend := newTestServer()
	defer ts.Close()

	body := `{"category":"Eletrônicos","max_items":5}`
	resp, err := http.Post(ts.URL+"/api/ingest", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status inesperado: %d", resp.StatusCode)
	}

	var summary ingest.Summary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatal(err)
	}
	if summary.RunID == "" || summary.Stored == 0 {
		t.Fatalf("resumo inesperado: %+v", summary)
	}
	if len(backend.products) == 0 {
		t.Fatal("nenhum produto gravado pelo gatilho")
	}
}

func TestHandleIngestSemCategoria(t *testing.T) {
	ts, _ := newTestServer()
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/ingest", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("requisição malformada deveria dar 400, deu %d", resp.StatusCode)
	}
}

func TestHandleIngestContentTypeErrado(t *testing.T) {
	ts, _ := newTestServer()
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/ingest", "text/plain", strings.NewReader("categoria"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("esperava 415, obteve %d", resp.StatusCode)
	}
}

func TestHandleRefreshSempreRetornaResumo(t *testing.T) {
	ts, _ := newTestServer()
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/refresh", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh sem produtos deveria dar 200, deu %d", resp.StatusCode)
	}
	var result refresh.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.RunID == "" {
		t.Fatal("resumo sem run_id")
	}
}

func TestHandleCleanup(t *testing.T) {
	ts, _ := newTestServer()
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/deals/cleanup", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var payload map[string]int64
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if payload["deactivated"] != 2 {
		t.Fatalf("contagem inesperada: %+v", payload)
	}
}

func TestHandleStats(t *testing.T) {
	ts, _ := newTestServer()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status inesperado: %d", resp.StatusCode)
	}
	var stats models.PipelineStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
}

func TestMetodoErrado(t *testing.T) {
	ts, _ := newTestServer()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/refresh")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("esperava 405, obteve %d", resp.StatusCode)
	}
}
