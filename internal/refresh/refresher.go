// Package refresh reverifica os preços dos produtos ativos e conduz o ciclo
// de vida dos deals: criação, atualização e desativação pelo limiar de
// desconto.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/abhingram/deals247online-sub000/internal/amazon"
	"github.com/abhingram/deals247online-sub000/internal/models"
	"github.com/abhingram/deals247online-sub000/internal/retry"

	"github.com/google/uuid"
)

// errNoData marca um produto sem dados no marketplace (possivelmente
// removido do catálogo). É um pulo silencioso, não um erro da rodada.
var errNoData = errors.New("nenhum dado retornado para o produto")

// Fetcher é a fatia do cliente da API usada pelo refresh.
type Fetcher interface {
	GetItems(ctx context.Context, ids []string, resources []string) (*amazon.GetItemsResponse, error)
}

// Store é a fatia do banco usada pelo refresh.
type Store interface {
	GetActiveProducts(ctx context.Context) ([]models.Product, error)
	GetActiveProductsByCategory(ctx context.Context, category string) ([]models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
	AddPriceHistory(ctx context.Context, entry *models.PriceHistoryEntry) error
	GetDealByProductID(ctx context.Context, productID int64) (*models.Deal, error)
	InsertDeal(ctx context.Context, d *models.Deal) (int64, error)
	UpdateDeal(ctx context.Context, d *models.Deal) error
	DeactivateExpiredDeals(ctx context.Context, threshold int) (int64, error)
}

// Notifier anuncia deals recém-criados. Pode ser nil quando as notificações
// estão desligadas.
type Notifier interface {
	NotifyNewDeal(deal *models.Deal) error
}

// Result é o resumo de uma rodada de refresh. Falhas individuais viram
// contadores; a rodada sempre termina.
type Result struct {
	RunID        string `json:"run_id"`
	Processed    int    `json:"processed"`
	PriceChanges int    `json:"price_changes"`
	NewDeals     int    `json:"new_deals"`
	Errors       int    `json:"errors"`
}

// Refresher reconcilia preços de produtos já conhecidos em lotes sequenciais.
type Refresher struct {
	client     Fetcher
	store      Store
	normalizer *amazon.Normalizer
	notifier   Notifier
	retry      retry.Policy
	threshold  int
	batchSize  int
	batchDelay time.Duration
}

// Options configura um Refresher.
type Options struct {
	Notifier   Notifier
	Retry      retry.Policy
	Threshold  int
	BatchSize  int
	BatchDelay time.Duration
}

// New constrói o refresher com as dependências injetadas.
func New(client Fetcher, store Store, normalizer *amazon.Normalizer, opts Options) *Refresher {
	if opts.Threshold <= 0 {
		opts.Threshold = 15
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = retry.Default
	}
	return &Refresher{
		client:     client,
		store:      store,
		normalizer: normalizer,
		notifier:   opts.Notifier,
		retry:      opts.Retry,
		threshold:  opts.Threshold,
		batchSize:  opts.BatchSize,
		batchDelay: opts.BatchDelay,
	}
}

// RefreshAllPrices reverifica todos os produtos ativos, dos mais
// desatualizados primeiro, em lotes com pausa entre eles.
func (r *Refresher) RefreshAllPrices(ctx context.Context) Result {
	products, err := r.store.GetActiveProducts(ctx)
	if err != nil {
		log.Printf("Erro ao buscar produtos ativos: %v", err)
		return Result{RunID: uuid.NewString(), Errors: 1}
	}
	return r.refreshProducts(ctx, products)
}

// RefreshCategory reverifica apenas os produtos ativos de uma categoria,
// para refresh manual direcionado.
func (r *Refresher) RefreshCategory(ctx context.Context, category string) Result {
	products, err := r.store.GetActiveProductsByCategory(ctx, category)
	if err != nil {
		log.Printf("Erro ao buscar produtos da categoria %q: %v", category, err)
		return Result{RunID: uuid.NewString(), Errors: 1}
	}
	return r.refreshProducts(ctx, products)
}

// refreshProducts processa os produtos em lotes sequenciais, acumulando os
// contadores. A falha de um produto conta como erro e a rodada continua.
func (r *Refresher) refreshProducts(ctx context.Context, products []models.Product) Result {
	result := Result{RunID: uuid.NewString()}
	log.Printf("[refresh %s] %d produtos em lotes de %d", result.RunID, len(products), r.batchSize)

	for start := 0; start < len(products); start += r.batchSize {
		if ctx.Err() != nil {
			break
		}
		end := start + r.batchSize
		if end > len(products) {
			end = len(products)
		}

		for idx := range products[start:end] {
			product := products[start+idx]
			priceChanged, newDeal, err := r.refreshSingleProduct(ctx, &product)
			if err != nil {
				if errors.Is(err, errNoData) {
					// Produto possivelmente removido do catálogo: pula sem contar erro
					log.Printf("[refresh %s] produto %s sem dados, pulando", result.RunID, product.ExternalID)
					continue
				}
				log.Printf("[refresh %s] erro no produto %s (id=%d): %v",
					result.RunID, product.ExternalID, product.ID, err)
				result.Errors++
				continue
			}
			result.Processed++
			if priceChanged {
				result.PriceChanges++
			}
			if newDeal {
				result.NewDeals++
			}
		}

		if r.batchDelay > 0 && start+r.batchSize < len(products) {
			select {
			case <-ctx.Done():
			case <-time.After(r.batchDelay):
			}
		}
	}

	log.Printf("[refresh %s] concluído: %d processados, %d mudanças de preço, %d novos deals, %d erros",
		result.RunID, result.Processed, result.PriceChanges, result.NewDeals, result.Errors)
	return result
}

// refreshSingleProduct consulta o preço atual de um produto e, se mudou,
// atualiza a linha, registra o histórico e avalia o limiar de deal.
// Preço inalterado não gera nenhuma escrita.
func (r *Refresher) refreshSingleProduct(ctx context.Context, product *models.Product) (priceChanged, newDeal bool, err error) {
	var resp *amazon.GetItemsResponse
	err = r.retry.Do(ctx, func() error {
		var callErr error
		resp, callErr = r.client.GetItems(ctx, []string{product.ExternalID}, nil)
		return callErr
	})
	if err != nil {
		return false, false, err
	}
	if resp == nil || resp.ItemsResult == nil || len(resp.ItemsResult.Items) == 0 {
		return false, false, errNoData
	}

	fresh := r.normalizer.NormalizeItem(resp.ItemsResult.Items[0])
	if !r.normalizer.Validate(fresh) {
		return false, false, errNoData
	}

	if fresh.CurrentPrice == product.CurrentPrice {
		return false, false, nil
	}

	product.Title = fresh.Title
	product.CurrentPrice = fresh.CurrentPrice
	product.ListPrice = fresh.ListPrice
	product.DiscountPercent = fresh.DiscountPercent
	if fresh.ImageURL != "" {
		product.ImageURL = fresh.ImageURL
	}
	if fresh.ProductURL != "" {
		product.ProductURL = fresh.ProductURL
	}

	if err := r.store.UpdateProduct(ctx, product); err != nil {
		return false, false, fmt.Errorf("erro ao atualizar produto: %w", err)
	}
	if err := r.store.AddPriceHistory(ctx, &models.PriceHistoryEntry{
		ProductID:       product.ID,
		Price:           product.CurrentPrice,
		ListPrice:       product.ListPrice,
		DiscountPercent: product.DiscountPercent,
		Source:          models.SourceRefresh,
	}); err != nil {
		return false, false, fmt.Errorf("erro ao registrar histórico: %w", err)
	}

	if product.DiscountPercent >= r.threshold {
		created, err := r.createOrUpdateDeal(ctx, product)
		if err != nil {
			return true, false, err
		}
		return true, created, nil
	}
	return true, false, nil
}

// createOrUpdateDeal cria o deal na primeira vez que o produto cruza o
// limiar e atualiza o existente nas observações seguintes, reativando-o se
// estava inativo. Retorna true apenas quando um deal novo foi inserido.
func (r *Refresher) createOrUpdateDeal(ctx context.Context, product *models.Product) (bool, error) {
	existing, err := r.store.GetDealByProductID(ctx, product.ID)
	if err != nil {
		return false, fmt.Errorf("erro ao consultar deal: %w", err)
	}

	if existing != nil {
		existing.Title = product.Title
		existing.OriginalPrice = product.ListPrice
		existing.DiscountedPrice = product.CurrentPrice
		existing.DiscountPercentage = product.DiscountPercent
		existing.ImageURL = product.ImageURL
		existing.DealURL = product.ProductURL
		existing.Category = product.Category
		existing.IsActive = true
		if err := r.store.UpdateDeal(ctx, existing); err != nil {
			return false, fmt.Errorf("erro ao atualizar deal: %w", err)
		}
		return false, nil
	}

	deal := &models.Deal{
		ProductID:          product.ID,
		Title:              product.Title,
		Description:        fmt.Sprintf("%d%% de desconto em %s", product.DiscountPercent, product.Title),
		OriginalPrice:      product.ListPrice,
		DiscountedPrice:    product.CurrentPrice,
		DiscountPercentage: product.DiscountPercent,
		ImageURL:           product.ImageURL,
		DealURL:            product.ProductURL,
		Store:              product.Store,
		Category:           product.Category,
		IsActive:           true,
	}
	id, err := r.store.InsertDeal(ctx, deal)
	if err != nil {
		return false, fmt.Errorf("erro ao inserir deal: %w", err)
	}
	deal.ID = id

	if r.notifier != nil {
		if err := r.notifier.NotifyNewDeal(deal); err != nil {
			// Falha de notificação não invalida o deal criado
			log.Printf("Erro ao notificar novo deal %d: %v", deal.ID, err)
		}
	}
	return true, nil
}

// CleanupExpiredDeals desativa os deals ativos cujos produtos caíram abaixo
// do limiar, retornando quantos foram desativados. É o único caminho que
// tira um deal do ar, e nunca apaga linhas.
func (r *Refresher) CleanupExpiredDeals(ctx context.Context) (int64, error) {
	count, err := r.store.DeactivateExpiredDeals(ctx, r.threshold)
	if err != nil {
		return 0, fmt.Errorf("erro ao desativar deals expirados: %w", err)
	}
	if count > 0 {
		log.Printf("%d deals desativados por desconto abaixo de %d%%", count, r.threshold)
	}
	return count, nil
}
