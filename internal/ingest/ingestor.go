// Package ingest orquestra a descoberta em massa de produtos por categoria:
// gera termos de busca, consulta a API em lotes limitados e grava os
// resultados com registro de histórico de preço.
package ingest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/abhingram/deals247online-sub000/internal/amazon"
	"github.com/abhingram/deals247online-sub000/internal/models"
	"github.com/abhingram/deals247online-sub000/internal/retry"

	"github.com/google/uuid"
)

// Searcher é a fatia do cliente da API usada pela ingestão.
type Searcher interface {
	SearchItems(ctx context.Context, params amazon.SearchParams) (*amazon.SearchItemsResponse, error)
}

// Store é a fatia do banco usada pela ingestão.
type Store interface {
	GetProductByExternalID(ctx context.Context, externalID, store string) (*models.Product, error)
	InsertProduct(ctx context.Context, p *models.Product) (int64, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
	AddPriceHistory(ctx context.Context, entry *models.PriceHistoryEntry) error
	GetStats(ctx context.Context) (*models.PipelineStats, error)
}

// categoryKeywords são os termos de busca fixos de cada categoria interna.
// Categorias fora da tabela usam o próprio nome como termo.
var categoryKeywords = map[string][]string{
	"Eletrônicos": {"eletrônicos em oferta", "fone de ouvido bluetooth", "smart tv", "caixa de som"},
	"Informática": {"notebook", "monitor", "teclado mecânico", "ssd"},
	"Celulares":   {"smartphone", "capinha de celular", "carregador turbo"},
	"Casa":        {"panela elétrica", "aspirador de pó", "jogo de cama", "air fryer"},
	"Livros":      {"livros mais vendidos", "box de livros", "romance"},
	"Brinquedos":  {"lego", "boneca", "jogos de tabuleiro"},
	"Moda":        {"tênis", "mochila", "relógio"},
	"Esportes":    {"bicicleta", "halteres", "tênis de corrida"},
	"Beleza":      {"perfume", "kit skincare", "secador de cabelo"},
	"Games":       {"console", "controle sem fio", "headset gamer"},
	"Pet Shop":    {"ração", "brinquedo para cachorro"},
}

// Summary é o resultado estruturado de uma rodada de ingestão. Falhas
// parciais viram contadores, nunca erro para o chamador.
type Summary struct {
	RunID    string           `json:"run_id"`
	Category string           `json:"category"`
	Queries  int              `json:"queries"`
	Stored   int              `json:"stored"`
	Errors   int              `json:"errors"`
	Products []models.Product `json:"-"`
}

// Ingestor descobre e grava produtos de uma categoria em lotes,
// tolerando falha por busca e por item.
type Ingestor struct {
	client     Searcher
	store      Store
	normalizer *amazon.Normalizer
	retry      retry.Policy
	batchDelay time.Duration
	maxQueries int
	itemCount  int
}

// Options configura um Ingestor.
type Options struct {
	Retry      retry.Policy
	BatchDelay time.Duration
	MaxQueries int
	ItemCount  int
}

// New constrói o ingestor com as dependências injetadas.
func New(client Searcher, store Store, normalizer *amazon.Normalizer, opts Options) *Ingestor {
	if opts.MaxQueries <= 0 {
		opts.MaxQueries = 5
	}
	if opts.ItemCount <= 0 {
		opts.ItemCount = 10
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = retry.Default
	}
	return &Ingestor{
		client:     client,
		store:      store,
		normalizer: normalizer,
		retry:      opts.Retry,
		batchDelay: opts.BatchDelay,
		maxQueries: opts.MaxQueries,
		itemCount:  opts.ItemCount,
	}
}

// IngestCategory executa as buscas de uma categoria até atingir maxItems
// produtos gravados ou esgotar os termos. Uma busca que falha é registrada
// e o laço segue para a próxima; nada aborta a categoria inteira.
func (i *Ingestor) IngestCategory(ctx context.Context, category string, extraKeywords []string, maxItems int) Summary {
	summary := Summary{RunID: uuid.NewString(), Category: category}
	if maxItems <= 0 {
		maxItems = 50
	}

	queries := i.generateQueries(category, extraKeywords)
	log.Printf("[ingestão %s] categoria %q: %d buscas, limite de %d itens",
		summary.RunID, category, len(queries), maxItems)

	for _, query := range queries {
		if ctx.Err() != nil {
			break
		}
		if len(summary.Products) >= maxItems {
			break
		}
		summary.Queries++

		remaining := maxItems - len(summary.Products)
		count := i.itemCount
		if remaining < count {
			count = remaining
		}

		stored, errs := i.searchAndIngestBatch(ctx, query, count)
		summary.Products = append(summary.Products, stored...)
		summary.Errors += errs
		if errs > 0 && len(stored) == 0 {
			log.Printf("[ingestão %s] busca %q falhou, seguindo para a próxima", summary.RunID, query)
			continue
		}

		// Pausa entre lotes além do limitador por requisição do cliente
		if i.batchDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(i.batchDelay):
			}
		}
	}

	summary.Stored = len(summary.Products)
	log.Printf("[ingestão %s] concluída: %d buscas, %d produtos, %d erros",
		summary.RunID, summary.Queries, summary.Stored, summary.Errors)
	return summary
}

// generateQueries junta os termos fixos da categoria com os extras do
// chamador, removendo duplicados e respeitando o teto de buscas.
func (i *Ingestor) generateQueries(category string, extraKeywords []string) []string {
	base, ok := categoryKeywords[category]
	if !ok {
		base = []string{category}
	}

	seen := make(map[string]bool)
	var queries []string
	for _, q := range append(append([]string{}, base...), extraKeywords...) {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		queries = append(queries, q)
		if len(queries) >= i.maxQueries {
			break
		}
	}
	return queries
}

// searchAndIngestBatch executa uma busca, normaliza os itens retornados e
// grava cada produto isolando falhas por item. Retorna os produtos gravados
// e o total de erros (da busca ou por item).
func (i *Ingestor) searchAndIngestBatch(ctx context.Context, query string, itemCount int) ([]models.Product, int) {
	var resp *amazon.SearchItemsResponse
	err := i.retry.Do(ctx, func() error {
		var callErr error
		resp, callErr = i.client.SearchItems(ctx, amazon.SearchParams{Keywords: query, ItemCount: itemCount})
		return callErr
	})
	if err != nil {
		log.Printf("Erro na busca %q: %v", query, err)
		return nil, 1
	}
	if resp == nil || resp.SearchResult == nil {
		return nil, 0
	}

	var stored []models.Product
	errs := 0
	for _, item := range resp.SearchResult.Items {
		product := i.normalizer.NormalizeItem(item)
		if !i.normalizer.Validate(product) {
			// Item malformado: descarta e segue, sem abortar o lote
			log.Printf("Item inválido descartado na busca %q", query)
			continue
		}
		saved, err := i.storeSingleProduct(ctx, product)
		if err != nil {
			log.Printf("Erro ao gravar produto %s: %v", product.ExternalID, err)
			errs++
			continue
		}
		stored = append(stored, *saved)
	}
	return stored, errs
}

// storeSingleProduct faz o upsert pela chave natural (external_id, store) em
// dois passos explícitos: produto novo ganha inserção com histórico inicial;
// produto existente é atualizado e só ganha histórico quando o preço mudou.
func (i *Ingestor) storeSingleProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	existing, err := i.store.GetProductByExternalID(ctx, product.ExternalID, product.Store)
	if err != nil {
		return nil, fmt.Errorf("erro ao consultar produto: %w", err)
	}

	if existing == nil {
		id, err := i.store.InsertProduct(ctx, product)
		if err != nil {
			return nil, fmt.Errorf("erro ao inserir produto: %w", err)
		}
		product.ID = id
		if err := i.store.AddPriceHistory(ctx, &models.PriceHistoryEntry{
			ProductID:       id,
			Price:           product.CurrentPrice,
			ListPrice:       product.ListPrice,
			DiscountPercent: product.DiscountPercent,
			Source:          models.SourceIngestion,
		}); err != nil {
			return nil, fmt.Errorf("erro ao registrar histórico: %w", err)
		}
		return product, nil
	}

	priceChanged := existing.CurrentPrice != product.CurrentPrice
	product.ID = existing.ID
	product.IsActive = true
	if err := i.store.UpdateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("erro ao atualizar produto: %w", err)
	}
	if priceChanged {
		if err := i.store.AddPriceHistory(ctx, &models.PriceHistoryEntry{
			ProductID:       existing.ID,
			Price:           product.CurrentPrice,
			ListPrice:       product.ListPrice,
			DiscountPercent: product.DiscountPercent,
			Source:          models.SourceIngestion,
		}); err != nil {
			return nil, fmt.Errorf("erro ao registrar histórico: %w", err)
		}
	}
	return product, nil
}

// GetStats expõe os agregados de produtos e histórico para observabilidade.
func (i *Ingestor) GetStats(ctx context.Context) (*models.PipelineStats, error) {
	return i.store.GetStats(ctx)
}
