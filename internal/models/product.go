package models

import "time"

// StoreAmazon é a tag fixa do marketplace para produtos ingeridos da Amazon.
const StoreAmazon = "amazon"

// Fontes possíveis de uma entrada de histórico de preço.
const (
	SourceIngestion = "ingestion"
	SourceRefresh   = "refresh"
	SourceOther     = "other"
)

// Product representa um item de catálogo rastreado ao longo do tempo.
// O par (ExternalID, Store) identifica o produto de forma única.
type Product struct {
	ID              int64
	ExternalID      string
	Store           string
	Title           string
	CurrentPrice    float64
	ListPrice       float64
	DiscountPercent int // 0-100, derivado de ListPrice/CurrentPrice
	ImageURL        string
	ProductURL      string
	Category        string
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PriceHistoryEntry é uma observação imutável do preço de um produto.
// Entradas são apenas adicionadas, nunca atualizadas ou removidas por aqui.
type PriceHistoryEntry struct {
	ID              int64
	ProductID       int64
	Price           float64
	ListPrice       float64
	DiscountPercent int
	Source          string
	ObservedAt      time.Time
}

// Deal é a oferta visível ao usuário, derivada de um Product que cruzou o
// limiar de desconto. Existe no máximo um Deal por produto; quando o desconto
// cai abaixo do limiar o Deal é desativado, nunca apagado.
type Deal struct {
	ID                 int64
	ProductID          int64
	Title              string
	Description        string
	OriginalPrice      float64
	DiscountedPrice    float64
	DiscountPercentage int
	ImageURL           string
	DealURL            string
	Store              string
	Category           string
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ProductStats agrega contadores da tabela de produtos.
type ProductStats struct {
	Total           int64   `json:"total"`
	Active          int64   `json:"active"`
	AvgDiscount     float64 `json:"avg_discount"`
	AvgCurrentPrice float64 `json:"avg_current_price"`
}

// PriceHistoryStats agrega contadores da tabela de histórico de preços.
type PriceHistoryStats struct {
	Entries         int64 `json:"entries"`
	TrackedProducts int64 `json:"tracked_products"`
}

// PipelineStats é o resumo de observabilidade exposto por GetStats.
type PipelineStats struct {
	Products     ProductStats      `json:"products"`
	PriceHistory PriceHistoryStats `json:"price_history"`
}
