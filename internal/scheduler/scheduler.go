// Package scheduler dispara a ingestão por categoria, o refresh de preços e
// a limpeza de deals em uma cadência fixa.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/abhingram/deals247online-sub000/internal/ingest"
	"github.com/abhingram/deals247online-sub000/internal/refresh"
)

// Scheduler executa as rodadas periódicas do pipeline.
type Scheduler struct {
	ingestor   *ingest.Ingestor
	refresher  *refresh.Refresher
	categories []string
	interval   time.Duration
}

// New cria o scheduler com as categorias ingeridas a cada rodada e o
// intervalo entre rodadas.
func New(ingestor *ingest.Ingestor, refresher *refresh.Refresher, categories []string, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		ingestor:   ingestor,
		refresher:  refresher,
		categories: categories,
		interval:   interval,
	}
}

// Run bloqueia executando uma rodada imediatamente e depois a cada intervalo,
// até o contexto ser cancelado.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("Scheduler iniciado. Rodada completa a cada %v", s.interval)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Scheduler encerrado")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce faz uma rodada completa: ingestão das categorias configuradas,
// refresh de todos os produtos ativos e desativação dos deals que caíram
// abaixo do limiar.
func (s *Scheduler) runOnce(ctx context.Context) {
	for _, category := range s.categories {
		if ctx.Err() != nil {
			return
		}
		s.ingestor.IngestCategory(ctx, category, nil, 0)
	}

	s.refresher.RefreshAllPrices(ctx)
	if _, err := s.refresher.CleanupExpiredDeals(ctx); err != nil {
		log.Printf("Erro na limpeza de deals: %v", err)
	}
}
