package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abhingram/deals247online-sub000/config"
	"github.com/abhingram/deals247online-sub000/internal/amazon"
	"github.com/abhingram/deals247online-sub000/internal/database"
	"github.com/abhingram/deals247online-sub000/internal/ingest"
	"github.com/abhingram/deals247online-sub000/internal/notify"
	"github.com/abhingram/deals247online-sub000/internal/refresh"
	"github.com/abhingram/deals247online-sub000/internal/scheduler"
	"github.com/abhingram/deals247online-sub000/internal/server"

	"github.com/joho/godotenv"
)

func main() {
	// Carregar variáveis de ambiente
	if err := godotenv.Load(); err != nil {
		log.Println("Arquivo .env não encontrado, usando variáveis de ambiente do sistema")
	}

	// Carregar configurações (credenciais ausentes são fatais)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Erro ao carregar configurações: %v", err)
	}

	// Inicializar banco de dados
	db, err := database.New(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Erro ao inicializar banco de dados: %v", err)
	}
	defer db.Close()

	// Cliente assinado da API de produtos
	client, err := amazon.NewClient(amazon.ClientOptions{
		AccessKey:         cfg.Amazon.AccessKey,
		SecretKey:         cfg.Amazon.SecretKey,
		PartnerTag:        cfg.Amazon.PartnerTag,
		Host:              cfg.Amazon.Host,
		Region:            cfg.Amazon.Region,
		RequestsPerSecond: cfg.Amazon.RequestsPerSecond,
		Timeout:           cfg.Amazon.RequestTimeout,
	})
	if err != nil {
		log.Fatalf("Erro ao criar cliente da API: %v", err)
	}

	normalizer := amazon.NewNormalizer(cfg.Amazon.PartnerTag)

	// Notificador de novos deals (opcional)
	var notifier refresh.Notifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != 0 {
		tn, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			log.Printf("Notificações desativadas: %v", err)
		} else {
			notifier = tn
		}
	}

	ingestor := ingest.New(client, db, normalizer, ingest.Options{
		BatchDelay: cfg.Pipeline.BatchDelay,
		MaxQueries: cfg.Pipeline.MaxQueries,
		ItemCount:  cfg.Pipeline.SearchItemCount,
	})

	refresher := refresh.New(client, db, normalizer, refresh.Options{
		Notifier:   notifier,
		Threshold:  cfg.Pipeline.DealThreshold,
		BatchSize:  cfg.Pipeline.BatchSize,
		BatchDelay: cfg.Pipeline.BatchDelay,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Rodadas periódicas em background
	go scheduler.New(ingestor, refresher, cfg.Pipeline.Categories, cfg.Pipeline.RefreshInterval).Run(ctx)

	// Gatilhos HTTP
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.New(ingestor, refresher).Handler(),
	}
	go func() {
		log.Printf("Gatilhos HTTP em %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Erro no servidor HTTP: %v", err)
		}
	}()

	// Aguardar sinal de interrupção
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Encerrando pipeline...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Erro ao encerrar servidor HTTP: %v", err)
	}
}
