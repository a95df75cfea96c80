package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ferreirogomes/artshare/cache"
	"github.com/ferreirogomes/artshare/config"
	"github.com/ferreirogomes/artshare/events"
	"github.com/ferreirogomes/artshare/handlers"
	"github.com/ferreirogomes/artshare/listener"
	"github.com/ferreirogomes/artshare/services"
	"github.com/ferreirogomes/artshare/session"
	"github.com/ferreirogomes/artshare/storage"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Falha ao carregar configuração: %v", err)
	}

	logger, err := newLogger(cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("Falha ao criar logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := storage.NewDB(cfg.DatabaseDriver, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("Falha fatal ao conectar ao banco de dados e aplicar migrações", zap.Error(err))
	}
	defer db.Close()

	projections, err := cache.New(cfg.CacheMaxCost, cfg.CacheTTL)
	if err != nil {
		logger.Fatal("Falha ao criar cache de projeções", zap.Error(err))
	}
	defer projections.Close()

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.KafkaEnabled() {
		kp := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaLedgerTopic), logger)
		defer kp.Close()
		publisher = kp
	} else {
		logger.Warn("KAFKA_BROKERS vazio: eventos do ledger desativados")
	}

	marketplaceService := services.NewMarketplaceService(db, projections, publisher, logger)
	if cfg.SeedCatalog {
		if _, err := marketplaceService.SeedCatalog(ctx); err != nil {
			logger.Fatal("Falha ao popular catálogo inicial", zap.Error(err))
		}
	}

	auth, err := session.NewWalletAuthenticator(cfg.CuratorPrincipals, cfg.SignatureMaxSkew)
	if err != nil {
		logger.Fatal("CURATOR_PRINCIPALS inválido", zap.Error(err))
	}

	// Inicia o listener de verificação em uma goroutine separada
	if cfg.KafkaEnabled() {
		reader := listener.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaVerificationTopic, cfg.KafkaGroupID)
		verificationListener := listener.NewVerificationListener(reader, marketplaceService, logger)
		go func() {
			if err := verificationListener.Run(ctx); err != nil {
				logger.Error("listener de verificação parou", zap.Error(err))
				cancel()
			}
		}()
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Service:    marketplaceService,
		Auth:       auth,
		Logger:     logger,
		CORSOrigin: cfg.CORSOrigin,
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Servidor backend rodando", zap.String("port", cfg.Port), zap.String("database", cfg.DatabaseDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("servidor HTTP falhou", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("falha no encerramento do servidor", zap.Error(err))
	}
	logger.Info("encerramento concluído")
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
