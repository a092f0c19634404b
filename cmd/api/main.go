package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/sri-facturacion/internal/application/billing"
	domsri "github.com/jhoicas/sri-facturacion/internal/domain/sri"
	"github.com/jhoicas/sri-facturacion/internal/infrastructure/postgres"
	infrasri "github.com/jhoicas/sri-facturacion/internal/infrastructure/sri"
	"github.com/jhoicas/sri-facturacion/internal/infrastructure/sri/signer"
	httpRouter "github.com/jhoicas/sri-facturacion/internal/interfaces/http"
	"github.com/jhoicas/sri-facturacion/pkg/config"
	"github.com/jhoicas/sri-facturacion/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	opener := postgres.NewSessionOpener(pool)
	location := cfg.SRI.Location()

	// Sin certificado los documentos quedan con clave asignada y el error en sri_message.
	cert, err := signer.Load(cfg.SRI.CertPath, cfg.SRI.CertPassword)
	if err != nil {
		log.Fatal().Err(err).Str("cert_path", cfg.SRI.CertPath).Msg("certificado de firma SRI")
	}
	if cfg.SRI.CertPath == "" {
		log.Warn().Msg("SRI_CERT_PATH vacío: los comprobantes no se firmarán")
	}

	emission := billing.NewEmissionService(
		domsri.NewAccessKeyGenerator(),
		infrasri.NewXMLBuilderService(),
		signer.NewDigitalSignatureService(),
		cert,
		location,
	)
	soapClient := infrasri.NewSOAPClient(cfg.SRI.RequestTimeout)

	var wg sync.WaitGroup
	if cfg.SRI.LoopsEnabled {
		runnerCfg := billing.RunnerConfig{Interval: cfg.SRI.PollInterval, BatchSize: cfg.SRI.BatchSize}
		runners := []*billing.PeriodicBatchRunner{
			billing.NewPeriodicBatchRunner(opener, billing.NewSubmissionJob(emission, soapClient), runnerCfg, log),
			billing.NewPeriodicBatchRunner(opener, billing.NewAuthorizationJob(soapClient, location, time.Now), runnerCfg, log),
		}
		for _, r := range runners {
			wg.Add(1)
			go func(r *billing.PeriodicBatchRunner) {
				defer wg.Done()
				r.Run(ctx)
			}(r)
		}
		log.Info().Dur("interval", cfg.SRI.PollInterval).Int("batch_size", cfg.SRI.BatchSize).Msg("loops SRI iniciados")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.RouterDeps{
		Documents: billing.NewDocumentQueryService(opener),
		DB:        pool,
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	// Los loops terminan su ciclo en curso (la escritura del lote no se cancela).
	wg.Wait()
	log.Info().Msg("aplicación detenida")
}
