package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/sri-facturacion/internal/domain/entity"
	"github.com/jhoicas/sri-facturacion/pkg/logger"
)

const (
	// DefaultPollInterval espera entre ciclos de conciliación.
	DefaultPollInterval = 60 * time.Second
	// DefaultBatchSize máximo de documentos por ciclo.
	DefaultBatchSize = 100

	persistTimeout = 30 * time.Second
)

// DocumentAction procesa un documento dentro de la sesión del ciclo.
// Un error (o pánico) excluye al documento del guardado en lote.
type DocumentAction func(ctx context.Context, s Session, doc *entity.Document) error

// BatchJob describe un trabajo periódico: qué estados recoger y qué hacer con cada documento.
type BatchJob struct {
	Name     string
	Statuses []string
	Action   DocumentAction
}

// RunnerConfig parámetros del ciclo.
type RunnerConfig struct {
	Interval  time.Duration
	BatchSize int
}

// CycleReport resumen de un ciclo, útil para logs y tests.
type CycleReport struct {
	CycleID   string
	Listed    int
	Processed int
	Failed    int
	Stale     []string
	Err       error
}

// PeriodicBatchRunner ejecuta un BatchJob cada Interval hasta que se cancela el contexto:
//
//	abrir sesión → listar → acción por documento → guardar lote → cerrar sesión → esperar
type PeriodicBatchRunner struct {
	opener SessionOpener
	job    BatchJob
	cfg    RunnerConfig
	log    zerolog.Logger
}

// NewPeriodicBatchRunner construye el runner; valores de cfg <= 0 usan los por defecto.
func NewPeriodicBatchRunner(opener SessionOpener, job BatchJob, cfg RunnerConfig, log *logger.Logger) *PeriodicBatchRunner {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if log == nil {
		log = logger.Nop()
	}
	zl := log.With().Str("job", job.Name).Logger()
	return &PeriodicBatchRunner{opener: opener, job: job, cfg: cfg, log: zl}
}

// Run bloquea hasta que ctx se cancela. El primer ciclo corre de inmediato.
func (r *PeriodicBatchRunner) Run(ctx context.Context) {
	r.log.Info().Dur("interval", r.cfg.Interval).Strs("statuses", r.job.Statuses).Msg("conciliación iniciada")
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("conciliación detenida")
			return
		case <-timer.C:
		}
		r.RunCycle(ctx)
		timer.Reset(r.cfg.Interval)
	}
}

// RunCycle ejecuta un único ciclo. Los errores se registran y se reportan; nunca detienen el loop.
func (r *PeriodicBatchRunner) RunCycle(ctx context.Context) CycleReport {
	report := CycleReport{CycleID: uuid.NewString()}
	log := r.log.With().Str("cycle_id", report.CycleID).Logger()
	start := time.Now()

	s, err := r.opener.Open(ctx)
	if err != nil {
		report.Err = fmt.Errorf("abrir sesión: %w", err)
		log.Error().Err(err).Msg("no se pudo abrir la sesión del ciclo")
		return report
	}
	defer s.Close()

	docs, err := s.Documents().ListElectronicByStatus(ctx, r.job.Statuses, r.cfg.BatchSize)
	if err != nil {
		report.Err = fmt.Errorf("listar documentos: %w", err)
		log.Error().Err(err).Msg("no se pudieron listar documentos")
		return report
	}
	report.Listed = len(docs)
	if len(docs) == 0 {
		log.Debug().Msg("sin documentos pendientes")
		return report
	}

	processed := make([]*entity.Document, 0, len(docs))
	for _, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		if !doc.IsElectronic {
			continue
		}
		prev := doc.Status
		if err := r.runAction(ctx, s, doc); err != nil {
			report.Failed++
			log.Error().Err(err).Str("document_id", doc.ID).Str("access_key", doc.AccessKey).
				Msg("error procesando documento")
			continue
		}
		processed = append(processed, doc)
		log.Info().Str("document_id", doc.ID).Str("access_key", doc.AccessKey).
			Str("from", prev).Str("status", doc.Status).Msg("documento procesado")
	}

	if len(processed) > 0 {
		// El lote se guarda aunque el contexto se haya cancelado: los envíos ya ocurrieron.
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		stale, err := s.Documents().SaveSRIState(pctx, processed)
		cancel()
		if err != nil {
			report.Err = fmt.Errorf("guardar lote: %w", err)
			log.Error().Err(err).Int("documents", len(processed)).Msg("no se pudo guardar el lote")
			return report
		}
		report.Stale = stale
		for _, id := range stale {
			log.Warn().Str("document_id", id).Msg("documento modificado por otro proceso; se omite su actualización")
		}
		report.Processed = len(processed) - len(stale)
	}

	log.Info().Int("listed", report.Listed).Int("processed", report.Processed).Int("failed", report.Failed).
		Int("stale", len(report.Stale)).Dur("elapsed", time.Since(start)).Msg("ciclo completado")
	return report
}

func (r *PeriodicBatchRunner) runAction(ctx context.Context, s Session, doc *entity.Document) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pánico procesando documento: %v", rec)
		}
	}()
	return r.job.Action(ctx, s, doc)
}
