package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/kuromi04/appsistemaveterinario-sub000/internal/config"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/budget"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/kardex"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/medication"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/patient"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/domain/schedule"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/auth"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/db"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/metrics"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/middleware"
	"github.com/kuromi04/appsistemaveterinario-sub000/internal/platform/storage"
)

// app holds the resolved backend and the wired domain services.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	loc     *time.Location
	backend storage.Backend
	pool    *pgxpool.Pool
	probe   *storage.Probe
	metrics *metrics.Metrics

	kardex      *kardex.Service
	patients    *patient.Service
	medications *medication.Service
	budget      *budget.Service
	schedule    *schedule.Service
}

// newApp resolves STORAGE_BACKEND and wires every service against the
// chosen repositories.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, loc: loc, metrics: metrics.New()}

	if cfg.DatabaseURL != "" && cfg.StorageBackend != config.BackendMemory {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		switch {
		case err != nil && cfg.StorageBackend == config.BackendRemote:
			return nil, err
		case err != nil:
			logger.Warn().Err(err).Msg("database pool not created")
		default:
			a.pool = pool
			a.probe = storage.NewProbe("postgres", func(ctx context.Context) error {
				return db.Ping(ctx, pool)
			}, cfg.ProbeTimeout, logger, storage.WithStateObserver(a.metrics.BreakerStateChanged))
		}
	}

	backend, err := storage.Resolve(ctx, cfg.StorageBackend, a.probe, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("resolve storage backend: %w", err)
	}
	if backend == storage.Memory && a.pool != nil {
		a.pool.Close()
		a.pool, a.probe = nil, nil
	}
	a.backend = backend
	a.metrics.SetBackend(string(backend))

	a.wire()
	return a, nil
}

func (a *app) wire() {
	var (
		kardexRepo kardex.Repository
		patients   patient.Repository
		files      patient.FileRepository
		meds       medication.MedicationRepository
		admins     medication.AdministrationRepository
		costs      medication.CostRepository
		ledger     budget.Repository
		tx         storage.Transactor
	)
	if a.backend == storage.Remote {
		kardexRepo = kardex.NewRepoPG(a.pool)
		patients = patient.NewRepoPG(a.pool)
		files = patient.NewFileRepoPG(a.pool)
		meds = medication.NewMedicationRepoPG(a.pool)
		admins = medication.NewAdministrationRepoPG(a.pool)
		costs = medication.NewCostRepoPG(a.pool)
		ledger = budget.NewRepoPG(a.pool)
		tx = db.NewTransactor(a.pool)
	} else {
		kardexRepo = kardex.NewRepoMemory()
		patients = patient.NewRepoMemory()
		files = patient.NewFileRepoMemory()
		meds = medication.NewMedicationRepoMemory()
		admins = medication.NewAdministrationRepoMemory()
		costs = medication.NewCostRepoMemory()
		ledger = budget.NewRepoMemory()
		tx = storage.NewMemoryTransactor()
	}

	a.kardex = kardex.NewService(kardexRepo)
	a.patients = patient.NewService(patients, files, a.kardex, tx)
	a.medications = medication.NewService(meds, admins, costs, a.patients, a.kardex, tx)
	a.budget = budget.NewService(ledger, a.patients, a.kardex, tx, a.logger)
	a.schedule = schedule.NewService(a.medications, a.patients, tx, a.loc, a.logger)

	a.kardex.SetPatientGuard(a.patients)
	a.patients.SetDependents(a.medications, a.budget, a.kardex)
	a.medications.SetBiller(a.budget)
	a.medications.SetObserver(a.metrics)
	a.medications.SetTiming(func(scheduled, administered time.Time) medication.Timing {
		t, _ := schedule.TimingOf(scheduled, administered)
		return t
	})
	a.budget.SetObserver(a.metrics)
	a.schedule.SetObserver(a.metrics)
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// admittedPatients lists the patients still in hospital.
func (a *app) admittedPatients(ctx context.Context) ([]uuid.UUID, error) {
	all, _, err := a.patients.ListPatients(ctx, "", 0, 0)
	if err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	for _, p := range all {
		if p.Status.Admitted() {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

func (a *app) authMiddleware() echo.MiddlewareFunc {
	if a.cfg.IsDev() && a.cfg.AuthSigningKey == "" && a.cfg.AuthIssuer == "" {
		return auth.DevAuthMiddleware()
	}
	return auth.JWTMiddleware(auth.JWTConfig{
		Issuer:     a.cfg.AuthIssuer,
		Audience:   a.cfg.AuthAudience,
		JWKSURL:    a.cfg.AuthJWKSURL,
		SigningKey: []byte(a.cfg.AuthSigningKey),
	})
}

// newServer builds the echo instance with the global middleware chain, the
// unauthenticated ops endpoints and the /api/v1 routes.
func newServer(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.SanitizeWithLogger(a.logger))
	e.Use(middleware.BodyLimit("2M"))
	e.Use(middleware.RequestTimeout(a.cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Clinic-ID", "X-Staff-ID"},
	}))
	e.Use(a.metrics.Middleware())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "backend": string(a.backend)})
	})
	e.GET("/health/storage", storage.HealthHandler(a.backend, a.pool, a.probe))
	e.GET("/metrics", echo.WrapHandler(a.metrics.Handler()))

	api := e.Group("/api/v1", a.authMiddleware())
	if a.backend == storage.Remote {
		api.Use(db.ClinicMiddleware(a.pool, a.cfg.DefaultClinic))
	}

	patient.NewHandler(a.patients).RegisterRoutes(api)
	kardex.NewHandler(a.kardex).RegisterRoutes(api)
	medication.NewHandler(a.medications).RegisterRoutes(api)
	budget.NewHandler(a.budget).RegisterRoutes(api)
	schedule.NewHandler(a.schedule).RegisterRoutes(api)

	return e
}

// printDay writes one patient's day as an aligned table.
func printDay(w io.Writer, d *schedule.Day) {
	fmt.Fprintf(w, "%s  %s  %d slots: %d given, %d pending, %d overdue, %d omitted\n",
		d.PatientName, d.Date, d.Totals.Slots, d.Totals.Given, d.Totals.Pending, d.Totals.Overdue, d.Totals.Omitted)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tMEDICATION\tDOSE\tROUTE\tSTATUS\tTIMING\tDIFF (MIN)")
	for _, e := range d.Entries {
		timing := string(e.TimingStatus)
		if timing == "" {
			timing = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			e.ClockTime, e.MedicationName, e.Dose, e.Route, e.Status, timing, e.TimeDifferenceMinutes)
	}
	tw.Flush()
	fmt.Fprintln(w)
}
