package router

import (
	"database/sql"
	"net/http"
	"os"

	mem "healsync/internal/adapters/storage/memory"
	pg "healsync/internal/adapters/storage/postgres"

	"healsync/internal/adapters/directory/registry"
	"healsync/internal/adapters/notify/console"
	"healsync/internal/adapters/notify/whatsapp"
	"healsync/internal/adapters/records/clinic"
	"healsync/internal/domain/access"
	"healsync/internal/domain/audit"
	"healsync/internal/domain/doctoraccess"
	"healsync/internal/domain/grants"
	"healsync/internal/middleware"
	"healsync/internal/platform/logger"
	"healsync/internal/ports/auth"
	"healsync/internal/ports/directory"
	"healsync/internal/ports/notify"
	"healsync/internal/ports/records"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "healsync/docs"
)

type Options struct {
	AuthVerifier auth.Verifier // puede ser nil (modo dev con X-Debug headers)

	// Opcional: si viene, usa Postgres. Si no, intenta DB_DSN; si tampoco,
	// in-memory.
	DB *sql.DB

	// Colaboradores externos. Cualquiera en nil se resuelve por env o cae en
	// la variante de dev.
	Directory directory.Lookup
	Notifier  notify.Dispatcher
	Records   records.Service

	Logger logger.Logger

	// Base del link de claim que el front dibuja como QR.
	PublicBaseURL string
}

func NewRouter(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.NewFromEnv()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/swagger/*", httpSwagger.WrapHandler)

	var (
		grantsRepo   grants.Repository
		requestsRepo grants.RequestRepository
		auditRepo    audit.Repository
	)

	// Si no te pasan DB explícita, intenta por env (para dev/handoff)
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err == nil {
				db = opened
			} else {
				log.Warn("postgres unavailable, falling back to memory", map[string]any{
					"error": err.Error(),
				})
			}
		}
	}

	if db != nil {
		grantsRepo = pg.NewGrantsRepo(db)
		requestsRepo = pg.NewRequestsRepo(db)
		auditRepo = pg.NewAuditRepo(db)
	} else {
		grantsRepo = mem.NewGrantsRepo()
		requestsRepo = mem.NewRequestsRepo()
		auditRepo = mem.NewAuditRepo()
	}

	dir := opts.Directory
	if dir == nil {
		dir = directoryFromEnv()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifierFromEnv(log)
	}
	recordsSvc := opts.Records
	if recordsSvc == nil {
		recordsSvc = recordsFromEnv()
	}

	publicBase := opts.PublicBaseURL
	if publicBase == "" {
		publicBase = os.Getenv("PUBLIC_BASE_URL")
	}

	// Services por módulo
	auditSvc := audit.NewService(auditRepo, log)
	grantsSvc := grants.NewService(grants.Config{
		Grants:        grantsRepo,
		Requests:      requestsRepo,
		Directory:     dir,
		Notifier:      notifier,
		Audit:         auditSvc,
		Logger:        log,
		PublicBaseURL: publicBase,
	})
	evaluator := access.NewEvaluator(grantsRepo, auditSvc, log)

	// Rutas por módulo
	grants.RegisterRoutes(r, grantsSvc)
	audit.RegisterRoutes(r, auditSvc)
	doctoraccess.RegisterRoutes(r, evaluator, recordsSvc)

	return r
}

func directoryFromEnv() directory.Lookup {
	base := os.Getenv("DIRECTORY_BASE_URL")
	if base == "" {
		return registry.NewMemoryLookup()
	}
	c, err := registry.NewClient(registry.Config{
		BaseURL: base,
		APIKey:  os.Getenv("DIRECTORY_API_KEY"),
	})
	if err != nil {
		return registry.NewMemoryLookup()
	}
	return c
}

func notifierFromEnv(log logger.Logger) notify.Dispatcher {
	base := os.Getenv("NOTIFY_BASE_URL")
	if base == "" {
		return console.NewDispatcher(log)
	}
	c, err := whatsapp.NewClient(whatsapp.Config{
		BaseURL: base,
		APIKey:  os.Getenv("NOTIFY_API_KEY"),
	})
	if err != nil {
		return console.NewDispatcher(log)
	}
	return c
}

func recordsFromEnv() records.Service {
	base := os.Getenv("RECORDS_BASE_URL")
	if base == "" {
		return clinic.NewMemoryService()
	}
	c, err := clinic.NewClient(clinic.Config{
		BaseURL: base,
		APIKey:  os.Getenv("RECORDS_API_KEY"),
	})
	if err != nil {
		return clinic.NewMemoryService()
	}
	return c
}
