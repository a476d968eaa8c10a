package router

import (
	"time"

	"frontdesk/internal/config"
	"frontdesk/internal/handler"
	"frontdesk/internal/infra"
	"frontdesk/internal/middleware"
	"frontdesk/internal/repository"
	"frontdesk/internal/service"
	"frontdesk/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, fiscalCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Infrastructure ───────────────────────────────────────────────────────
	reservationClient := infra.NewReservationClient(cfg.ReservationServiceURL)

	// ── Repositories ─────────────────────────────────────────────────────────
	registerRepo := repository.NewRegisterRepository(db)
	shiftRepo := repository.NewShiftRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	seriesRepo := repository.NewSeriesRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)

	// Worker dispatcher — injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	// ── Services ─────────────────────────────────────────────────────────────
	engine := service.NewReconciliationEngine(cfg.CashTolerance())
	ledgerSvc := service.NewLedgerService(ledgerRepo, shiftRepo)
	shiftSvc := service.NewShiftService(shiftRepo, registerRepo, ledgerRepo, engine)
	registerSvc := service.NewRegisterService(registerRepo, shiftRepo)
	issuanceSvc := service.NewIssuanceService(shiftRepo, paymentRepo, documentRepo, seriesRepo, idempotencyRepo, ledgerSvc, dispatcher)
	creditNoteSvc := service.NewCreditNoteService(documentRepo, paymentRepo, seriesRepo, shiftRepo, ledgerSvc, reservationClient, dispatcher, service.PolicyFromConfig(cfg))
	documentSvc := service.NewDocumentService(documentRepo, dispatcher)

	// ── Handlers ─────────────────────────────────────────────────────────────
	shiftsH := handler.NewShiftHandler(shiftSvc, ledgerSvc)
	paymentsH := handler.NewPaymentHandler(issuanceSvc, reservationClient)
	documentsH := handler.NewDocumentHandler(documentSvc, creditNoteSvc, cfg.FiscalCallbackToken)
	registersH := handler.NewRegisterHandler(registerSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, fiscalCB))

	// Gateway callback — shared-token auth, not JWT
	r.POST("/v1/fiscal/callback", documentsH.AuthorityCallback)

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	anyDesk := middleware.RequireRole(middleware.RoleCashier, middleware.RoleSupervisor, middleware.RoleAdmin)
	supervisorUp := middleware.RequireRole(middleware.RoleSupervisor, middleware.RoleAdmin)

	v1 := r.Group("/v1", jwtMW)
	{
		shifts := v1.Group("/shifts")
		{
			shifts.POST("/open", anyDesk, shiftsH.Open)
			shifts.POST("/close", anyDesk, shiftsH.Close)
			shifts.POST("/movements", anyDesk, shiftsH.RecordMovement)
			shifts.GET("/open/:register_id", anyDesk, shiftsH.GetOpen)
			shifts.GET("/:id/report", anyDesk, shiftsH.Report)
			shifts.GET("/history", supervisorUp, shiftsH.History)
		}

		v1.POST("/payments", anyDesk, paymentsH.Issue)
		v1.GET("/reservations/:ref/balance", anyDesk, paymentsH.ReservationBalance)

		// Corrections need a supervisor
		v1.POST("/credit-notes", supervisorUp, documentsH.IssueCreditNote)

		docs := v1.Group("/documents")
		{
			docs.GET("/pending", supervisorUp, documentsH.ListPending)
			docs.GET("/:id", anyDesk, documentsH.Get)
			docs.POST("/:id/resubmit", supervisorUp, documentsH.Resubmit)
		}

		registers := v1.Group("/registers")
		{
			registers.GET("", anyDesk, registersH.List)
			registers.GET("/:id", anyDesk, registersH.Get)
			registers.POST("", middleware.RequireRole(middleware.RoleAdmin), registersH.Create)
			registers.PUT("/:id", middleware.RequireRole(middleware.RoleAdmin), registersH.Update)
			registers.DELETE("/:id", middleware.RequireRole(middleware.RoleAdmin), registersH.Deactivate)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
