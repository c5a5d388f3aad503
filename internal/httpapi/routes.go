package httpapi

import (
	"errors"

	"mining-ledger-go/internal/apperror"
	"mining-ledger-go/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewApp builds the fiber application with every route registered
func NewApp(cfg models.ServerConfig, h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "mining-ledger",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())

	if cfg.MetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	NewRoutes(app, h)
	return app
}

func NewRoutes(app *fiber.App, h *Handler) {
	routerApi := app.Group("/api")

	routerApi.Get("/healthz", h.Healthz)
	routerApi.Post("/users", h.RegisterUser)

	routerUser := routerApi.Group("", h.RequireUser)
	NewUserRoutes(routerUser, h)

	routerAdmin := routerUser.Group("/admin", h.RequireAdmin)
	NewAdminRoutes(routerAdmin, h)
}

func NewUserRoutes(router fiber.Router, h *Handler) {
	router.Get("/me", h.Me)
	router.Get("/me/balances", h.Balances)
	router.Get("/me/history", h.History)
	router.Get("/me/summary", h.Summary)

	router.Post("/deposits", h.CreateDeposit)
	router.Get("/deposits", h.ListMyDeposits)
	router.Post("/deposits/:id/evidence", h.AttachEvidence)
	router.Post("/deposits/:id/submit", h.SubmitDeposit)

	router.Post("/withdrawals", h.RequestWithdrawal)
	router.Get("/withdrawals", h.ListMyWithdrawals)

	router.Post("/transfers", h.Transfer)
	router.Get("/transfers", h.ListMyTransfers)

	router.Post("/mining/sync", h.SyncMining)
	router.Get("/mining/sessions", h.ListMySessions)
	router.Get("/referrals/rewards", h.ListMyRewards)
}

func NewAdminRoutes(router fiber.Router, h *Handler) {
	router.Get("/stats", h.DashboardStats)
	router.Get("/logs", h.ListAdminActions)
	router.Get("/settings", h.GetSettings)
	router.Put("/settings", h.UpdateSettings)

	router.Get("/users", h.ListUsers)
	router.Get("/users/:id/reconcile", h.ReconcileUser)
	router.Post("/users/:id/mining-paused", h.SetMiningPaused)
	router.Post("/users/:id/withdrawal-suspended", h.SetWithdrawalSuspended)
	router.Post("/users/:id/flagged", h.SetFlagged)
	router.Put("/users/:id/mining-rate", h.SetMiningRate)
	router.Delete("/users/:id/mining-rate", h.ClearMiningRate)

	router.Get("/deposits", h.ListDeposits)
	router.Post("/deposits/:id/review", h.ReviewDeposit)
	router.Get("/withdrawals", h.ListWithdrawals)
	router.Post("/withdrawals/:id/review", h.ReviewWithdrawal)

	router.Post("/sessions/:id/pause", h.PauseSession)
	router.Post("/sessions/:id/resume", h.ResumeSession)
	router.Post("/sessions/:id/close", h.CloseSession)
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		kind := apperror.KindValidation
		switch {
		case fiberErr.Code == fiber.StatusNotFound:
			kind = apperror.KindNotFound
		case fiberErr.Code >= fiber.StatusInternalServerError:
			kind = apperror.KindInternal
		}
		return WriteError(c, fiberErr.Code, kind, fiberErr.Message)
	}

	zap.L().Error("Unhandled request error",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))
	return WriteError(c, fiber.StatusInternalServerError, apperror.KindInternal, "internal error")
}
