package httpapi

import (
	"time"

	"mining-ledger-go/internal/api"
	"mining-ledger-go/internal/apperror"
	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Handler struct {
	service *api.LedgerService
}

func NewHandler(service *api.LedgerService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Healthz(c *fiber.Ctx) error {
	if err := h.service.HealthCheck(c.UserContext()); err != nil {
		zap.L().Error("Health check failed", zap.Error(err))
		return WriteError(c, fiber.StatusServiceUnavailable, apperror.KindInternal, "unhealthy")
	}
	return WriteSuccess(c, fiber.StatusOK, "ok", nil)
}

func (h *Handler) RegisterUser(c *fiber.Ctx) error {
	var req RegisterUserInput
	if ok, err := bind(c, &req); !ok {
		return err
	}

	user, err := h.service.RegisterUser(c.UserContext(), req.Name, req.Email, req.ReferralCode)
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusCreated, "User registered", user)
}

func (h *Handler) Me(c *fiber.Ctx) error {
	return WriteSuccess(c, fiber.StatusOK, "User", currentUser(c))
}

func (h *Handler) Balances(c *fiber.Ctx) error {
	balances, err := h.service.GetBalances(c.UserContext(), currentUser(c).Id)
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Balances", balances)
}

func (h *Handler) History(c *fiber.Ctx) error {
	filter := store.HistoryFilter{
		UserId:          currentUser(c).Id,
		TransactionType: models.TransactionType(c.Query("type")),
		CryptoType:      models.CryptoType(c.Query("crypto_type")),
		Limit:           c.QueryInt("limit", 50),
		Offset:          c.QueryInt("offset", 0),
	}

	var err error
	if filter.Start, err = parseDateQuery(c, "start"); err != nil {
		return WriteAppError(c, err)
	}
	if filter.End, err = parseDateQuery(c, "end"); err != nil {
		return WriteAppError(c, err)
	}

	history, err := h.service.GetTransactionHistory(c.UserContext(), filter)
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccessWithMeta(c, fiber.StatusOK, "Transaction history", history, &Meta{
		Limit:  filter.Limit,
		Offset: filter.Offset,
		Count:  len(history),
	})
}

func (h *Handler) Summary(c *fiber.Ctx) error {
	summary, err := h.service.GetTransactionSummary(c.UserContext(), currentUser(c).Id)
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Transaction summary", summary)
}

func (h *Handler) CreateDeposit(c *fiber.Ctx) error {
	var req CreateDepositInput
	if ok, err := bind(c, &req); !ok {
		return err
	}

	input := api.CreateDepositRequest{
		UserId:     currentUser(c).Id,
		CryptoType: models.CryptoType(req.CryptoType),
	}
	var err error
	if input.Amount, err = parseOptionalDecimal("amount", req.Amount); err != nil {
		return WriteAppError(c, err)
	}
	if input.USDAmount, err = parseOptionalDecimal("usd_amount", req.USDAmount); err != nil {
		return WriteAppError(c, err)
	}

	result, err := h.service.CreateDeposit(c.UserContext(), input)
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusCreated, "Deposit created", result)
}

func (h *Handler) ListMyDeposits(c *fiber.Ctx) error {
	deposits, err := h.service.ListDeposits(c.UserContext(), store.DepositFilter{
		UserId: currentUser(c).Id,
		Status: models.DepositStatus(c.Query("status")),
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	})
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Deposits", deposits)
}

func (h *Handler) AttachEvidence(c *fiber.Ctx) error {
	var req EvidenceInput
	if ok, err := bind(c, &req); !ok {
		return err
	}

	deposit, err := h.service.AttachDepositEvidence(c.UserContext(), currentUser(c).Id, c.Params("id"), req.EvidenceURL)
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Evidence attached", deposit)
}

func (h *Handler) SubmitDeposit(c *fiber.Ctx) error {
	var req SubmitDepositInput
	if len(c.Body()) > 0 {
		if ok, err := bind(c, &req); !ok {
			return err
		}
	}

	deposit, err := h.service.SubmitDeposit(c.UserContext(), currentUser(c).Id, c.Params("id"), req.TransactionHash)
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Deposit submitted", deposit)
}

func (h *Handler) RequestWithdrawal(c *fiber.Ctx) error {
	var req WithdrawalInput
	if ok, err := bind(c, &req); !ok {
		return err
	}

	amount, err := parseDecimal("amount", req.Amount)
	if err != nil {
		return WriteAppError(c, err)
	}

	result, err := h.service.RequestWithdrawal(c.UserContext(), api.WithdrawalRequest{
		UserId:        currentUser(c).Id,
		CryptoType:    models.CryptoType(req.CryptoType),
		Amount:        amount,
		WalletAddress: req.WalletAddress,
	})
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusCreated, "Withdrawal requested", result)
}

func (h *Handler) ListMyWithdrawals(c *fiber.Ctx) error {
	withdrawals, err := h.service.ListWithdrawals(c.UserContext(), store.WithdrawalFilter{
		UserId: currentUser(c).Id,
		Status: models.WithdrawalStatus(c.Query("status")),
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	})
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Withdrawals", withdrawals)
}

func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req TransferInput
	if ok, err := bind(c, &req); !ok {
		return err
	}

	amount, err := parseDecimal("amount", req.Amount)
	if err != nil {
		return WriteAppError(c, err)
	}

	result, err := h.service.Transfer(c.UserContext(), api.TransferRequest{
		FromUserId:      currentUser(c).Id,
		RecipientEmail:  req.RecipientEmail,
		RecipientUserId: req.RecipientId,
		CryptoType:      models.CryptoType(req.CryptoType),
		Amount:          amount,
		Note:            req.Note,
	})
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusCreated, "Transfer completed", result)
}

func (h *Handler) ListMyTransfers(c *fiber.Ctx) error {
	transfers, err := h.service.ListTransfers(c.UserContext(), currentUser(c).Id, c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Transfers", transfers)
}

func (h *Handler) SyncMining(c *fiber.Ctx) error {
	result, err := h.service.SyncMining(c.UserContext(), currentUser(c).Id)
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, result.Message, result)
}

func (h *Handler) ListMySessions(c *fiber.Ctx) error {
	sessions, err := h.service.ListSessions(c.UserContext(), currentUser(c).Id)
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Mining sessions", sessions)
}

func (h *Handler) ListMyRewards(c *fiber.Ctx) error {
	rewards, err := h.service.ListReferralRewards(c.UserContext(), currentUser(c).Id)
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Referral rewards", rewards)
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, apperror.Validation("%s must be a decimal number", field)
	}
	return d, nil
}

func parseOptionalDecimal(field, value string) (decimal.NullDecimal, error) {
	if value == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseDecimal(field, value)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// parseDateQuery accepts RFC 3339 timestamps or plain dates
func parseDateQuery(c *fiber.Ctx, key string) (*time.Time, error) {
	value := c.Query(key)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperror.Validation("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", key)
}
