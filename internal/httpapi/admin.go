package httpapi

import (
	"context"

	"mining-ledger-go/internal/models"
	"mining-ledger-go/internal/store"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) DashboardStats(c *fiber.Ctx) error {
	stats, err := h.service.GetDashboardStats(c.UserContext())
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Dashboard stats", stats)
}

func (h *Handler) ListAdminActions(c *fiber.Ctx) error {
	actions, err := h.service.ListAdminActions(c.UserContext(), c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Admin actions", actions)
}

func (h *Handler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.service.GetSettings(c.UserContext())
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Settings", settings)
}

func (h *Handler) UpdateSettings(c *fiber.Ctx) error {
	var req SettingsInput
	if ok, err := bind(c, &req); !ok {
		return err
	}

	settings := models.AdminSettings{
		BitcoinWalletAddress:  req.BitcoinWalletAddress,
		EthereumWalletAddress: req.EthereumWalletAddress,
		ReferralRewardEnabled: req.ReferralRewardEnabled,
		ReferrerRewardPercent: req.ReferrerRewardPercent,
	}
	var err error
	if settings.BitcoinRateUSD, err = parseDecimal("bitcoin_rate_usd", req.BitcoinRateUSD); err != nil {
		return WriteAppError(c, err)
	}
	if settings.EthereumRateUSD, err = parseDecimal("ethereum_rate_usd", req.EthereumRateUSD); err != nil {
		return WriteAppError(c, err)
	}
	if settings.GlobalMiningRate, err = parseDecimal("global_mining_rate", req.GlobalMiningRate); err != nil {
		return WriteAppError(c, err)
	}

	updated, err := h.service.UpdateSettings(c.UserContext(), currentUser(c).Id, settings)
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Settings updated", updated)
}

func (h *Handler) ListUsers(c *fiber.Ctx) error {
	users, err := h.service.ListUsers(c.UserContext())
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Users", users)
}

func (h *Handler) ReconcileUser(c *fiber.Ctx) error {
	if err := h.service.ReconcileBalances(c.UserContext(), c.Params("id")); err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Balances match history", nil)
}

func (h *Handler) SetMiningPaused(c *fiber.Ctx) error {
	return h.toggle(c, "Mining pause updated", h.service.SetMiningPaused)
}

func (h *Handler) SetWithdrawalSuspended(c *fiber.Ctx) error {
	return h.toggle(c, "Withdrawal suspension updated", h.service.SetWithdrawalSuspended)
}

func (h *Handler) SetFlagged(c *fiber.Ctx) error {
	return h.toggle(c, "Flag updated", h.service.SetFlagged)
}

func (h *Handler) SetMiningRate(c *fiber.Ctx) error {
	var req MiningRateInput
	if ok, err := bind(c, &req); !ok {
		return err
	}

	rate, err := parseDecimal("rate", req.Rate)
	if err != nil {
		return WriteAppError(c, err)
	}

	user, err := h.service.SetPersonalMiningRate(c.UserContext(), currentUser(c).Id, c.Params("id"), rate)
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Personal mining rate set", user)
}

func (h *Handler) ClearMiningRate(c *fiber.Ctx) error {
	user, err := h.service.ClearPersonalMiningRate(c.UserContext(), currentUser(c).Id, c.Params("id"))
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Personal mining rate cleared", user)
}

func (h *Handler) ListDeposits(c *fiber.Ctx) error {
	deposits, err := h.service.ListDeposits(c.UserContext(), store.DepositFilter{
		UserId: c.Query("user_id"),
		Status: models.DepositStatus(c.Query("status")),
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	})
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Deposits", deposits)
}

func (h *Handler) ReviewDeposit(c *fiber.Ctx) error {
	var req ReviewInput
	if ok, err := bind(c, &req); !ok {
		return err
	}

	result, err := h.service.ReviewDeposit(c.UserContext(), currentUser(c).Id, c.Params("id"), *req.Approve)
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Deposit "+string(result.Deposit.Status), result)
}

func (h *Handler) ListWithdrawals(c *fiber.Ctx) error {
	withdrawals, err := h.service.ListWithdrawals(c.UserContext(), store.WithdrawalFilter{
		UserId: c.Query("user_id"),
		Status: models.WithdrawalStatus(c.Query("status")),
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	})
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Withdrawals", withdrawals)
}

func (h *Handler) ReviewWithdrawal(c *fiber.Ctx) error {
	var req ReviewInput
	if ok, err := bind(c, &req); !ok {
		return err
	}

	result, err := h.service.ReviewWithdrawal(c.UserContext(), currentUser(c).Id, c.Params("id"), *req.Approve)
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Withdrawal "+string(result.Withdrawal.Status), result)
}

func (h *Handler) PauseSession(c *fiber.Ctx) error {
	session, err := h.service.PauseSession(c.UserContext(), currentUser(c).Id, c.Params("id"))
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Session paused", session)
}

func (h *Handler) ResumeSession(c *fiber.Ctx) error {
	session, err := h.service.ResumeSession(c.UserContext(), currentUser(c).Id, c.Params("id"))
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Session resumed", session)
}

func (h *Handler) CloseSession(c *fiber.Ctx) error {
	session, err := h.service.CloseSession(c.UserContext(), currentUser(c).Id, c.Params("id"))
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, "Session closed", session)
}

type toggleFunc func(ctx context.Context, adminId, userId string, enabled bool) (*models.User, error)

func (h *Handler) toggle(c *fiber.Ctx, message string, apply toggleFunc) error {
	var req ToggleInput
	if ok, err := bind(c, &req); !ok {
		return err
	}

	user, err := apply(c.UserContext(), currentUser(c).Id, c.Params("id"), *req.Enabled)
	if err != nil {
		return WriteAppError(c, err)
	}
	return WriteSuccess(c, fiber.StatusOK, message, user)
}
