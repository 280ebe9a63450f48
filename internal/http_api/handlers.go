package http_api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sonotxt/custodia/internal/models"
	"github.com/sonotxt/custodia/pkg/validation"
)

// ReportDepositRequest represents the JSON body for a manual deposit report
type ReportDepositRequest struct {
	Chain  string `json:"chain" binding:"required"`
	TxHash string `json:"tx_hash" binding:"required"`
	Asset  string `json:"asset" binding:"required"`
	Amount string `json:"amount" binding:"required"`
	// ToAddress is optional; when set it must be a valid address on the
	// reported chain.
	ToAddress string `json:"to_address"`
}

// RegisterNotificationsRequest represents the JSON body for notification setup
type RegisterNotificationsRequest struct {
	Telegram string `json:"telegram"`
	Email    string `json:"email" binding:"omitempty,email"`
}

// accountRequired extracts the authenticated account from the X-Account-ID
// header set by the upstream gateway. Requests without a valid account ID
// are rejected.
func (s *HTTPServer) accountRequired(c *gin.Context) {
	raw := c.GetHeader("X-Account-ID")
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Missing X-Account-ID header",
		})
		return
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Invalid X-Account-ID header",
		})
		return
	}
	c.Set("account_id", id.String())
	c.Next()
}

func (s *HTTPServer) accountID(c *gin.Context) string {
	return c.GetString("account_id")
}

// chainParam parses and validates the :chain path parameter.
func (s *HTTPServer) chainParam(c *gin.Context) (models.Chain, bool) {
	chain, err := models.ParseChain(c.Param("chain"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return "", false
	}
	return chain, true
}

// getDepositAddress is a handler for the /address/:chain endpoint.
func (s *HTTPServer) getDepositAddress(c *gin.Context) {
	chain, ok := s.chainParam(c)
	if !ok {
		return
	}

	addr, err := s.registry.GetDepositAddress(s.accountID(c), chain)
	if err != nil {
		if errors.Is(err, models.ErrSeedNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error":   "Address derivation is not available",
			})
			return
		}
		s.logger.Error("Failed to get deposit address: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal error",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"address": addr,
	})
}

// rotateAddress is a handler for the /address/:chain/rotate endpoint.
func (s *HTTPServer) rotateAddress(c *gin.Context) {
	chain, ok := s.chainParam(c)
	if !ok {
		return
	}

	addr, err := s.registry.RotateAddress(s.accountID(c), chain)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAddressLimit):
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error":   err.Error(),
			})
		case errors.Is(err, models.ErrSeedNotConfigured):
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error":   "Address derivation is not available",
			})
		default:
			s.logger.Error("Failed to rotate address: ", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   "Internal error",
			})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"address": addr,
	})
}

// listAddresses is a handler for the /addresses/:chain endpoint.
func (s *HTTPServer) listAddresses(c *gin.Context) {
	chain, ok := s.chainParam(c)
	if !ok {
		return
	}

	addrs, err := s.registry.ListAddresses(s.accountID(c), chain)
	if err != nil {
		s.logger.Error("Failed to list addresses: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal error",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"addresses": addrs,
	})
}

// remainingSlots is a handler for the /slots/:chain endpoint.
func (s *HTTPServer) remainingSlots(c *gin.Context) {
	chain, ok := s.chainParam(c)
	if !ok {
		return
	}

	slots, err := s.registry.RemainingSlots(s.accountID(c), chain)
	if err != nil {
		s.logger.Error("Failed to get remaining slots: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal error",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"remaining_slots": slots,
	})
}

// listDeposits is a handler for the GET /deposits endpoint.
func (s *HTTPServer) listDeposits(c *gin.Context) {
	deposits, err := s.db.DepositsByAccount(s.accountID(c), 100)
	if err != nil {
		s.logger.Error("Failed to list deposits: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal error",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"deposits": deposits,
	})
}

// reportDeposit is a handler for the POST /deposits endpoint.
func (s *HTTPServer) reportDeposit(c *gin.Context) {
	var req ReportDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	chain, err := models.ParseChain(req.Chain)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if req.ToAddress != "" {
		if err := validation.ValidateAddress(chain, req.ToAddress); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Invalid to_address: " + err.Error(),
			})
			return
		}
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid amount",
		})
		return
	}

	deposit, err := s.ledger.ReportManual(s.accountID(c), chain, req.TxHash, req.Asset, amount)
	if err != nil {
		if errors.Is(err, models.ErrDepositExists) {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error":   err.Error(),
			})
			return
		}
		s.logger.Error("Failed to report deposit: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal error",
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"deposit": deposit,
	})
}

// getBalance is a handler for the /balance endpoint.
func (s *HTTPServer) getBalance(c *gin.Context) {
	accountID := s.accountID(c)
	balance, err := s.db.Balance(accountID)
	if err != nil {
		s.logger.Error("Failed to get balance: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal error",
		})
		return
	}
	entries, err := s.db.LedgerEntries(accountID, 50)
	if err != nil {
		s.logger.Error("Failed to list ledger entries: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal error",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"balance":      balance,
		"transactions": entries,
	})
}

// registerNotifications is a handler for the POST /notifications endpoint.
func (s *HTTPServer) registerNotifications(c *gin.Context) {
	var req RegisterNotificationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}
	if req.Telegram == "" && req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "At least one notification method (telegram or email) is required",
		})
		return
	}

	provider := &models.NotificationProvider{
		AccountID: s.accountID(c),
		TelegramProvider: models.TelegramProvider{
			Username: req.Telegram,
		},
		EmailProvider: models.EmailProvider{
			Email: req.Email,
		},
	}
	if err := s.db.UpsertNotificationProvider(provider); err != nil {
		s.logger.Error("Failed to upsert notification provider: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal error",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Notification providers updated successfully",
	})
}
