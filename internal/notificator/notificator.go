package notificator

import (
	"runtime/debug"

	"github.com/sonotxt/custodia/internal/models"
	"github.com/sonotxt/custodia/pkg/logger"
)

// Notificator fans a credited deposit out to the account's configured
// channels. It is called after the crediting transaction committed and
// never fails the caller; a delivery problem only loses the notification,
// never the credit.
type Notificator struct {
	logger *logger.Logger
	db     models.Repository

	TelegramNotificator *TelegramNotificator
	EmailNotificator    *EmailNotificator
}

func NewNotificator(logger *logger.Logger, db models.Repository, telNotif *TelegramNotificator, emailNotif *EmailNotificator) *Notificator {
	return &Notificator{logger: logger, db: db, TelegramNotificator: telNotif, EmailNotificator: emailNotif}
}

// safeCall runs a function with panic recovery (synchronous, no goroutine spawning)
func (n *Notificator) safeCall(fn func(), context string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

func (n *Notificator) DepositCredited(deposit *models.Deposit) {
	provider, err := n.db.NotificationProviderByAccount(deposit.AccountID)
	if err != nil {
		n.logger.Error("Failed to get notification provider: ", err)
		return
	}
	if provider == nil {
		n.logger.Debug("No notification provider for account: ", deposit.AccountID)
		return
	}

	message := models.DepositCreditedMessage(deposit)
	if n.TelegramNotificator != nil && provider.TelegramProvider.ChatID != "" {
		chatID := provider.TelegramProvider.ChatID
		n.safeCall(func() { n.TelegramNotificator.SendNotification(chatID, message) }, "telegramNotification")
	}
	if n.EmailNotificator != nil && provider.EmailProvider.Email != "" {
		email := provider.EmailProvider.Email
		n.safeCall(func() { n.EmailNotificator.SendNotification(email, message) }, "emailNotification")
	}
}
