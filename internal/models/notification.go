package models

import "fmt"

// NotificationProvider holds the channels an account wants deposit
// notifications on.
type NotificationProvider struct {
	// ID is the unique identifier for the notification provider.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// AccountID is the account the provider belongs to.
	AccountID string `json:"account_id" gorm:"column:account_id;unique;not null"`
	// TelegramProvider is the telegram channel, if configured.
	TelegramProvider TelegramProvider `json:"telegram_provider" gorm:"foreignKey:NotificationProviderID;constraint:OnDelete:CASCADE"`
	// EmailProvider is the email channel, if configured.
	EmailProvider EmailProvider `json:"email_provider" gorm:"foreignKey:NotificationProviderID;constraint:OnDelete:CASCADE"`
}

type TelegramProvider struct {
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// NotificationProviderID is the foreign key to the NotificationProvider.
	NotificationProviderID int64 `json:"notification_provider_id" gorm:"column:notification_provider_id"`
	// Username is the telegram username the user registered with.
	Username string `json:"username" gorm:"column:username;index"`
	// ChatID is filled in once the user messages the bot with /start.
	ChatID string `json:"chat_id" gorm:"column:chat_id"`
}

type EmailProvider struct {
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// NotificationProviderID is the foreign key to the NotificationProvider.
	NotificationProviderID int64 `json:"notification_provider_id" gorm:"column:notification_provider_id"`
	// Email is the email address of the user.
	Email string `json:"email" gorm:"column:email"`
}

// Notifier is told about credited deposits after the crediting transaction
// commits. Implementations must never fail the caller.
type Notifier interface {
	DepositCredited(deposit *Deposit)
}

// DepositCreditedMessage renders the user-facing notification text.
func DepositCreditedMessage(d *Deposit) string {
	return fmt.Sprintf("Deposit credited: %s %s via %s (tx %s)", d.Amount.String(), d.Asset, d.Chain, d.TxHash)
}
