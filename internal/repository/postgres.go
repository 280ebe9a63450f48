package repository

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/sonotxt/custodia/internal/models"
	"github.com/sonotxt/custodia/pkg/logger"
)

type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (models.Repository, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
	// TranslateError turns driver unique-violation errors into
	// gorm.ErrDuplicatedKey, which the dedup paths depend on.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %s", err)
	}

	repo, err := New(db, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return repo, nil
}

// New wraps an already-open gorm connection. Used by NewPostgresDB and by
// tests running against sqlite.
func New(db *gorm.DB, logger *logger.Logger) (*PostgresDB, error) {
	if err := db.AutoMigrate(
		&models.PaymentAddress{},
		&models.Deposit{},
		&models.LedgerEntry{},
		&models.AccountBalance{},
		&models.ChainCursor{},
		&models.NotificationProvider{},
		&models.TelegramProvider{},
		&models.EmailProvider{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %s", err)
	}
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %s", err)
	}
	return sqlDB.Close()
}

// Transaction runs fn against a transaction-scoped repository.
func (db *PostgresDB) Transaction(fn func(models.Repository) error) error {
	return db.Conn.Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresDB{Conn: tx, logger: db.logger})
	})
}

// --- payment addresses ---

func (db *PostgresDB) ActiveAddress(accountID string, chain models.Chain) (*models.PaymentAddress, error) {
	var addr models.PaymentAddress
	err := db.Conn.Where("account_id = ? AND chain = ? AND is_active = ?", accountID, chain, true).First(&addr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active address: %s", err)
	}
	return &addr, nil
}

func (db *PostgresDB) WatchedAddresses(chain models.Chain) ([]*models.PaymentAddress, error) {
	var addrs []*models.PaymentAddress
	if err := db.Conn.Where("chain = ?", chain).Find(&addrs).Error; err != nil {
		return nil, fmt.Errorf("failed to list watched addresses: %s", err)
	}
	return addrs, nil
}

func (db *PostgresDB) AddressBySubIndex(chain models.Chain, subIndex uint32) (*models.PaymentAddress, error) {
	var addr models.PaymentAddress
	err := db.Conn.Where("chain = ? AND chain_sub_index = ?", chain, subIndex).First(&addr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrUnknownSubIndex
		}
		return nil, fmt.Errorf("failed to get address by sub-index: %s", err)
	}
	return &addr, nil
}

func (db *PostgresDB) CreateAddress(addr *models.PaymentAddress) error {
	if err := db.Conn.Create(addr).Error; err != nil {
		return fmt.Errorf("failed to create payment address: %s", err)
	}
	return nil
}

func (db *PostgresDB) DeactivateAddresses(accountID string, chain models.Chain) error {
	err := db.Conn.Model(&models.PaymentAddress{}).
		Where("account_id = ? AND chain = ?", accountID, chain).
		Update("is_active", false).Error
	if err != nil {
		return fmt.Errorf("failed to deactivate addresses: %s", err)
	}
	return nil
}

func (db *PostgresDB) ListAddresses(accountID string, chain models.Chain) ([]*models.PaymentAddress, error) {
	var addrs []*models.PaymentAddress
	err := db.Conn.Where("account_id = ? AND chain = ?", accountID, chain).
		Order("derivation_index DESC").
		Find(&addrs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %s", err)
	}
	return addrs, nil
}

func (db *PostgresDB) CountAddresses(accountID string, chain models.Chain) (int64, error) {
	var count int64
	err := db.Conn.Model(&models.PaymentAddress{}).
		Where("account_id = ? AND chain = ?", accountID, chain).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count addresses: %s", err)
	}
	return count, nil
}

func (db *PostgresDB) MaxDerivationIndex(accountID string, chain models.Chain) (int64, error) {
	var max int64
	err := db.Conn.Model(&models.PaymentAddress{}).
		Where("account_id = ? AND chain = ?", accountID, chain).
		Select("COALESCE(MAX(derivation_index), -1)").
		Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("failed to get max derivation index: %s", err)
	}
	return max, nil
}

// --- deposits ---

func (db *PostgresDB) CreateDeposit(d *models.Deposit) error {
	if err := db.Conn.Create(d).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.ErrDepositExists
		}
		return fmt.Errorf("failed to create deposit: %s", err)
	}
	return nil
}

func (db *PostgresDB) CreateDepositIfAbsent(d *models.Deposit) (bool, error) {
	result := db.Conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_hash"}},
		DoNothing: true,
	}).Create(d)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create deposit: %s", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (db *PostgresDB) DepositByID(id string) (*models.Deposit, error) {
	var d models.Deposit
	if err := db.Conn.Where("id = ?", id).First(&d).Error; err != nil {
		return nil, fmt.Errorf("failed to get deposit: %s", err)
	}
	return &d, nil
}

func (db *PostgresDB) DepositByTxHash(txHash string) (*models.Deposit, error) {
	var d models.Deposit
	err := db.Conn.Where("tx_hash = ?", txHash).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get deposit by tx hash: %s", err)
	}
	return &d, nil
}

func (db *PostgresDB) DepositsByAccount(accountID string, limit int) ([]*models.Deposit, error) {
	var deposits []*models.Deposit
	err := db.Conn.Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&deposits).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits: %s", err)
	}
	return deposits, nil
}

func (db *PostgresDB) DepositsByStatus(status models.DepositStatus, limit int) ([]*models.Deposit, error) {
	var deposits []*models.Deposit
	err := db.Conn.Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&deposits).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits by status: %s", err)
	}
	return deposits, nil
}

func (db *PostgresDB) TransitionDeposit(id string, from, to models.DepositStatus) error {
	result := db.Conn.Model(&models.Deposit{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return fmt.Errorf("failed to transition deposit: %s", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrInvalidTransition
	}
	return nil
}

func (db *PostgresDB) MarkDepositCredited(id string, at time.Time) error {
	result := db.Conn.Model(&models.Deposit{}).
		Where("id = ? AND status = ?", id, models.DepositStatusConfirmed).
		Updates(map[string]interface{}{"status": models.DepositStatusCredited, "credited_at": at})
	if result.Error != nil {
		return fmt.Errorf("failed to mark deposit credited: %s", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrInvalidTransition
	}
	return nil
}

func (db *PostgresDB) UpdateDepositObservation(id string, observed *models.Deposit) error {
	result := db.Conn.Model(&models.Deposit{}).
		Where("id = ? AND status = ?", id, models.DepositStatusPending).
		Updates(map[string]interface{}{
			"account_id":    observed.AccountID,
			"chain":         observed.Chain,
			"amount":        observed.Amount,
			"asset":         observed.Asset,
			"confirmations": observed.Confirmations,
			"block_number":  observed.BlockNumber,
			"from_address":  observed.FromAddress,
			"to_address":    observed.ToAddress,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update deposit observation: %s", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrInvalidTransition
	}
	return nil
}

// --- balances and ledger ---

func (db *PostgresDB) AddLedgerEntry(e *models.LedgerEntry) error {
	if err := db.Conn.Create(e).Error; err != nil {
		return fmt.Errorf("failed to add ledger entry: %s", err)
	}
	return nil
}

func (db *PostgresDB) AdjustBalance(accountID string, delta decimal.Decimal) error {
	// Upserted in one statement so a first-use race inside an open
	// transaction never trips a unique violation, which would abort the
	// whole transaction on Postgres.
	err := db.Conn.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance":    gorm.Expr("account_balances.balance + excluded.balance"),
			"updated_at": time.Now(),
		}),
	}).Create(&models.AccountBalance{
		AccountID: accountID,
		Balance:   delta,
		UpdatedAt: time.Now(),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to adjust balance: %s", err)
	}
	return nil
}

func (db *PostgresDB) Balance(accountID string) (decimal.Decimal, error) {
	var bal models.AccountBalance
	err := db.Conn.Where("account_id = ?", accountID).First(&bal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to get balance: %s", err)
	}
	return bal.Balance, nil
}

func (db *PostgresDB) LedgerEntries(accountID string, limit int) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	err := db.Conn.Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %s", err)
	}
	return entries, nil
}

// --- listener cursors ---

func (db *PostgresDB) Cursor(chain models.Chain) (uint64, error) {
	var cursor models.ChainCursor
	err := db.Conn.Where("chain = ?", chain).First(&cursor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get chain cursor: %s", err)
	}
	return cursor.Height, nil
}

func (db *PostgresDB) SaveCursor(chain models.Chain, height uint64) error {
	err := db.Conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chain"}},
		DoUpdates: clause.AssignmentColumns([]string{"height", "updated_at"}),
	}).Create(&models.ChainCursor{Chain: chain, Height: height, UpdatedAt: time.Now()}).Error
	if err != nil {
		return fmt.Errorf("failed to save chain cursor: %s", err)
	}
	return nil
}

// --- notification providers ---

func (db *PostgresDB) UpsertNotificationProvider(p *models.NotificationProvider) error {
	existing, err := db.NotificationProviderByAccount(p.AccountID)
	if err != nil {
		return err
	}
	if existing == nil {
		if err := db.Conn.Create(p).Error; err != nil {
			return fmt.Errorf("failed to create notification provider: %s", err)
		}
		return nil
	}

	err = db.Conn.Model(&models.TelegramProvider{}).
		Where("notification_provider_id = ?", existing.ID).
		Updates(map[string]interface{}{"username": p.TelegramProvider.Username}).Error
	if err != nil {
		return fmt.Errorf("failed to update telegram provider: %s", err)
	}
	err = db.Conn.Model(&models.EmailProvider{}).
		Where("notification_provider_id = ?", existing.ID).
		Updates(map[string]interface{}{"email": p.EmailProvider.Email}).Error
	if err != nil {
		return fmt.Errorf("failed to update email provider: %s", err)
	}
	return nil
}

func (db *PostgresDB) NotificationProviderByAccount(accountID string) (*models.NotificationProvider, error) {
	var provider models.NotificationProvider
	err := db.Conn.Preload("TelegramProvider").Preload("EmailProvider").
		Where("account_id = ?", accountID).First(&provider).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get notification provider: %s", err)
	}
	return &provider, nil
}

func (db *PostgresDB) NotificationProviderByTelegramUsername(username string) (*models.NotificationProvider, error) {
	var provider models.NotificationProvider
	err := db.Conn.Joins("JOIN telegram_providers ON telegram_providers.notification_provider_id = notification_providers.id").
		Where("telegram_providers.username = ?", username).
		Preload("TelegramProvider").
		Preload("EmailProvider").
		First(&provider).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get notification provider by telegram username: %s", err)
	}
	return &provider, nil
}

func (db *PostgresDB) SetTelegramChatID(accountID, chatID string) error {
	provider, err := db.NotificationProviderByAccount(accountID)
	if err != nil {
		return err
	}
	if provider == nil {
		return fmt.Errorf("no notification provider for account %s", accountID)
	}
	err = db.Conn.Model(&models.TelegramProvider{}).
		Where("notification_provider_id = ?", provider.ID).
		Update("chat_id", chatID).Error
	if err != nil {
		return fmt.Errorf("failed to set telegram chat ID: %s", err)
	}
	return nil
}
