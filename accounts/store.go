// Package accounts is a gorm-backed authcore.AccountStore over the accounts
// table created by the migrations package.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/MrEthical07/authcore"
)

type accountModel struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement:false"`
	Email        string    `gorm:"column:email;uniqueIndex:accounts_email_uq;not null"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	DisplayName  string    `gorm:"column:display_name;not null;default:''"`
	Role         string    `gorm:"column:role;not null;default:USER"`
	Active       bool      `gorm:"column:active;not null"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (accountModel) TableName() string { return "accounts" }

func toAccount(m accountModel) *authcore.Account {
	return &authcore.Account{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		DisplayName:  m.DisplayName,
		Role:         m.Role,
		Active:       m.Active,
	}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Store implements authcore.AccountStore.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

var _ authcore.AccountStore = (*Store)(nil)

// New wraps db. A nil now uses time.Now.
func New(db *gorm.DB, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{db: db, now: now}
}

// Open connects to dsn: PostgreSQL for postgres:// URLs, otherwise a SQLite
// file through the pure-Go "sqlite" driver, which callers must register.
func Open(dsn string, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg := &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		log.Info("connecting accounts store to postgres")
		return gorm.Open(postgres.Open(dsn), cfg)
	}
	log.Info("using sqlite accounts store", zap.String("dsn", dsn))
	return gorm.Open(gormsqlite.New(gormsqlite.Config{DriverName: "sqlite", DSN: dsn}), cfg)
}

// AutoMigrate creates the accounts table for SQLite development setups.
// PostgreSQL deployments use the goose migrations instead.
func (s *Store) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&accountModel{})
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*authcore.Account, error) {
	var m accountModel
	tx := s.db.WithContext(ctx).Where("email = ?", normalize(email)).First(&m)
	if tx.Error != nil {
		return nil, mapErr(tx.Error)
	}
	return toAccount(m), nil
}

func (s *Store) FindByID(ctx context.Context, id int64) (*authcore.Account, error) {
	var m accountModel
	tx := s.db.WithContext(ctx).Where("id = ?", id).First(&m)
	if tx.Error != nil {
		return nil, mapErr(tx.Error)
	}
	return toAccount(m), nil
}

// Create inserts a. A taken email yields authcore.ErrDuplicateAccount.
func (s *Store) Create(ctx context.Context, a authcore.Account) error {
	now := s.now().UTC()
	m := accountModel{
		ID:           a.ID,
		Email:        normalize(a.Email),
		PasswordHash: a.PasswordHash,
		DisplayName:  a.DisplayName,
		Role:         a.Role,
		Active:       a.Active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return authcore.ErrDuplicateAccount
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return s.update(ctx, id, map[string]any{"password_hash": hash})
}

// SetActive enables or disables an account. Disabled accounts cannot sign in
// or refresh.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	return s.update(ctx, id, map[string]any{"active": active})
}

func (s *Store) update(ctx context.Context, id int64, fields map[string]any) error {
	fields["updated_at"] = s.now().UTC()
	tx := s.db.WithContext(ctx).Model(&accountModel{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		return fmt.Errorf("update account: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

func mapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return authcore.ErrUserNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// modernc reports constraint failures as plain errors.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
