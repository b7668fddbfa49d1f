package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailExists     = errors.New("the email address is already in use by another account")
)

// Account is the credential record behind an identity.
type Account struct {
	UID          string
	Email        string
	PasswordHash string
	DisplayName  string
	Disabled     bool
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Accounts persists identity accounts. Emails are stored lowercased and unique.
type Accounts interface {
	CreateAccount(ctx context.Context, a Account) error
	GetAccount(ctx context.Context, uid string) (Account, bool, error)
	GetAccountByEmail(ctx context.Context, email string) (Account, bool, error)
	SaveAccount(ctx context.Context, a Account) error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MemoryAccounts keeps accounts in-process.
type MemoryAccounts struct {
	mu      sync.RWMutex
	byUID   map[string]Account
	byEmail map[string]string
}

// NewMemoryAccounts builds an empty account store.
func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{
		byUID:   make(map[string]Account),
		byEmail: make(map[string]string),
	}
}

func (m *MemoryAccounts) CreateAccount(_ context.Context, a Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.Email = normalizeEmail(a.Email)
	if _, exists := m.byEmail[a.Email]; exists {
		return ErrEmailExists
	}
	if _, exists := m.byUID[a.UID]; exists {
		return errors.New("account uid already exists")
	}
	m.byUID[a.UID] = a
	m.byEmail[a.Email] = a.UID
	return nil
}

func (m *MemoryAccounts) GetAccount(_ context.Context, uid string) (Account, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byUID[uid]
	return a, ok, nil
}

func (m *MemoryAccounts) GetAccountByEmail(_ context.Context, email string) (Account, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uid, ok := m.byEmail[normalizeEmail(email)]
	if !ok {
		return Account{}, false, nil
	}
	return m.byUID[uid], true, nil
}

func (m *MemoryAccounts) SaveAccount(_ context.Context, a Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.byUID[a.UID]
	if !ok {
		return ErrAccountNotFound
	}
	a.Email = normalizeEmail(a.Email)
	if owner, taken := m.byEmail[a.Email]; taken && owner != a.UID {
		return ErrEmailExists
	}
	delete(m.byEmail, current.Email)
	m.byEmail[a.Email] = a.UID
	m.byUID[a.UID] = a
	return nil
}

// AccountModel is the GORM model for identity accounts.
type AccountModel struct {
	UID          string    `gorm:"primaryKey;size:64"`
	Email        string    `gorm:"uniqueIndex;size:320;not null"`
	PasswordHash string    `gorm:"size:100;not null"`
	DisplayName  string    `gorm:"size:200"`
	Disabled     bool      `gorm:"not null;default:false"`
	Role         string    `gorm:"size:32"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false"`
}

func (AccountModel) TableName() string { return "identity_accounts" }

// GormAccounts stores accounts in Postgres. The *gorm.DB must be opened with TranslateError.
type GormAccounts struct {
	db *gorm.DB
}

// NewGormAccounts migrates the accounts table on the shared connection.
func NewGormAccounts(db *gorm.DB) (*GormAccounts, error) {
	if err := db.AutoMigrate(&AccountModel{}); err != nil {
		return nil, err
	}
	return &GormAccounts{db: db}, nil
}

func (g *GormAccounts) CreateAccount(ctx context.Context, a Account) error {
	a.Email = normalizeEmail(a.Email)
	model := AccountModel(a)
	if err := g.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

func (g *GormAccounts) GetAccount(ctx context.Context, uid string) (Account, bool, error) {
	return g.find(ctx, "uid = ?", uid)
}

func (g *GormAccounts) GetAccountByEmail(ctx context.Context, email string) (Account, bool, error) {
	return g.find(ctx, "email = ?", normalizeEmail(email))
}

func (g *GormAccounts) find(ctx context.Context, query string, arg any) (Account, bool, error) {
	var model AccountModel
	if err := g.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Account{}, false, nil
		}
		return Account{}, false, err
	}
	return Account(model), true, nil
}

func (g *GormAccounts) SaveAccount(ctx context.Context, a Account) error {
	a.Email = normalizeEmail(a.Email)
	res := g.db.WithContext(ctx).Model(&AccountModel{}).Where("uid = ?", a.UID).Updates(map[string]any{
		"email":         a.Email,
		"password_hash": a.PasswordHash,
		"display_name":  a.DisplayName,
		"disabled":      a.Disabled,
		"role":          a.Role,
		"updated_at":    a.UpdatedAt,
	})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return ErrEmailExists
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}
