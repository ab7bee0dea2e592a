// Package domain defines the persistence models for generation tasks,
// generated resources, payment orders, and download permissions. These types
// are mapped with GORM and form the core data layer of the application.
package domain

import (
	"encoding/json"
	"time"
)

// Task status values. A task is terminal once completed or failed.
const (
	TaskPending    = "pending"
	TaskProcessing = "processing"
	TaskCompleted  = "completed"
	TaskFailed     = "failed"
)

// Task kinds.
const (
	KindTextToImage  = "text2img"
	KindImageToModel = "img2model3d"
)

// Order status values. paid, expired and refunded are terminal.
const (
	OrderPending  = "pending"
	OrderPaid     = "paid"
	OrderRefunded = "refunded"
	OrderExpired  = "expired"
)

// Resource kinds for generated artifacts.
const (
	ResourceImage   = "image"
	ResourceModel3D = "model3d"
)

// Model profile status values.
const (
	ModelActive   = "active"
	ModelInactive = "inactive"
	ModelDeleted  = "deleted"
)

// Task represents one asynchronous generation job. Progress is a monotonic
// checkpoint in [0,100]; it reaches 100 only on completion, and Result is
// attached exactly once, on the transition into completed.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Kind: "text2img" or "img2model3d".
//   - Status: pending|processing|completed|failed (indexed for recovery scans).
//   - Progress: integer percentage, non-decreasing while non-terminal.
//   - Params: opaque JSON request payload, kept so interrupted work can be
//     rebuilt after a restart.
//   - Result: kind-specific JSON payload, present iff Status is completed.
//   - Message: human-readable status or failure text.
type Task struct {
	ID        string          `json:"id"         gorm:"type:char(36);primaryKey"`
	Kind      string          `json:"kind"       gorm:"type:varchar(16);not null;check:kind IN ('text2img','img2model3d')"`
	Status    string          `json:"status"     gorm:"type:varchar(16);not null;index:idx_task_status"`
	Progress  int             `json:"progress"   gorm:"not null;default:0"`
	Params    json.RawMessage `json:"params,omitempty"  gorm:"type:text"`
	Result    json.RawMessage `json:"result,omitempty"  gorm:"type:text"`
	ModelName string          `json:"model_name" gorm:"type:varchar(128)"`
	Message   string          `json:"message"    gorm:"type:text"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName returns the database table name for Task.
func (Task) TableName() string { return "tasks" }

// Terminal reports whether the task has reached a final status.
func (t Task) Terminal() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed
}

// Generation represents one generated artifact (an image or a 3D model),
// referenced by orders independently of the task that produced it.
//
// Exactly one of URL (images) or ModelURL (3D models) is meaningful,
// selected by Kind. PriceCents holds the minor-unit price when the
// producing pipeline assigned one; zero means "price on demand" and the
// pricing table applies at order time.
type Generation struct {
	ID             string    `json:"id"               gorm:"type:char(36);primaryKey"`
	Kind           string    `json:"kind"             gorm:"type:varchar(16);not null;check:kind IN ('image','model3d')"`
	URL            string    `json:"url,omitempty"    gorm:"type:text"`
	ModelURL       string    `json:"model_url,omitempty" gorm:"type:text"`
	Prompt         string    `json:"prompt,omitempty" gorm:"type:text"`
	NegativePrompt string    `json:"negative_prompt,omitempty" gorm:"type:text"`
	Resolution     string    `json:"resolution,omitempty" gorm:"type:varchar(16)"`
	SourceImageID  string    `json:"source_image_id,omitempty" gorm:"type:char(36)"`
	SourceImageURL string    `json:"source_image_url,omitempty" gorm:"type:text"`
	Format         string    `json:"format,omitempty" gorm:"type:varchar(8)"`
	Quality        string    `json:"quality,omitempty" gorm:"type:varchar(8)"`
	ModelID        string    `json:"model_id"         gorm:"type:char(36);index"`
	ModelName      string    `json:"model_name"       gorm:"type:varchar(128)"`
	TaskID         string    `json:"task_id"          gorm:"type:char(36);index"`
	PriceCents     int64     `json:"price_cents"      gorm:"not null;default:0"`
	Status         string    `json:"status"           gorm:"type:varchar(16);not null"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the database table name for Generation.
func (Generation) TableName() string { return "generations" }

// DownloadURL returns the artifact URL appropriate for the resource kind.
func (g Generation) DownloadURL() string {
	if g.Kind == ResourceImage {
		return g.URL
	}
	return g.ModelURL
}

// Order represents one payment intent for one resource. Amount is in
// integer minor currency units (cents). Status transitions only
// pending→paid (callback path) and pending→expired (lazy read-time check);
// paid, expired and refunded never change again.
type Order struct {
	ID            string     `json:"id"             gorm:"type:varchar(40);primaryKey"`
	ResourceID    string     `json:"resource_id"    gorm:"type:char(36);not null;index"`
	ResourceType  string     `json:"resource_type"  gorm:"type:varchar(16);not null"`
	Amount        int64      `json:"amount"         gorm:"not null"`
	Status        string     `json:"status"         gorm:"type:varchar(16);not null;index:idx_order_status"`
	PayMethod     string     `json:"pay_method"     gorm:"type:varchar(16);not null"`
	TransactionID string     `json:"transaction_id,omitempty" gorm:"type:varchar(64)"`
	UserID        string     `json:"user_id"        gorm:"type:varchar(64);index"`
	CreatedAt     time.Time  `json:"created_at"     gorm:"index:idx_order_created"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ExpiredAt     time.Time  `json:"expired_at"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// Terminal reports whether the order has reached a final status.
func (o Order) Terminal() bool {
	return o.Status == OrderPaid || o.Status == OrderExpired || o.Status == OrderRefunded
}

// DownloadPermission grants up to MaxDownloads fetches of a resource within
// a time window. Exactly one permission is minted per order, at the moment
// the order transitions to paid.
type DownloadPermission struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	OrderID       string    `json:"order_id"       gorm:"type:varchar(40);not null;uniqueIndex:ux_permission_order"`
	ResourceID    string    `json:"resource_id"    gorm:"type:char(36);not null;index"`
	DownloadCount int       `json:"download_count" gorm:"not null;default:0"`
	MaxDownloads  int       `json:"max_downloads"  gorm:"not null"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// TableName returns the database table name for DownloadPermission.
func (DownloadPermission) TableName() string { return "download_permissions" }

// ValidAt reports whether the permission still grants a download at ts.
func (p DownloadPermission) ValidAt(ts time.Time) bool {
	return p.DownloadCount < p.MaxDownloads && ts.Before(p.ExpiresAt)
}

// ModelProfile is the provider configuration for one AI model. Credentials
// live in a separate, access-restricted row (ModelCredential) and are never
// exposed through public listings.
type ModelProfile struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Name      string    `json:"name"       gorm:"type:varchar(128);not null"`
	Kind      string    `json:"kind"       gorm:"type:varchar(16);not null"`
	Provider  string    `json:"provider"   gorm:"type:varchar(32);not null"`
	APIURL    string    `json:"api_url,omitempty" gorm:"type:text"`
	Status    string    `json:"status"     gorm:"type:varchar(16);not null;index"`
	LatencyMS *int64    `json:"latency_ms,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for ModelProfile.
func (ModelProfile) TableName() string { return "models" }

// ModelCredential holds the sealed access key pair for one model profile.
// Values are AES-GCM sealed at rest; only the internal resolve-by-id path
// may open them.
type ModelCredential struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	ModelID   string    `gorm:"type:char(36);not null;uniqueIndex:ux_credential_model"`
	AccessKey string    `gorm:"type:text;not null"`
	SecretKey string    `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the database table name for ModelCredential.
func (ModelCredential) TableName() string { return "model_credentials" }
