package tenant

import "time"

// GlobalTenantID 保留租户，持有所有租户共享的全局默认临床路径。
// 普通租户通过覆盖机制获得可编辑的本地副本。
const GlobalTenantID = "global"

// Tenant represents a logical practice/organisation in the system. All
// tenant-scoped data should reference TenantID to ensure proper isolation.
type Tenant struct {
	ID     string `json:"id" gorm:"primaryKey;type:uuid"`
	Name   string `json:"name" gorm:"size:255;not null"`
	Slug   string `json:"slug" gorm:"size:100;uniqueIndex;not null"`
	Status string `json:"status" gorm:"size:50;not null;default:active"`

	// 联系信息
	ContactEmail  string `json:"contactEmail" gorm:"size:255"`
	ContactPerson string `json:"contactPerson" gorm:"size:100"`

	// 时间戳
	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// IsGlobal 是否为全局共享租户
func (t *Tenant) IsGlobal() bool {
	return t.ID == GlobalTenantID
}
