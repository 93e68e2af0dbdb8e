package pathway

import (
	"time"

	"gorm.io/datatypes"
)

// ApprovalStatus 路径审批状态
type ApprovalStatus string

const (
	// StatusDraft 草稿：编辑中，未经临床负责人签核
	StatusDraft ApprovalStatus = "DRAFT"
	// StatusApproved 已审批：可对终端用户可见
	StatusApproved ApprovalStatus = "APPROVED"
)

// PathwayKind 路径类别
type PathwayKind string

const (
	KindPrimary    PathwayKind = "primary"    // 主路径
	KindSupporting PathwayKind = "supporting" // 辅助路径
	KindModule     PathwayKind = "module"     // 可复用模块
)

// NodeType 节点类型枚举
type NodeType string

const (
	NodeTypeInstruction NodeType = "INSTRUCTION" // 指引说明
	NodeTypeQuestion    NodeType = "QUESTION"    // 问题分支
	NodeTypePanel       NodeType = "PANEL"       // 纯展示面板（不参与遍历逻辑）
	NodeTypeEnd         NodeType = "END"         // 终点/结论
)

// InstanceStatus 路径实例状态
type InstanceStatus string

const (
	InstanceActive    InstanceStatus = "ACTIVE"
	InstanceCompleted InstanceStatus = "COMPLETED"
)

// Pathway 临床路径模板
// 属于某个租户；全局租户下的路径为所有租户共享的默认库，
// 租户通过覆盖机制（SourcePathwayID）获得可编辑副本。
type Pathway struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	TenantID string `json:"tenantId" gorm:"type:uuid;not null;index;uniqueIndex:idx_pathways_tenant_source"`

	// 展示信息
	Name        string      `json:"name" gorm:"size:255;not null"`
	Description string      `json:"description" gorm:"type:text"`
	Active      bool        `json:"active" gorm:"not null;default:true"`
	Colour      string      `json:"colour" gorm:"size:50"`
	Category    string      `json:"category" gorm:"size:100"`
	Kind        PathwayKind `json:"kind" gorm:"size:50;not null;default:primary"`

	// 审批状态：任何面向用户的字段修改都会把 APPROVED 重置回 DRAFT
	Status     ApprovalStatus `json:"status" gorm:"size:20;not null;default:DRAFT"`
	ApprovedBy string         `json:"approvedBy,omitempty" gorm:"size:100"`
	ApprovedAt *time.Time     `json:"approvedAt,omitempty"`

	// 覆盖来源：指向全局默认路径时表示本行是其租户本地副本
	// (tenant_id, source_pathway_id) 全局唯一，同一个全局路径每租户至多一份覆盖
	SourcePathwayID *string `json:"sourcePathwayId,omitempty" gorm:"type:uuid;uniqueIndex:idx_pathways_tenant_source"`

	// 最后编辑人
	UpdatedBy string `json:"updatedBy,omitempty" gorm:"size:100"`

	// 时间戳
	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// IsApproved 路径是否处于已审批状态
func (p *Pathway) IsApproved() bool {
	return p.Status == StatusApproved
}

// PathwayNode 路径中的一个步骤
type PathwayNode struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	PathwayID string `json:"pathwayId" gorm:"type:uuid;not null;index"`

	Type  NodeType `json:"type" gorm:"size:20;not null"`
	Title string   `json:"title" gorm:"size:255;not null"`
	Body  string   `json:"body" gorm:"type:text"`

	// SortOrder 兜底排序：无显式连线时按其升序推进
	SortOrder int  `json:"sortOrder" gorm:"not null;default:0;index"`
	IsStart   bool `json:"isStart" gorm:"not null;default:false"`

	// ActionKey 终止动作标记，主要用于 END 节点，也可作为死路分支的快捷标记
	ActionKey string `json:"actionKey,omitempty" gorm:"size:100"`

	// 画布坐标与样式，纯展示用途，遍历逻辑忽略
	PosX  float64        `json:"posX" gorm:"default:0"`
	PosY  float64        `json:"posY" gorm:"default:0"`
	Style datatypes.JSON `json:"style,omitempty"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// AnswerOption 节点出边：一条带标签的答案分支
type AnswerOption struct {
	ID     string `json:"id" gorm:"primaryKey;type:uuid"`
	NodeID string `json:"nodeId" gorm:"type:uuid;not null;index"`

	Label       string `json:"label" gorm:"size:255;not null"`
	Description string `json:"description,omitempty" gorm:"type:text"`

	// ValueKey 机器可读键，节点内唯一（应用层校验，保证报错信息对用户友好）
	ValueKey string `json:"valueKey" gorm:"size:100;not null"`

	// NextNodeID 为空表示终止分支：选择后实例直接完成
	NextNodeID *string `json:"nextNodeId,omitempty" gorm:"type:uuid"`

	// ActionKey 终止动作标记，仅作为结果信息透出，不影响状态迁移
	ActionKey string `json:"actionKey,omitempty" gorm:"size:100"`

	// 画布锚点，纯展示用途
	SourceHandle string `json:"sourceHandle,omitempty" gorm:"size:50"`
	TargetHandle string `json:"targetHandle,omitempty" gorm:"size:50"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// PathwayLink 节点到其他路径的命名交叉引用（如"打开相关路径"），
// 独立于基于连线的遍历。
type PathwayLink struct {
	ID     string `json:"id" gorm:"primaryKey;type:uuid"`
	NodeID string `json:"nodeId" gorm:"type:uuid;not null;index"`

	// TargetPathwayID 不允许指向节点自己所属的路径
	TargetPathwayID string `json:"targetPathwayId" gorm:"type:uuid;not null"`
	Label           string `json:"label" gorm:"size:255;not null"`
	Ordinal         int    `json:"ordinal" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
}

// PathwayInstance 一次路径执行
// CurrentNodeID 非空当且仅当状态为 ACTIVE；COMPLETED 为终态。
type PathwayInstance struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	TenantID  string `json:"tenantId" gorm:"type:uuid;not null;index"`
	PathwayID string `json:"pathwayId" gorm:"type:uuid;not null;index"`
	StartedBy string `json:"startedBy" gorm:"size:100;not null"`

	Status InstanceStatus `json:"status" gorm:"size:20;not null;default:ACTIVE"`

	// 自由文本参考信息（如患者编号、就诊类别）
	Reference string `json:"reference,omitempty" gorm:"size:255"`
	Category  string `json:"category,omitempty" gorm:"size:100"`

	CurrentNodeID *string `json:"currentNodeId,omitempty" gorm:"type:uuid"`

	// ActionKey 完成时的最终动作（来自 END 节点或终止分支）
	ActionKey   string     `json:"actionKey,omitempty" gorm:"size:100"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// IsCompleted 实例是否已完成
func (i *PathwayInstance) IsCompleted() bool {
	return i.Status == InstanceCompleted
}

// InstanceAnswer 实例离开 QUESTION 节点时追加的只读答案记录
// 仅随所属节点/选项/实例级联删除，永不更新。
type InstanceAnswer struct {
	ID         string `json:"id" gorm:"primaryKey;type:uuid"`
	InstanceID string `json:"instanceId" gorm:"type:uuid;not null;index"`
	NodeID     string `json:"nodeId" gorm:"type:uuid;not null;index"`

	// OptionID 可空：记录原始 value key 时没有对应选项行
	OptionID *string `json:"optionId,omitempty" gorm:"type:uuid;index"`

	ValueKey string `json:"valueKey" gorm:"size:100;not null"`
	Note     string `json:"note,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
}

// Models 返回本包全部需要迁移的模型
func Models() []any {
	return []any{
		&Pathway{},
		&PathwayNode{},
		&AnswerOption{},
		&PathwayLink{},
		&PathwayInstance{},
		&InstanceAnswer{},
	}
}
