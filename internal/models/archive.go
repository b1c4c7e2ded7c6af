package models

import (
	"time"

	"gorm.io/datatypes"
)

// ArchivedSession is a finalized report kept on the device
type ArchivedSession struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	SessionID   string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"sessionId"`
	ReportType  string         `gorm:"type:varchar(32);not null" json:"reportType"`
	Magazyner   string         `gorm:"type:varchar(255)" json:"magazyner"`
	Place       string         `gorm:"type:varchar(255)" json:"place"`
	PalletCount int            `gorm:"default:0" json:"palletCount"`
	Snapshot    datatypes.JSON `gorm:"type:jsonb" json:"snapshot"`
	ArchivedAt  time.Time      `gorm:"not null;index" json:"archivedAt"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// TableName specifies the table name
func (ArchivedSession) TableName() string {
	return "archived_sessions"
}
