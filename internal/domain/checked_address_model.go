package domain

// CheckedAddress marks the highest address of a fully persisted batch.
// The maximum row is the resume point.
type CheckedAddress struct {
	Addr int64 `gorm:"column:addr;primaryKey;autoIncrement:false"`
}

func (CheckedAddress) TableName() string {
	return "checked"
}
