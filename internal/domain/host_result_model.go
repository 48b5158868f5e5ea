package domain

import "time"

// HostResult stores the probe result of one address. Only reachable hosts are
// written unless unreachable retention is enabled.
type HostResult struct {
	Addr      int64     `gorm:"column:addr;primaryKey;autoIncrement:false"`
	Reachable bool      `gorm:"not null;default:false;index"`
	Country   string    `gorm:"size:56;not null;default:''"`
	ProbedAt  time.Time `gorm:"autoCreateTime"`
}

func (HostResult) TableName() string {
	return "ip"
}

// Address converts the stored column back to an Addr.
func (h HostResult) Address() Addr {
	return Addr(uint32(h.Addr))
}
