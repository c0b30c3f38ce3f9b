package model

import "time"

// 포인트 지급/회수 사유. 원장에 그대로 기록된다.
const (
	PointReasonGive   = "포인트 지급"
	PointReasonRevoke = "결제 취소로 포인트 회수"
)

// GuestPoint 포인트 원장 엔트리. 생성 후 수정하지 않는다.
// 회수는 음수 포인트 엔트리를 새로 쌓는 방식이다.
//
// ValidFrom / ValidUntil 이 nil 이면 해당 방향으로 무제한 유효하다.
type GuestPoint struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	GuestID    int64      `gorm:"index;not null" json:"guest_id"`
	Point      int64      `gorm:"index;not null" json:"point"`
	Reason     string     `gorm:"type:varchar(255);not null" json:"reason"`
	// default 태그를 달면 gorm 이 Create 시 false 를 생략해 버리므로 달지 않는다.
	IsActive   bool       `gorm:"not null" json:"is_active"`
	ValidFrom  *time.Time `gorm:"index" json:"valid_from"`
	ValidUntil *time.Time `gorm:"index" json:"valid_until"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (GuestPoint) TableName() string {
	return "guest_points"
}
