// Package model 定义核心数据模型
//
// course.go 包含课程目录的数据模型定义：
//   - Course：课程（含章节/主题嵌套结构、价格与折扣）
//   - Chapter / Topic：有序章节与主题
//   - Comment：主题下的评论
//   - FileRef：对象存储中文件的引用（key + 可访问 URL）
//
// 派生字段约定：TotalTopics 和 DiscountPercent 不由调用方直接写入，
// 每次保存前通过 Normalize 重算，保证与嵌套结构/价格一致。
package model

import (
	"math"
	"time"
)

// FileRef 对象存储文件引用
type FileRef struct {
	Key string `json:"key,omitempty" bson:"key,omitempty" db:"key"`
	URL string `json:"url,omitempty" bson:"url,omitempty" db:"url"`
}

// Course 课程
type Course struct {
	ID          string `json:"id" bson:"_id" db:"id"`
	Title       string `json:"title" bson:"title" db:"title"` // 全局唯一
	Description string `json:"description,omitempty" bson:"description,omitempty" db:"description"`

	// Instructor 讲师展示名（自由文本，不是用户引用）
	Instructor string `json:"instructor,omitempty" bson:"instructor,omitempty" db:"instructor"`

	Price           float64  `json:"price" bson:"price" db:"price"`
	DiscountedPrice *float64 `json:"discounted_price,omitempty" bson:"discounted_price,omitempty" db:"discounted_price"`

	// DiscountPercent 派生：round((price-discountedPrice)/price*100)，无折扣价时为 0
	DiscountPercent int `json:"discount_percent" bson:"discount_percent" db:"discount_percent"`

	Thumbnail FileRef   `json:"thumbnail,omitempty" bson:"thumbnail,omitempty" db:"thumbnail"`
	Chapters  []Chapter `json:"chapters" bson:"chapters" db:"chapters"`

	// TotalTopics 派生：所有章节的主题数之和
	TotalTopics int `json:"total_topics" bson:"total_topics" db:"total_topics"`

	// CreatedBy 创建课程的 editor/admin 用户 ID
	CreatedBy string `json:"created_by,omitempty" bson:"created_by,omitempty" db:"created_by"`

	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" db:"updated_at"`
}

// Chapter 章节
type Chapter struct {
	ID     string  `json:"id" bson:"id" db:"id"`
	Title  string  `json:"title" bson:"title" db:"title"`
	Order  int     `json:"order" bson:"order" db:"order"`
	Topics []Topic `json:"topics" bson:"topics" db:"topics"`
}

// Topic 主题
type Topic struct {
	ID          string `json:"id" bson:"id" db:"id"`
	Title       string `json:"title" bson:"title" db:"title"`
	Description string `json:"description,omitempty" bson:"description,omitempty" db:"description"`

	// VideoURL 外部视频托管地址
	VideoURL string `json:"video_url,omitempty" bson:"video_url,omitempty" db:"video_url"`

	// Resources 可下载资料
	Resources []FileRef `json:"resources,omitempty" bson:"resources,omitempty" db:"resources"`

	// IsPreview 试看主题：未购买/未登录的访问者也可见
	IsPreview bool `json:"is_preview" bson:"is_preview" db:"is_preview"`

	Comments []Comment `json:"comments,omitempty" bson:"comments,omitempty" db:"comments"`
}

// Comment 主题评论
type Comment struct {
	ID        string    `json:"id" bson:"id" db:"id"`
	UserID    string    `json:"user_id" bson:"user_id" db:"user_id"`
	UserName  string    `json:"user_name" bson:"user_name" db:"user_name"`
	Text      string    `json:"text" bson:"text" db:"text"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

// ============================================================================
// Course 辅助方法
// ============================================================================

// Normalize 重算派生字段，保存前必须调用
//
// TotalTopics = 各章节主题数之和；
// DiscountPercent 仅在折扣价合法（存在且严格小于原价）时非零，
// 非法折扣价被丢弃。
func (c *Course) Normalize() {
	total := 0
	for i := range c.Chapters {
		total += len(c.Chapters[i].Topics)
	}
	c.TotalTopics = total

	c.DiscountPercent = 0
	if c.DiscountedPrice != nil {
		if c.Price <= 0 || *c.DiscountedPrice >= c.Price {
			c.DiscountedPrice = nil
			return
		}
		c.DiscountPercent = int(math.Round((c.Price - *c.DiscountedPrice) / c.Price * 100))
	}
}

// FindTopic 在章节中线性查找主题，未找到返回 (nil, nil)
func (c *Course) FindTopic(topicID string) (*Chapter, *Topic) {
	for i := range c.Chapters {
		for j := range c.Chapters[i].Topics {
			if c.Chapters[i].Topics[j].ID == topicID {
				return &c.Chapters[i], &c.Chapters[i].Topics[j]
			}
		}
	}
	return nil, nil
}

// PreviewView 返回只含试看主题的只读投影
//
// 不修改存储实体：章节/主题元数据原样保留，每章的主题列表被过滤为
// IsPreview=true 的子集。有访问权的调用方不应使用该投影。
func (c *Course) PreviewView() *Course {
	view := *c
	view.Chapters = make([]Chapter, len(c.Chapters))
	for i, ch := range c.Chapters {
		filtered := ch
		filtered.Topics = []Topic{}
		for _, t := range ch.Topics {
			if t.IsPreview {
				filtered.Topics = append(filtered.Topics, t)
			}
		}
		view.Chapters[i] = filtered
	}
	return &view
}
