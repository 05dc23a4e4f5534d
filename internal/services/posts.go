package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/utils"

	"gorm.io/gorm"
)

type CreatePostInput struct {
	AuthorID string
	Title    string
	Tags     []string
}

// PostFilter 简单的标签/标题过滤，不做排序打分
type PostFilter struct {
	Tag   string
	Query string
	Page  int
}

// PostService 管理文章记录和聚合计数的读取
type PostService struct {
	db       *gorm.DB
	authors  *utils.TTLCache[string]
	pageSize int
}

func NewPostService(db *gorm.DB, authors *utils.TTLCache[string], pageSize int) *PostService {
	return &PostService{db: db, authors: authors, pageSize: pageSize}
}

func (s *PostService) Create(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, validationError("title must not be empty")
	}
	if in.AuthorID == "" {
		return nil, validationError("author is required")
	}

	tags := make(models.StringList, 0, len(in.Tags))
	for _, t := range in.Tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" && !tags.Contains(t) {
			tags = append(tags, t)
		}
	}

	post := models.Post{
		ID:       newID(),
		AuthorID: in.AuthorID,
		Title:    title,
		Tags:     tags,
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	if s.authors != nil {
		s.authors.Set(post.ID, post.AuthorID)
	}
	return &post, nil
}

func (s *PostService) Get(ctx context.Context, id string) (*models.Post, error) {
	return findPost(s.db.WithContext(ctx), id)
}

// List 按创建时间倒序返回一页文章
func (s *PostService) List(ctx context.Context, f PostFilter) ([]models.Post, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}

	query := s.db.WithContext(ctx).Model(&models.Post{})
	if tag := strings.ToLower(strings.TrimSpace(f.Tag)); tag != "" {
		// tags 以 JSON 数组文本存储
		query = query.Where("tags LIKE ? ESCAPE '\\'", "%\""+escapeLike(tag)+"\"%")
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		query = query.Where("LOWER(title) LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(q))+"%")
	}

	var posts []models.Post
	err := query.Order("created_at DESC, id DESC").
		Offset((page - 1) * s.pageSize).
		Limit(s.pageSize).
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// AuthorOf 返回文章作者，命中缓存时不查库。文章不会被删除，
// 所以缓存命中也说明文章存在。tx 可以是调用方的事务。
func (s *PostService) AuthorOf(tx *gorm.DB, postID string) (string, error) {
	if s.authors != nil {
		if author, ok := s.authors.Get(postID); ok {
			return author, nil
		}
	}
	post, err := findPost(tx, postID)
	if err != nil {
		return "", err
	}
	if s.authors != nil {
		s.authors.Set(post.ID, post.AuthorID)
	}
	return post.AuthorID, nil
}

func findPost(tx *gorm.DB, id string) (*models.Post, error) {
	var post models.Post
	if err := tx.Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("post", id)
		}
		return nil, fmt.Errorf("load post %s: %w", id, err)
	}
	return &post, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
