package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"gaht-identity/internal/core/cache"
	"gaht-identity/internal/identity"
	resp "gaht-identity/internal/transport/http/response"
	"gaht-identity/pkg/utils"
)

// AdminHandler carries the management surface: user inspection, logical
// deletion, and the role catalog writes the engine itself never performs.
type AdminHandler struct {
	db    *gorm.DB
	cache *cache.Cache // may be nil; invalidates role keys on writes
	log   *zap.Logger
}

func NewAdminHandler(db *gorm.DB, c *cache.Cache, log *zap.Logger) *AdminHandler {
	return &AdminHandler{db: db, cache: c, log: log}
}

type userRow struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListUsers handles GET /users?offset=&limit=&q=&with_inactive=.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var in struct {
		Offset       int    `form:"offset,default=0"`
		Limit        int    `form:"limit,default=20"`
		Q            string `form:"q"`
		WithInactive bool   `form:"with_inactive"`
	}
	if err := c.ShouldBindQuery(&in); err != nil {
		c.JSON(http.StatusBadRequest, resp.Error(resp.CodeBadRequest, err.Error()))
		return
	}
	if in.Limit <= 0 || in.Limit > 100 {
		in.Limit = 20
	}

	q := h.db.WithContext(c).Model(&identity.User{})
	if !in.WithInactive {
		q = q.Where("active = ?", true)
	}
	if s := strings.TrimSpace(in.Q); s != "" {
		like := "%" + s + "%"
		q = q.Where("username LIKE ? OR email LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		h.storageFail(c, "count users", err)
		return
	}
	var users []identity.User
	if err := q.Order("created_at DESC").Limit(in.Limit).Offset(in.Offset).Find(&users).Error; err != nil {
		h.storageFail(c, "list users", err)
		return
	}

	rows := make([]userRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, userRow{
			ID: u.ID, Username: u.Username, Name: u.Name, LastName: u.LastName,
			Email: u.Email, Active: u.Active, CreatedAt: u.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, resp.OK(gin.H{"total": total, "items": rows}))
}

// DeactivateUser handles POST /users/:id/deactivate — logical deletion only,
// the row stays.
func (h *AdminHandler) DeactivateUser(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, resp.Error(resp.CodeBadRequest, "missing id"))
		return
	}
	res := h.db.WithContext(c).Model(&identity.User{}).
		Where("id = ? AND active = ?", id, true).Update("active", false)
	if res.Error != nil {
		h.storageFail(c, "deactivate user", res.Error)
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, resp.Error(resp.CodeNotFound, "user not found"))
		return
	}
	c.JSON(http.StatusOK, resp.OK(gin.H{"id": id}))
}

// ListRoles handles GET /roles.
func (h *AdminHandler) ListRoles(c *gin.Context) {
	var roles []identity.Role
	if err := h.db.WithContext(c).Order("name").Find(&roles).Error; err != nil {
		h.storageFail(c, "list roles", err)
		return
	}
	c.JSON(http.StatusOK, resp.OK(gin.H{"items": roles}))
}

// CreateRole handles POST /roles. This is the external administration path
// for the role catalog; registration only ever reads it.
func (h *AdminHandler) CreateRole(c *gin.Context) {
	var in struct {
		Name string `json:"name" binding:"required,max=64"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, resp.Error(resp.CodeBadRequest, err.Error()))
		return
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, resp.Error(resp.CodeBadRequest, "name is required"))
		return
	}

	role := identity.Role{ID: utils.NewID(), Name: name, Active: true}
	if err := h.db.WithContext(c).Create(&role).Error; err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") ||
			strings.Contains(strings.ToLower(err.Error()), "duplicate") {
			c.JSON(http.StatusConflict, resp.Error(resp.CodeConflict, "role already exists"))
			return
		}
		h.storageFail(c, "create role", err)
		return
	}
	// drop any negative cache entry so registration sees the role at once
	if h.cache != nil {
		if err := h.cache.Invalidate(c, identity.RoleCacheKey(name)); err != nil {
			h.log.Warn("role cache invalidate failed", zap.String("role", name), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, resp.OK(role))
}

func (h *AdminHandler) storageFail(c *gin.Context, op string, err error) {
	h.log.Error(op+" failed", zap.Error(err))
	c.JSON(http.StatusServiceUnavailable, resp.Error(resp.CodeUnavailable, "service temporarily unavailable"))
}
