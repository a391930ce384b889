// Package server 提供 HTTP API 入口
//
// 本包实现课程平台的 RESTful API 装配，包括：
//   - 路由配置（各领域独立包注册自己的路由）
//   - CORS 与 Prometheus 指标中间件
//   - 健康检查与维护接口
//
// 文件组织：
//   - common.go: Handler 定义和通用工具函数
//   - handler.go: 路由装配
//   - metrics.go: Prometheus 指标
//   - maintenance.go: 管理端数据修复接口
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"course-admin/internal/config"
	"course-admin/internal/shared/cache"
	"course-admin/internal/shared/mailer"
	objstore "course-admin/internal/shared/minio"
	"course-admin/internal/shared/model"
	"course-admin/internal/shared/storage"
)

// Handler API 处理器
//
// Handler 是所有 HTTP API 的装配入口，负责：
//   - 把存储/缓存/对象存储/邮件依赖注入各领域处理器
//   - 组合指标、认证、CORS 中间件
//
// 依赖均为接口，测试时以内存实现替换。
type Handler struct {
	store storage.PersistentStore

	catalogCache cache.CatalogCache // 课程目录缓存（Redis 或 NoOp）
	files        objstore.Storage   // 对象存储（截图、缩略图）
	mail         mailer.Sender      // 邮件通道

	cfg     *config.Config
	metrics *Metrics
}

// NewHandler 创建 Handler 实例
func NewHandler(store storage.PersistentStore, catalogCache cache.CatalogCache,
	files objstore.Storage, mail mailer.Sender, cfg *config.Config) *Handler {
	h := &Handler{
		store:        store,
		catalogCache: catalogCache,
		files:        files,
		cfg:          cfg,
		metrics:      NewMetrics("courseadmin"),
	}
	// 邮件通道包一层计数器
	h.mail = &instrumentedSender{next: mail, metrics: h.metrics}
	return h
}

// GetMetrics 返回指标实例
func (h *Handler) GetMetrics() *Metrics {
	return h.metrics
}

// instrumentedSender 为邮件发送增加结果计数
type instrumentedSender struct {
	next    mailer.Sender
	metrics *Metrics
}

func (s *instrumentedSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	err := s.next.Send(ctx, to, subject, htmlBody)
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.metrics.MailSendTotal.WithLabelValues(result).Inc()
	return err
}

// StartInventoryRefresher 周期刷新业务总量仪表，ctx 取消后停止
func (h *Handler) StartInventoryRefresher(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			h.refreshInventory(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (h *Handler) refreshInventory(ctx context.Context) {
	users, err := h.store.ListUsers(ctx)
	if err != nil {
		log.Printf("[server.metrics] list users: %v", err)
		return
	}
	courses, err := h.store.ListCourses(ctx)
	if err != nil {
		log.Printf("[server.metrics] list courses: %v", err)
		return
	}
	pending, err := h.store.ListPayments(ctx, model.PaymentStatusPending)
	if err != nil {
		log.Printf("[server.metrics] list pending payments: %v", err)
		return
	}
	h.metrics.UpdateInventory(len(users), len(courses), len(pending))
}

// writeJSON 将数据以 JSON 格式写入 HTTP 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError 将错误信息以统一信封格式写入 HTTP 响应
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": message})
}

// Health 健康检查接口
//
// 路由: GET /health
//
// 用于负载均衡器和监控系统检查服务状态。
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
