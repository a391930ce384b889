package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"course-admin/internal/apiserver/auth"
	"course-admin/internal/shared/mailer"
	"course-admin/internal/shared/model"
	"course-admin/internal/shared/storage"
)

type reviewRequest struct {
	Remarks string `json:"remarks"`
}

// Approve 批准支付并授予课程访问权
//
// 顺序不变量：先原子转换状态（pending→approved 恰好一次），
// 再授予访问权，最后发通知邮件。授权失败会如实上报（支付已终态，
// 需人工或重放修复）；邮件失败只记日志，不影响已生效的授权。
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	admin := auth.GetAuthUser(ctx)

	var req reviewRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	p, err := h.store.GetPayment(ctx, id)
	if err != nil {
		log.Printf("[payment.approve] load %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "payment not found")
		return
	}

	now := time.Now()
	if err := h.store.TransitionPayment(ctx, id, model.PaymentStatusApproved,
		admin.ID, strings.TrimSpace(req.Remarks), now); err != nil {
		writeTransitionError(w, err)
		return
	}

	user, err := h.grantAccess(ctx, p.UserID, p.CourseID)
	if err != nil {
		log.Printf("[payment.approve] grant %s user=%s course=%s: %v", id, p.UserID, p.CourseID, err)
		writeError(w, http.StatusInternalServerError, "payment approved but access grant failed")
		return
	}

	h.notify(ctx, user, p.CourseID, true, "")

	p.Status = model.PaymentStatusApproved
	p.Remarks = strings.TrimSpace(req.Remarks)
	p.ReviewedBy = admin.ID
	p.ReviewedAt = &now
	log.Printf("[payment.approve] payment %s approved by %s", id, admin.ID)
	writeJSON(w, http.StatusOK, p)
}

// Reject 拒绝支付，无访问权副作用
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	admin := auth.GetAuthUser(ctx)

	var req reviewRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	remarks := strings.TrimSpace(req.Remarks)
	if remarks == "" {
		remarks = model.DefaultRejectRemarks
	}

	p, err := h.store.GetPayment(ctx, id)
	if err != nil {
		log.Printf("[payment.reject] load %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "payment not found")
		return
	}

	now := time.Now()
	if err := h.store.TransitionPayment(ctx, id, model.PaymentStatusRejected,
		admin.ID, remarks, now); err != nil {
		writeTransitionError(w, err)
		return
	}

	user, err := h.store.GetUserByID(ctx, p.UserID)
	if err == nil && user != nil {
		h.notify(ctx, user, p.CourseID, false, remarks)
	}

	p.Status = model.PaymentStatusRejected
	p.Remarks = remarks
	p.ReviewedBy = admin.ID
	p.ReviewedAt = &now
	log.Printf("[payment.reject] payment %s rejected by %s", id, admin.ID)
	writeJSON(w, http.StatusOK, p)
}

// grantAccess 将课程加入已购集合并确保进度记录存在
//
// 集合添加按规范化 ID 去重，重复批准不会产生重复授权。
// 经乐观锁条件更新落盘，冲突时重读重试。
func (h *Handler) grantAccess(ctx context.Context, userID, courseID string) (*model.User, error) {
	const attempts = 3
	var lastErr error
	for i := 0; i < attempts; i++ {
		user, err := h.store.GetUserByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, fmt.Errorf("user %s not found", userID)
		}

		added := user.AddPurchasedCourse(courseID)
		_, created := user.EnsureProgress(courseID, time.Now())
		if !added && !created {
			// 已授权过（重复支付记录被重复批准），无需写入
			return user, nil
		}

		user.UpdatedAt = time.Now()
		err = h.store.UpdateUser(ctx, user)
		if errors.Is(err, storage.ErrConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}
		return user, nil
	}
	return nil, fmt.Errorf("grant access user=%s course=%s: %w", userID, courseID, lastErr)
}

// notify 发送审核结果邮件，失败只记日志
func (h *Handler) notify(ctx context.Context, user *model.User, courseID string, approved bool, remarks string) {
	if user.Email == "" {
		return
	}
	title := courseID
	if course, err := h.store.GetCourse(ctx, courseID); err == nil && course != nil {
		title = course.Title
	}

	var subject, body string
	if approved {
		subject, body = mailer.PaymentApprovedEmail(title)
	} else {
		subject, body = mailer.PaymentRejectedEmail(title, remarks)
	}
	if err := h.mail.Send(ctx, user.Email, subject, body); err != nil {
		log.Printf("[payment.notify] mail to %s: %v", user.ID, err)
	}
}
