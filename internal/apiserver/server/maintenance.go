package server

import (
	"errors"
	"log"
	"net/http"

	"course-admin/internal/shared/storage"
)

// dedupReport 数据修复结果
type dedupReport struct {
	UsersScanned     int `json:"users_scanned"`
	UsersRepaired    int `json:"users_repaired"`
	PurchasesRemoved int `json:"purchases_removed"`
	ProgressRemoved  int `json:"progress_removed"`
}

// DedupUserData 管理端一次性数据修复
//
// 路由: POST /api/v1/maintenance/dedup
//
// 历史数据曾出现重复的已购课程 ID 和同课程多条进度记录。
// 扫描全部用户，去重后经乐观锁写回；与在线请求冲突的用户跳过，
// 重放本接口即可补齐。
func (h *Handler) DedupUserData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := h.store.ListUsers(ctx)
	if err != nil {
		log.Printf("[maintenance.dedup] list users: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	report := dedupReport{UsersScanned: len(users)}
	for _, u := range users {
		purchases := u.DedupPurchases()
		progress := u.DedupProgress()
		if purchases == 0 && progress == 0 {
			continue
		}

		if err := h.store.UpdateUser(ctx, u); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				log.Printf("[maintenance.dedup] user %s raced an online update, skipping", u.ID)
				continue
			}
			log.Printf("[maintenance.dedup] user %s: %v", u.ID, err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		report.UsersRepaired++
		report.PurchasesRemoved += purchases
		report.ProgressRemoved += progress
	}

	log.Printf("[maintenance.dedup] scanned=%d repaired=%d purchases=%d progress=%d",
		report.UsersScanned, report.UsersRepaired, report.PurchasesRemoved, report.ProgressRemoved)
	writeJSON(w, http.StatusOK, report)
}
