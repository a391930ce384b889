package mailer

import (
	"context"
	"sync"
)

// SentMail 记录一封已发送邮件
type SentMail struct {
	To      string
	Subject string
	Body    string
}

// Recorder 记录发送内容的 Sender 实现，测试用
type Recorder struct {
	mu   sync.Mutex
	sent []SentMail
	// Fail 置为非 nil 时 Send 返回该错误
	Fail error
}

var _ Sender = (*Recorder)(nil)

// NewRecorder 创建记录型发送器
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(ctx context.Context, to, subject, htmlBody string) error {
	if r.Fail != nil {
		return r.Fail
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, SentMail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

// Sent 返回已发送邮件的副本
func (r *Recorder) Sent() []SentMail {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SentMail, len(r.sent))
	copy(out, r.sent)
	return out
}

// Last 最近一封邮件，未发送过返回 nil
func (r *Recorder) Last() *SentMail {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return nil
	}
	m := r.sent[len(r.sent)-1]
	return &m
}
