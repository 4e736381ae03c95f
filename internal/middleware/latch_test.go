package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"selllink/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestInFlightLatch_AcquireRelease(t *testing.T) {
	latch := &InFlightLatch{}

	if !latch.TryAcquire("s1:detect") {
		t.Fatal("首次占用应成功")
	}
	if latch.TryAcquire("s1:detect") {
		t.Error("重复占用应失败")
	}
	// 不同键互不影响
	if !latch.TryAcquire("s2:detect") {
		t.Error("其他会话不应被挡")
	}

	latch.Release("s1:detect")
	if !latch.TryAcquire("s1:detect") {
		t.Error("释放后应可再次占用")
	}
}

func TestLatch_ConcurrentRequestsRejected(t *testing.T) {
	manager := session.NewManager(8, time.Minute)

	release := make(chan struct{})
	entered := make(chan struct{})
	var enteredOnce sync.Once

	r := gin.New()
	r.POST("/slow", Session(manager, 600), Latch("detect"), func(c *gin.Context) {
		enteredOnce.Do(func() { close(entered) })
		<-release
		c.JSON(http.StatusOK, gin.H{"code": 0})
	})

	cookie := &http.Cookie{Name: SessionCookieName, Value: "same-session"}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		req, _ := http.NewRequest("POST", "/slow", nil)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("首个请求应成功: %d", w.Code)
		}
	}()

	<-entered

	// 同会话同能力的并发请求被拒
	req, _ := http.NewRequest("POST", "/slow", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("在途期间应返回 429: %d", w.Code)
	}

	close(release)
	wg.Wait()

	// 结束后恢复可用
	req, _ = http.NewRequest("POST", "/slow", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("释放后应恢复: %d", w.Code)
	}
}
