package session

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"selllink/internal/model"
)

// ==================== 草稿容器测试 ====================

func TestDraftSession_IdentityUpdateLeavesDraftUnchanged(t *testing.T) {
	sess := NewDraftSession()
	sess.Update(func(d model.ListingDraft) model.ListingDraft {
		d.SelectedLabel = "帆布包"
		d.Price = 350
		d.Candidates = []string{"帆布包", "托特包"}
		return d
	})

	before := sess.Read()
	sess.Update(func(d model.ListingDraft) model.ListingDraft { return d })
	after := sess.Read()

	if !reflect.DeepEqual(before, after) {
		t.Errorf("恒等更新不应改变草稿: %+v != %+v", before, after)
	}
}

func TestDraftSession_ReadReturnsSnapshot(t *testing.T) {
	sess := NewDraftSession()
	sess.Update(func(d model.ListingDraft) model.ListingDraft {
		d.SelectedLabel = "運動鞋"
		return d
	})

	snapshot := sess.Read()
	sess.Update(func(d model.ListingDraft) model.ListingDraft {
		d.SelectedLabel = "改掉了"
		return d
	})

	if snapshot.SelectedLabel != "運動鞋" {
		t.Errorf("读取到的快照不应随后续更新变化: %s", snapshot.SelectedLabel)
	}
}

func TestDraftSession_Reset(t *testing.T) {
	sess := NewDraftSession()
	sess.Update(func(d model.ListingDraft) model.ListingDraft {
		d.SelectedLabel = "吉他"
		d.Nickname = "阿和"
		return d
	})

	token := sess.Begin(CapCopy)
	sess.Reset()

	if !reflect.DeepEqual(sess.Read(), model.ListingDraft{}) {
		t.Error("重置后草稿应为空")
	}

	// 重置前领取的令牌必须作废
	committed := sess.CommitIfCurrent(CapCopy, token, func(d model.ListingDraft) model.ListingDraft {
		d.Copy = &model.CopyText{ResaleStyle: "迟到的结果"}
		return d
	})
	if committed {
		t.Error("重置前的在途结果不应提交成功")
	}
	if sess.Read().Copy != nil {
		t.Error("过期提交不应写入草稿")
	}
}

// ==================== 代际令牌测试 ====================

func TestDraftSession_StaleTokenDiscarded(t *testing.T) {
	sess := NewDraftSession()

	first := sess.Begin(CapDetect)
	second := sess.Begin(CapDetect)

	// 慢的旧调用后到，必须被丢弃
	if sess.CommitIfCurrent(CapDetect, first, func(d model.ListingDraft) model.ListingDraft {
		d.Candidates = []string{"旧结果"}
		return d
	}) {
		t.Error("旧令牌不应提交成功")
	}

	if !sess.CommitIfCurrent(CapDetect, second, func(d model.ListingDraft) model.ListingDraft {
		d.Candidates = []string{"新结果"}
		return d
	}) {
		t.Error("最新令牌应提交成功")
	}

	got := sess.Read().Candidates
	if len(got) != 1 || got[0] != "新结果" {
		t.Errorf("草稿应只保留最新结果: %v", got)
	}
}

func TestDraftSession_TokensIndependentPerCapability(t *testing.T) {
	sess := NewDraftSession()

	detectToken := sess.Begin(CapDetect)
	sess.Begin(CapCopy) // 其他能力的令牌变化不影响 detect

	if !sess.CommitIfCurrent(CapDetect, detectToken, func(d model.ListingDraft) model.ListingDraft {
		d.Candidates = []string{"相機"}
		return d
	}) {
		t.Error("不同能力的令牌应互不干扰")
	}
}

func TestDraftSession_Invalidate(t *testing.T) {
	sess := NewDraftSession()

	token := sess.Begin(CapEnhance)
	sess.Invalidate(CapEnhance)

	if sess.CommitIfCurrent(CapEnhance, token, func(d model.ListingDraft) model.ListingDraft {
		d.EnhancedImageURL = "http://example.com/old.png"
		return d
	}) {
		t.Error("作废后的令牌不应提交成功")
	}
}

func TestDraftSession_ConcurrentUpdates(t *testing.T) {
	sess := NewDraftSession()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.Update(func(d model.ListingDraft) model.ListingDraft {
				d.Price++
				return d
			})
		}()
	}
	wg.Wait()

	if got := sess.Read().Price; got != 100 {
		t.Errorf("并发更新丢失: 期望 100，实际 %v", got)
	}
}

// ==================== 会话管理测试 ====================

func TestManager_GetOrCreate(t *testing.T) {
	m := NewManager(8, time.Minute)

	a := m.Get("sess-a")
	if a == nil {
		t.Fatal("应自动创建会话")
	}

	a.Update(func(d model.ListingDraft) model.ListingDraft {
		d.Nickname = "小美"
		return d
	})

	// 同一 ID 拿到同一个会话
	if m.Get("sess-a").Read().Nickname != "小美" {
		t.Error("同一 ID 应返回同一会话")
	}

	// 不同 ID 互不串扰
	if m.Get("sess-b").Read().Nickname != "" {
		t.Error("不同 ID 的会话不应共享草稿")
	}
}

func TestManager_Delete(t *testing.T) {
	m := NewManager(8, time.Minute)
	m.Get("sess-a").Update(func(d model.ListingDraft) model.ListingDraft {
		d.Nickname = "小美"
		return d
	})

	m.Delete("sess-a")

	if m.Get("sess-a").Read().Nickname != "" {
		t.Error("删除后应拿到全新会话")
	}
}
