package syncgroup

import (
	"sync/atomic"
	"testing"
)

// TestRunAndWait 全部 goroutine 跑完后 Wait 返回
func TestRunAndWait(t *testing.T) {
	sg := NewSyncGroup()
	var n int64
	for i := 0; i < 3; i++ {
		sg.Add(func() { atomic.AddInt64(&n, 1) })
	}
	sg.Run()
	sg.Wait()
	if atomic.LoadInt64(&n) != 3 {
		t.Errorf("应执行 3 个函数，实际为 %d", n)
	}
}

// TestRunClearsQueue 第二次 Run 不重复启动
func TestRunClearsQueue(t *testing.T) {
	sg := NewSyncGroup()
	var n int64
	sg.Add(func() { atomic.AddInt64(&n, 1) })
	sg.Run()
	sg.Wait()
	sg.Run()
	sg.Wait()
	if atomic.LoadInt64(&n) != 1 {
		t.Errorf("函数不应被重复执行，实际 %d 次", n)
	}
}

// TestAddNil nil 函数被忽略
func TestAddNil(t *testing.T) {
	sg := NewSyncGroup()
	sg.Add(nil)
	sg.Run()
	sg.Wait()
}
