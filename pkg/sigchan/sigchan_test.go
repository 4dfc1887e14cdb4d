package sigchan

import "testing"

// TestEmitNonBlocking 缓冲满时 Emit 丢弃信号而不阻塞
func TestEmitNonBlocking(t *testing.T) {
	ch := New(1)
	ch.Emit()
	ch.Emit() // 第二次被丢弃，不能卡住
	ch.Emit()

	select {
	case <-ch.C():
	default:
		t.Error("应至少收到一个信号")
	}
	select {
	case <-ch.C():
		t.Error("被合并的信号不应重复出现")
	default:
	}
}

// TestNewClampsBuffer 非法缓冲大小归一化为 1
func TestNewClampsBuffer(t *testing.T) {
	ch := New(0)
	ch.Emit() // buffer=1，不能阻塞
	ch = New(-5)
	ch.Emit()
}
