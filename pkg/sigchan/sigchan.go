package sigchan

// Chan 是一个非阻塞的信号 channel：
// 只通知"有事发生"，不传递数据，缓冲满了直接丢弃。
// 用于合并高频触发（比如逐局的快照落盘请求）。
type Chan chan struct{}

// New 创建新的信号 channel
func New(buffer int) Chan {
	if buffer <= 0 {
		buffer = 1
	}
	return make(Chan, buffer)
}

// Emit 发送信号（非阻塞，满则丢弃）
func (c Chan) Emit() {
	select {
	case c <- struct{}{}:
	default:
	}
}

// C 返回内部的 channel（用于 select）
func (c Chan) C() <-chan struct{} {
	return c
}
