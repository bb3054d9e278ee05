// Package jsonl 实现报价记录的异步 JSONL 文件输出。
// 报价循环只投递记录，JSON 编码与文件 I/O 在后台 goroutine 完成。
package jsonl

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"orderbook-quoter/internal/core/model"
)

// QuotesFile 报价输出文件名
const QuotesFile = "quotes.jsonl"

var (
	// ErrClosed 写入器已关闭
	ErrClosed = errors.New("writer 已关闭")
	// ErrBufferFull 缓冲区已满，记录被丢弃
	ErrBufferFull = errors.New("writer 缓冲区已满")
)

type opType int

const (
	opWrite opType = iota
	opFlush
	opClose
)

type op struct {
	typ   opType
	quote model.Quote
	done  chan error
}

// QuoteWriter 异步报价写入器
// Write 非阻塞：缓冲区满时丢弃记录并计数，不拖慢订单簿处理。
type QuoteWriter struct {
	// path 输出文件路径
	path string
	// ch 操作通道
	ch chan op

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool

	// sendMu 保证关闭后不再向 ch 发送
	sendMu sync.RWMutex

	written atomic.Int64
	dropped atomic.Int64

	wg sync.WaitGroup
}

// NewQuoteWriter 在 dir 下创建 quotes.jsonl 写入器（追加模式）
// 参数 dir: 输出目录，不存在时自动创建
// 参数 bufferSize: 写入缓冲区大小（channel capacity）
func NewQuoteWriter(dir string, bufferSize int) (*QuoteWriter, error) {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	path := filepath.Join(dir, QuotesFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开输出文件失败: %w", err)
	}

	w := &QuoteWriter{
		path: path,
		ch:   make(chan op, bufferSize),
	}

	w.wg.Add(1)
	go w.loop(f)

	return w, nil
}

// Path 输出文件路径
func (w *QuoteWriter) Path() string {
	return w.path
}

// Write 投递一条报价记录
func (w *QuoteWriter) Write(q *model.Quote) error {
	if q == nil {
		return nil
	}
	w.sendMu.RLock()
	defer w.sendMu.RUnlock()
	if w.closed.Load() {
		return ErrClosed
	}
	select {
	case w.ch <- op{typ: opWrite, quote: *q}:
		return nil
	default:
		w.dropped.Add(1)
		return ErrBufferFull
	}
}

// Flush 等待已投递记录写入文件
func (w *QuoteWriter) Flush() error {
	w.sendMu.RLock()
	if w.closed.Load() {
		w.sendMu.RUnlock()
		return nil
	}
	done := make(chan error, 1)
	w.ch <- op{typ: opFlush, done: done}
	w.sendMu.RUnlock()
	return <-done
}

// Close 关闭写入器（会先 flush）
func (w *QuoteWriter) Close() error {
	w.closeOnce.Do(func() {
		w.sendMu.Lock()
		w.closed.Store(true)
		done := make(chan error, 1)
		w.ch <- op{typ: opClose, done: done}
		close(w.ch)
		w.sendMu.Unlock()
		w.closeErr = <-done
	})
	w.wg.Wait()
	return w.closeErr
}

// Written 已写入记录数
func (w *QuoteWriter) Written() int64 {
	return w.written.Load()
}

// Dropped 因缓冲区满丢弃的记录数
func (w *QuoteWriter) Dropped() int64 {
	return w.dropped.Load()
}

func (w *QuoteWriter) loop(f *os.File) {
	defer w.wg.Done()

	bw := bufio.NewWriterSize(f, 1<<16)
	enc := json.NewEncoder(bw)

	var writeErr error
	for req := range w.ch {
		switch req.typ {
		case opWrite:
			// Encode 自带换行
			if err := enc.Encode(&req.quote); err != nil {
				writeErr = err
				continue
			}
			w.written.Add(1)
		case opFlush:
			req.done <- errors.Join(writeErr, bw.Flush())
			writeErr = nil
		case opClose:
			err := errors.Join(writeErr, bw.Flush(), f.Close())
			req.done <- err
			return
		}
	}
}
