package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"
)

const readHeaderTimeout = 10 * time.Second

// HTTPService 商户接口与渠道回调的 HTTP 服务
type HTTPService struct {
	addr   string
	server *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewHTTPService 创建 HTTP 服务
func NewHTTPService(addr string, handler http.Handler) *HTTPService {
	return &HTTPService{
		addr: addr,
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

// Name 服务名称
func (s *HTTPService) Name() string { return "http" }

// Addr 实际监听地址，未启动时返回配置地址
func (s *HTTPService) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start 监听并阻塞服务，直到 Stop
func (s *HTTPService) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 优雅关闭，等待进行中的请求
func (s *HTTPService) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
