package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/daniil11ru/tracker/cli/receiver/model"
	"github.com/daniil11ru/tracker/cli/receiver/protocol"
	"github.com/daniil11ru/tracker/cli/receiver/session"
	"github.com/daniil11ru/tracker/libs/wli"
	log "github.com/sirupsen/logrus"
)

// Processor обработчик принятых позиций
type Processor interface {
	Run(ctx context.Context, position *model.Position) error
}

// Server TCP-сервер потокового протокола WLI
type Server struct {
	addr      string
	ttl       time.Duration
	whiteList []string
	decoder   protocol.Decoder
	sessions  *session.Registry
	processor Processor

	mu     sync.Mutex
	l      net.Listener
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func New(srvAddress string, ttl time.Duration, decoder protocol.Decoder, sessions *session.Registry, processor Processor) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      srvAddress,
		ttl:       ttl,
		decoder:   decoder,
		sessions:  sessions,
		processor: processor,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetWhiteList ограничивает адреса клиентов. Пустой список разрешает всех.
func (s *Server) SetWhiteList(whiteList []string) {
	s.whiteList = whiteList
}

// Run принимает соединения до вызова Stop
func (s *Server) Run() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.l = l
	s.mu.Unlock()
	defer l.Close()

	log.WithFields(log.Fields{"addr": s.addr, "protocol": s.decoder.Protocol()}).Info("Запущен сервер")
	log.Debug("TTL: ", s.ttl)

	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.WithField("err", err).Error("Ошибка соединения")
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Addr адрес, на котором сервер принимает соединения
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.l == nil {
		return nil
	}
	return s.l.Addr()
}

func (s *Server) Stop() error {
	s.cancel()

	s.mu.Lock()
	l := s.l
	s.mu.Unlock()

	var err error
	if l != nil {
		err = l.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	ip := remoteIP(conn.RemoteAddr())
	if len(s.whiteList) > 0 && !isInWhiteList(ip, s.whiteList) {
		log.WithField("ip", ip).Warn("Адрес отсутствует в белом списке, соединение закрыто")
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	c := session.NewConn(conn.RemoteAddr().String(), s.decoder.Protocol(), nil)
	defer s.sessions.Close(c)

	log.WithField("ip", conn.RemoteAddr()).Info("Установлено соединение")

	reader := bufio.NewReader(conn)
	for {
		if s.ttl > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.ttl))
		} else {
			_ = conn.SetReadDeadline(time.Time{})
		}

		frame, err := wli.ReadFrame(reader)
		if err != nil {
			if errors.Is(err, wli.ErrMalformed) {
				log.WithFields(log.Fields{"ip": conn.RemoteAddr(), "err": err}).Warn("Отброшен некорректный кадр")
				continue
			}
			if ctx.Err() != nil {
				log.WithField("ip", conn.RemoteAddr()).Info("Соединение закрыто при остановке сервера")
			} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
				log.WithField("ip", conn.RemoteAddr()).Warn("Таймаут чтения")
			} else if err == io.EOF {
				log.WithField("ip", conn.RemoteAddr()).Info("Клиент закрыл соединение")
			} else {
				log.WithField("err", err).Error("Ошибка при получении")
			}
			return
		}

		log.WithField("packet", frame).Debug("Принят пакет")

		positions, err := s.decoder.Decode(c, protocol.Frame{Data: frame})
		if err != nil {
			log.WithFields(log.Fields{"ip": conn.RemoteAddr(), "err": err}).Warn("Кадр отклонен")
			continue
		}

		for _, p := range positions {
			if err := s.processor.Run(ctx, p); err != nil {
				log.Warnf("Телематические данные не были сохранены: %v", err)
			}
		}
	}
}

func remoteIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
