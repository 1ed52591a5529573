package storage

import (
	"fmt"
	"runtime"
	"sync"

	log "github.com/sirupsen/logrus"
)

// AsyncRepository пул обработчиков, сохраняющих сообщения в фоне
type AsyncRepository struct {
	repo   Saver
	ch     chan Message
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewAsyncRepository(repo Saver, buffer, workers int) *AsyncRepository {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ar := &AsyncRepository{
		repo: repo,
		ch:   make(chan Message, buffer),
	}
	for i := 0; i < workers; i++ {
		ar.wg.Add(1)
		go ar.worker()
	}
	return ar
}

func (a *AsyncRepository) worker() {
	defer a.wg.Done()
	for msg := range a.ch {
		if err := a.repo.Save(msg); err != nil {
			log.WithFields(log.Fields{
				"err":    err,
				"kind":   msg.Kind(),
				"device": msg.Device(),
			}).Error("Ошибка сохранения телеметрии")
		}
	}
}

// Save ставит сообщение в очередь; при заполненном буфере ждет
// освобождения места
func (a *AsyncRepository) Save(m Message) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return fmt.Errorf("асинхронный репозиторий был закрыт")
	}
	a.ch <- m
	return nil
}

// Close дожидается записи уже принятых сообщений
func (a *AsyncRepository) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.ch)
	a.mu.Unlock()

	a.wg.Wait()
}
