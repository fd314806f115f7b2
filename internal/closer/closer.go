// Package closer aggregates shutdown hooks and runs them on process signals.
package closer

import (
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
)

type Closer struct {
	mu        sync.Mutex
	once      sync.Once
	done      chan struct{}
	functions []func() error
}

func NewCloser(sig ...os.Signal) *Closer {
	c := &Closer{done: make(chan struct{})}
	if len(sig) > 0 {
		go func() {
			ch := make(chan os.Signal, 1)
			signal.Notify(ch, sig...)
			<-ch
			signal.Stop(ch)
			if err := c.Close(); err != nil {
				log.Print(err)
			}
		}()
	}
	return c
}

func (c *Closer) Add(f ...func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.functions = append(c.functions, f...)
}

// Wait blocks until Close has finished.
func (c *Closer) Wait() {
	<-c.done
}

// Close runs the registered functions once, in reverse registration order, so
// the HTTP server drains before the stores beneath it are closed.
func (c *Closer) Close() error {
	c.mu.Lock()
	functions := c.functions
	c.mu.Unlock()

	var errs []error

	c.once.Do(func() {
		defer close(c.done)

		for i := len(functions) - 1; i >= 0; i-- {
			if err := functions[i](); err != nil {
				errs = append(errs, err)
			}
		}
	})

	return errors.Join(errs...)
}
