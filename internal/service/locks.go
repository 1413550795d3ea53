package service

import "sync"

// keyedLocks hands out one RWMutex per index name.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: map[string]*sync.RWMutex{}}
}

func (k *keyedLocks) get(name string) *sync.RWMutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[name]
	if !ok {
		l = &sync.RWMutex{}
		k.locks[name] = l
	}
	return l
}

// Lock takes the exclusive lock of name and returns its release func.
func (k *keyedLocks) Lock(name string) func() {
	l := k.get(name)
	l.Lock()
	return l.Unlock
}

// RLock takes the shared lock of name and returns its release func.
func (k *keyedLocks) RLock(name string) func() {
	l := k.get(name)
	l.RLock()
	return l.RUnlock
}
