package service

import "sync"

// ClassLocker serialises grade recalculations per class. Holders of a class lock may read and
// write that class's gradebook without another recalculation interleaving.
type ClassLocker struct {
	mu    sync.Mutex
	locks map[uint]*classLock
}

type classLock struct {
	mu   sync.Mutex
	refs int
}

// NewClassLocker creates an empty locker.
func NewClassLocker() *ClassLocker {
	return &ClassLocker{locks: make(map[uint]*classLock)}
}

// Lock blocks until the class lock is held and returns the matching unlock function.
func (l *ClassLocker) Lock(classID uint) func() {
	l.mu.Lock()
	entry, ok := l.locks[classID]
	if !ok {
		entry = &classLock{}
		l.locks[classID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()

			l.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(l.locks, classID)
			}
			l.mu.Unlock()
		})
	}
}
