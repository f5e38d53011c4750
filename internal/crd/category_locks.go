package crd

import "sync"

// categoryLocks gives each hit category its own mutex; categories are
// independent so merges into different categories never contend.
type categoryLocks struct{ mu [NumCategories]sync.Mutex }

func (cl *categoryLocks) lock(c HitCategory)   { cl.mu[c].Lock() }
func (cl *categoryLocks) unlock(c HitCategory) { cl.mu[c].Unlock() }

// lockAll takes every category lock in index order.
func (cl *categoryLocks) lockAll() {
	for i := range cl.mu {
		cl.mu[i].Lock()
	}
}

func (cl *categoryLocks) unlockAll() {
	for i := len(cl.mu) - 1; i >= 0; i-- {
		cl.mu[i].Unlock()
	}
}
