package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key for a user's login session.
func (r *CacheKeyStruct) UserSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// ReconcileLockKey returns the single-flight lock key for the reconciliation job.
func (r *CacheKeyStruct) ReconcileLockKey() string {
	return "reconcile:lock"
}

// SessionEventChannel returns the Pub/Sub channel carrying live check-in
// events for one attendance session.
func (r *CacheKeyStruct) SessionEventChannel(sessionID string) string {
	return fmt.Sprintf("session:%s:events", sessionID)
}

var CacheKey = NewCacheKeyStruct()
