package config

import (
	"fmt"

	"github.com/google/uuid"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TestQuestionsKey returns the hash key holding a test's resolved questions.
func (r *CacheKeyStruct) TestQuestionsKey(testID uuid.UUID) string {
	return fmt.Sprintf("test:%s:questions", testID)
}

// ExpiryScanLockKey guards the periodic expiry scan across replicas.
func (r *CacheKeyStruct) ExpiryScanLockKey() string {
	return "expiry_scan_lock"
}

var CacheKey = NewCacheKeyStruct()
