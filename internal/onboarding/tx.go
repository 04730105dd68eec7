package onboarding

import (
	"sync"

	"onboarding/pkg/domain"
)

// Approval spans multiple remote calls, so the store's row lock alone cannot
// serialize two concurrent decisions on the same application; the second
// caller must wait out the whole provisioning sequence, then fail validation
// against the committed state. A sharded keyed mutex provides that without a
// global lock.
const numDecisionShards = 128

type decisionLocks struct {
	shards [numDecisionShards]sync.Mutex
}

func (l *decisionLocks) lock(id domain.ApplicationID) func() {
	shard := &l.shards[hashID(id.String())%numDecisionShards]
	shard.Lock()
	return shard.Unlock
}

// hashID is FNV-1a.
func hashID(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
