package redis

import (
	"fmt"

	"github.com/mcoot/echorelay/internal/model"
)

// Key prefix for all relay data
const keyPrefix = "echorelay"

// accountKey returns the Redis key holding an account document
func accountKey(id model.XPlatformID) string {
	return fmt.Sprintf("%s:account:%s", keyPrefix, id)
}

// accountOrderKey returns the Redis key for the ZSET of account ids scored by
// first-insertion sequence
func accountOrderKey() string {
	return fmt.Sprintf("%s:idx:accounts", keyPrefix)
}

// accountSeqKey returns the Redis key for the insertion sequence counter
func accountSeqKey() string {
	return fmt.Sprintf("%s:seq:accounts", keyPrefix)
}
