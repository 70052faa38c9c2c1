package utils

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

const flagCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// FlagTokenLength Flag 令牌中随机负载的长度
const FlagTokenLength = 30

var (
	seededRand = rand.New(rand.NewSource(time.Now().UnixNano()))
	randMu     sync.Mutex
)

// GenerateFlagToken 生成 Flag 令牌：服务名首字母大写 + 定长随机负载 + '='
func GenerateFlagToken(taskName string) string {
	prefix := "F"
	if taskName != "" {
		prefix = strings.ToUpper(taskName[:1])
	}

	var sb strings.Builder
	sb.Grow(FlagTokenLength + 2)
	sb.WriteString(prefix)
	randMu.Lock()
	for i := 0; i < FlagTokenLength; i++ {
		sb.WriteByte(flagCharset[seededRand.Intn(len(flagCharset))])
	}
	randMu.Unlock()
	sb.WriteByte('=')
	return sb.String()
}

// RandomPlace 在 1..places 中均匀取一个槽位
func RandomPlace(places uint) uint {
	if places <= 1 {
		return 1
	}
	randMu.Lock()
	defer randMu.Unlock()
	return uint(seededRand.Intn(int(places))) + 1
}
