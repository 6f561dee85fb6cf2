package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/any-hub/offline-shell/internal/exchange"
)

// storedEntry 是落盘格式，Identity 用于在读取时校验哈希文件名没有冲突。
type storedEntry struct {
	Identity string      `json:"identity"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"stored_at"`
}

func newStoredEntry(req *exchange.Request, resp *exchange.Response) storedEntry {
	snapshot := resp.Clone()
	return storedEntry{
		Identity: req.Identity(),
		Status:   snapshot.Status,
		Header:   snapshot.Header,
		Body:     snapshot.Body,
		StoredAt: time.Now().UTC(),
	}
}

func (e storedEntry) response() *exchange.Response {
	return exchange.NewResponse(e.Status, e.Header, e.Body)
}

func encodeEntry(e storedEntry) ([]byte, error) {
	return json.Marshal(e)
}

func decodeEntry(data []byte) (storedEntry, error) {
	var e storedEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return storedEntry{}, fmt.Errorf("decode entry: %w", err)
	}
	return e, nil
}

func identityKey(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])
}
