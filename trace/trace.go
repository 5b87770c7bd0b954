package trace

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

// Item is one atomic step of a dynamic trace.
type Item struct {
	NodeID string `json:"nodeId"`
	Label  string `json:"label"`
	Text   string `json:"text"`
}

// Queue is an ordered trace. Items are executed front to back.
type Queue []Item

// Hash identifies the queue by content. Two queues with the same node ids and
// texts in the same order hash equal; labels are presentation only. Fields
// are length-prefixed so item boundaries cannot collide.
func (q Queue) Hash() string {
	h := blake3.New()
	var buf []byte
	for _, it := range q {
		buf = buf[:0]
		buf = strconv.AppendInt(buf, int64(len(it.NodeID)), 10)
		buf = append(buf, ':')
		buf = append(buf, it.NodeID...)
		buf = strconv.AppendInt(buf, int64(len(it.Text)), 10)
		buf = append(buf, ':')
		buf = append(buf, it.Text...)
		_, _ = h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Texts returns the item texts with their trailing newline removed.
func (q Queue) Texts() []string {
	out := make([]string, len(q))
	for i, it := range q {
		out[i] = strings.TrimSuffix(it.Text, "\n")
	}
	return out
}

// Program joins the item texts into one script.
func (q Queue) Program() string {
	var sb strings.Builder
	for _, it := range q {
		sb.WriteString(it.Text)
	}
	return sb.String()
}
