package redis

import "strings"

// Keyspace prefixes every key the wardrobe writes.
type Keyspace string

const DefaultKeyspace Keyspace = "wd"

const (
	kindReplay    = "replay"
	kindWindow    = "window"
	kindSession   = "session"
	kindLock      = "lock"
	kindSignedURL = "signed_url"
	kindProcessed = "processed"
)

// Key joins the keyspace, kind and non-blank parts with colons.
func (k Keyspace) Key(kind string, parts ...string) string {
	var b strings.Builder
	b.WriteString(string(k))
	b.WriteByte(':')
	b.WriteString(kind)
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			b.WriteByte(':')
			b.WriteString(p)
		}
	}
	return b.String()
}
