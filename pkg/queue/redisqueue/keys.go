package redisqueue

import "strings"

// Key layout for one logical queue, all under the configured prefix:
//
//	<prefix>:<queue>            LIST  ready messages, LPUSH in, RPOP out
//	<prefix>:<queue>:delayed    ZSET  delayed messages scored by ready time (unix ms)
//	<prefix>:<queue>:unique     SET   content hashes of pending unique messages
//	<prefix>:<queue>:completed  counter
//	<prefix>:<queue>:failed     counter
//	<prefix>:<queue>:total      counter of pushes into the ready list
const (
	suffixDelayed   = ":delayed"
	suffixUnique    = ":unique"
	suffixCompleted = ":completed"
	suffixFailed    = ":failed"
	suffixTotal     = ":total"
)

var suffixes = []string{suffixDelayed, suffixUnique, suffixCompleted, suffixFailed, suffixTotal}

type keys struct {
	ready     string
	delayed   string
	unique    string
	completed string
	failed    string
	total     string
}

func (q *Queue) keysFor(name string) keys {
	base := q.prefix + ":" + name
	return keys{
		ready:     base,
		delayed:   base + suffixDelayed,
		unique:    base + suffixUnique,
		completed: base + suffixCompleted,
		failed:    base + suffixFailed,
		total:     base + suffixTotal,
	}
}

// queueName extracts the logical queue name from a key under prefix.
func queueName(prefix, key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, prefix+":")
	if !ok || rest == "" {
		return "", false
	}
	for _, s := range suffixes {
		if name, found := strings.CutSuffix(rest, s); found {
			return name, name != ""
		}
	}
	return rest, true
}
