package eventbus

import "fmt"

// ScopedTopic appends a scope suffix to a base topic using the pattern
// {baseTopic}.{scope}, so clients can follow one match:
//
//   - "match.state.changed.v1.*" catches every match
//   - "match.state.changed.v1.<matchID>" catches one match
func ScopedTopic(baseTopic, scope string) string {
	if scope == "" {
		return baseTopic
	}
	return fmt.Sprintf("%s.%s", baseTopic, scope)
}
