package router

import (
	"fmt"
	"strings"
)

// fiberPattern 把 /{name}/clicked 写法转换为 Fiber 的 /:name/clicked。
// 每个参数必须独占一个路径段；已是 :name 形式的段原样保留。
func fiberPattern(pattern string) (string, error) {
	pattern = strings.TrimSpace(pattern)
	if !strings.HasPrefix(pattern, "/") {
		return "", fmt.Errorf("pattern must start with '/': %q", pattern)
	}
	if pattern == "/" {
		return pattern, nil
	}

	segments := strings.Split(strings.TrimPrefix(pattern, "/"), "/")
	seen := make(map[string]struct{}, len(segments))
	for i, segment := range segments {
		name, isParam, err := paramName(segment)
		if err != nil {
			return "", fmt.Errorf("pattern %q: %w", pattern, err)
		}
		if !isParam {
			continue
		}
		if _, dup := seen[name]; dup {
			return "", fmt.Errorf("pattern %q: duplicate parameter %q", pattern, name)
		}
		seen[name] = struct{}{}
		segments[i] = ":" + name
	}
	return "/" + strings.Join(segments, "/"), nil
}

func paramName(segment string) (string, bool, error) {
	switch {
	case strings.HasPrefix(segment, "{") || strings.HasSuffix(segment, "}"):
		if !strings.HasPrefix(segment, "{") || !strings.HasSuffix(segment, "}") {
			return "", false, fmt.Errorf("unbalanced braces in segment %q", segment)
		}
		name := segment[1 : len(segment)-1]
		if !validParamName(name) {
			return "", false, fmt.Errorf("invalid parameter name %q", name)
		}
		return name, true, nil
	case strings.HasPrefix(segment, ":"):
		name := segment[1:]
		if !validParamName(name) {
			return "", false, fmt.Errorf("invalid parameter name %q", name)
		}
		return name, true, nil
	case strings.ContainsAny(segment, "{}:*+?"):
		return "", false, fmt.Errorf("unsupported characters in segment %q", segment)
	}
	return "", false, nil
}

func validParamName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r == '_' || r == '-' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
