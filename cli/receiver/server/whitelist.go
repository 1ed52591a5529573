package server

import "strings"

// isInWhiteList проверяет адрес по списку. Шаблон может заканчиваться на
// ".*", звездочка в другой позиции делает шаблон недействительным.
func isInWhiteList(ip string, whiteList []string) bool {
	for _, pattern := range whiteList {
		switch strings.Count(pattern, "*") {
		case 0:
			if ip == pattern {
				return true
			}
		case 1:
			if !strings.HasSuffix(pattern, ".*") {
				continue
			}
			if strings.HasPrefix(ip, strings.TrimSuffix(pattern, "*")) {
				return true
			}
		}
	}
	return false
}
