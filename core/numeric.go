package core

import (
	"fmt"
	"strconv"
	"strings"
)

// parseIntLiteral parses a lexed NUMBER token's text: decimal with an
// optional leading '-', or hex ("0x..."/"-0x...") with an optional
// leading '-'.
func parseIntLiteral(text string) (int64, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, fmt.Errorf("empty numeric literal")
	}
	if strings.HasPrefix(s, "-") {
		v, err := parseIntLiteral(s[1:])
		if err != nil {
			return 0, err
		}
		return -v, nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 64)
		if err != nil {
			return 0, err
		}
		return v, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
