package parser

import (
	"strings"

	nl2sqlCommon "github.com/Malowking/sqlgo/nl2sql/common"
)

type token struct {
	text  string
	upper string
	start int
	end   int
	depth int
}

func (t token) isNumber() bool {
	if t.text == "" {
		return false
	}
	for i := 0; i < len(t.text); i++ {
		if t.text[i] < '0' || t.text[i] > '9' {
			return false
		}
	}
	return true
}

// lexRules 各方言的注释与引号规则
type lexRules struct {
	hashComment    bool // MySQL: # 行注释
	dashNeedsSpace bool // MySQL: -- 后必须跟空白才是注释
	backslashAll   bool // MySQL: 所有字符串都支持反斜杠转义
	dollarQuote    bool // Postgres: $$ 字符串
}

func rulesFor(dialect string) lexRules {
	switch dialect {
	case nl2sqlCommon.DialectMySQL:
		return lexRules{hashComment: true, dashNeedsSpace: true, backslashAll: true}
	case nl2sqlCommon.DialectSQLite:
		return lexRules{}
	default:
		return lexRules{dollarQuote: true}
	}
}

// scan 去掉注释，返回可执行文本 clean 以及等长的 mask；
// mask 中字符串与带引号标识符的内容被替换为 x。
// 字面量内出现反斜杠一律拒绝，不依赖各方言转义规则的一致理解
func scan(sql, dialect string) (clean, mask string, err error) {
	rules := rulesFor(dialect)
	var c, m strings.Builder
	c.Grow(len(sql))
	m.Grow(len(sql))

	lineComment := func(i int) int {
		j := strings.IndexByte(sql[i:], '\n')
		if j < 0 {
			return len(sql)
		}
		return i + j
	}

	for i := 0; i < len(sql); {
		ch := sql[i]
		switch {
		case ch == '-' && i+1 < len(sql) && sql[i+1] == '-' &&
			(!rules.dashNeedsSpace || i+2 >= len(sql) || isSpaceOrControl(sql[i+2])):
			i = lineComment(i)
			c.WriteByte(' ')
			m.WriteByte(' ')

		case ch == '#' && rules.hashComment:
			i = lineComment(i)
			c.WriteByte(' ')
			m.WriteByte(' ')

		case ch == '/' && i+1 < len(sql) && sql[i+1] == '*':
			// MySQL 的 /*! */ 注释内容会被执行
			if i+2 < len(sql) && sql[i+2] == '!' {
				return "", "", ErrExecutableComment
			}
			j := strings.Index(sql[i+2:], "*/")
			if j < 0 {
				return "", "", ErrMalformed
			}
			i += j + 4
			c.WriteByte(' ')
			m.WriteByte(' ')

		case ch == '\'' || ch == '"' || ch == '`':
			escapes := ch != '`' && (rules.backslashAll || (ch == '\'' && escapeStringPrefix(sql, i)))
			j := closingQuote(sql, i, ch, escapes)
			if j < 0 {
				return "", "", ErrMalformed
			}
			if strings.IndexByte(sql[i+1:j], '\\') >= 0 {
				return "", "", ErrBackslash
			}
			c.WriteString(sql[i : j+1])
			m.WriteByte(ch)
			m.WriteString(strings.Repeat("x", j-i-1))
			m.WriteByte(ch)
			i = j + 1

		case ch == '\\':
			return "", "", ErrBackslash

		case rules.dollarQuote && ch == '$' && i+1 < len(sql) && sql[i+1] == '$':
			j := strings.Index(sql[i+2:], "$$")
			if j < 0 {
				return "", "", ErrMalformed
			}
			end := i + 2 + j + 2
			c.WriteString(sql[i:end])
			m.WriteString("$$")
			m.WriteString(strings.Repeat("x", j))
			m.WriteString("$$")
			i = end

		default:
			c.WriteByte(ch)
			m.WriteByte(ch)
			i++
		}
	}
	return c.String(), m.String(), nil
}

// escapeStringPrefix 判断 start 处的引号是否属于 Postgres 的 E'...' 字符串
func escapeStringPrefix(s string, start int) bool {
	if start == 0 || (s[start-1] != 'E' && s[start-1] != 'e') {
		return false
	}
	return start == 1 || !isIdentChar(s[start-2])
}

func isSpaceOrControl(b byte) bool {
	return b <= ' '
}

// closingQuote 找到与 start 处引号配对的位置；两个连续引号视为转义，
// escapes 为 true 时反斜杠转义下一个字节
func closingQuote(s string, start int, q byte, escapes bool) int {
	for j := start + 1; j < len(s); j++ {
		if escapes && s[j] == '\\' {
			j++
			continue
		}
		if s[j] != q {
			continue
		}
		if j+1 < len(s) && s[j+1] == q {
			j++
			continue
		}
		return j
	}
	return -1
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentChar(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

// tokenize 在 mask 上切分单词、数字与逗号，记录括号深度
func tokenize(mask string) ([]token, error) {
	var toks []token
	depth := 0
	for i := 0; i < len(mask); {
		ch := mask[i]
		switch {
		case ch == '(':
			depth++
			i++
		case ch == ')':
			depth--
			if depth < 0 {
				return nil, ErrMalformed
			}
			i++
		case isIdentStart(ch):
			j := i + 1
			for j < len(mask) && isIdentChar(mask[j]) {
				j++
			}
			text := mask[i:j]
			toks = append(toks, token{text: text, upper: strings.ToUpper(text), start: i, end: j, depth: depth})
			i = j
		case ch >= '0' && ch <= '9':
			j := i + 1
			for j < len(mask) && (isIdentChar(mask[j]) || mask[j] == '.') {
				j++
			}
			text := mask[i:j]
			toks = append(toks, token{text: text, upper: text, start: i, end: j, depth: depth})
			i = j
		case ch == ',' || ch == '$' || ch == '?' || ch == ':':
			toks = append(toks, token{text: string(ch), upper: string(ch), start: i, end: i + 1, depth: depth})
			i++
		default:
			i++
		}
	}
	if depth != 0 {
		return nil, ErrMalformed
	}
	return toks, nil
}
