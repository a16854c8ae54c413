package parser

import (
	stdErrors "errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Malowking/sqlgo/core/errors"
	"github.com/xwb1989/sqlparser"
)

var (
	ErrMultipleStatements = stdErrors.New("more than one statement")
	ErrNotReadOnly        = stdErrors.New("leading keyword is not a read-only query keyword")
	ErrUnsafeKeywords     = stdErrors.New("statement contains a mutating keyword")
	ErrMalformed          = stdErrors.New("unterminated literal, comment or parenthesis")
	ErrUnboundedLimit     = stdErrors.New("row limit is not a literal number")
	ErrForeignTable       = stdErrors.New("statement references a table outside the domain")
	ErrEmptyStatement     = stdErrors.New("empty statement")
	ErrBackslash          = stdErrors.New("backslash escape in statement text")
	ErrExecutableComment  = stdErrors.New("executable comment")
)

// UnsafeMessage 拒绝时返回给用户的提示，不包含被拒绝的语句
const UnsafeMessage = "The question could not be answered safely as phrased. Please rephrase it."

// SanitizedStatement 单条只读语句，且一定带有行数上限
type SanitizedStatement struct {
	SQL      string   `json:"sql"`
	RowCap   int      `json:"row_cap"`
	Appended bool     `json:"appended"` // 是否追加了默认 LIMIT
	Clamped  bool     `json:"clamped"`  // 是否把 LIMIT 压低到最大值
	Tables   []string `json:"tables,omitempty"`
}

// TableChecker 判断表名是否属于当前领域
type TableChecker interface {
	HasTable(name string) bool
}

// SQLValidator 语句安全校验器，执行前的最后一道防线
type SQLValidator struct {
	defaultLimit   int
	maxLimit       int
	bannedKeywords map[string]struct{}
}

// NewSQLValidator 创建校验器，defaultLimit 会被压到不超过 maxLimit
func NewSQLValidator(defaultLimit, maxLimit int) *SQLValidator {
	if maxLimit <= 0 {
		maxLimit = 100
	}
	if defaultLimit <= 0 || defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	banned := []string{
		"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "TRUNCATE", "CREATE", "GRANT", "REVOKE",
		"MERGE", "UPSERT", "EXEC", "EXECUTE", "CALL", "COPY", "VACUUM", "REINDEX", "CLUSTER",
		"ATTACH", "DETACH", "PRAGMA", "LOCK", "UNLOCK", "RENAME", "INTO",
		"LOAD_FILE", "OUTFILE", "DUMPFILE",
	}
	v := &SQLValidator{defaultLimit: defaultLimit, maxLimit: maxLimit, bannedKeywords: make(map[string]struct{}, len(banned))}
	for _, k := range banned {
		v.bannedKeywords[k] = struct{}{}
	}
	return v
}

// Sanitize 按 Postgres 规则校验并规范化候选语句
func (v *SQLValidator) Sanitize(candidate string) (*SanitizedStatement, error) {
	return v.SanitizeFor(candidate, "", nil)
}

// SanitizeFor 按领域方言校验候选语句，dialect 为空时按 Postgres 处理；
// tables 非空时额外检查引用的表是否属于领域
func (v *SQLValidator) SanitizeFor(candidate, dialect string, tables TableChecker) (*SanitizedStatement, error) {
	stmt, err := v.sanitize(candidate, dialect, tables)
	if err != nil {
		return nil, errors.Wrap(errors.ErrUnsafeStatement, err, UnsafeMessage)
	}
	return stmt, nil
}

var wordPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

func (v *SQLValidator) sanitize(candidate, dialect string, tables TableChecker) (*SanitizedStatement, error) {
	// 写操作关键字在原文上检查，注释与字符串中的同名单词同样拒绝
	for _, w := range wordPattern.FindAllString(candidate, -1) {
		if _, bad := v.bannedKeywords[strings.ToUpper(w)]; bad {
			return nil, fmt.Errorf("%w: %s", ErrUnsafeKeywords, strings.ToUpper(w))
		}
	}

	clean, mask, err := scan(stripFences(candidate), dialect)
	if err != nil {
		return nil, err
	}
	clean, mask = trimStatement(clean, mask)
	if strings.TrimSpace(clean) == "" {
		return nil, ErrEmptyStatement
	}
	if strings.ContainsRune(mask, ';') {
		return nil, ErrMultipleStatements
	}

	toks, err := tokenize(mask)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 || !isReadOnlyLead(toks[0].upper) {
		return nil, ErrNotReadOnly
	}

	out := &SanitizedStatement{}
	sql, err := v.enforceLimit(clean, toks, out)
	if err != nil {
		return nil, err
	}
	out.SQL = sql

	if tables != nil {
		if refs, perr := ReferencedTables(out.SQL); perr == nil {
			out.Tables = refs
			for _, name := range refs {
				if !tables.HasTable(name) {
					return nil, fmt.Errorf("%w: %s", ErrForeignTable, name)
				}
			}
		}
	}
	return out, nil
}

func isReadOnlyLead(word string) bool {
	return word == "SELECT" || word == "WITH"
}

// enforceLimit 缺少 LIMIT 时追加默认值，超过最大值时压低，绝不提高
func (v *SQLValidator) enforceLimit(clean string, toks []token, out *SanitizedStatement) (string, error) {
	limitIdx, fetchIdx := -1, -1
	for i, t := range toks {
		if t.depth != 0 {
			continue
		}
		switch t.upper {
		case "LIMIT":
			limitIdx = i
		case "FETCH":
			fetchIdx = i
		}
	}

	switch {
	case limitIdx >= 0:
		target := limitIdx + 1
		if target < len(toks) && toks[target].isNumber() && target+2 < len(toks) &&
			toks[target+1].text == "," && toks[target+2].isNumber() {
			target += 2 // LIMIT offset, count
		}
		return v.clampAt(clean, toks, target, out)

	case fetchIdx >= 0:
		// FETCH FIRST|NEXT [n] ROW|ROWS ONLY
		target := fetchIdx + 2
		if target < len(toks) && toks[target].isNumber() {
			return v.clampAt(clean, toks, target, out)
		}
		out.RowCap = 1
		return clean, nil

	default:
		out.RowCap = v.defaultLimit
		out.Appended = true
		return fmt.Sprintf("%s LIMIT %d", clean, v.defaultLimit), nil
	}
}

func (v *SQLValidator) clampAt(clean string, toks []token, idx int, out *SanitizedStatement) (string, error) {
	if idx >= len(toks) {
		return "", ErrUnboundedLimit
	}
	t := toks[idx]
	if t.upper == "ALL" {
		out.RowCap = v.maxLimit
		out.Clamped = true
		return replaceSpan(clean, t, v.maxLimit), nil
	}
	if !t.isNumber() {
		return "", ErrUnboundedLimit
	}
	n, err := strconv.Atoi(t.text)
	if err != nil || n > v.maxLimit {
		out.RowCap = v.maxLimit
		out.Clamped = true
		return replaceSpan(clean, t, v.maxLimit), nil
	}
	out.RowCap = n
	return clean, nil
}

func replaceSpan(s string, t token, n int) string {
	return s[:t.start] + strconv.Itoa(n) + s[t.end:]
}

// trimStatement 去掉首尾空白和最多一个结尾分号
func trimStatement(clean, mask string) (string, string) {
	isSpace := func(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }
	start, end := 0, len(clean)
	for start < end && isSpace(clean[start]) {
		start++
	}
	for end > start && isSpace(clean[end-1]) {
		end--
	}
	if end > start && clean[end-1] == ';' {
		end--
		for end > start && isSpace(clean[end-1]) {
			end--
		}
	}
	return clean[start:end], mask[start:end]
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], " \t;") {
			s = s[nl+1:]
		}
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

// ReferencedTables 用 sqlparser 提取语句引用的表名；方言不兼容时返回解析错误
func ReferencedTables(sql string) ([]string, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var tables []string
	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		if aliased, ok := node.(*sqlparser.AliasedTableExpr); ok {
			if name, ok := aliased.Expr.(sqlparser.TableName); ok && !name.IsEmpty() {
				n := name.Name.String()
				if _, dup := seen[strings.ToLower(n)]; !dup {
					seen[strings.ToLower(n)] = struct{}{}
					tables = append(tables, n)
				}
			}
		}
		return true, nil
	}, stmt)
	return tables, nil
}
