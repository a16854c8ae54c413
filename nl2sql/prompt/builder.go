package prompt

import (
	"fmt"
	"strings"

	nl2sqlCommon "github.com/Malowking/sqlgo/nl2sql/common"
	"github.com/Malowking/sqlgo/nl2sql/schema"
)

const maxExamples = 4

// Prompt 一次生成请求的指令与用户问题
type Prompt struct {
	DomainID string
	System   string
	User     string
}

// Text 合并后的完整文本
func (p Prompt) Text() string {
	return p.System + "\n\n" + p.User
}

// Builder 构建领域相关的生成指令，纯函数，无外部调用
type Builder struct {
	sentinel string
	rowCap   int
}

// NewBuilder 创建构建器
func NewBuilder(sentinel string, rowCap int) *Builder {
	return &Builder{sentinel: sentinel, rowCap: rowCap}
}

// Build 构建 SQL 生成指令
func (b *Builder) Build(question string, d *schema.DomainContext) Prompt {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are an expert SQL developer for the %s dataset ONLY. %s\n\n", d.DisplayName, d.Description)

	sb.WriteString("SCOPE RULES:\n")
	sb.WriteString("1. Only answer questions about these topics:\n")
	for _, topic := range d.Scope.Topics {
		fmt.Fprintf(&sb, "   - %s\n", topic)
	}
	if len(d.Scope.OffTopics) > 0 {
		sb.WriteString("2. Never answer questions about:\n")
		for _, topic := range d.Scope.OffTopics {
			fmt.Fprintf(&sb, "   - %s\n", topic)
		}
	}
	fmt.Fprintf(&sb, "3. If the question is not about the topics above, respond with exactly: %s\n", b.sentinel)
	sb.WriteString("4. A short question without topic words (for example \"what is the price?\") refers to this dataset.\n\n")

	fmt.Fprintf(&sb, "DATABASE SCHEMA (%s):\n", dialectName(d.Dialect))
	sb.WriteString(d.SchemaText())
	sb.WriteString("\n")

	sb.WriteString("OUTPUT RULES:\n")
	sb.WriteString("1. Return exactly one SQL statement and nothing else: no explanations, no comments, no markdown fences.\n")
	sb.WriteString("2. The statement must be a read-only SELECT (WITH is allowed). Never modify data or schema.\n")
	fmt.Fprintf(&sb, "3. Always end the statement with LIMIT %d or a smaller limit.\n", b.rowCap)
	sb.WriteString("4. Only use the tables and columns listed in the schema; follow the join paths for relationships.\n")
	sb.WriteString("5. Use meaningful column aliases and ORDER BY when it makes the result clearer.\n")
	sb.WriteString("6. Use LOWER() for case-insensitive comparisons on names.\n\n")

	sb.WriteString("EXAMPLES:\n")
	for i, ex := range d.Examples {
		if i >= maxExamples {
			break
		}
		fmt.Fprintf(&sb, "Question: %s\nSQL: %s\n\n", ex.Question, oneLine(ex.SQL))
	}

	return Prompt{
		DomainID: d.ID,
		System:   strings.TrimRight(sb.String(), "\n"),
		User:     strings.TrimSpace(question),
	}
}

// BuildScopeCheck 构建独立的越界判定指令
func (b *Builder) BuildScopeCheck(question string, d *schema.DomainContext) Prompt {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You classify questions for the %s dataset. %s\n", d.DisplayName, d.Description)
	sb.WriteString("In-scope topics:\n")
	for _, topic := range d.Scope.Topics {
		fmt.Fprintf(&sb, "- %s\n", topic)
	}
	sb.WriteString("Sample in-scope questions:\n")
	for _, q := range d.SampleQuestions {
		fmt.Fprintf(&sb, "- %s\n", q)
	}
	sb.WriteString("A short question without topic words refers to this dataset and is in scope.\n")
	fmt.Fprintf(&sb, "Reply with exactly IN_SCOPE if the question is about these topics, otherwise reply with exactly %s.", b.sentinel)

	return Prompt{
		DomainID: d.ID,
		System:   sb.String(),
		User:     strings.TrimSpace(question),
	}
}

func dialectName(dialect string) string {
	switch dialect {
	case nl2sqlCommon.DialectSQLite:
		return "SQLite syntax"
	case nl2sqlCommon.DialectMySQL:
		return "MySQL syntax"
	default:
		return "PostgreSQL syntax"
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
