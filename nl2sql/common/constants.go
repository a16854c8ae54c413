package common

// 支持的数据源类型
const (
	StoreTypePostgres = "postgres"
	StoreTypeSQLite   = "sqlite"
	StoreTypeMySQL    = "mysql"
	StoreTypePQ       = "pq" // postgres 经 database/sql + lib/pq
)

// SQL 方言
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
	DialectMySQL    = "mysql"
)

// 语义类型
const (
	SemanticTypeID       = "id"
	SemanticTypeCurrency = "currency"
	SemanticTypeTime     = "time"
	SemanticTypeCategory = "category"
	SemanticTypeText     = "text"
	SemanticTypeNumber   = "number"
	SemanticTypeBoolean  = "boolean"
)

// 关系类型
const (
	RelationManyToOne = "many_to_one"
	RelationOneToMany = "one_to_many"
	RelationOneToOne  = "one_to_one"
)

// 初始化数据时对源值的提取方式
const (
	SeedExtractFirstWord = "firstWord" // 取第一个空白前的单词，如从车型名中取品牌
)

// 执行状态，写入查询日志
const (
	ExecutionStatusSuccess = "success"
	ExecutionStatusFailed  = "failed"
	ExecutionStatusTimeout = "timeout"
)

// 生成温度
const (
	TemperatureSQL     float32 = 0.1
	TemperatureVisual  float32 = 0.3
	TemperatureInsight float32 = 0.7
)

// 后处理的固定文案
const (
	InsightNoData      = "No data found for the given query."
	InsightUnavailable = "Unable to generate insights at this time."
)
