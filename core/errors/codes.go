package errors

// ErrCode 业务错误码类型
type ErrCode int

const (
	// 通用错误 1000-1999
	ErrInvalidParameter ErrCode = 1001 // 参数错误
	ErrInternalError    ErrCode = 1003 // 内部错误
	ErrNotFound         ErrCode = 1004 // 资源未找到

	// 领域上下文 2000-2999
	ErrUnknownDomain ErrCode = 2001 // 未注册的领域
	ErrOutOfScope    ErrCode = 2002 // 问题超出领域范围

	// 生成相关 3000-3999
	ErrGenerationUnavailable ErrCode = 3001 // 生成服务不可用
	ErrUnsafeStatement       ErrCode = 3002 // 语句未通过安全校验

	// 执行相关 4000-4999
	ErrExecution        ErrCode = 4001 // 执行失败
	ErrExecutionTimeout ErrCode = 4002 // 执行超时

	// 基础设施 6000-6999
	ErrFileReadFailed ErrCode = 6002 // 文件读取失败
	ErrDatabaseInit   ErrCode = 6005 // 数据库初始化失败
	ErrExportFailed   ErrCode = 6010 // 导出失败
	ErrSessionFailed  ErrCode = 6011 // 会话存储失败
)

// Kind 返回错误码对应的失败类型名称，用于响应体
func (e ErrCode) Kind() string {
	switch e {
	case ErrUnknownDomain:
		return "UnknownDomain"
	case ErrOutOfScope:
		return "OutOfScope"
	case ErrGenerationUnavailable:
		return "GenerationUnavailable"
	case ErrUnsafeStatement:
		return "UnsafeStatement"
	case ErrExecution:
		return "ExecutionError"
	case ErrExecutionTimeout:
		return "ExecutionTimeout"
	case ErrInvalidParameter:
		return "InvalidParameter"
	case ErrNotFound:
		return "NotFound"
	default:
		return "InternalError"
	}
}

// HTTPStatusCode 返回错误码对应的HTTP状态码
func (e ErrCode) HTTPStatusCode() int {
	switch e {
	case ErrInvalidParameter:
		return 400
	case ErrNotFound, ErrUnknownDomain:
		return 404
	case ErrOutOfScope, ErrUnsafeStatement:
		return 422
	case ErrGenerationUnavailable:
		return 503
	case ErrExecutionTimeout:
		return 504
	default:
		return 500
	}
}
