package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有对外暴露的失败都携带错误代码（Code）与消息（Message）
//   - 公开操作永不 panic：每个失败都是一个可判别的 result-or-reason 值
//   - 通过 IsXXX 辅助函数做语义判断，而不是字符串比较
type DomainError struct {
	Code    string // 错误代码（如 "INVALID_INPUT", "UNAVAILABLE"）
	Message string // 错误消息
	Module  string // 模块名称（如 "engine", "cache", "provider"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError 创建新的领域错误。
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// GetDomainError 获取 DomainError（支持 wrap 链），不是则返回 nil。
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效，未触碰任何模型状态
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 模型/数据不可用（Degraded）
	ErrorCodeEmptyResult   = "EMPTY_RESULT"   // 有模型但打分后无正分候选
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
)

// 模块名称常量
const (
	ModuleStore    = "store"
	ModuleCache    = "cache"
	ModuleEngine   = "engine"
	ModuleProvider = "provider"
	ModulePersist  = "persist"
)

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND。
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsInvalidInput 检查错误是否为 INVALID_INPUT。
func IsInvalidInput(err error) bool { return hasCode(err, ErrorCodeInvalidInput) }

// IsUnavailable 检查错误是否为 UNAVAILABLE。
func IsUnavailable(err error) bool { return hasCode(err, ErrorCodeUnavailable) }

// IsEmptyResult 检查错误是否为 EMPTY_RESULT。
func IsEmptyResult(err error) bool { return hasCode(err, ErrorCodeEmptyResult) }
