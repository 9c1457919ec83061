package aigen

import "errors"

var (
	// ErrInvalidPayload 生成结果不符合约定结构
	ErrInvalidPayload = errors.New("invalid generation payload")
	// ErrGenerationRejected 生成函数返回 success=false
	ErrGenerationRejected = errors.New("generation reported failure")
)
