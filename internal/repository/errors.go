package repository

import "errors"

// ErrStorage 标识存储层故障（无法写入、引擎错误等）。
// 使用 errors.Is(err, ErrStorage) 与"未找到"之类的正常结果区分。
var ErrStorage = errors.New("storage failure")

// StoreError 记录失败的操作及底层错误。
type StoreError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return "conversation store " + e.Op + ": " + e.Err.Error()
}

// Unwrap 返回底层错误。
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is 让所有 StoreError 都匹配 ErrStorage。
func (e *StoreError) Is(target error) bool {
	return target == ErrStorage
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
