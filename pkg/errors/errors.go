package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrAllocationExists 评审分配已存在：同一 (submission, reviewer) 组合只允许一条评审记录。
// 由存储层唯一约束保证，调用方按正常控制流分支处理，而非异常。
var ErrAllocationExists = errors.New("该评审人已被分配到此提交")
