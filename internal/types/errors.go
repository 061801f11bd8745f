package types

import (
	"errors"
	"fmt"
)

// 核心错误分类。门控类错误(ErrValidationRejected/ErrInsufficientInput)会提前终止
// 流水线并返回结构化的拒绝结果；其余错误在节点或编排器边界被捕获并转换为
// {error: ...} 结果，run_pipeline 对外永不抛出。
var (
	// ErrCredentialMissing 三级凭证解析(请求覆盖→租户存储→进程默认)全部落空。
	// 终止性错误，对该请求不可重试。
	ErrCredentialMissing = errors.New("没有可用的LLM凭证")

	// ErrValidationRejected 输入被判定为非简历，门控拒绝
	ErrValidationRejected = errors.New("输入文本不是简历")

	// ErrInsufficientInput 主输入为空或近乎为空，在任何LLM调用之前短路
	ErrInsufficientInput = errors.New("输入文本过短，无法分析")

	// ErrRetrievalUnavailable 向量/嵌入后端不可用。与"没有检索结果"(合法的空列表)
	// 严格区分。
	ErrRetrievalUnavailable = errors.New("向量检索服务不可用")

	// ErrUnknownTask 编排器不认识的任务标识
	ErrUnknownTask = errors.New("未知的流水线任务")

	// ErrNotFound 租户范围内查不到指定文档/岗位
	ErrNotFound = errors.New("记录不存在")
)

// ParseFailure LLM输出无法解析为预期JSON。节点级可恢复错误：
// 节点记录 output.error 而不是中止整条流水线，除非该JSON是下游门控决策的输入。
type ParseFailure struct {
	Reason  string
	RawText string
}

func (p *ParseFailure) Error() string {
	return fmt.Sprintf("LLM输出解析失败: %s", p.Reason)
}

// IsGateError 判断错误是否属于门控类(需要映射为结构化拒绝而非通用错误)
func IsGateError(err error) bool {
	return errors.Is(err, ErrValidationRejected) || errors.Is(err, ErrInsufficientInput)
}
